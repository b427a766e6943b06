package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/lingorelay/internal/proto"
)

// outboundFrame keeps data raw so it can be decoded per frame type.
type outboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "username")
	room := flag.String("room", "general", "room to join")
	lang := flag.String("lang", "en", "preferred language")
	role := flag.String("role", "user", "participant role (user or agent)")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeJoin, proto.JoinData{
		Room:     *room,
		Username: *user,
		Language: *lang,
		Role:     *role,
	}); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	fmt.Printf("Connected to %s as %s (%s, %s) in room %s\n", *addr, *user, *role, *lang, *room)
	fmt.Println("Type messages and press Enter to send. /leave leaves the room. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *room, *lang)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload})
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch frame.Type {
		case proto.OutboundTypeMessage:
			var rec proto.Record
			if err := json.Unmarshal(frame.Data, &rec); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			printRecord(rec)
		case proto.OutboundTypeHistory:
			var recs []proto.Record
			if err := json.Unmarshal(frame.Data, &recs); err != nil {
				log.Printf("unmarshal history: %v", err)
				continue
			}
			fmt.Printf("-- %d earlier messages --\n", len(recs))
			for _, rec := range recs {
				printRecord(rec)
			}
			fmt.Println("--")
		case proto.OutboundTypeSuggestions:
			var suggestions []string
			if err := json.Unmarshal(frame.Data, &suggestions); err != nil {
				log.Printf("unmarshal suggestions: %v", err)
				continue
			}
			for i, s := range suggestions {
				fmt.Printf("  suggestion %d: %s\n", i+1, s)
			}
		case proto.OutboundTypeError:
			var e proto.Error
			if err := json.Unmarshal(frame.Data, &e); err != nil {
				log.Printf("unmarshal error: %v", err)
				continue
			}
			fmt.Printf("! %s: %s\n", e.Code, e.Message)
		default:
			fmt.Printf("type=%s data=%s\n", frame.Type, frame.Data)
		}
	}
}

func printRecord(rec proto.Record) {
	if rec.Type == "system" {
		fmt.Printf("* %s\n", rec.Text)
		return
	}
	if rec.IsTranslated {
		fmt.Printf("%s (%s): %s  [%s]\n", rec.Username, rec.Role, rec.Text, rec.OriginalText)
		return
	}
	fmt.Printf("%s (%s): %s\n", rec.Username, rec.Role, rec.Text)
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room, lang string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			if text == "/leave" {
				err = send(ctx, conn, proto.InboundTypeLeave, proto.LeaveData{Room: room})
			} else {
				err = send(ctx, conn, proto.InboundTypeChatMessage, proto.ChatMessageData{Room: room, Message: text, Language: lang})
			}
			if err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
