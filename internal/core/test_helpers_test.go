package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent returns the next event of any kind.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
		return nil
	}
}

// mustNotice waits for a message event whose text is want, skipping others.
func mustNotice(t *testing.T, ch <-chan *Event, want string) *Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventMessage && ev.Record.Text == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("notice %q not received", want)
			return nil
		}
	}
}

// mustChat waits for the next public chat record, skipping notices and other events.
func mustChat(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == EventMessage && ev.Record.Tag == TagPublic {
				return ev
			}
		case <-deadline:
			t.Fatalf("no chat message received")
			return nil
		}
	}
}

func noEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(wait):
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func startRelay(t *testing.T, deps Deps, opts Options) (*Relay, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	relay := NewRelay(deps, opts)
	stopped := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(stopped)
	}()
	stop := func() {
		cancel()
		<-stopped
	}
	t.Cleanup(stop)
	return relay, stop
}

// join registers c with the relay and waits for its own join notice.
func join(t *testing.T, relay *Relay, c *Client, room, user, lang string, role Role) {
	t.Helper()
	relay.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoinRoom, Room: room, User: user, Language: lang, Role: string(role)}
	mustNotice(t, c.Events, user+" has joined the chat")
}

func say(c *Client, room, text, lang string) {
	c.Commands <- &Command{Kind: CommandSendRoomMessage, Room: room, Text: text, Language: lang}
}

// fakeTranslator prefixes text with the target language and fails for listed targets.
type fakeTranslator struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (f *fakeTranslator) Translate(_ context.Context, text, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[target] {
		return "", fmt.Errorf("%w: upstream rejected %s", ErrTranslationUnavailable, target)
	}
	return "[" + target + "] " + text, nil
}

func (f *fakeTranslator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
