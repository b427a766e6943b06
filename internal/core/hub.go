package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/lingorelay/internal/metrics"
)

// Hub coordinates clients and rooms.
type Hub interface {
	Run(ctx context.Context)
	RegisterClient(c *Client)
	UnregisterClient(c *Client)
}

// HistoryMode selects how message records are kept in room history.
type HistoryMode string

const (
	// HistoryPerRecipient keeps one record per delivered copy.
	HistoryPerRecipient HistoryMode = "recipient"
	// HistoryCanonical keeps one untranslated record per chat message.
	HistoryCanonical HistoryMode = "canonical"
)

// ParseHistoryMode maps a config value to a HistoryMode. Empty selects HistoryPerRecipient.
func ParseHistoryMode(s string) (HistoryMode, error) {
	switch HistoryMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", HistoryPerRecipient:
		return HistoryPerRecipient, nil
	case HistoryCanonical:
		return HistoryCanonical, nil
	default:
		return "", fmt.Errorf("%w: unknown history mode %q", ErrInvalidInput, s)
	}
}

// Deps are the collaborators injected into the relay.
// Nil Registry and History are replaced by fresh in-memory ones.
type Deps struct {
	Registry   *Registry
	History    *History
	Translator Translator
	Advisor    *Advisor // nil disables suggestions
	Censor     Censor   // nil disables moderation
	Metrics    *metrics.Metrics
	Logger     *zerolog.Logger
}

// Options tune relay behaviour.
type Options struct {
	HistoryMode    HistoryMode
	GatewayTimeout time.Duration
	Clock          func() time.Time
}

const defaultGatewayTimeout = 5 * time.Second

type envelope struct {
	client *Client
	cmd    *Command
}

type signalKind int

const (
	signalIdle signalKind = iota
	signalMoved
)

type signal struct {
	kind   signalKind
	worker *roomWorker
	connID string
}

type pendingMove struct {
	room        string
	participant Participant
	client      *Client
	held        []envelope
}

// Relay is the Hub implementation. A single dispatcher goroutine (Run) owns
// routing state; each live room is served by one worker goroutine, so work
// for different rooms proceeds concurrently while one room's events stay ordered.
type Relay struct {
	registry *Registry
	history  *History
	deps     Deps
	opts     Options
	log      zerolog.Logger

	inbox   chan envelope
	signals chan signal
	done    chan struct{}

	// Owned by the Run goroutine.
	rooms  map[string]*roomWorker
	routes map[string]string // conn id -> room
	moves  map[string]*pendingMove

	workers sync.WaitGroup
}

var _ Hub = (*Relay)(nil)

// NewRelay creates a relay. Call Run to start dispatching.
func NewRelay(deps Deps, opts Options) *Relay {
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.History == nil {
		deps.History = NewHistory(0)
	}
	if opts.HistoryMode == "" {
		opts.HistoryMode = HistoryPerRecipient
	}
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = defaultGatewayTimeout
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}
	logger := zerolog.Nop()
	if deps.Logger != nil {
		logger = *deps.Logger
	}

	return &Relay{
		registry: deps.Registry,
		history:  deps.History,
		deps:     deps,
		opts:     opts,
		log:      logger.With().Str("component", "relay").Logger(),
		inbox:    make(chan envelope, 256),
		signals:  make(chan signal, 64),
		done:     make(chan struct{}),
		rooms:    make(map[string]*roomWorker),
		routes:   make(map[string]string),
		moves:    make(map[string]*pendingMove),
	}
}

// Registry returns the participant registry the relay writes to.
func (r *Relay) Registry() *Registry { return r.registry }

// History returns the room history the relay writes to.
func (r *Relay) History() *History { return r.history }

// Run dispatches commands until ctx is cancelled, then stops all room workers
// and discards registry and history state.
func (r *Relay) Run(ctx context.Context) {
	defer r.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-r.inbox:
			r.dispatch(ctx, env)
		case sig := <-r.signals:
			r.handleSignal(ctx, sig)
		}
	}
}

// RegisterClient starts forwarding the client's commands to the dispatcher.
func (r *Relay) RegisterClient(c *Client) {
	go r.pump(c)
}

// UnregisterClient asks the relay to remove the client from its room.
func (r *Relay) UnregisterClient(c *Client) {
	select {
	case c.Commands <- &Command{Kind: CommandDisconnect}:
	case <-r.done:
	}
}

func (r *Relay) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case r.inbox <- envelope{client: c, cmd: cmd}:
			case <-r.done:
				return
			}
			if cmd.Kind == CommandDisconnect {
				return
			}
		case <-r.done:
			return
		}
	}
}

func (r *Relay) shutdown() {
	close(r.done)
	for _, w := range r.rooms {
		w.stop()
	}
	r.workers.Wait()
	r.rooms = nil
	r.deps.Metrics.SetRooms(0)
	r.registry.Shutdown()
	r.history.Shutdown()
	r.log.Info().Msg("relay stopped")
}

func (r *Relay) dispatch(ctx context.Context, env envelope) {
	id := env.client.ID
	if mv, busy := r.moves[id]; busy {
		mv.held = append(mv.held, env)
		return
	}

	switch env.cmd.Kind {
	case CommandJoinRoom:
		r.routeJoin(ctx, env)
	case CommandSendRoomMessage:
		r.routeMessage(env)
	case CommandLeaveRoom:
		r.routeLeave(ctx, env, false)
	case CommandDisconnect:
		r.routeLeave(ctx, env, true)
	default:
		r.push(env.client, errorEvent(env.cmd.Room, coreError(ErrCodeBadRequest, "unknown command")))
	}
}

func participantFrom(c *Client, cmd *Command) (Participant, error) {
	p := Participant{
		ConnID:   c.ID,
		Name:     strings.TrimSpace(cmd.User),
		Language: strings.TrimSpace(cmd.Language),
		Role:     Role(strings.ToLower(strings.TrimSpace(cmd.Role))),
		Client:   c,
	}
	if err := p.Validate(); err != nil {
		return Participant{}, err
	}
	return p, nil
}

func (r *Relay) routeJoin(ctx context.Context, env envelope) {
	room := strings.TrimSpace(env.cmd.Room)
	p, err := participantFrom(env.client, env.cmd)
	if err == nil && room == "" {
		err = fmt.Errorf("%w: missing or invalid room", ErrInvalidInput)
	}
	if err != nil {
		r.push(env.client, errorEvent(env.cmd.Room, coreError(ErrCodeInvalidInput, err.Error())))
		return
	}

	id := env.client.ID
	if current, ok := r.routes[id]; ok && current != room {
		// Leave the old room first; the join is routed once the old worker confirms.
		delete(r.routes, id)
		r.moves[id] = &pendingMove{room: room, participant: p, client: env.client}
		r.enqueue(ctx, current, task{kind: taskLeave, client: env.client, moving: true})
		return
	}

	r.routes[id] = room
	r.enqueue(ctx, room, task{kind: taskJoin, client: env.client, participant: p})
}

func (r *Relay) routeMessage(env envelope) {
	cmd := env.cmd
	if err := validateMessage(cmd.Room, cmd.Text, cmd.Language); err != nil {
		r.push(env.client, errorEvent(cmd.Room, coreError(ErrCodeInvalidInput, err.Error())))
		return
	}
	room := strings.TrimSpace(cmd.Room)
	w, ok := r.rooms[room]
	if !ok {
		r.push(env.client, errorEvent(room, coreError(ErrCodeRoomNotFound, ErrRoomNotFound.Error())))
		return
	}
	w.submit(task{
		kind:     taskMessage,
		client:   env.client,
		text:     cmd.Text,
		language: strings.TrimSpace(cmd.Language),
	})
}

func (r *Relay) routeLeave(ctx context.Context, env envelope, disconnect bool) {
	id := env.client.ID
	room, ok := r.routes[id]
	if !ok {
		if !disconnect {
			r.push(env.client, errorEvent(env.cmd.Room, coreError(ErrCodeSenderUnknown, "not in a room")))
		}
		return
	}
	if !disconnect {
		if asked := strings.TrimSpace(env.cmd.Room); asked != "" && asked != room {
			r.push(env.client, errorEvent(asked, coreError(ErrCodeSenderUnknown, ErrSenderUnknown.Error())))
			return
		}
	}
	delete(r.routes, id)
	r.enqueue(ctx, room, task{kind: taskLeave, client: env.client})
}

// enqueue hands t to the room's worker, starting one if the room has none.
func (r *Relay) enqueue(ctx context.Context, room string, t task) {
	w, ok := r.rooms[room]
	if !ok {
		w = newRoomWorker(room, r)
		r.rooms[room] = w
		r.workers.Add(1)
		go func() {
			defer r.workers.Done()
			w.run(ctx)
		}()
		r.deps.Metrics.SetRooms(len(r.rooms))
	}
	w.submit(t)
}

func (r *Relay) handleSignal(ctx context.Context, sig signal) {
	switch sig.kind {
	case signalIdle:
		w := sig.worker
		if r.rooms[w.room] != w {
			return
		}
		if w.pending.Load() != 0 || r.registry.Count(w.room) != 0 {
			return
		}
		delete(r.rooms, w.room)
		w.stop()
		r.deps.Metrics.SetRooms(len(r.rooms))
		r.log.Debug().Str("room", w.room).Msg("room worker stopped")

	case signalMoved:
		mv, ok := r.moves[sig.connID]
		if !ok {
			return
		}
		delete(r.moves, sig.connID)
		r.routes[sig.connID] = mv.room
		r.enqueue(ctx, mv.room, task{kind: taskJoin, client: mv.client, participant: mv.participant})
		for _, env := range mv.held {
			r.dispatch(ctx, env)
		}
	}
}

// notify delivers a worker signal to the dispatcher.
func (r *Relay) notify(ctx context.Context, sig signal) {
	select {
	case r.signals <- sig:
	case <-ctx.Done():
	}
}

// push performs a non-blocking send. A full queue drops the event.
func (r *Relay) push(c *Client, ev *Event) bool {
	if c == nil {
		return false
	}
	select {
	case c.Events <- ev:
		return true
	default:
		r.log.Warn().
			Str("conn_id", c.ID).
			Str("room", ev.Room).
			Str("code", ErrCodeDeliveryFailed).
			Msg("client event queue full, event dropped")
		r.deps.Metrics.Delivery(metrics.DeliveryDropped)
		return false
	}
}
