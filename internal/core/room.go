package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/lingorelay/internal/metrics"
)

type taskKind int

const (
	taskJoin taskKind = iota
	taskMessage
	taskLeave
)

type task struct {
	kind        taskKind
	client      *Client
	participant Participant // taskJoin
	text        string      // taskMessage
	language    string      // taskMessage
	moving      bool        // taskLeave issued for a room switch
}

// mailbox is an unbounded FIFO; push never blocks the dispatcher.
type mailbox struct {
	mu    sync.Mutex
	queue []task
	ready chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) push(t task) {
	m.mu.Lock()
	m.queue = append(m.queue, t)
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() []task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

// roomWorker serializes all state changes and deliveries for one room.
type roomWorker struct {
	room  string
	relay *Relay
	box   *mailbox
	log   zerolog.Logger

	pending  atomic.Int64
	quit     chan struct{}
	stopOnce sync.Once

	last time.Time // newest timestamp issued in this room
}

func newRoomWorker(room string, r *Relay) *roomWorker {
	return &roomWorker{
		room:  room,
		relay: r,
		box:   newMailbox(),
		log:   r.log.With().Str("room", room).Logger(),
		quit:  make(chan struct{}),
	}
}

func (w *roomWorker) submit(t task) {
	w.pending.Add(1)
	w.box.push(t)
}

func (w *roomWorker) stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}

func (w *roomWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.quit:
			return
		case <-w.box.ready:
			for _, t := range w.box.drain() {
				w.handle(ctx, t)
				w.pending.Add(-1)
			}
			if w.relay.registry.Count(w.room) == 0 {
				w.relay.notify(ctx, signal{kind: signalIdle, worker: w})
			}
		}
	}
}

func (w *roomWorker) handle(ctx context.Context, t task) {
	switch t.kind {
	case taskJoin:
		w.join(t)
	case taskMessage:
		w.message(ctx, t)
	case taskLeave:
		w.leave(t)
		if t.moving {
			w.relay.notify(ctx, signal{kind: signalMoved, connID: t.client.ID})
		}
	}
}

// now returns the clock reading, never earlier than the last one issued here.
func (w *roomWorker) now() time.Time {
	t := w.relay.opts.Clock()
	if t.Before(w.last) {
		t = w.last
	}
	w.last = t
	return t
}

func (w *roomWorker) join(t task) {
	r := w.relay
	p := t.participant

	_, existed := r.registry.Lookup(w.room, p.ConnID)
	if err := r.registry.Join(w.room, p); err != nil {
		w.log.Warn().Err(err).Str("conn_id", p.ConnID).Msg("join rejected")
		r.push(t.client, errorEvent(w.room, coreError(ErrCodeInvalidInput, err.Error())))
		return
	}
	if !existed {
		r.deps.Metrics.AddParticipants(1)
	}

	if r.history.Len(w.room) > 0 {
		r.push(t.client, &Event{
			Kind:    EventHistory,
			Room:    w.room,
			Records: r.history.ReplayFor(w.room, p.Role),
		})
	}

	notice := systemRecord(fmt.Sprintf("%s has joined the chat", p.Name), w.now())
	r.history.Append(w.room, notice)
	w.broadcast(notice)

	w.log.Info().
		Str("conn_id", p.ConnID).
		Str("user", p.Name).
		Str("role", string(p.Role)).
		Str("language", p.Language).
		Msg("participant joined")
}

func (w *roomWorker) leave(t task) {
	r := w.relay
	dep, err := r.registry.Leave(t.client.ID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			w.log.Warn().Err(err).Str("conn_id", t.client.ID).Msg("leave failed")
		}
		return
	}
	r.deps.Metrics.AddParticipants(-1)

	if dep.RoomEmpty {
		r.history.Destroy(dep.Room)
		w.log.Info().Str("user", dep.Name).Msg("last participant left, room closed")
		return
	}

	notice := systemRecord(fmt.Sprintf("%s has left the chat", dep.Name), w.now())
	r.history.Append(dep.Room, notice)
	w.broadcast(notice)
	w.log.Info().Str("user", dep.Name).Msg("participant left")
}

func (w *roomWorker) broadcast(rec Record) {
	members, _ := w.relay.registry.Participants(w.room)
	for _, m := range members {
		w.relay.push(m.Client, &Event{Kind: EventMessage, Room: w.room, Record: rec})
	}
}

type outcomeKind int

const (
	outcomeDelivery outcomeKind = iota
	outcomeSuggestions
)

type outcome struct {
	kind        outcomeKind
	recipient   Participant
	record      Record
	suggestions []string
	err         error
}

// message fans one chat message out to every participant. Gateway calls run
// concurrently; their results are applied here, one recipient at a time.
func (w *roomWorker) message(ctx context.Context, t task) {
	r := w.relay
	members, ok := r.registry.Participants(w.room)
	if !ok {
		r.push(t.client, errorEvent(w.room, coreError(ErrCodeRoomNotFound, ErrRoomNotFound.Error())))
		return
	}
	sender, ok := lo.Find(members, func(p Participant) bool { return p.ConnID == t.client.ID })
	if !ok {
		r.push(t.client, errorEvent(w.room, coreError(ErrCodeSenderUnknown, ErrSenderUnknown.Error())))
		return
	}

	text := t.text
	if r.deps.Censor != nil {
		text = r.deps.Censor.Censor(text)
	}
	stamp := w.now()
	base := Record{
		Sender:       sender.Name,
		SenderRole:   sender.Role,
		Text:         text,
		OriginalText: text,
		Tag:          TagPublic,
		Timestamp:    stamp,
	}
	if r.opts.HistoryMode == HistoryCanonical {
		r.history.Append(w.room, base)
	}

	results := make(chan outcome, len(members)+1)
	var wg sync.WaitGroup
	if sender.Role == RoleUser && r.deps.Advisor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			suggestions, err := r.deps.Advisor.Analyze(ctx, text)
			results <- outcome{kind: outcomeSuggestions, suggestions: suggestions, err: err}
		}()
	}
	for _, m := range members {
		wg.Add(1)
		go func(m Participant) {
			defer wg.Done()
			results <- w.render(ctx, m, base, t.language)
		}(m)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		switch res.kind {
		case outcomeDelivery:
			w.deliver(res)
		case outcomeSuggestions:
			w.suggest(res, members, t.client)
		}
	}
}

// render produces the recipient's copy of base. It must not touch room state.
func (w *roomWorker) render(ctx context.Context, recipient Participant, base Record, language string) outcome {
	out := outcome{kind: outcomeDelivery, recipient: recipient, record: base}
	if sameLanguage(recipient.Language, language) {
		return out
	}

	tr := w.relay.deps.Translator
	if tr == nil {
		out.err = fmt.Errorf("%w: no translator configured", ErrTranslationUnavailable)
		return out
	}
	tctx, cancel := context.WithTimeout(ctx, w.relay.opts.GatewayTimeout)
	defer cancel()

	started := time.Now()
	translated, err := tr.Translate(tctx, base.Text, recipient.Language)
	w.relay.deps.Metrics.Gateway("translate", started, err)
	if err != nil {
		out.err = err
		return out
	}
	out.record.Text = translated
	out.record.Translated = true
	return out
}

func (w *roomWorker) deliver(res outcome) {
	r := w.relay
	if res.err != nil {
		w.log.Warn().
			Err(res.err).
			Str("recipient", res.recipient.Name).
			Str("language", res.recipient.Language).
			Msg("translation failed")
		r.deps.Metrics.Delivery(metrics.DeliveryFailed)
		r.push(res.recipient.Client, errorEvent(w.room, coreError(ErrCodeTranslationUnavailable, "message could not be translated")))
		return
	}

	if r.opts.HistoryMode == HistoryPerRecipient {
		r.history.Append(w.room, res.record)
	}
	if r.push(res.recipient.Client, &Event{Kind: EventMessage, Room: w.room, Record: res.record}) {
		if res.record.Translated {
			r.deps.Metrics.Delivery(metrics.DeliveryTranslated)
		} else {
			r.deps.Metrics.Delivery(metrics.DeliveryDirect)
		}
	}
}

func (w *roomWorker) suggest(res outcome, members []Participant, sender *Client) {
	r := w.relay
	if res.err != nil {
		w.log.Warn().Err(res.err).Msg("suggestions unavailable")
		r.deps.Metrics.Suggestion(metrics.SuggestionFailed)
		r.push(sender, errorEvent(w.room, suggestionError(res.err)))
		return
	}
	if len(res.suggestions) == 0 {
		r.deps.Metrics.Suggestion(metrics.SuggestionEmpty)
		return
	}
	for _, m := range members {
		if m.Role != RoleAgent {
			continue
		}
		r.push(m.Client, &Event{Kind: EventSuggestions, Room: w.room, Suggestions: res.suggestions})
	}
	r.deps.Metrics.Suggestion(metrics.SuggestionPushed)
}
