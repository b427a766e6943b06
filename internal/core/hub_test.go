package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"github.com/vovakirdan/lingorelay/internal/metrics"
	"github.com/vovakirdan/lingorelay/internal/mocks"
	"github.com/vovakirdan/lingorelay/internal/store"
)

var testCorpus = []store.KnowledgeEntry{{Topic: "refunds", Content: "Refunds take 5 days."}}

func newAdvisor(t *testing.T, suggest func(text string) ([]string, error)) *Advisor {
	t.Helper()
	ctrl := gomock.NewController(t)
	kb := mocks.NewMockKnowledgeBase(ctrl)
	kb.EXPECT().ListKnowledge(gomock.Any()).Return(testCorpus, nil).AnyTimes()
	sg := mocks.NewMockSuggester(ctrl)
	sg.EXPECT().Suggest(gomock.Any(), gomock.Any(), testCorpus).
		DoAndReturn(func(_ context.Context, text string, _ []store.KnowledgeEntry) ([]string, error) {
			return suggest(text)
		}).AnyTimes()
	return NewAdvisor(kb, sg, time.Second, nil)
}

func TestRelayTranslatedFanOutAndSuggestions(t *testing.T) {
	tr := &fakeTranslator{}
	advisor := newAdvisor(t, func(string) ([]string, error) {
		return []string{"Offer a refund", "Ask for the order id"}, nil
	})
	relay, _ := startRelay(t, Deps{Translator: tr, Advisor: advisor}, Options{})

	alice := NewClient("a", 0)
	carol := NewClient("c", 0)
	dave := NewClient("d", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	join(t, relay, carol, "r1", "carol", "en", RoleSupervisor)
	join(t, relay, dave, "r1", "dave", "en", RoleUser)
	join(t, relay, bob, "r1", "bob", "es", RoleAgent)
	mustNotice(t, alice.Events, "bob has joined the chat")

	say(alice, "r1", "Hello", "en")

	own := mustChat(t, alice.Events)
	if own.Record.Text != "Hello" || own.Record.Translated || own.Record.Sender != "alice" {
		t.Fatalf("unexpected sender copy: %+v", own.Record)
	}

	// The copy and the suggestions are produced concurrently.
	var got, sugg *Event
	for range 2 {
		ev := nextEvent(t, bob.Events)
		switch ev.Kind {
		case EventMessage:
			got = ev
		case EventSuggestions:
			sugg = ev
		default:
			t.Fatalf("unexpected event for bob: %+v", ev)
		}
	}
	if got == nil || sugg == nil {
		t.Fatalf("bob should get one copy and one suggestion set")
	}
	if got.Record.Text != "[es] Hello" || got.Record.OriginalText != "Hello" || !got.Record.Translated {
		t.Fatalf("unexpected translated copy: %+v", got.Record)
	}
	if got.Record.SenderRole != RoleUser || got.Record.Tag != TagPublic {
		t.Fatalf("unexpected record metadata: %+v", got.Record)
	}
	if !got.Record.Timestamp.Equal(own.Record.Timestamp) {
		t.Fatalf("copies carry different timestamps: %v vs %v", own.Record.Timestamp, got.Record.Timestamp)
	}

	if len(sugg.Suggestions) != 2 || sugg.Suggestions[0] != "Offer a refund" {
		t.Fatalf("unexpected suggestions: %+v", sugg.Suggestions)
	}
	// Suggestions go to agents only.
	for _, c := range []*Client{carol, dave} {
		ev := mustChat(t, c.Events)
		if ev.Record.Text != "Hello" || ev.Record.Translated {
			t.Fatalf("unexpected copy for %s: %+v", c.ID, ev.Record)
		}
	}
	noEvent(t, alice.Events, 100*time.Millisecond)
	noEvent(t, carol.Events, 50*time.Millisecond)
	noEvent(t, dave.Events, 50*time.Millisecond)

	if tr.Calls() != 1 {
		t.Fatalf("expected one translation, got %d", tr.Calls())
	}
}

func TestRelaySameLanguageSkipsTranslation(t *testing.T) {
	tr := &fakeTranslator{}
	relay, _ := startRelay(t, Deps{Translator: tr}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en_US", RoleAgent)
	join(t, relay, bob, "r1", "bob", "EN-us", RoleAgent)

	say(alice, "r1", "hi", "en-US")
	ev := mustChat(t, bob.Events)
	if ev.Record.Text != "hi" || ev.Record.Translated {
		t.Fatalf("expected untranslated copy, got %+v", ev.Record)
	}
	if tr.Calls() != 0 {
		t.Fatalf("translator should not be called, got %d calls", tr.Calls())
	}
}

func TestRelayScriptVariantsAreTranslated(t *testing.T) {
	tr := &fakeTranslator{}
	relay, _ := startRelay(t, Deps{Translator: tr}, Options{})

	mei := NewClient("mei", 0)
	wei := NewClient("wei", 0)
	join(t, relay, mei, "r1", "mei", "zh-Hans", RoleUser)
	join(t, relay, wei, "r1", "wei", "zh-Hant", RoleAgent)

	say(mei, "r1", "你们的退货政策是什么", "zh-Hans")

	own := mustChat(t, mei.Events)
	if own.Record.Translated {
		t.Fatalf("sender copy should not be translated: %+v", own.Record)
	}
	ev := mustChat(t, wei.Events)
	if ev.Record.Text != "[zh-Hant] 你们的退货政策是什么" || !ev.Record.Translated {
		t.Fatalf("expected zh-Hant translation, got %+v", ev.Record)
	}
	if ev.Record.OriginalText != "你们的退货政策是什么" {
		t.Fatalf("original text lost: %+v", ev.Record)
	}
	if tr.Calls() != 1 {
		t.Fatalf("expected one translation, got %d", tr.Calls())
	}
}

func TestRelayAgentMessageDoesNotRequestSuggestions(t *testing.T) {
	ctrl := gomock.NewController(t)
	sg := mocks.NewMockSuggester(ctrl) // any call fails the test
	kb := mocks.NewMockKnowledgeBase(ctrl)
	relay, _ := startRelay(t, Deps{Translator: &fakeTranslator{}, Advisor: NewAdvisor(kb, sg, 0, nil)}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	join(t, relay, bob, "r1", "bob", "en", RoleAgent)

	say(bob, "r1", "How can I help?", "en")
	mustChat(t, alice.Events)
	mustChat(t, bob.Events)
	noEvent(t, bob.Events, 100*time.Millisecond)
}

func TestRelayHistoryReplayIsRoleFiltered(t *testing.T) {
	relay, _ := startRelay(t, Deps{Translator: &fakeTranslator{}}, Options{})

	ana := NewClient("ana", 0)
	join(t, relay, ana, "r1", "ana", "es", RoleAgent)
	say(ana, "r1", "Hola", "es")
	mustChat(t, ana.Events)

	carl := NewClient("carl", 0)
	relay.RegisterClient(carl)
	carl.Commands <- &Command{Kind: CommandJoinRoom, Room: "r1", User: "carl", Language: "fr", Role: "supervisor"}
	hist := nextEvent(t, carl.Events)
	if hist.Kind != EventHistory {
		t.Fatalf("expected history first, got %+v", hist)
	}
	if len(hist.Records) != 2 || hist.Records[0].Tag != TagSystem || hist.Records[1].Text != "Hola" {
		t.Fatalf("unexpected supervisor replay: %+v", hist.Records)
	}
	mustNotice(t, carl.Events, "carl has joined the chat")

	dave := NewClient("dave", 0)
	relay.RegisterClient(dave)
	dave.Commands <- &Command{Kind: CommandJoinRoom, Room: "r1", User: "dave", Language: "es", Role: "user"}
	hist = nextEvent(t, dave.Events)
	if hist.Kind != EventHistory {
		t.Fatalf("expected history first, got %+v", hist)
	}
	for _, rec := range hist.Records {
		if rec.Tag != TagPublic {
			t.Fatalf("user replay leaked %s record: %+v", rec.Tag, rec)
		}
	}
	if len(hist.Records) != 1 {
		t.Fatalf("expected one public record, got %d", len(hist.Records))
	}
	joined := nextEvent(t, dave.Events)
	if joined.Kind != EventMessage || joined.Record.Text != "dave has joined the chat" || joined.Record.Sender != SystemSender {
		t.Fatalf("expected join notice after history, got %+v", joined)
	}
}

func TestRelayFirstJoinHasNoHistory(t *testing.T) {
	relay, _ := startRelay(t, Deps{}, Options{})

	alice := NewClient("a", 0)
	relay.RegisterClient(alice)
	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "r1", User: "alice", Language: "en", Role: "user"}
	ev := nextEvent(t, alice.Events)
	if ev.Kind != EventMessage || ev.Record.Tag != TagSystem || ev.Record.SenderRole != RoleSystem {
		t.Fatalf("expected join notice, got %+v", ev)
	}
}

func TestRelayLeaveBroadcastsAndLastLeaveDestroysRoom(t *testing.T) {
	relay, _ := startRelay(t, Deps{}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	join(t, relay, bob, "r1", "bob", "en", RoleAgent)

	relay.UnregisterClient(alice)
	mustNotice(t, bob.Events, "alice has left the chat")
	if relay.Registry().Count("r1") != 1 {
		t.Fatalf("expected one participant left")
	}

	relay.UnregisterClient(bob)
	eventually(t, func() bool {
		_, ok := relay.Registry().Participants("r1")
		return !ok && relay.History().Len("r1") == 0
	}, "room r1 was not destroyed")

	carol := NewClient("c", 0)
	relay.RegisterClient(carol)
	carol.Commands <- &Command{Kind: CommandJoinRoom, Room: "r1", User: "carol", Language: "en", Role: "user"}
	ev := nextEvent(t, carol.Events)
	if ev.Kind != EventMessage || ev.Record.Text != "carol has joined the chat" {
		t.Fatalf("fresh room should not replay history, got %+v", ev)
	}
}

func TestRelayDisconnectWithoutJoinIsNoop(t *testing.T) {
	relay, _ := startRelay(t, Deps{}, Options{})

	ghost := NewClient("g", 0)
	relay.RegisterClient(ghost)
	relay.UnregisterClient(ghost)
	noEvent(t, ghost.Events, 100*time.Millisecond)
}

func TestRelayExplicitLeave(t *testing.T) {
	relay, _ := startRelay(t, Deps{}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	join(t, relay, bob, "r1", "bob", "en", RoleAgent)

	alice.Commands <- &Command{Kind: CommandLeaveRoom, Room: "r1"}
	mustNotice(t, bob.Events, "alice has left the chat")

	alice.Commands <- &Command{Kind: CommandLeaveRoom, Room: "r1"}
	ev := mustEvent(t, alice.Events, EventError)
	if ev.Error.Code != ErrCodeSenderUnknown {
		t.Fatalf("expected sender_unknown, got %+v", ev.Error)
	}
}

func TestRelayTranslationFailureIsIsolated(t *testing.T) {
	tr := &fakeTranslator{fail: map[string]bool{"de": true}}
	relay, _ := startRelay(t, Deps{Translator: tr}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	dora := NewClient("d", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleAgent)
	join(t, relay, bob, "r1", "bob", "fr", RoleAgent)
	join(t, relay, dora, "r1", "dora", "de", RoleAgent)

	say(alice, "r1", "Hello", "en")

	if ev := mustChat(t, bob.Events); ev.Record.Text != "[fr] Hello" {
		t.Fatalf("bob should get french copy, got %+v", ev.Record)
	}
	if ev := mustChat(t, alice.Events); ev.Record.Text != "Hello" {
		t.Fatalf("alice should get original, got %+v", ev.Record)
	}
	ev := mustEvent(t, dora.Events, EventError)
	if ev.Error.Code != ErrCodeTranslationUnavailable {
		t.Fatalf("expected translation_unavailable, got %+v", ev.Error)
	}
}

func TestRelaySuggestionFailuresGoToSender(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code string
	}{
		{"analysis", errors.New("provider down"), ErrCodeAnalysisFailed},
		{"empty corpus", ErrEmptyKnowledgeBase, ErrCodeEmptyKnowledgeBase},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			advisor := newAdvisor(t, func(string) ([]string, error) { return nil, tc.err })
			relay, _ := startRelay(t, Deps{Advisor: advisor}, Options{})

			alice := NewClient("a", 0)
			bob := NewClient("b", 0)
			join(t, relay, alice, "r1", "alice", "en", RoleUser)
			join(t, relay, bob, "r1", "bob", "en", RoleAgent)

			say(alice, "r1", "my order is late", "en")
			ev := mustEvent(t, alice.Events, EventError)
			if ev.Error.Code != tc.code {
				t.Fatalf("expected %s, got %+v", tc.code, ev.Error)
			}
			mustChat(t, bob.Events)
			noEvent(t, bob.Events, 100*time.Millisecond)
		})
	}
}

func TestRelayEmptySuggestionsAreNotPushed(t *testing.T) {
	advisor := newAdvisor(t, func(string) ([]string, error) { return nil, nil })
	relay, _ := startRelay(t, Deps{Advisor: advisor}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	join(t, relay, bob, "r1", "bob", "en", RoleAgent)

	say(alice, "r1", "thanks", "en")
	mustChat(t, bob.Events)
	noEvent(t, bob.Events, 100*time.Millisecond)
}

func TestRelayMessageErrors(t *testing.T) {
	relay, _ := startRelay(t, Deps{}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	join(t, relay, bob, "r2", "bob", "en", RoleAgent)

	say(alice, "nowhere", "hi", "en")
	if ev := mustEvent(t, alice.Events, EventError); ev.Error.Code != ErrCodeRoomNotFound {
		t.Fatalf("expected room_not_found, got %+v", ev.Error)
	}

	say(alice, "r2", "hi", "en")
	if ev := mustEvent(t, alice.Events, EventError); ev.Error.Code != ErrCodeSenderUnknown {
		t.Fatalf("expected sender_unknown, got %+v", ev.Error)
	}

	say(alice, "r1", "   ", "en")
	if ev := mustEvent(t, alice.Events, EventError); ev.Error.Code != ErrCodeInvalidInput {
		t.Fatalf("expected invalid_input, got %+v", ev.Error)
	}
	noEvent(t, bob.Events, 100*time.Millisecond)
}

func TestRelayJoinValidation(t *testing.T) {
	relay, _ := startRelay(t, Deps{}, Options{})

	cases := []*Command{
		{Kind: CommandJoinRoom, Room: "r1", User: "mallory", Language: "en", Role: "admin"},
		{Kind: CommandJoinRoom, Room: "r1", User: "", Language: "en", Role: "user"},
		{Kind: CommandJoinRoom, Room: "r1", User: "x", Language: " ", Role: "user"},
		{Kind: CommandJoinRoom, Room: "", User: "x", Language: "en", Role: "user"},
	}
	c := NewClient("m", 0)
	relay.RegisterClient(c)
	for _, cmd := range cases {
		c.Commands <- cmd
		ev := mustEvent(t, c.Events, EventError)
		if ev.Error.Code != ErrCodeInvalidInput {
			t.Fatalf("expected invalid_input for %+v, got %+v", cmd, ev.Error)
		}
	}
	if rooms := relay.Registry().Rooms(); len(rooms) != 0 {
		t.Fatalf("invalid joins must not create rooms, got %v", rooms)
	}
}

func TestRelayRoomSwitch(t *testing.T) {
	relay, _ := startRelay(t, Deps{}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	join(t, relay, bob, "r1", "bob", "en", RoleAgent)

	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "r2", User: "alice", Language: "en", Role: "user"}
	say(alice, "r2", "anyone here?", "en")

	mustNotice(t, bob.Events, "alice has left the chat")
	mustNotice(t, alice.Events, "alice has joined the chat")
	if ev := mustChat(t, alice.Events); ev.Record.Text != "anyone here?" {
		t.Fatalf("message after switch should land in r2, got %+v", ev.Record)
	}
	noEvent(t, bob.Events, 100*time.Millisecond)

	if room, _ := relay.Registry().RoomOf("a"); room != "r2" {
		t.Fatalf("alice should be in r2, got %q", room)
	}
}

func TestRelayCanonicalHistory(t *testing.T) {
	relay, _ := startRelay(t, Deps{Translator: &fakeTranslator{}}, Options{HistoryMode: HistoryCanonical})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleAgent)
	join(t, relay, bob, "r1", "bob", "es", RoleAgent)

	before := relay.History().Len("r1")
	say(alice, "r1", "Hello", "en")
	mustChat(t, bob.Events)
	mustChat(t, alice.Events)

	if got := relay.History().Len("r1") - before; got != 1 {
		t.Fatalf("canonical mode should keep one record per message, got %d", got)
	}
	records := relay.History().ReplayFor("r1", RoleAgent)
	last := records[len(records)-1]
	if last.Translated || last.Text != "Hello" {
		t.Fatalf("canonical record should be untranslated, got %+v", last)
	}
}

func TestRelayPerRecipientHistory(t *testing.T) {
	relay, _ := startRelay(t, Deps{Translator: &fakeTranslator{}}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleAgent)
	join(t, relay, bob, "r1", "bob", "es", RoleAgent)

	before := relay.History().Len("r1")
	say(alice, "r1", "Hello", "en")
	mustChat(t, bob.Events)
	mustChat(t, alice.Events)

	eventually(t, func() bool { return relay.History().Len("r1")-before == 2 },
		"expected one record per recipient")
}

func TestRelayCensorAppliesBeforeFanOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	censor := mocks.NewMockCensor(ctrl)
	censor.EXPECT().Censor("darn it").Return("**** it").Times(1)
	relay, _ := startRelay(t, Deps{Translator: &fakeTranslator{}, Censor: censor}, Options{})

	alice := NewClient("a", 0)
	bob := NewClient("b", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleAgent)
	join(t, relay, bob, "r1", "bob", "es", RoleAgent)

	say(alice, "r1", "darn it", "en")
	ev := mustChat(t, bob.Events)
	if ev.Record.Text != "[es] **** it" || ev.Record.OriginalText != "**** it" {
		t.Fatalf("expected censored text, got %+v", ev.Record)
	}
}

func TestRelayTimestampsNeverGoBackwards(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Minute), base.Add(-2 * time.Minute)}
	i := 0
	clock := func() time.Time {
		// Only the room worker reads the clock.
		tm := ticks[i%len(ticks)]
		i++
		return tm
	}
	relay, _ := startRelay(t, Deps{}, Options{Clock: clock})

	alice := NewClient("a", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleAgent)
	say(alice, "r1", "one", "en")
	first := mustChat(t, alice.Events)
	say(alice, "r1", "two", "en")
	second := mustChat(t, alice.Events)

	if first.Record.Timestamp.Before(base) || second.Record.Timestamp.Before(first.Record.Timestamp) {
		t.Fatalf("timestamps went backwards: %v then %v", first.Record.Timestamp, second.Record.Timestamp)
	}
}

func TestRelaySlowConsumerDoesNotBlockRoom(t *testing.T) {
	relay, _ := startRelay(t, Deps{}, Options{})

	slow := NewClient("slow", 1)
	fast := NewClient("fast", 0)
	join(t, relay, slow, "r1", "slow", "en", RoleAgent)
	join(t, relay, fast, "r1", "fast", "en", RoleAgent)

	for range 5 {
		say(fast, "r1", "spam", "en")
	}
	for range 5 {
		if ev := mustChat(t, fast.Events); ev.Record.Text != "spam" {
			t.Fatalf("unexpected record %+v", ev.Record)
		}
	}
}

func TestRelayIdleRoomWorkerIsReaped(t *testing.T) {
	reg := prometheus.NewRegistry()
	relay, _ := startRelay(t, Deps{Metrics: metrics.New(reg)}, Options{})

	activeRooms := func(n int) func() bool {
		want := fmt.Sprintf(`
# HELP relay_rooms_active Rooms with a live worker.
# TYPE relay_rooms_active gauge
relay_rooms_active %d
`, n)
		return func() bool {
			return testutil.GatherAndCompare(reg, strings.NewReader(want), "relay_rooms_active") == nil
		}
	}

	alice := NewClient("a", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	eventually(t, activeRooms(1), "expected one live room worker")

	relay.UnregisterClient(alice)
	eventually(t, activeRooms(0), "idle room worker was not reaped")
	if relay.Registry().Count("r1") != 0 {
		t.Fatalf("alice still registered")
	}
}

func TestRelayShutdownClearsState(t *testing.T) {
	relay, stop := startRelay(t, Deps{}, Options{})

	alice := NewClient("a", 0)
	join(t, relay, alice, "r1", "alice", "en", RoleUser)
	stop()

	if rooms := relay.Registry().Rooms(); len(rooms) != 0 {
		t.Fatalf("registry should be empty after shutdown, got %v", rooms)
	}
	if relay.History().Len("r1") != 0 {
		t.Fatalf("history should be empty after shutdown")
	}
	if err := relay.Registry().Join("r1", Participant{ConnID: "x", Name: "x", Language: "en", Role: RoleUser}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after shutdown, got %v", err)
	}
}

func TestParseHistoryMode(t *testing.T) {
	for in, want := range map[string]HistoryMode{"": HistoryPerRecipient, "Recipient": HistoryPerRecipient, "canonical": HistoryCanonical} {
		got, err := ParseHistoryMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseHistoryMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseHistoryMode("both"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
