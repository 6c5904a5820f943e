package waiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"testing"
	"time"

	"waiter/internal/audio"
	"waiter/internal/catalog"
	"waiter/internal/kitchen"
	"waiter/internal/match"
	"waiter/internal/nlu"
	"waiter/internal/order"
	"waiter/internal/wake"
)

const testMenu = `
categories:
  - name: Burgers
    items:
      - name: Cheeseburger
        price: 5.00
        description: Beef patty with cheddar
        popular: true
  - name: Sides
    items:
      - name: French Fries
        price: 3.00
  - name: Drinks
    items:
      - name: Cola
        price: 1.50
        popular: true
`

const veggieWrap = `
  - name: Wraps
    items:
      - name: Veggie Wrap
        price: 6.50
        description: Grilled vegetables in a tortilla
`

// neighbourMenu has items sharing words with "Veggie Wrap" but not the item.
const neighbourMenu = `
categories:
  - name: Burgers
    items:
      - name: Veggie Burger
        price: 6.00
        description: Black bean patty
  - name: Wraps
    items:
      - name: Chicken Wrap
        price: 7.00
        description: Grilled chicken in a tortilla
`

const burgerMenu = `
categories:
  - name: Burgers
    items:
      - name: Burger
        price: 4.00
      - name: Cheeseburger
        price: 5.00
`

var errMic = errors.New("microphone unplugged")

func speech() *audio.Utterance {
	return &audio.Utterance{PCM: make([]byte, 3200), SampleRate: 16000, Frames: 1, End: audio.EndSilence}
}

func timeout(peak float64) *audio.Utterance {
	return &audio.Utterance{PCM: make([]byte, 3200), SampleRate: 16000, Frames: 1, End: audio.EndTimeout, Peak: peak}
}

type fakeSource struct{ started, stopped int }

func (s *fakeSource) Start() error { s.started++; return nil }
func (s *fakeSource) Stop() error  { s.stopped++; return nil }
func (s *fakeSource) ReadFrame(context.Context) ([]byte, error) {
	return nil, audio.ErrStreamClosed
}

// fakeCapturer hands out utterances in order, then reports a closed stream.
type fakeCapturer struct {
	utts  []*audio.Utterance
	calls int
}

func (f *fakeCapturer) Capture(context.Context, audio.Source) (*audio.Utterance, error) {
	f.calls++
	if f.calls > len(f.utts) {
		return nil, fmt.Errorf("read frame: %w", audio.ErrStreamClosed)
	}
	return f.utts[f.calls-1], nil
}

type fakeTranscriber struct {
	texts []string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, int) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if f.calls > len(f.texts) {
		return "", nil
	}
	return f.texts[f.calls-1], nil
}

type recorder struct{ lines []string }

func (r *recorder) Speak(_ context.Context, text string) error {
	r.lines = append(r.lines, text)
	return nil
}

func (r *recorder) count(text string) int {
	n := 0
	for _, l := range r.lines {
		if l == text {
			n++
		}
	}
	return n
}

type fakeKitchen struct{ tickets []kitchen.Ticket }

func (k *fakeKitchen) Publish(_ context.Context, t kitchen.Ticket) error {
	k.tickets = append(k.tickets, t)
	return nil
}

func (k *fakeKitchen) Close() error { return nil }

type fakeGate struct{ left int }

func (g *fakeGate) Wait(context.Context, audio.Source) (wake.Detection, error) {
	if g.left == 0 {
		return wake.Detection{}, audio.ErrStreamClosed
	}
	g.left--
	return wake.Detection{Model: wake.ManualModel, Score: 1}, nil
}

type fakeChime struct{ plays int }

func (c *fakeChime) Play(context.Context) error { c.plays++; return nil }

type harness struct {
	ctrl     *Controller
	src      *fakeSource
	capturer *fakeCapturer
	stt      *fakeTranscriber
	speaker  *recorder
	ledger   *order.Ledger
	dir      string
}

func testLogger() *log.Logger {
	return log.New(log.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, menu string, cfg Config, utts []*audio.Utterance, stt *fakeTranscriber, mod func(*Deps)) *harness {
	t.Helper()

	cat, err := catalog.Parse([]byte(menu))
	if err != nil {
		t.Fatalf("parse menu: %v", err)
	}
	dir := t.TempDir()
	store, err := order.NewStore(dir, order.FormatJSON)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	h := &harness{
		src:      &fakeSource{},
		capturer: &fakeCapturer{utts: utts},
		stt:      stt,
		speaker:  &recorder{},
		ledger:   order.NewLedger(store, testLogger()),
		dir:      dir,
	}
	deps := Deps{
		Source:      h.src,
		Capturer:    h.capturer,
		Transcriber: h.stt,
		Classifier:  nlu.NewClassifier(match.NewResolver(match.DefaultThreshold), testLogger()),
		Speaker:     h.speaker,
		Menu:        catalog.NewStatic(cat),
		Ledger:      h.ledger,
	}
	if mod != nil {
		mod(&deps)
	}
	if cfg.MaxConsecutiveErrors == 0 {
		cfg.MaxConsecutiveErrors = 5
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = 500
	}

	h.ctrl, err = New(cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return h
}

func texts(s ...string) *fakeTranscriber { return &fakeTranscriber{texts: s} }

func savedFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestOrderTurnAddsLineAndSavesOnShutdown(t *testing.T) {
	h := newHarness(t, testMenu, Config{Greeting: "Welcome!"}, []*audio.Utterance{speech()},
		texts("I want two cheeseburgers"), nil)

	if err := h.ctrl.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	o := h.ledger.Current()
	if len(o.Lines) != 1 {
		t.Fatalf("expected 1 line, got %+v", o.Lines)
	}
	l := o.Lines[0]
	if l.Name != "Cheeseburger" || l.Quantity != 2 || l.UnitPrice != order.Dollars(5) {
		t.Fatalf("unexpected line %+v", l)
	}
	if l.Total() != order.Dollars(10) {
		t.Fatalf("expected line total 10.00, got %s", l.Total())
	}

	want := []string{
		"Welcome!",
		msgListening,
		"Added 2 Cheeseburger to your order. That's $10.00.",
		msgAnythingElse,
		msgListening,
		msgSaved,
	}
	if !slices.Equal(h.speaker.lines, want) {
		t.Fatalf("spoken:\n%q\nwant:\n%q", h.speaker.lines, want)
	}
	if n := savedFiles(t, h.dir); n != 1 {
		t.Fatalf("expected 1 saved order, got %d", n)
	}
	if h.src.started != 1 || h.src.stopped != 1 {
		t.Fatalf("source started %d stopped %d", h.src.started, h.src.stopped)
	}
}

func TestBreakerTripsAfterConsecutiveErrors(t *testing.T) {
	utts := make([]*audio.Utterance, 10)
	for i := range utts {
		utts[i] = speech()
	}
	stt := &fakeTranscriber{err: errMic}
	h := newHarness(t, testMenu, Config{MaxConsecutiveErrors: 5}, utts, stt, nil)

	err := h.ctrl.Run(context.Background())
	if !errors.Is(err, ErrTooManyErrors) {
		t.Fatalf("expected ErrTooManyErrors, got %v", err)
	}
	if stt.calls != 5 {
		t.Fatalf("expected 5 transcriptions, got %d", stt.calls)
	}
	if n := h.speaker.count(msgRetry); n != 4 {
		t.Fatalf("expected 4 retry apologies, got %d", n)
	}
	if last := h.speaker.lines[len(h.speaker.lines)-1]; last != msgFatal {
		t.Fatalf("expected fatal message last, got %q", last)
	}
}

func TestTimeoutIsNotCountedAsError(t *testing.T) {
	utts := []*audio.Utterance{speech(), speech(), speech(), speech(), timeout(0), timeout(120), speech(), speech()}
	stt := &fakeTranscriber{err: errMic}
	h := newHarness(t, testMenu, Config{}, utts, stt, nil)

	err := h.ctrl.Run(context.Background())
	if !errors.Is(err, ErrTooManyErrors) {
		t.Fatalf("expected ErrTooManyErrors, got %v", err)
	}
	if h.capturer.calls != 7 {
		t.Fatalf("expected breaker to trip on the 7th capture, got %d captures", h.capturer.calls)
	}
	if stt.calls != 5 {
		t.Fatalf("timeouts must skip transcription, got %d calls", stt.calls)
	}
	if n := h.speaker.count(msgNoAudio); n != 2 {
		t.Fatalf("expected 2 didn't-hear prompts, got %d", n)
	}
}

func TestLoudTimeoutIsTranscribed(t *testing.T) {
	stt := texts("I want two cheeseburgers")
	h := newHarness(t, testMenu, Config{}, []*audio.Utterance{timeout(2000)}, stt, nil)

	if err := h.ctrl.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if stt.calls != 1 {
		t.Fatalf("expected the capture to be transcribed, got %d calls", stt.calls)
	}
	if h.speaker.count(msgNoAudio) != 0 {
		t.Fatalf("unexpected didn't-hear prompt in %q", h.speaker.lines)
	}
	if o := h.ledger.Current(); len(o.Lines) != 1 || o.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", o.Lines)
	}
}

func TestSuccessResetsErrorStreak(t *testing.T) {
	utts := make([]*audio.Utterance, 10)
	for i := range utts {
		utts[i] = speech()
	}
	stt := &scriptedTranscriber{steps: []any{errMic, errMic, errMic, errMic, "hello", errMic, errMic, errMic, errMic}}
	h := newHarness(t, testMenu, Config{}, utts, nil, func(d *Deps) { d.Transcriber = stt })

	if err := h.ctrl.Run(context.Background()); err != nil {
		t.Fatalf("expected graceful end, got %v", err)
	}
	if n := h.speaker.count(msgRetry); n != 8 {
		t.Fatalf("expected 8 retry apologies, got %d", n)
	}
}

// scriptedTranscriber returns a string or an error per call.
type scriptedTranscriber struct {
	steps []any
	calls int
}

func (s *scriptedTranscriber) Transcribe(context.Context, []byte, int) (string, error) {
	s.calls++
	if s.calls > len(s.steps) {
		return "", nil
	}
	switch v := s.steps[s.calls-1].(type) {
	case error:
		return "", v
	case string:
		return v, nil
	}
	return "", nil
}

func TestDoneSummarizesOrder(t *testing.T) {
	h := newHarness(t, testMenu, Config{}, []*audio.Utterance{speech(), speech()},
		texts("I want two cheeseburgers", "that's all"), nil)

	if err := h.ctrl.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	summary := "Your order: 2 Cheeseburger. Total: $10.00"
	i := slices.Index(h.speaker.lines, summary)
	if i < 0 {
		t.Fatalf("summary %q not spoken in %q", summary, h.speaker.lines)
	}
	if h.speaker.lines[i+1] != msgConfirmPrompt {
		t.Fatalf("expected confirm prompt after summary, got %q", h.speaker.lines[i+1])
	}
}

func TestInfo(t *testing.T) {
	tests := []struct {
		name string
		menu string
		want string
	}{
		{"present", testMenu + veggieWrap, "Veggie Wrap: Grilled vegetables in a tortilla. It costs $6.50."},
		{"absent", testMenu, "Sorry, I don't have information about veggie wrap."},
		{"similar items only", neighbourMenu, "Sorry, I don't have information about veggie wrap."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.menu, Config{}, []*audio.Utterance{speech()},
				texts("what's in the veggie wrap"), nil)
			if err := h.ctrl.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			if h.speaker.count(tt.want) != 1 {
				t.Fatalf("expected %q in %q", tt.want, h.speaker.lines)
			}
		})
	}
}

func TestSingleTurnResponses(t *testing.T) {
	tests := []struct {
		text string
		want string
		menu string
	}{
		{"", msgNoText, ""},
		{"blah blah", msgNotUnderstood, ""},
		{"I want zero cheeseburgers", msgHowMany, ""},
		{"I want a pizza", msgWhichItem, ""},
		{"what do you recommend", "Our popular items are: Cheeseburger for $5.00, Cola for $1.50", ""},
		{"hello there", msgHello, ""},
		{"I want a veggie wrap", msgNotOnMenu("veggie wrap"), neighbourMenu},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			menu := tt.menu
			if menu == "" {
				menu = testMenu
			}
			h := newHarness(t, menu, Config{}, []*audio.Utterance{speech()}, texts(tt.text), nil)
			if err := h.ctrl.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			if h.speaker.count(tt.want) != 1 {
				t.Fatalf("expected %q in %q", tt.want, h.speaker.lines)
			}
			if !h.ledger.Current().Empty() {
				t.Fatalf("ledger changed: %+v", h.ledger.Current().Lines)
			}
		})
	}
}

func TestSaveOnConfirmPublishesTicket(t *testing.T) {
	k := &fakeKitchen{}
	h := newHarness(t, testMenu, Config{SaveOnConfirm: true}, []*audio.Utterance{speech(), speech()},
		texts("I want two cheeseburgers", "yes"), func(d *Deps) { d.Kitchen = k })

	if err := h.ctrl.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(k.tickets) != 1 {
		t.Fatalf("expected 1 ticket, got %d", len(k.tickets))
	}
	if k.tickets[0].Total != order.Dollars(10) || !strings.HasPrefix(k.tickets[0].OrderID, "ORD-") {
		t.Fatalf("unexpected ticket %+v", k.tickets[0])
	}
	if !h.ledger.Current().Empty() {
		t.Fatal("expected a fresh order after confirmation")
	}
	if n := savedFiles(t, h.dir); n != 1 {
		t.Fatalf("expected 1 saved order, got %d", n)
	}
	if h.speaker.count(msgConfirmed) != 1 || h.speaker.count(msgSaved) != 0 {
		t.Fatalf("unexpected speech %q", h.speaker.lines)
	}
}

func TestShutdownSaveFailureIsNotAnnounced(t *testing.T) {
	h := newHarness(t, testMenu, Config{}, []*audio.Utterance{speech()},
		texts("I want two cheeseburgers"), nil)
	if err := os.RemoveAll(h.dir); err != nil {
		t.Fatal(err)
	}

	if err := h.ctrl.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.speaker.count(msgSaved) != 0 {
		t.Fatalf("save failed but was announced: %q", h.speaker.lines)
	}
}

func TestWakeGateAcknowledges(t *testing.T) {
	chime := &fakeChime{}
	h := newHarness(t, testMenu, Config{}, []*audio.Utterance{speech()}, texts("hello"), func(d *Deps) {
		d.Gate = &fakeGate{left: 1}
		d.Chime = chime
	})

	if err := h.ctrl.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if chime.plays != 1 {
		t.Fatalf("expected 1 chime, got %d", chime.plays)
	}
	want := []string{msgWakeAck, msgListening, msgHello, msgAnythingElse}
	if !slices.Equal(h.speaker.lines, want) {
		t.Fatalf("spoken %q, want %q", h.speaker.lines, want)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(t, testMenu, Config{}, nil, texts(), func(d *Deps) {
		d.Gate = blockingGate{}
	})

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop")
	}
}

type blockingGate struct{}

func (blockingGate) Wait(ctx context.Context, _ audio.Source) (wake.Detection, error) {
	<-ctx.Done()
	return wake.Detection{}, ctx.Err()
}

func TestOrderResolvesSpokenItem(t *testing.T) {
	tests := []struct {
		name string
		menu string
		text string
		want []string
	}{
		{"partial name", testMenu, "I want two fries", []string{"French Fries"}},
		{"longer name wins", burgerMenu, "I want a cheeseburger", []string{"Cheeseburger"}},
		{"both named", testMenu, "I want two cheeseburgers and a cola", []string{"Cheeseburger", "Cola"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.menu, Config{}, []*audio.Utterance{speech()}, texts(tt.text), nil)
			if err := h.ctrl.Run(context.Background()); err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, l := range h.ledger.Current().Lines {
				got = append(got, l.Name)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got lines %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrecise(t *testing.T) {
	tests := []struct {
		name  string
		items []match.Candidate
		want  []string
	}{
		{"none", nil, nil},
		{"precise only", []match.Candidate{{Name: "Cheeseburger", Score: 1}, {Name: "Cola", Score: 0.9}, {Name: "Fries", Score: 0.6}}, []string{"Cheeseburger", "Cola"}},
		{"fuzzy only", []match.Candidate{{Name: "Cola", Score: 0.7}, {Name: "Coffee", Score: 0.6}}, nil},
		{"contained name dropped", []match.Candidate{{Name: "Burger", Score: 1}, {Name: "Cheeseburger", Score: 1}}, []string{"Cheeseburger"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := precise(nlu.Entities{Items: tt.items})
			if !slices.Equal(got, tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpoken(t *testing.T) {
	tests := []struct {
		cue  *regexp.Regexp
		text string
		want string
	}{
		{infoCue, "what's in the veggie wrap", "veggie wrap"},
		{infoCue, "Tell me about a milkshake", "milkshake"},
		{infoCue, "how much is the large soda", "large soda"},
		{infoCue, "price please", ""},
		{orderCue, "I want a veggie wrap", "veggie wrap"},
		{orderCue, "can I have 2 large colas please", "large colas"},
		{orderCue, "I'd like to order three veggie wraps and a cola", "veggie wraps"},
		{orderCue, "I want", ""},
	}
	for _, tt := range tests {
		if got := spoken(tt.cue, tt.text); got != tt.want {
			t.Errorf("spoken(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{MaxConsecutiveErrors: 5}, Deps{}, testLogger())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"audio source", "transcriber", "menu", "ledger"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %q in %v", want, err)
		}
	}
}
