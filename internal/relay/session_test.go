package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convobridge/convobridge/internal/domain"
	"github.com/convobridge/convobridge/internal/logging"
	"github.com/convobridge/convobridge/internal/store"
)

// fakeTransport is an in-memory Transport: tests feed frames through inbox
// and inspect everything the session wrote.
type fakeTransport struct {
	mu      sync.Mutex
	inbox   chan []byte
	written [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:  make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (t *fakeTransport) ReadFrame() ([]byte, error) {
	select {
	case data, ok := <-t.inbox:
		if !ok {
			return nil, errors.New("connection closed")
		}
		return data, nil
	case <-t.closed:
		return nil, errors.New("connection closed")
	}
}

func (t *fakeTransport) WriteRaw(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	select {
	case <-t.closed:
		return errors.New("write on closed connection")
	default:
	}
	t.written = append(t.written, data)
	return nil
}

func (t *fakeTransport) WriteJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.WriteRaw(data)
}

func (t *fakeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

func (t *fakeTransport) send(tb testing.TB, v any) {
	tb.Helper()
	data, err := json.Marshal(v)
	require.NoError(tb, err)
	t.inbox <- data
}

func (t *fakeTransport) sendRaw(data []byte) {
	t.inbox <- data
}

// frames returns a copy of everything written so far.
func (t *fakeTransport) frames() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.written))
	copy(out, t.written)
	return out
}

// waitFrames polls until the transport has at least n written frames.
func (t *fakeTransport) waitFrames(tb testing.TB, n int) [][]byte {
	tb.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if got := t.frames(); len(got) >= n {
			return got
		}
		select {
		case <-deadline:
			tb.Fatalf("timed out waiting for %d frames, have %d", n, len(t.frames()))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func testLedger(t *testing.T) *store.ConversationStore {
	t.Helper()
	db, err := store.Open(":memory:", logging.New(nil, "silent"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewConversationStore(db)
}

// harness runs one session against fake legs.
type harness struct {
	client   *fakeTransport
	upstream *fakeTransport
	session  *Session
	ledger   *store.ConversationStore

	dialCount int
	dialMu    sync.Mutex

	done chan struct{}
}

func newHarness(t *testing.T, dialErr error) *harness {
	t.Helper()
	h := &harness{
		client:   newFakeTransport(),
		upstream: newFakeTransport(),
		ledger:   testLedger(t),
		done:     make(chan struct{}),
	}

	dial := func(ctx context.Context, signedURL string) (Transport, error) {
		h.dialMu.Lock()
		h.dialCount++
		h.dialMu.Unlock()
		if dialErr != nil {
			return nil, dialErr
		}
		return h.upstream, nil
	}

	h.session = NewSession(h.client, Config{
		Ledger: h.ledger,
		Dial:   dial,
		Log:    logging.New(nil, "silent"),
	})
	return h
}

func (h *harness) run() {
	go func() {
		h.session.Run(context.Background())
		close(h.done)
	}()
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func (h *harness) dials() int {
	h.dialMu.Lock()
	defer h.dialMu.Unlock()
	return h.dialCount
}

func initEvent() ClientEvent {
	return ClientEvent{
		Type:      EventInit,
		AgentID:   "agent-1",
		ConfigID:  "cfg-1",
		SignedURL: "wss://upstream.example/conv",
	}
}

func TestSession_HappyPath(t *testing.T) {
	h := newHarness(t, nil)
	h.run()

	h.client.send(t, initEvent())
	h.client.send(t, ClientEvent{Type: EventMessage, Content: "I love this"})

	// The user turn is forwarded upstream in the provider envelope.
	up := h.upstream.waitFrames(t, 1)
	var fwd struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(up[0], &fwd))
	assert.Equal(t, "user_message", fwd.Type)
	assert.Equal(t, "I love this", fwd.Text)

	// An agent response is forwarded to the widget verbatim.
	raw := []byte(`{"type":"agent_response","text":"Glad to hear it"}`)
	h.upstream.sendRaw(raw)
	frames := h.client.waitFrames(t, 1)
	assert.JSONEq(t, string(raw), string(frames[0]))

	convID := h.session.ConversationID()
	require.NotEmpty(t, convID)

	h.client.Close()
	h.wait(t)
	assert.Equal(t, StateClosed, h.session.State())

	conv, err := h.ledger.Get(context.Background(), convID)
	require.NoError(t, err)
	assert.False(t, conv.Active())
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, domain.RoleUser, conv.Messages[0].Role)
	require.NotNil(t, conv.Messages[0].Sentiment)
	assert.Equal(t, domain.MoodPositive, conv.Messages[0].Sentiment.Mood)
	assert.Equal(t, domain.RoleAssistant, conv.Messages[1].Role)

	metrics, err := h.ledger.Metrics(context.Background(), convID)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, metrics.CompletionRate, 1e-9)
}

func TestSession_StatusNormalized(t *testing.T) {
	h := newHarness(t, nil)
	h.run()

	h.client.send(t, initEvent())
	h.upstream.sendRaw([]byte(`{"type":"status","status":"talking"}`))

	// Raw frame passthrough plus the normalized voice_status event.
	frames := h.client.waitFrames(t, 2)

	var status VoiceStatusEvent
	require.NoError(t, json.Unmarshal(frames[1], &status))
	assert.Equal(t, EventVoiceStatus, status.Type)
	assert.Equal(t, "speaking", status.Status)

	h.client.Close()
	h.wait(t)
}

func TestSession_UnknownStatusPassedThrough(t *testing.T) {
	h := newHarness(t, nil)
	h.run()

	h.client.send(t, initEvent())
	h.upstream.sendRaw([]byte(`{"type":"status","status":"daydreaming"}`))

	frames := h.client.waitFrames(t, 1)
	assert.JSONEq(t, `{"type":"status","status":"daydreaming"}`, string(frames[0]))

	// No voice_status should follow; give it a beat to be sure.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.client.frames(), 1)

	h.client.Close()
	h.wait(t)
}

func TestSession_DialFailure(t *testing.T) {
	h := newHarness(t, errors.New("connection refused"))
	h.run()

	h.client.send(t, initEvent())

	frames := h.client.waitFrames(t, 1)
	var evt ErrorEvent
	require.NoError(t, json.Unmarshal(frames[0], &evt))
	assert.Equal(t, EventError, evt.Type)
	assert.NotEmpty(t, evt.Message)

	// The widget leg stays open in the degraded state.
	assert.Equal(t, StateDegraded, h.session.State())

	h.client.Close()
	h.wait(t)
	assert.Equal(t, StateClosed, h.session.State())
}

func TestSession_DuplicateInitIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.run()

	h.client.send(t, initEvent())
	h.client.send(t, initEvent())
	h.client.send(t, ClientEvent{Type: EventMessage, Content: "hello"})

	h.upstream.waitFrames(t, 1)
	assert.Equal(t, 1, h.dials())

	h.client.Close()
	h.wait(t)
}

func TestSession_MessageBeforeInitDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.run()

	h.client.send(t, ClientEvent{Type: EventMessage, Content: "too early"})
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, h.dials())
	assert.Empty(t, h.upstream.frames())
	assert.Empty(t, h.session.ConversationID())

	h.client.Close()
	h.wait(t)
}

func TestSession_MalformedFrameDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.run()

	h.client.sendRaw([]byte(`{not json`))
	h.client.send(t, initEvent())

	// The session survived the bad frame and still connected.
	deadline := time.After(2 * time.Second)
	for h.dials() == 0 {
		select {
		case <-deadline:
			t.Fatal("session never dialed after malformed frame")
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.client.Close()
	h.wait(t)
}

func TestSession_UpstreamCloseEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.run()

	h.client.send(t, initEvent())
	h.client.send(t, ClientEvent{Type: EventMessage, Content: "hi"})
	h.upstream.waitFrames(t, 1)

	h.upstream.Close()
	h.wait(t)
	assert.Equal(t, StateClosed, h.session.State())

	conv, err := h.ledger.Get(context.Background(), h.session.ConversationID())
	require.NoError(t, err)
	assert.False(t, conv.Active())
}

func TestSession_FinalizeExactlyOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.run()

	h.client.send(t, initEvent())
	h.client.send(t, ClientEvent{Type: EventMessage, Content: "hi"})
	h.upstream.waitFrames(t, 1)

	h.client.Close()
	h.wait(t)
	convID := h.session.ConversationID()
	require.NotEmpty(t, convID)

	// A second finalize against the same conversation is refused.
	conv, err := h.ledger.Get(context.Background(), convID)
	require.NoError(t, err)
	_, err = h.ledger.Finalize(context.Background(), convID, conv.OwnerToken, time.Now())
	assert.ErrorIs(t, err, store.ErrFinalized)
}

func TestSession_ContextCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		h.session.Run(ctx)
		close(h.done)
	}()

	h.client.send(t, initEvent())
	h.upstream.waitFrames(t, 0)

	cancel()
	h.wait(t)
	assert.Equal(t, StateClosed, h.session.State())
}

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in, out string
		ok      bool
	}{
		{"listening", "listening", true},
		{"speaking", "speaking", true},
		{"talking", "speaking", true},
		{"thinking", "thinking", true},
		{"processing", "thinking", true},
		{"daydreaming", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeStatus(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.out, got, tc.in)
	}
}
