package telegram

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suykerbuyk/focusbot/internal/capture"
	"github.com/suykerbuyk/focusbot/internal/enrichment"
	"github.com/suykerbuyk/focusbot/internal/health"
	"github.com/suykerbuyk/focusbot/internal/llm"
	"github.com/suykerbuyk/focusbot/internal/render"
	"github.com/suykerbuyk/focusbot/internal/session"
	"github.com/suykerbuyk/focusbot/internal/transcribe"
)

const (
	owner    int64 = 7
	stranger int64 = 99
)

type fakeEngine struct {
	mu       sync.Mutex
	active   bool
	inputs   []string
	refs     []session.ChannelRef
	cancels  int
	outcome  session.Outcome
	inputErr error
}

func (e *fakeEngine) HandleInput(_ context.Context, userID, chatID int64, text string) (session.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputs = append(e.inputs, text)
	return e.outcome, e.inputErr
}

func (e *fakeEngine) SaveByReaction(_ context.Context, ref session.ChannelRef) (session.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refs = append(e.refs, ref)
	return session.Saved, nil
}

func (e *fakeEngine) Cancel(context.Context, int64) (session.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels++
	if !e.active {
		return session.NothingToCancel, nil
	}
	return session.Cancelled, nil
}

func (e *fakeEngine) Active(int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

type fakeCapture struct {
	mu     sync.Mutex
	texts  []string
	result capture.Result
	err    error
	gate   chan struct{} // when set, Capture waits for it to close
}

func (c *fakeCapture) Capture(_ context.Context, text string) (capture.Result, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return c.result, c.err
}

func (c *fakeCapture) captured() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

type fakeTranscriber struct {
	audio []byte
	text  string
	err   error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte) (string, error) {
	f.audio = audio
	return f.text, f.err
}

type dispatched struct {
	path string
	urls []string
	ack  *enrichment.Ack
}

type fakeDispatcher struct {
	mu   sync.Mutex
	runs []dispatched
}

func (d *fakeDispatcher) Dispatch(path string, urls []string, ack *enrichment.Ack) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runs = append(d.runs, dispatched{path, urls, ack})
	return "run-1", nil
}

type harness struct {
	api   *fakeAPI
	eng   *fakeEngine
	cap   *fakeCapture
	tr    *fakeTranscriber
	disp  *fakeDispatcher
	trlog bytes.Buffer
	bot   *Bot
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		api: newFakeAPI(t),
		eng: &fakeEngine{outcome: session.Drafted},
		cap: &fakeCapture{result: capture.Result{
			Title:    "Tea & Biscuits",
			FilePath: "/vault/Bookmarks/Tea & Biscuits.md",
			URLs:     []string{"https://example.com/tea"},
		}},
		tr:   &fakeTranscriber{text: "buy oat milk"},
		disp: &fakeDispatcher{},
	}
	h.bot = New(Deps{
		Client:      h.api.client(),
		Engine:      h.eng,
		Capture:     h.cap,
		Transcriber: h.tr,
		Dispatcher:  h.disp,
		Status: func(context.Context) health.Status {
			return health.Status{Uptime: 90 * time.Minute, ActiveSessions: 1, PendingEnrichments: 2}
		},
		Allowed:     func(id int64) bool { return id == owner },
		NotifyUsers: []int64{owner},
		Exchange:    llm.NewExchangeLog(&h.trlog),
		PollTimeout: time.Second,
	})
	return h
}

func textUpdate(id int64, from int64, text string) Update {
	return Update{UpdateID: id, Message: &Message{
		MessageID: id * 10,
		From:      &User{ID: from},
		Chat:      Chat{ID: from, Type: "private"},
		Text:      text,
	}}
}

func voiceUpdate(id int64) Update {
	return Update{UpdateID: id, Message: &Message{
		MessageID: id * 10,
		From:      &User{ID: owner},
		Chat:      Chat{ID: owner, Type: "private"},
		Voice:     &Voice{FileID: "voice-1", Duration: 4, MimeType: "audio/ogg"},
	}}
}

func reactionUpdate(id int64, from int64, emoji string) Update {
	return Update{UpdateID: id, MessageReaction: &MessageReactionUpdated{
		Chat:        Chat{ID: owner},
		MessageID:   321,
		User:        &User{ID: from},
		NewReaction: []ReactionType{{Type: "emoji", Emoji: emoji}},
	}}
}

func TestTextCapture(t *testing.T) {
	h := newHarness(t)
	h.bot.Handle(context.Background(), textUpdate(1, owner, "tea https://example.com/tea"))

	assert.Equal(t, []string{"tea https://example.com/tea"}, h.cap.captured())
	assert.Equal(t, []string{"Saved: Tea &amp; Biscuits"}, h.api.sentTexts())

	reactions := h.api.callsTo("setMessageReaction")
	require.Len(t, reactions, 1)
	assert.EqualValues(t, 10, reactions[0].Params["message_id"])
	assert.Equal(t, []any{map[string]any{"type": "emoji", "emoji": "👍"}}, reactions[0].Params["reaction"])

	require.Len(t, h.disp.runs, 1)
	assert.Equal(t, "/vault/Bookmarks/Tea & Biscuits.md", h.disp.runs[0].path)
	assert.Equal(t, []string{"https://example.com/tea"}, h.disp.runs[0].urls)
	assert.Equal(t, &enrichment.Ack{ChatID: owner, MessageID: 10}, h.disp.runs[0].ack)
	assert.Empty(t, h.eng.inputs)
}

func TestTextCaptureWithoutURLsStillEnriches(t *testing.T) {
	h := newHarness(t)
	h.cap.result.URLs = nil
	h.bot.Handle(context.Background(), textUpdate(1, owner, "just a thought"))

	assert.Len(t, h.api.callsTo("setMessageReaction"), 1)
	require.Len(t, h.disp.runs, 1, "the completion reaction comes from enrichment")
	assert.Empty(t, h.disp.runs[0].urls)
	assert.Equal(t, &enrichment.Ack{ChatID: owner, MessageID: 10}, h.disp.runs[0].ack)
}

func TestTextCaptureFailure(t *testing.T) {
	h := newHarness(t)
	h.cap.err = errors.New("llm down")
	h.bot.Handle(context.Background(), textUpdate(1, owner, "thought"))

	assert.Equal(t, []string{render.CaptureFailedMessage}, h.api.sentTexts())
	assert.Empty(t, h.api.callsTo("setMessageReaction"))
	assert.Empty(t, h.disp.runs)
}

func TestTextGoesToActiveDraft(t *testing.T) {
	h := newHarness(t)
	h.eng.active = true
	h.bot.Handle(context.Background(), textUpdate(1, owner, "add eggs"))

	assert.Equal(t, []string{"add eggs"}, h.eng.inputs)
	assert.Empty(t, h.cap.captured())
	assert.Empty(t, h.api.sentTexts(), "the engine renders drafts itself")
}

func TestTextSaveWithoutDraft(t *testing.T) {
	h := newHarness(t)
	h.eng.active = true
	h.eng.outcome = session.NothingToSave
	h.bot.Handle(context.Background(), textUpdate(1, owner, "save"))

	assert.Equal(t, []string{render.NothingToSaveMessage}, h.api.sentTexts())
}

func TestVoiceDraft(t *testing.T) {
	h := newHarness(t)
	h.bot.Handle(context.Background(), voiceUpdate(2))

	actions := h.api.callsTo("sendChatAction")
	require.Len(t, actions, 1)
	assert.Equal(t, "typing", actions[0].Params["action"])
	assert.Equal(t, "OGGDATA", string(h.tr.audio))
	assert.Equal(t, []string{"buy oat milk"}, h.eng.inputs)
	assert.Contains(t, h.trlog.String(), "TRANSCRIPT\nbuy oat milk")
	assert.Empty(t, h.api.sentTexts())
}

func TestVoiceEmptyTranscript(t *testing.T) {
	h := newHarness(t)
	h.tr.err = transcribe.ErrEmptyTranscript
	h.bot.Handle(context.Background(), voiceUpdate(2))

	assert.Equal(t, []string{render.TranscribeFailedMessage}, h.api.sentTexts())
	assert.Empty(t, h.eng.inputs)
}

func TestVoiceTranscriptionError(t *testing.T) {
	h := newHarness(t)
	h.tr.err = errors.New("groq 500")
	h.bot.Handle(context.Background(), voiceUpdate(2))

	assert.Equal(t, []string{render.VoiceErrorMessage}, h.api.sentTexts())
}

func TestVoiceClassificationError(t *testing.T) {
	h := newHarness(t)
	h.eng.inputErr = session.ErrClassificationFailed
	h.bot.Handle(context.Background(), voiceUpdate(2))

	assert.Equal(t, []string{render.VoiceErrorMessage}, h.api.sentTexts())
}

func TestVoiceDownloadError(t *testing.T) {
	h := newHarness(t)
	h.api.handle("getFile", func(map[string]any) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: invalid file_id"}`
	})
	h.bot.Handle(context.Background(), voiceUpdate(2))

	assert.Equal(t, []string{render.VoiceErrorMessage}, h.api.sentTexts())
	assert.Nil(t, h.tr.audio)
}

func TestCommands(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.Handle(ctx, textUpdate(1, owner, "/start"))
	h.bot.Handle(ctx, textUpdate(2, owner, "/help@focus_bot"))
	h.bot.Handle(ctx, textUpdate(3, owner, "/health"))
	h.bot.Handle(ctx, textUpdate(4, owner, "/cancel"))

	sent := h.api.sentTexts()
	require.Len(t, sent, 4)
	assert.Equal(t, render.HelpMessage, sent[0])
	assert.Equal(t, render.HelpMessage, sent[1])
	assert.Equal(t, "✅ Focus Bot is running\nUptime: 1h 30m\nActive drafts: 1\nPending enrichments: 2", sent[2])
	assert.Equal(t, render.NothingToCancelMessage, sent[3])
	assert.Equal(t, 1, h.eng.cancels)
	assert.Empty(t, h.cap.captured())
}

func TestCancelCommandWithDraft(t *testing.T) {
	h := newHarness(t)
	h.eng.active = true
	h.bot.Handle(context.Background(), textUpdate(1, owner, "/cancel"))

	assert.Equal(t, 1, h.eng.cancels)
	assert.Empty(t, h.api.sentTexts(), "the engine edits the draft message itself")
}

func TestUnknownCommandIsCaptured(t *testing.T) {
	h := newHarness(t)
	h.bot.Handle(context.Background(), textUpdate(1, owner, "/todo call mum"))
	assert.Equal(t, []string{"/todo call mum"}, h.cap.captured())
}

func TestThumbsUpReactionSaves(t *testing.T) {
	h := newHarness(t)
	h.bot.Handle(context.Background(), reactionUpdate(1, owner, "👍"))
	h.bot.Handle(context.Background(), reactionUpdate(2, owner, "🔥"))

	assert.Equal(t, []session.ChannelRef{{ChatID: owner, MessageID: 321}}, h.eng.refs)
	assert.Empty(t, h.api.sentTexts())
}

func TestRouteRejectsStrangers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.bot.route(ctx, textUpdate(1, stranger, "hello"))
	h.bot.route(ctx, reactionUpdate(2, stranger, "👍"))
	h.bot.stopWorkers()
	h.bot.wg.Wait()

	assert.Equal(t, []string{render.UnauthorizedMessage}, h.api.sentTexts())
	assert.EqualValues(t, stranger, h.api.callsTo("sendMessage")[0].Params["chat_id"])
	assert.Empty(t, h.cap.captured())
	assert.Empty(t, h.eng.refs)
}

func TestAnnounce(t *testing.T) {
	h := newHarness(t)
	h.bot.Announce(context.Background())

	cmds := h.api.callsTo("setMyCommands")
	require.Len(t, cmds, 1)
	assert.Len(t, cmds[0].Params["commands"], len(Commands))
	assert.Equal(t, []string{render.HelpMessage}, h.api.sentTexts())
}

func TestRouteBusyUserDoesNotStallOthers(t *testing.T) {
	const other int64 = 8
	h := newHarness(t)
	h.bot.Allowed = func(id int64) bool { return id == owner || id == other }
	h.cap.gate = make(chan struct{})
	ctx := context.Background()

	// The owner's worker blocks on the first capture; the rest overflow
	// the queue.
	routed := make(chan struct{})
	go func() {
		defer close(routed)
		for i := int64(1); i <= workerQueue+2; i++ {
			h.bot.route(ctx, textUpdate(i, owner, "thought"))
		}
		h.bot.route(ctx, reactionUpdate(100, other, "👍"))
	}()

	select {
	case <-routed:
	case <-time.After(5 * time.Second):
		t.Fatal("routing blocked on a full queue")
	}
	assert.Eventually(t, func() bool {
		h.eng.mu.Lock()
		defer h.eng.mu.Unlock()
		return len(h.eng.refs) == 1
	}, 5*time.Second, 10*time.Millisecond, "the other user's reaction is handled")
	assert.Contains(t, h.api.sentTexts(), render.BusyMessage)

	close(h.cap.gate)
	h.bot.stopWorkers()
	h.bot.wg.Wait()
}

func TestRunPollsAndDispatches(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var offsets []any
	h.api.handle("getUpdates", func(params map[string]any) (int, string) {
		mu.Lock()
		offsets = append(offsets, params["offset"])
		first := len(offsets) == 1
		mu.Unlock()
		if first {
			return http.StatusOK, `{"ok":true,"result":[{"update_id":41,"message":{"message_id":5,"from":{"id":7},"chat":{"id":7,"type":"private"},"text":"note one"}}]}`
		}
		time.Sleep(20 * time.Millisecond)
		return http.StatusOK, `{"ok":true,"result":[]}`
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.cap.captured()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(offsets) >= 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Nil(t, offsets[0])
	assert.EqualValues(t, 42, offsets[1])
}
