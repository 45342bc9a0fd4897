package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/capture"
	"github.com/suykerbuyk/focusbot/internal/enrichment"
	"github.com/suykerbuyk/focusbot/internal/health"
	"github.com/suykerbuyk/focusbot/internal/llm"
	"github.com/suykerbuyk/focusbot/internal/render"
	"github.com/suykerbuyk/focusbot/internal/session"
	"github.com/suykerbuyk/focusbot/internal/transcribe"
)

const (
	workerQueue    = 16
	handlerTimeout = 3 * time.Minute
	pollBackoff    = time.Second
)

// Commands is the menu registered with setMyCommands.
var Commands = []BotCommand{
	{Command: "start", Description: "Show help message"},
	{Command: "health", Description: "Check bot health and uptime"},
	{Command: "cancel", Description: "Discard the current voice draft"},
}

type Engine interface {
	HandleInput(ctx context.Context, userID, chatID int64, text string) (session.Outcome, error)
	SaveByReaction(ctx context.Context, ref session.ChannelRef) (session.Outcome, error)
	Cancel(ctx context.Context, userID int64) (session.Outcome, error)
	Active(userID int64) bool
}

type Capturer interface {
	Capture(ctx context.Context, text string) (capture.Result, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type Dispatcher interface {
	Dispatch(notePath string, urls []string, ack *enrichment.Ack) (string, error)
}

type Deps struct {
	Client      *Client
	Engine      Engine
	Capture     Capturer
	Transcriber Transcriber
	Dispatcher  Dispatcher // nil disables enrichment
	Status      func(ctx context.Context) health.Status
	Allowed     func(userID int64) bool
	NotifyUsers []int64 // sent the help text on startup
	Exchange    *llm.ExchangeLog
	PollTimeout time.Duration
	Logger      *zap.Logger
}

// Bot long-polls the Bot API and handles each user's updates in order on
// a worker of their own.
type Bot struct {
	Deps
	logger *zap.Logger

	mu      sync.Mutex
	workers map[int64]chan Update
	wg      sync.WaitGroup
}

func New(d Deps) *Bot {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.PollTimeout <= 0 {
		d.PollTimeout = 30 * time.Second
	}
	return &Bot{
		Deps:    d,
		logger:  logger.Named("telegram"),
		workers: make(map[int64]chan Update),
	}
}

// Announce registers the command menu and greets the allowed users.
// Failures are logged; a user who never opened the chat cannot be messaged.
func (b *Bot) Announce(ctx context.Context) {
	if err := b.Client.SetMyCommands(ctx, Commands); err != nil {
		b.logger.Warn("set commands", zap.Error(err))
	}
	for _, id := range b.NotifyUsers {
		if _, err := b.Client.SendMessage(ctx, id, render.HelpMessage); err != nil {
			b.logger.Debug("startup notify", zap.Int64("user_id", id), zap.Error(err))
		}
	}
}

// Run polls until ctx is cancelled, then waits for queued updates to be
// handled.
func (b *Bot) Run(ctx context.Context) error {
	defer b.wg.Wait()
	defer b.stopWorkers()

	b.logger.Info("polling for updates")
	var offset int64
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, next, err := b.Client.GetUpdates(ctx, offset, b.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("get updates", zap.Error(err))
			if sleep(ctx, pollBackoff) != nil {
				return nil
			}
			continue
		}
		offset = next
		for _, u := range updates {
			b.route(ctx, u)
		}
	}
}

// route authorizes an update and queues it on its user's worker.
func (b *Bot) route(ctx context.Context, u Update) {
	userID, ok := updateUser(u)
	if !ok {
		return
	}
	if b.Allowed == nil || !b.Allowed(userID) {
		b.logger.Warn("unauthorized update", zap.Int64("user_id", userID), zap.Int64("update_id", u.UpdateID))
		if u.Message != nil {
			if _, err := b.Client.SendMessage(ctx, u.Message.Chat.ID, render.UnauthorizedMessage); err != nil {
				b.logger.Debug("unauthorized reply", zap.Error(err))
			}
		}
		return
	}
	select {
	case b.worker(userID) <- u:
	default:
		// A full queue means this user's worker is stuck; other users keep
		// being served.
		b.logger.Warn("update queue full, dropping", zap.Int64("user_id", userID), zap.Int64("update_id", u.UpdateID))
		if u.Message != nil {
			b.reply(ctx, u.Message.Chat.ID, render.BusyMessage)
		}
	}
}

func updateUser(u Update) (int64, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return u.Message.From.ID, true
	case u.MessageReaction != nil && u.MessageReaction.User != nil:
		return u.MessageReaction.User.ID, true
	}
	return 0, false
}

func (b *Bot) worker(userID int64) chan Update {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.workers[userID]; ok {
		return ch
	}
	ch := make(chan Update, workerQueue)
	b.workers[userID] = ch
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for u := range ch {
			b.handleSafe(u)
		}
	}()
	return ch
}

func (b *Bot) stopWorkers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.workers {
		close(ch)
		delete(b.workers, id)
	}
}

// handleSafe runs one update detached from the poller so that shutdown
// lets in-flight drafts finish.
func (b *Bot) handleSafe(u Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("update handler panicked", zap.Int64("update_id", u.UpdateID), zap.Any("panic", r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.Handle(ctx, u)
}

// Handle processes a single authorized update.
func (b *Bot) Handle(ctx context.Context, u Update) {
	switch {
	case u.MessageReaction != nil:
		b.handleReaction(ctx, u.MessageReaction)
	case u.Message != nil && u.Message.Voice != nil:
		b.handleVoice(ctx, u.Message)
	case u.Message != nil && strings.TrimSpace(u.Message.Text) != "":
		cmd, _ := splitCommand(u.Message.Text)
		if b.handleCommand(ctx, u.Message, normalizeSlashCommand(cmd)) {
			return
		}
		b.handleText(ctx, u.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *Message, cmd string) bool {
	chatID := msg.Chat.ID
	switch cmd {
	case "/start", "/help":
		b.reply(ctx, chatID, render.HelpMessage)
	case "/health":
		if b.Status == nil {
			return false
		}
		b.reply(ctx, chatID, b.Status(ctx).Text())
	case "/cancel":
		out, err := b.Engine.Cancel(ctx, msg.From.ID)
		if err != nil {
			b.logger.Error("cancel draft", zap.Int64("user_id", msg.From.ID), zap.Error(err))
			b.reply(ctx, chatID, render.VoiceErrorMessage)
			return true
		}
		b.replyOutcome(ctx, chatID, out)
	default:
		return false
	}
	return true
}

func (b *Bot) handleVoice(ctx context.Context, msg *Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	log := b.logger.With(zap.Int64("user_id", userID), zap.Int64("message_id", msg.MessageID))

	if err := b.Client.SendChatAction(ctx, chatID, "typing"); err != nil {
		log.Debug("chat action", zap.Error(err))
	}

	audio, err := b.Client.DownloadFile(ctx, msg.Voice.FileID)
	if err != nil {
		log.Error("download voice", zap.Error(err))
		b.reply(ctx, chatID, render.VoiceErrorMessage)
		return
	}
	text, err := b.Transcriber.Transcribe(ctx, audio)
	if errors.Is(err, transcribe.ErrEmptyTranscript) {
		b.reply(ctx, chatID, render.TranscribeFailedMessage)
		return
	}
	if err != nil {
		log.Error("transcribe voice", zap.Error(err))
		b.reply(ctx, chatID, render.VoiceErrorMessage)
		return
	}
	b.Exchange.Transcript(text)
	log.Debug("transcribed voice", zap.Int("chars", len(text)))

	b.draft(ctx, userID, chatID, text)
}

func (b *Bot) handleText(ctx context.Context, msg *Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	if b.Engine.Active(userID) {
		b.draft(ctx, userID, chatID, msg.Text)
		return
	}

	res, err := b.Capture.Capture(ctx, msg.Text)
	if err != nil {
		b.logger.Error("capture note", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(ctx, chatID, render.CaptureFailedMessage)
		return
	}
	b.reply(ctx, chatID, render.CapturedMessage(res.Title))
	if err := b.Client.React(ctx, chatID, msg.MessageID, enrichment.ReactionCaptured); err != nil {
		b.logger.Debug("capture reaction", zap.Error(err))
	}

	// Link-free notes still go through enrichment so they get the
	// completion reaction.
	if b.Dispatcher == nil {
		return
	}
	runID, err := b.Dispatcher.Dispatch(res.FilePath, res.URLs, &enrichment.Ack{ChatID: chatID, MessageID: msg.MessageID})
	if err != nil {
		b.logger.Error("dispatch enrichment", zap.String("note", res.FilePath), zap.Error(err))
		return
	}
	b.logger.Info("enrichment queued", zap.String("run_id", runID), zap.String("note", res.FilePath), zap.Int("urls", len(res.URLs)))
}

// draft feeds text to the session engine and reports failures in chat.
func (b *Bot) draft(ctx context.Context, userID, chatID int64, text string) {
	out, err := b.Engine.HandleInput(ctx, userID, chatID, text)
	if err != nil {
		b.logger.Error("draft input", zap.Int64("user_id", userID), zap.Error(err))
		b.reply(ctx, chatID, render.VoiceErrorMessage)
		return
	}
	b.logger.Debug("draft input", zap.Int64("user_id", userID), zap.Stringer("outcome", out))
	b.replyOutcome(ctx, chatID, out)
}

func (b *Bot) replyOutcome(ctx context.Context, chatID int64, out session.Outcome) {
	switch out {
	case session.NothingToSave:
		b.reply(ctx, chatID, render.NothingToSaveMessage)
	case session.NothingToCancel:
		b.reply(ctx, chatID, render.NothingToCancelMessage)
	}
}

func (b *Bot) handleReaction(ctx context.Context, r *MessageReactionUpdated) {
	if !r.HasEmoji(enrichment.ReactionCaptured) {
		return
	}
	ref := session.ChannelRef{ChatID: r.Chat.ID, MessageID: r.MessageID}
	out, err := b.Engine.SaveByReaction(ctx, ref)
	if err != nil {
		b.logger.Error("reaction save", zap.Int64("chat_id", ref.ChatID), zap.Int64("message_id", ref.MessageID), zap.Error(err))
		return
	}
	if out != session.Ignored {
		b.logger.Info("reaction save", zap.Int64("message_id", ref.MessageID), zap.Stringer("outcome", out))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.Client.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Warn("send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

// normalizeSlashCommand lowercases a command and strips a "@BotName" suffix.
func normalizeSlashCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || !strings.HasPrefix(cmd, "/") {
		return ""
	}
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}
