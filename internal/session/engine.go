package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/classify"
	"github.com/suykerbuyk/focusbot/internal/render"
)

var (
	// ErrClassificationFailed wraps any classifier failure. The session is
	// left as it was.
	ErrClassificationFailed = errors.New("classification failed")

	// ErrNoActiveSession is available to callers that prefer an error over
	// the NothingToSave and NothingToCancel outcomes.
	ErrNoActiveSession = errors.New("no active session")
)

// Outcome reports what a call did.
type Outcome int

const (
	Ignored Outcome = iota
	Drafted
	Updated
	Saved
	Cancelled
	NothingToSave
	NothingToCancel
)

func (o Outcome) String() string {
	switch o {
	case Drafted:
		return "drafted"
	case Updated:
		return "updated"
	case Saved:
		return "saved"
	case Cancelled:
		return "cancelled"
	case NothingToSave:
		return "nothing-to-save"
	case NothingToCancel:
		return "nothing-to-cancel"
	default:
		return "ignored"
	}
}

// Err maps the no-session outcomes to ErrNoActiveSession.
func (o Outcome) Err() error {
	if o == NothingToSave || o == NothingToCancel {
		return ErrNoActiveSession
	}
	return nil
}

// Classifier decides what a user input means for the current draft.
type Classifier interface {
	Classify(ctx context.Context, input string, state *classify.State) (classify.Result, string, error)
}

// Messenger sends and edits chat messages.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string) error
}

// NoteSaver persists a finished draft and returns the note path.
// DiscardDraft removes a saved draft that a later revision replaced.
type NoteSaver interface {
	SaveDraft(ctx context.Context, title string, tags []string, body string) (string, error)
	DiscardDraft(ctx context.Context, path string) error
}

// Archiver keeps the conversation of a saved draft.
type Archiver interface {
	ArchiveDraft(s Session) error
}

type Deps struct {
	Classifier Classifier
	Messenger  Messenger
	Notes      NoteSaver
	Archiver   Archiver // optional
	Logger     *zap.Logger
}

// Engine runs multi-turn drafting on top of a Store.
type Engine struct {
	store      *Store
	classifier Classifier
	messenger  Messenger
	notes      NoteSaver
	archiver   Archiver
	logger     *zap.Logger
	now        func() time.Time
}

func NewEngine(store *Store, d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:      store,
		classifier: d.Classifier,
		messenger:  d.Messenger,
		notes:      d.Notes,
		archiver:   d.Archiver,
		logger:     logger.Named("session"),
		now:        time.Now,
	}
}

func (e *Engine) Store() *Store { return e.store }

// Active reports whether userID has a draft in progress.
func (e *Engine) Active(userID int64) bool {
	_, ok := e.store.Get(userID)
	return ok
}

// Cancel discards userID's draft without consulting the classifier.
func (e *Engine) Cancel(ctx context.Context, userID int64) (Outcome, error) {
	unlock := e.store.Lock(userID)
	defer unlock()

	cur, ok := e.store.Get(userID)
	if !ok {
		return NothingToCancel, nil
	}
	return e.cancel(ctx, cur)
}

// HandleInput classifies text against userID's draft and applies the
// result. chatID is where a new draft is sent.
func (e *Engine) HandleInput(ctx context.Context, userID, chatID int64, text string) (Outcome, error) {
	unlock := e.store.Lock(userID)
	defer unlock()

	cur, active := e.store.Get(userID)
	var state *classify.State
	if active {
		state = cur.State()
	}

	res, raw, err := e.classifier.Classify(ctx, text, state)
	if err != nil {
		return Ignored, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}

	switch r := res.(type) {
	case classify.Draft:
		if active {
			return e.update(ctx, cur, r, text, raw)
		}
		return e.create(ctx, userID, chatID, r, text, raw)
	case classify.Save:
		if !active {
			return NothingToSave, nil
		}
		return e.save(ctx, cur)
	case classify.Cancel:
		if !active {
			return NothingToCancel, nil
		}
		return e.cancel(ctx, cur)
	default:
		return Ignored, fmt.Errorf("%w: unexpected result %T", ErrClassificationFailed, res)
	}
}

// SaveByReaction saves the draft shown at ref without consulting the
// classifier. A ref that shows no draft is ignored.
func (e *Engine) SaveByReaction(ctx context.Context, ref ChannelRef) (Outcome, error) {
	userID, ok := e.store.FindByRef(ref)
	if !ok {
		return Ignored, nil
	}

	unlock := e.store.Lock(userID)
	defer unlock()

	// A text save may have finished while we waited for the lock.
	cur, ok := e.store.Get(userID)
	if !ok || cur.Origin != ref {
		return NothingToSave, nil
	}
	return e.save(ctx, cur)
}

func (e *Engine) create(ctx context.Context, userID, chatID int64, d classify.Draft, input, raw string) (Outcome, error) {
	msgID, err := e.messenger.SendMessage(ctx, chatID, render.DraftMessage(d.Title, d.Tags, d.Body))
	if err != nil {
		return Ignored, fmt.Errorf("send draft: %w", err)
	}

	now := e.now()
	sess := Session{
		UserID: userID,
		Title:  d.Title,
		Tags:   d.Tags,
		Body:   d.Body,
		Origin: ChannelRef{ChatID: chatID, MessageID: msgID},
		History: []classify.Turn{
			{Role: classify.RoleUser, Content: input},
			{Role: classify.RoleAssistant, Content: raw},
		},
		Created: now,
		Updated: now,
	}
	if err := e.store.Create(sess); err != nil {
		return Ignored, fmt.Errorf("create session: %w", err)
	}
	e.logger.Info("draft started", zap.Int64("user", userID), zap.String("title", d.Title))
	return Drafted, nil
}

func (e *Engine) update(ctx context.Context, cur Session, d classify.Draft, input, raw string) (Outcome, error) {
	err := e.messenger.EditMessage(ctx, cur.Origin.ChatID, cur.Origin.MessageID, render.DraftMessage(d.Title, d.Tags, d.Body))
	if err != nil {
		return Ignored, fmt.Errorf("edit draft: %w", err)
	}

	cur.Title = d.Title
	cur.Tags = d.Tags
	cur.Body = d.Body
	cur.History = append(cur.History,
		classify.Turn{Role: classify.RoleUser, Content: input},
		classify.Turn{Role: classify.RoleAssistant, Content: raw},
	)
	// The note written by a save whose confirmation failed is now stale.
	stale := cur.SavedPath
	cur.SavedPath = ""
	cur.Updated = e.now()
	if err := e.store.Update(cur); err != nil {
		return Ignored, fmt.Errorf("update session: %w", err)
	}
	if stale != "" {
		if err := e.notes.DiscardDraft(ctx, stale); err != nil {
			e.logger.Warn("discard stale draft note", zap.String("path", stale), zap.Error(err))
		}
	}
	return Updated, nil
}

// save must run under the user's lock.
func (e *Engine) save(ctx context.Context, cur Session) (Outcome, error) {
	if cur.SavedPath == "" {
		path, err := e.notes.SaveDraft(ctx, cur.Title, cur.Tags, cur.Body)
		if err != nil {
			return Ignored, fmt.Errorf("save note: %w", err)
		}
		cur.SavedPath = path
		if err := e.store.Update(cur); err != nil {
			return Ignored, fmt.Errorf("update session: %w", err)
		}
		e.logger.Info("note saved", zap.Int64("user", cur.UserID), zap.String("path", path))
	}

	err := e.messenger.EditMessage(ctx, cur.Origin.ChatID, cur.Origin.MessageID, render.SavedMessage(cur.Title, cur.Tags, cur.Body))
	if err != nil {
		return Ignored, fmt.Errorf("confirm save: %w", err)
	}

	if e.archiver != nil {
		if err := e.archiver.ArchiveDraft(cur); err != nil {
			e.logger.Warn("archive draft", zap.String("path", cur.SavedPath), zap.Error(err))
		}
	}
	e.store.Delete(cur.UserID)
	return Saved, nil
}

func (e *Engine) cancel(ctx context.Context, cur Session) (Outcome, error) {
	e.store.Delete(cur.UserID)
	if err := e.messenger.EditMessage(ctx, cur.Origin.ChatID, cur.Origin.MessageID, render.DiscardedMessage); err != nil {
		e.logger.Warn("edit discarded draft", zap.Int64("user", cur.UserID), zap.Error(err))
	}
	return Cancelled, nil
}
