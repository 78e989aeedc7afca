// Package registration runs the transactions that change who attends what:
// conference registration, session wishlists and session creation.
//
// Every operation is a read-decide-write body run in a store transaction.
// Concurrent transactions touching the same profile or conference conflict
// at commit and the loser re-runs its whole body against fresh reads; only
// those write conflicts are retried. Business rule failures (duplicates,
// sold-out conferences) abort the transaction and are returned as
// apperr.ConflictError.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jacentio/conference/apperr"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/store"
)

// Conflict reasons reported to callers.
const (
	ReasonAlreadyRegistered = "You have already registered for this conference"
	ReasonNoSeats           = "There are no seats available."
	ReasonAlreadyWished     = "You have already added this session to your wishlist"
)

// Operation names passed to the Recorder.
const (
	OpRegister           = "register"
	OpUnregister         = "unregister"
	OpAddToWishlist      = "add_to_wishlist"
	OpRemoveFromWishlist = "remove_from_wishlist"
	OpCreateSession      = "create_session"
)

// Outcomes passed to the Recorder.
const (
	OutcomeOK           = "ok"
	OutcomeNoop         = "noop"
	OutcomeConflict     = "conflict"
	OutcomeNotFound     = "not_found"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalid      = "invalid"
	OutcomeTransient    = "transient"
	OutcomeError        = "error"
)

// Recorder receives the outcome of every coordinator operation.
type Recorder interface {
	RecordOutcome(op, outcome string)
}

// Coordinator runs registration transactions. It holds no mutable state and
// is safe for concurrent use.
type Coordinator struct {
	store    store.EntityStore
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithClock replaces time.Now, which supplies the default session date.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator over s.
func New(s store.EntityStore, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds conferenceKey to the user's attend-list and takes one seat,
// committing both in one transaction. The profile is created if the user
// has none yet.
func (c *Coordinator) Register(ctx context.Context, userID, conferenceKey string) (bool, error) {
	return c.changeAttendance(ctx, OpRegister, userID, conferenceKey)
}

// Unregister removes conferenceKey from the user's attend-list and gives the
// seat back. It returns false, and changes nothing, if the user was not
// registered.
func (c *Coordinator) Unregister(ctx context.Context, userID, conferenceKey string) (bool, error) {
	return c.changeAttendance(ctx, OpUnregister, userID, conferenceKey)
}

func (c *Coordinator) changeAttendance(ctx context.Context, op, userID, conferenceKey string) (bool, error) {
	if userID == "" {
		return false, c.finish(op, conferenceKey, apperr.Authorization("Authorization required"))
	}
	key, err := model.DecodeKey("websafeConferenceKey", conferenceKey, model.KindConference)
	if err != nil {
		return false, c.finish(op, conferenceKey, err)
	}

	var changed bool
	err = c.transact(ctx, func(ctx context.Context, tx store.Tx) error {
		changed = false

		profile, err := loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		doc, err := tx.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(model.KindConference, conferenceKey)
		}
		if err != nil {
			return err
		}
		conf := model.ConferenceFromDocument(doc)

		if op == OpRegister {
			if profile.IsAttending(conferenceKey) {
				return apperr.Conflict(conferenceKey, ReasonAlreadyRegistered)
			}
			if !conf.TakeSeat() {
				return apperr.Conflict(conferenceKey, ReasonNoSeats)
			}
			profile.Attend(conferenceKey)
		} else {
			if !profile.Leave(conferenceKey) {
				return nil
			}
			conf.ReleaseSeat()
		}

		tx.Put(profile.Document())
		tx.Put(conf.Document())
		changed = true
		return nil
	})
	if err != nil {
		return false, c.finish(op, conferenceKey, err)
	}
	c.done(op, conferenceKey, changed)
	return changed, nil
}

// AddToWishlist appends sessionKey to the user's wishlist. The session must
// exist but is not modified.
func (c *Coordinator) AddToWishlist(ctx context.Context, userID, sessionKey string) (bool, error) {
	return c.changeWishlist(ctx, OpAddToWishlist, userID, sessionKey)
}

// RemoveFromWishlist removes sessionKey from the user's wishlist. It returns
// false, and changes nothing, if the session was not on the wishlist.
func (c *Coordinator) RemoveFromWishlist(ctx context.Context, userID, sessionKey string) (bool, error) {
	return c.changeWishlist(ctx, OpRemoveFromWishlist, userID, sessionKey)
}

func (c *Coordinator) changeWishlist(ctx context.Context, op, userID, sessionKey string) (bool, error) {
	if userID == "" {
		return false, c.finish(op, sessionKey, apperr.Authorization("Authorization required"))
	}
	key, err := model.DecodeKey("sessionKey", sessionKey, model.KindSession)
	if err != nil {
		return false, c.finish(op, sessionKey, err)
	}

	// The session is only checked for existence, so it is read outside the
	// transaction and does not join its read set.
	if _, err := c.store.Get(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = apperr.NotFound(model.KindSession, sessionKey)
		}
		return false, c.finish(op, sessionKey, err)
	}

	var changed bool
	err = c.transact(ctx, func(ctx context.Context, tx store.Tx) error {
		changed = false

		profile, err := loadProfile(ctx, tx, userID)
		if err != nil {
			return err
		}
		if op == OpAddToWishlist {
			if !profile.Wish(sessionKey) {
				return apperr.Conflict(sessionKey, ReasonAlreadyWished)
			}
		} else if !profile.Unwish(sessionKey) {
			return nil
		}

		tx.Put(profile.Document())
		changed = true
		return nil
	})
	if err != nil {
		return false, c.finish(op, sessionKey, err)
	}
	c.done(op, sessionKey, changed)
	return changed, nil
}

// CreateSession creates a session under conferenceKey on behalf of the
// conference's organizer. The speaker named by the form is created if
// unknown, and the session is appended to the speaker's list in the same
// transaction as the session write.
func (c *Coordinator) CreateSession(ctx context.Context, organizerUserID, conferenceKey string, form model.SessionForm) (*model.Session, error) {
	op := OpCreateSession
	if organizerUserID == "" {
		return nil, c.finish(op, conferenceKey, apperr.Authorization("Authorization required"))
	}
	confKey, err := model.DecodeKey("websafeConferenceKey", conferenceKey, model.KindConference)
	if err != nil {
		return nil, c.finish(op, conferenceKey, err)
	}
	if form.SpeakerDisplayName == "" {
		return nil, c.finish(op, conferenceKey, apperr.Validation("speakerDisplayName", "Session 'speakerDisplayName' field required"))
	}

	var (
		sessionKey *store.Key
		session    *model.Session
	)
	err = c.transact(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get(ctx, confKey)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(model.KindConference, conferenceKey)
		}
		if err != nil {
			return err
		}
		conf := model.ConferenceFromDocument(doc)
		if conf.OrganizerUserID != organizerUserID {
			return apperr.Authorization("You can only create sessions for your conferences")
		}

		if sessionKey == nil {
			id, err := c.store.AllocateChildID(ctx, confKey)
			if err != nil {
				return err
			}
			sessionKey = store.NewKey(model.KindSession, id, confKey)
		}

		speaker := model.NewSpeaker(form.SpeakerDisplayName)
		switch doc, err := tx.Get(ctx, speaker.Key); {
		case err == nil:
			speaker = model.SpeakerFromDocument(doc)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		s, err := model.NewSession(sessionKey, speaker.Key.ID, form, c.now().UTC())
		if err != nil {
			return err
		}
		speaker.AddSession(sessionKey.Encode())

		tx.Put(s.Document())
		tx.Put(speaker.Document())
		session = s
		return nil
	})
	if err != nil {
		return nil, c.finish(op, conferenceKey, err)
	}
	c.done(op, conferenceKey, true)
	return session, nil
}

// loadProfile returns the user's profile, or a fresh one if the user has
// none yet.
func loadProfile(ctx context.Context, tx store.Tx, userID string) (*model.Profile, error) {
	doc, err := tx.Get(ctx, model.ProfileKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return model.NewProfile(userID, "", ""), nil
	}
	if err != nil {
		return nil, err
	}
	return model.ProfileFromDocument(doc), nil
}

// transact runs fn and converts retry exhaustion into a TransientStoreError.
func (c *Coordinator) transact(ctx context.Context, fn store.TxFunc) error {
	err := c.store.RunTransaction(ctx, fn)
	var exhausted *store.ExhaustedError
	if errors.As(err, &exhausted) {
		return &apperr.TransientStoreError{Attempts: exhausted.Attempts, Err: exhausted.Err}
	}
	return err
}

func (c *Coordinator) done(op, key string, changed bool) {
	outcome := OutcomeOK
	if !changed {
		outcome = OutcomeNoop
	}
	c.record(op, outcome)
	c.logger.Debug("registration operation completed", "op", op, "key", key, "outcome", outcome)
}

// finish records a failed operation and returns err.
func (c *Coordinator) finish(op, key string, err error) error {
	outcome := classify(err)
	c.record(op, outcome)
	switch outcome {
	case OutcomeTransient, OutcomeError:
		c.logger.Warn("registration operation failed", "op", op, "key", key, "error", err)
	default:
		c.logger.Debug("registration operation rejected", "op", op, "key", key, "outcome", outcome, "error", err)
	}
	return err
}

func (c *Coordinator) record(op, outcome string) {
	if c.recorder != nil {
		c.recorder.RecordOutcome(op, outcome)
	}
}

func classify(err error) string {
	switch {
	case apperr.IsConflict(err):
		return OutcomeConflict
	case apperr.IsNotFound(err):
		return OutcomeNotFound
	case apperr.IsAuthorization(err):
		return OutcomeUnauthorized
	case apperr.IsValidation(err):
		return OutcomeInvalid
	case apperr.IsTransient(err):
		return OutcomeTransient
	}
	return OutcomeError
}
