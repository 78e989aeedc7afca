// Package conference is the application layer of the conference service.
//
// Every method resolves its caller from the context (identity.WithUser) and
// returns apperr errors. Registration changes are delegated to
// registration.Coordinator; this package adds profile bootstrapping,
// conference maintenance, the read side and the confirmation email.
package conference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jacentio/conference/announcement"
	"github.com/jacentio/conference/apperr"
	"github.com/jacentio/conference/identity"
	"github.com/jacentio/conference/model"
	"github.com/jacentio/conference/notify"
	"github.com/jacentio/conference/query"
	"github.com/jacentio/conference/registration"
	"github.com/jacentio/conference/store"
)

// Service implements the conference operations.
type Service struct {
	store    store.EntityStore
	coord    *registration.Coordinator
	compiler *query.Compiler
	sink     notify.Sink
	cache    announcement.Cache
	logger   *slog.Logger
}

// Deps are the collaborators of a Service. Sink and Cache default to a
// no-op sink and a process-local cache.
type Deps struct {
	Store       store.EntityStore
	Coordinator *registration.Coordinator
	Sink        notify.Sink
	Cache       announcement.Cache
	Logger      *slog.Logger
}

// New creates a Service.
func New(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Coordinator == nil {
		d.Coordinator = registration.New(d.Store, d.Logger)
	}
	if d.Sink == nil {
		d.Sink = notify.Noop{}
	}
	if d.Cache == nil {
		d.Cache = announcement.NewMemoryCache()
	}
	return &Service{
		store:    d.Store,
		coord:    d.Coordinator,
		compiler: query.MustNewCompiler(model.KindConference, query.ConferenceFields),
		sink:     d.Sink,
		cache:    d.Cache,
		logger:   d.Logger,
	}
}

// --- Profiles ---

// GetProfile returns the caller's profile, creating it from the caller's
// identity on first access.
func (s *Service) GetProfile(ctx context.Context) (*model.Profile, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.profile(ctx, user)
}

// SaveProfile updates the caller's display name and shirt size.
func (s *Service) SaveProfile(ctx context.Context, form model.ProfileMiniForm) (*model.Profile, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}

	var profile *model.Profile
	err = s.transact(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get(ctx, model.ProfileKey(user.ID))
		switch {
		case errors.Is(err, store.ErrNotFound):
			profile = model.NewProfile(user.ID, user.Nickname, user.Email)
		case err != nil:
			return err
		default:
			profile = model.ProfileFromDocument(doc)
		}
		if err := profile.Apply(form); err != nil {
			return err
		}
		tx.Put(profile.Document())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// profile loads the user's profile, storing a new one if there is none.
func (s *Service) profile(ctx context.Context, user identity.User) (*model.Profile, error) {
	key := model.ProfileKey(user.ID)
	doc, err := s.store.Get(ctx, key)
	if err == nil {
		return model.ProfileFromDocument(doc), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	p := model.NewProfile(user.ID, user.Nickname, user.Email)
	doc = p.Document()
	switch err := s.store.Put(ctx, doc); {
	case err == nil:
		p.Version = doc.Version
		s.logger.Info("profile created", "user", user.ID)
		return p, nil
	case errors.Is(err, store.ErrConcurrentModification):
		// Created concurrently by another request.
		if doc, err = s.store.Get(ctx, key); err != nil {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		return model.ProfileFromDocument(doc), nil
	default:
		return nil, fmt.Errorf("create profile: %w", err)
	}
}

// --- Conferences ---

// CreateConference creates a conference organized by the caller and queues
// a confirmation email. A failure to queue the email is only logged.
func (s *Service) CreateConference(ctx context.Context, form model.ConferenceForm) (model.ConferenceView, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return model.ConferenceView{}, err
	}
	if form.Name == "" {
		return model.ConferenceView{}, apperr.Validation("name", "Conference 'name' field required")
	}
	organizer, err := s.profile(ctx, user)
	if err != nil {
		return model.ConferenceView{}, err
	}

	id, err := s.store.AllocateChildID(ctx, organizer.Key)
	if err != nil {
		return model.ConferenceView{}, fmt.Errorf("allocate conference id: %w", err)
	}
	conf, err := model.NewConference(store.NewKey(model.KindConference, id, organizer.Key), user.ID, form)
	if err != nil {
		return model.ConferenceView{}, err
	}
	doc := conf.Document()
	if err := s.store.Put(ctx, doc); err != nil {
		return model.ConferenceView{}, fmt.Errorf("store conference: %w", err)
	}
	conf.Version = doc.Version

	if err := s.sink.Enqueue(ctx, user.Email, describe(conf)); err != nil {
		s.logger.Warn("failed to queue confirmation email", "conference", conf.Key.Encode(), "error", err)
	}
	s.logger.Info("conference created", "conference", conf.Key.Encode(), "organizer", user.ID)
	return conf.View(organizer.DisplayName), nil
}

// UpdateConference applies form to a conference owned by the caller.
func (s *Service) UpdateConference(ctx context.Context, conferenceKey string, form model.ConferenceForm) (model.ConferenceView, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return model.ConferenceView{}, err
	}
	key, err := model.DecodeKey("websafeConferenceKey", conferenceKey, model.KindConference)
	if err != nil {
		return model.ConferenceView{}, err
	}

	var conf *model.Conference
	err = s.transact(ctx, func(ctx context.Context, tx store.Tx) error {
		doc, err := tx.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound(model.KindConference, conferenceKey)
		}
		if err != nil {
			return err
		}
		conf = model.ConferenceFromDocument(doc)
		if conf.OrganizerUserID != user.ID {
			return apperr.Authorization("Only the owner can update the conference.")
		}
		if err := conf.Apply(form); err != nil {
			return err
		}
		tx.Put(conf.Document())
		return nil
	})
	if err != nil {
		return model.ConferenceView{}, err
	}
	return s.conferenceViews(ctx, []*model.Conference{conf})[0], nil
}

// GetConference returns one conference.
func (s *Service) GetConference(ctx context.Context, conferenceKey string) (model.ConferenceView, error) {
	conf, err := s.conference(ctx, conferenceKey)
	if err != nil {
		return model.ConferenceView{}, err
	}
	return s.conferenceViews(ctx, []*model.Conference{conf})[0], nil
}

// ConferencesCreated returns the conferences organized by the caller.
func (s *Service) ConferencesCreated(ctx context.Context) ([]model.ConferenceView, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	organizer, err := s.profile(ctx, user)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.Query(ctx, store.NewQuery(model.KindConference).WithAncestor(organizer.Key).OrderBy("name"))
	if err != nil {
		return nil, fmt.Errorf("query conferences: %w", err)
	}
	views := make([]model.ConferenceView, len(docs))
	for i, d := range docs {
		views[i] = model.ConferenceFromDocument(d).View(organizer.DisplayName)
	}
	return views, nil
}

// QueryConferences returns the conferences matching filters.
func (s *Service) QueryConferences(ctx context.Context, filters []query.Filter) ([]model.ConferenceView, error) {
	q, err := s.compiler.Compile(filters)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query conferences: %w", err)
	}
	confs := make([]*model.Conference, len(docs))
	for i, d := range docs {
		confs[i] = model.ConferenceFromDocument(d)
	}
	return s.conferenceViews(ctx, confs), nil
}

// ConferencesToAttend returns the conferences the caller registered for.
// Conferences that no longer exist are skipped.
func (s *Service) ConferencesToAttend(ctx context.Context) ([]model.ConferenceView, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.profile(ctx, user)
	if err != nil {
		return nil, err
	}

	docs, err := s.getEncoded(ctx, profile.ConferenceKeysToAttend)
	if err != nil {
		return nil, err
	}
	var confs []*model.Conference
	for _, d := range docs {
		confs = append(confs, model.ConferenceFromDocument(d))
	}
	return s.conferenceViews(ctx, confs), nil
}

// Register registers the caller for a conference.
func (s *Service) Register(ctx context.Context, conferenceKey string) (bool, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return false, err
	}
	return s.coord.Register(ctx, user.ID, conferenceKey)
}

// Unregister cancels the caller's registration for a conference.
func (s *Service) Unregister(ctx context.Context, conferenceKey string) (bool, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return false, err
	}
	return s.coord.Unregister(ctx, user.ID, conferenceKey)
}

// --- Sessions ---

// CreateSession creates a session in a conference organized by the caller.
func (s *Service) CreateSession(ctx context.Context, conferenceKey string, form model.SessionForm) (model.SessionView, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return model.SessionView{}, err
	}
	sess, err := s.coord.CreateSession(ctx, user.ID, conferenceKey, form)
	if err != nil {
		return model.SessionView{}, err
	}
	s.logger.Info("session created", "session", sess.Key.Encode(), "speaker", sess.SpeakerID)
	return sess.View(form.SpeakerDisplayName), nil
}

// ConferenceSessions returns every session of a conference.
func (s *Service) ConferenceSessions(ctx context.Context, conferenceKey string) ([]model.SessionView, error) {
	conf, err := s.conference(ctx, conferenceKey)
	if err != nil {
		return nil, err
	}
	return s.querySessions(ctx, store.NewQuery(model.KindSession).WithAncestor(conf.Key))
}

// ConferenceSessionsByType returns the sessions of a conference of one type.
func (s *Service) ConferenceSessionsByType(ctx context.Context, conferenceKey, typeOfSession string) ([]model.SessionView, error) {
	t, err := model.ParseSessionType(typeOfSession)
	if err != nil {
		return nil, err
	}
	conf, err := s.conference(ctx, conferenceKey)
	if err != nil {
		return nil, err
	}
	return s.querySessions(ctx, store.NewQuery(model.KindSession).
		WithAncestor(conf.Key).
		Where("typeOfSession", store.OpEqual, string(t)))
}

// SessionsBySpeaker returns the sessions given by a speaker across all
// conferences.
func (s *Service) SessionsBySpeaker(ctx context.Context, speakerDisplayName string) ([]model.SessionView, error) {
	if speakerDisplayName == "" {
		return nil, apperr.Validation("speakerDisplayName", "speaker display name required")
	}
	key := model.SpeakerKey(speakerDisplayName)
	if _, err := s.store.Get(ctx, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound(model.KindSpeaker, speakerDisplayName)
		}
		return nil, fmt.Errorf("load speaker: %w", err)
	}
	return s.querySessions(ctx, store.NewQuery(model.KindSession).Where("speakerId", store.OpEqual, key.ID))
}

// AddSessionToWishlist adds a session to the caller's wishlist.
func (s *Service) AddSessionToWishlist(ctx context.Context, sessionKey string) (bool, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return false, err
	}
	return s.coord.AddToWishlist(ctx, user.ID, sessionKey)
}

// RemoveSessionFromWishlist removes a session from the caller's wishlist.
func (s *Service) RemoveSessionFromWishlist(ctx context.Context, sessionKey string) (bool, error) {
	user, err := s.caller(ctx)
	if err != nil {
		return false, err
	}
	return s.coord.RemoveFromWishlist(ctx, user.ID, sessionKey)
}

// SessionsInWishlist returns the sessions on the caller's wishlist, in
// wishlist order. Sessions that no longer exist are skipped.
func (s *Service) SessionsInWishlist(ctx context.Context) ([]model.SessionView, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := s.profile(ctx, user)
	if err != nil {
		return nil, err
	}
	docs, err := s.getEncoded(ctx, profile.SessionWishlist)
	if err != nil {
		return nil, err
	}
	return s.sessionViews(ctx, docs)
}

// Announcement returns the cached nearly-sold-out announcement.
func (s *Service) Announcement(ctx context.Context) (string, error) {
	text, err := announcement.Get(ctx, s.cache)
	if err != nil {
		return "", fmt.Errorf("read announcement: %w", err)
	}
	return text, nil
}

// --- helpers ---

// caller resolves the caller and makes sure their profile exists, so that
// profiles created by registration carry the caller's name and email.
func (s *Service) caller(ctx context.Context) (identity.User, error) {
	user, err := identity.Require(ctx)
	if err != nil {
		return identity.User{}, err
	}
	if _, err := s.profile(ctx, user); err != nil {
		return identity.User{}, err
	}
	return user, nil
}

func (s *Service) conference(ctx context.Context, conferenceKey string) (*model.Conference, error) {
	key, err := model.DecodeKey("websafeConferenceKey", conferenceKey, model.KindConference)
	if err != nil {
		return nil, err
	}
	doc, err := s.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound(model.KindConference, conferenceKey)
	}
	if err != nil {
		return nil, fmt.Errorf("load conference: %w", err)
	}
	return model.ConferenceFromDocument(doc), nil
}

// getEncoded loads documents by encoded key, dropping keys that no longer
// resolve.
func (s *Service) getEncoded(ctx context.Context, encoded []string) ([]*store.Document, error) {
	keys := make([]*store.Key, 0, len(encoded))
	for _, e := range encoded {
		k, err := store.DecodeKey(e)
		if err != nil {
			s.logger.Warn("skipping malformed stored key", "key", e)
			continue
		}
		keys = append(keys, k)
	}
	docs, err := s.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	out := docs[:0]
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out, nil
}

// conferenceViews maps confs to views carrying their organizers' display
// names. A lookup failure leaves the names empty.
func (s *Service) conferenceViews(ctx context.Context, confs []*model.Conference) []model.ConferenceView {
	var keys []*store.Key
	seen := map[string]bool{}
	for _, c := range confs {
		if c.OrganizerUserID != "" && !seen[c.OrganizerUserID] {
			seen[c.OrganizerUserID] = true
			keys = append(keys, model.ProfileKey(c.OrganizerUserID))
		}
	}

	names := map[string]string{}
	docs, err := s.store.GetMulti(ctx, keys)
	if err != nil {
		s.logger.Warn("failed to load organizer names", "error", err)
	}
	for _, d := range docs {
		if d != nil {
			names[d.Key.ID] = d.String("displayName")
		}
	}

	views := make([]model.ConferenceView, len(confs))
	for i, c := range confs {
		views[i] = c.View(names[c.OrganizerUserID])
	}
	return views
}

func (s *Service) querySessions(ctx context.Context, q *store.Query) ([]model.SessionView, error) {
	docs, err := s.store.Query(ctx, q.OrderBy("name"))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	return s.sessionViews(ctx, docs)
}

// sessionViews maps session documents to views carrying their speakers'
// display names.
func (s *Service) sessionViews(ctx context.Context, docs []*store.Document) ([]model.SessionView, error) {
	sessions := make([]*model.Session, len(docs))
	var keys []*store.Key
	seen := map[string]bool{}
	for i, d := range docs {
		sessions[i] = model.SessionFromDocument(d)
		if id := sessions[i].SpeakerID; id != "" && !seen[id] {
			seen[id] = true
			keys = append(keys, model.SpeakerKey(id))
		}
	}

	speakers, err := s.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load speakers: %w", err)
	}
	names := map[string]string{}
	for _, d := range speakers {
		if d != nil {
			names[d.Key.ID] = d.String("displayName")
		}
	}

	views := make([]model.SessionView, len(sessions))
	for i, sess := range sessions {
		views[i] = sess.View(names[sess.SpeakerID])
	}
	return views, nil
}

// transact runs fn and converts retry exhaustion into a TransientStoreError.
func (s *Service) transact(ctx context.Context, fn store.TxFunc) error {
	err := s.store.RunTransaction(ctx, fn)
	var exhausted *store.ExhaustedError
	if errors.As(err, &exhausted) {
		return &apperr.TransientStoreError{Attempts: exhausted.Attempts, Err: exhausted.Err}
	}
	return err
}

// describe renders the conference summary sent to its organizer.
func describe(c *model.Conference) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\r\n", c.Name)
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\r\n", c.Description)
	}
	fmt.Fprintf(&b, "City: %s\r\n", c.City)
	fmt.Fprintf(&b, "Topics: %s\r\n", strings.Join(c.Topics, ", "))
	if v := c.View(""); v.StartDate != "" {
		fmt.Fprintf(&b, "Dates: %s to %s\r\n", v.StartDate, v.EndDate)
	}
	fmt.Fprintf(&b, "Seats: %d", c.MaxAttendees)
	return b.String()
}
