// README: Session service: loads a session, applies one wizard operation and
// persists it. Export orchestrates quota, rendering and the optional archive.
package session

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"geotag/internal/modules/location"
	"geotag/internal/modules/quota"
	"geotag/internal/types"
)

// Quotas hands out the export allowance of a caller. Anonymous callers are
// identified by guestKey.
type Quotas interface {
	For(owner types.ID, guestKey string) quota.Quota
}

// Archiver stores a rendered export and returns a download URL.
type Archiver interface {
	Put(ctx context.Context, key, fileName string, data []byte, contentType string) (string, error)
}

// ExportLog records finished exports.
type ExportLog interface {
	LogExport(ctx context.Context, sessionID, uid, fileName, archiveKey string) error
}

type ExportResult struct {
	FileName   string
	Data       []byte
	ArchiveURL string
}

type Service struct {
	store      Store
	locations  *location.Service
	quotas     Quotas
	renderer   Renderer
	archiver   Archiver
	exportLog  ExportLog
	defaultImg string
	log        zerolog.Logger
	now        func() time.Time
}

type Option func(*Service)

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

func WithExportLog(l ExportLog) Option {
	return func(s *Service) { s.exportLog = l }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l.With().Str("component", "session").Logger() }
}

func NewService(store Store, locations *location.Service, quotas Quotas, renderer Renderer, defaultImageURL string, opts ...Option) *Service {
	s := &Service{
		store:      store,
		locations:  locations,
		quotas:     quotas,
		renderer:   renderer,
		defaultImg: defaultImageURL,
		log:        zerolog.Nop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, owner types.ID) (*Session, error) {
	sess := New(types.ID(uuid.NewString()), owner, s.defaultImg, s.now())
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session when caller may see it. Sessions created by a
// signed-in user are private to that user.
func (s *Service) Get(ctx context.Context, id, caller types.ID) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(sess, caller) {
		return nil, ErrNotFound
	}
	return sess, nil
}

func (s *Service) Delete(ctx context.Context, id, caller types.ID) error {
	if _, err := s.Get(ctx, id, caller); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

func visible(sess *Session, caller types.ID) bool {
	return sess.OwnerID == "" || sess.OwnerID == caller
}

func (s *Service) update(ctx context.Context, id, caller types.ID, fn func(*Session) error) (*Session, error) {
	return s.store.Update(ctx, id, func(sess *Session) error {
		if !visible(sess, caller) {
			return ErrNotFound
		}
		return fn(sess)
	})
}

// SelectLocation validates loc against the region and folds it into the draft.
func (s *Service) SelectLocation(ctx context.Context, id, caller types.ID, loc location.Location) (*Session, error) {
	loc, err := s.locations.Normalize(loc)
	if err != nil {
		return nil, err
	}
	sess, err := s.update(ctx, id, caller, func(sess *Session) error {
		sess.SelectLocation(loc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.locations.Remember(ctx, caller, loc); err != nil {
		s.log.Warn().Err(err).Str("session_id", string(id)).Msg("remember recent location")
	}
	return sess, nil
}

func (s *Service) SetDate(ctx context.Context, id, caller types.ID, t time.Time) (*Session, error) {
	return s.update(ctx, id, caller, func(sess *Session) error { return sess.SetDate(t) })
}

func (s *Service) SetWatermark(ctx context.Context, id, caller types.ID, on bool) (*Session, error) {
	return s.update(ctx, id, caller, func(sess *Session) error {
		sess.SetWatermark(on)
		return nil
	})
}

func (s *Service) Next(ctx context.Context, id, caller types.ID) (*Session, error) {
	return s.update(ctx, id, caller, func(sess *Session) error { return sess.Next() })
}

func (s *Service) GoTo(ctx context.Context, id, caller types.ID, tab Tab) (*Session, error) {
	return s.update(ctx, id, caller, func(sess *Session) error { return sess.GoTo(tab) })
}

func (s *Service) ToggleEditMode(ctx context.Context, id, caller types.ID) (*Session, error) {
	return s.update(ctx, id, caller, func(sess *Session) error {
		sess.ToggleEditMode()
		return nil
	})
}

func (s *Service) Discard(ctx context.Context, id, caller types.ID) (*Session, error) {
	return s.update(ctx, id, caller, func(sess *Session) error {
		sess.Discard()
		return nil
	})
}

func (s *Service) UploadImage(ctx context.Context, id, caller types.ID, data []byte) (*Session, error) {
	return s.update(ctx, id, caller, func(sess *Session) error { return sess.UploadImage(data) })
}

func (s *Service) RemoveImage(ctx context.Context, id, caller types.ID) (*Session, error) {
	return s.update(ctx, id, caller, func(sess *Session) error {
		sess.RemoveImage(s.defaultImg)
		return nil
	})
}

// Export renders the draft of session id. The session is claimed for the
// duration so a second export of it is refused, and the claim is released
// afterwards. Anonymous exports count against guestKey.
func (s *Service) Export(ctx context.Context, id, caller types.ID, guestKey string) (*ExportResult, error) {
	current, err := s.Get(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	q := s.quotas.For(current.OwnerID, guestKey)

	startedAt := s.now()
	sess, err := s.update(ctx, id, caller, func(sess *Session) error { return sess.BeginExport(startedAt) })
	if err != nil {
		return nil, err
	}
	defer func() {
		if _, err := s.store.Update(context.WithoutCancel(ctx), id, func(sess *Session) error {
			sess.FinishExport(startedAt)
			return nil
		}); err != nil {
			s.log.Error().Err(err).Str("session_id", string(id)).Msg("clear exporting flag")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, ExportTimeout)
	defer cancel()

	var buf bytes.Buffer
	if err := render(ctx, sess, q, s.renderer, &buf); err != nil {
		return nil, err
	}
	res := &ExportResult{FileName: sess.FileName(), Data: buf.Bytes()}

	var archiveKey string
	if s.archiver != nil {
		key := fmt.Sprintf("exports/%s/%s.jpg", id, uuid.NewString())
		u, err := s.archiver.Put(ctx, key, res.FileName, res.Data, "image/jpeg")
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", string(id)).Msg("archive export")
		} else {
			res.ArchiveURL, archiveKey = u, key
		}
	}
	if s.exportLog != nil {
		if err := s.exportLog.LogExport(ctx, string(id), string(sess.OwnerID), res.FileName, archiveKey); err != nil {
			s.log.Warn().Err(err).Str("session_id", string(id)).Msg("log export")
		}
	}
	s.log.Info().Str("session_id", string(id)).Str("file", res.FileName).Int("bytes", len(res.Data)).Msg("exported")
	return res, nil
}
