// Package session holds the process-wide authenticated identity. The only
// ways to change it are Establish (login), ApplyProfile (server profile merge)
// and Clear (logout); Restore runs once at startup. Each login, restore and
// logout starts a new generation, so replies to calls made under an earlier
// session can be recognized and dropped.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-gateway/internal/apperr"
	"github.com/hongminglow/portal-gateway/internal/auth"
	"github.com/hongminglow/portal-gateway/internal/models"
	"github.com/hongminglow/portal-gateway/internal/storage"
)

var (
	// ErrStaleLogin is returned when a login response arrives after a newer
	// login attempt (or a logout) has started. Its result is discarded.
	ErrStaleLogin = errors.New("login superseded by a newer attempt")
	// ErrNoSession is returned by operations that need an established session.
	ErrNoSession = errors.New("no active session")
	// ErrSessionChanged is returned when a reply belongs to a session that
	// has since been replaced or cleared.
	ErrSessionChanged = errors.New("session replaced while request was in flight")
)

// Authenticator verifies credentials against the backend login operation.
type Authenticator interface {
	Login(ctx context.Context, creds models.Credentials) (models.Session, error)
}

// Store owns the current Session. Reads are lock-protected memory reads;
// writers are serialized and persist before publishing.
type Store struct {
	mu         sync.RWMutex
	current    *models.Session
	generation uint64

	writeMu  sync.Mutex
	attempts atomic.Uint64

	records storage.SessionRecords
	sealer  *auth.Sealer
	key     string
	logger  *zap.Logger
	now     func() time.Time
}

// NewStore builds an empty store for deployment. Call Restore before serving.
func NewStore(records storage.SessionRecords, sealer *auth.Sealer, deployment string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		records: records,
		sealer:  sealer,
		key:     storage.SessionKey(deployment),
		logger:  logger.Named("session"),
		now:     time.Now,
	}
}

// Restore loads the durable session, if any. Records that fail verification
// or have expired are removed and the store starts unauthenticated.
func (s *Store) Restore(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sealed, err := s.records.Load(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	sess, err := s.sealer.Open(sealed)
	if err != nil {
		s.logger.Warn("discarding persisted session", zap.Error(err))
		if delErr := s.records.Delete(ctx, s.key); delErr != nil {
			s.logger.Error("delete unusable session record", zap.Error(delErr))
		}
		return nil
	}
	s.publish(&sess, true)
	s.logger.Info("session restored", zap.String("identity", sess.Identity), zap.String("tenant", sess.TenantID))
	return nil
}

// Current returns a copy of the active session. It never performs I/O.
func (s *Store) Current() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Session{}, false
	}
	return *s.current, true
}

// Snapshot is Current plus the generation the session belongs to.
func (s *Store) Snapshot() (models.Session, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return models.Session{}, s.generation, false
	}
	return *s.current, s.generation, true
}

// Establish logs in through authn and, on success, persists and publishes
// the returned session. Nothing is stored when login fails, when persisting
// fails, or when a newer attempt started while this one was in flight.
func (s *Store) Establish(ctx context.Context, authn Authenticator, creds models.Credentials) (models.Session, error) {
	creds.Identity = strings.TrimSpace(creds.Identity)
	creds.Secondary = strings.TrimSpace(creds.Secondary)
	attempt := s.attempts.Add(1)

	sess, err := authn.Login(ctx, creds)
	if err != nil {
		if _, classified := apperr.KindOf(err); !classified {
			err = apperr.Wrap(apperr.KindAuth, "login", err)
		}
		s.logger.Info("login failed", zap.Uint64("attempt", attempt), zap.Error(err))
		return models.Session{}, err
	}
	if sess.Identity == "" {
		sess.Identity = creds.Identity
	}
	if sess.IssuedAt.IsZero() {
		sess.IssuedAt = s.now().UTC()
	}

	sealed, err := s.sealer.Seal(sess)
	if err != nil {
		return models.Session{}, fmt.Errorf("seal session: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if attempt != s.attempts.Load() {
		s.logger.Info("discarding stale login response", zap.Uint64("attempt", attempt))
		return models.Session{}, ErrStaleLogin
	}
	if err := s.records.Save(ctx, s.key, sealed); err != nil {
		return models.Session{}, fmt.Errorf("persist session: %w", err)
	}
	s.publish(&sess, true)
	s.logger.Info("session established",
		zap.String("identity", sess.Identity),
		zap.String("tenant", sess.TenantID),
		zap.String("role", string(sess.Role)),
	)
	return sess, nil
}

// ApplyProfile replaces the session of generation gen with a copy that
// merges a server-sent profile, and persists it. A profile fetched for a
// session that is no longer current is dropped with ErrSessionChanged.
func (s *Store) ApplyProfile(ctx context.Context, gen uint64, p models.Profile) (models.Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur, curGen, ok := s.Snapshot()
	if !ok {
		return models.Session{}, ErrNoSession
	}
	if curGen != gen {
		s.logger.Info("discarding profile for replaced session", zap.Uint64("generation", gen))
		return models.Session{}, ErrSessionChanged
	}
	next := cur.WithProfile(p)
	sealed, err := s.sealer.Seal(next)
	if err != nil {
		return models.Session{}, fmt.Errorf("seal session: %w", err)
	}
	if err := s.records.Save(ctx, s.key, sealed); err != nil {
		return models.Session{}, fmt.Errorf("persist session: %w", err)
	}
	s.publish(&next, false)
	return next, nil
}

// Clear logs out. It is idempotent and also invalidates any login still in
// flight. Memory is always cleared; a durable delete failure is returned.
func (s *Store) Clear(ctx context.Context) error {
	s.attempts.Add(1)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.clearLocked(ctx)
}

// ClearGeneration logs out only if the session of generation gen is still
// current. It reports whether anything was cleared. Logins in flight are
// left alone.
func (s *Store) ClearGeneration(ctx context.Context, gen uint64) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, curGen, ok := s.Snapshot(); !ok || curGen != gen {
		return false, nil
	}
	return true, s.clearLocked(ctx)
}

func (s *Store) clearLocked(ctx context.Context) error {
	s.publish(nil, true)
	if err := s.records.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("session cleared")
	return nil
}

func (s *Store) publish(sess *models.Session, next bool) {
	s.mu.Lock()
	s.current = sess
	if next {
		s.generation++
	}
	s.mu.Unlock()
}
