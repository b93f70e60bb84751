// Package filestore implements a durable sessions.Repo: an in-memory
// map recovered from one JSON file per session at Open, with every
// mutation written back (temp file then rename) before it is
// acknowledged.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gatekeeper-id/gatekeeper/sessions"
)

const saveFileExt = ".json"

// Store is a file-backed session store. Safe for concurrent use;
// mutations on the same session id are mutually exclusive.
type Store struct {
	dir     string
	ttl     time.Duration
	flow    sessions.Flow
	nowTime sessions.Clock
	sweep   time.Duration

	mu    sync.RWMutex
	live  map[string]*sessions.Session
	locks map[string]*sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the session time-to-live applied at Create and Touch.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithNowTime sets the time source (primarily for testing).
func WithNowTime(now sessions.Clock) Option {
	return func(s *Store) { s.nowTime = now }
}

// WithSweepInterval sets the period of the background expiry sweep.
// Zero disables the sweeper; expired sessions are then purged lazily
// on access only.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Store) { s.sweep = interval }
}

// Open recovers every non-expired persisted session from dir and
// starts the expiry sweeper. It must complete before the service
// accepts traffic.
func Open(dir string, flow sessions.Flow, options ...Option) (*Store, error) {
	if err := flow.Validate(); err != nil {
		return nil, fmt.Errorf("[filestore.Open] invalid flow: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[filestore.Open] create session dir: %w", err)
	}

	s := &Store{
		dir:     dir,
		ttl:     time.Hour,
		flow:    flow,
		nowTime: time.Now,
		sweep:   5 * time.Minute,
		live:    make(map[string]*sessions.Session),
		locks:   make(map[string]*sync.Mutex),
		done:    make(chan struct{}),
	}
	for _, opt := range options {
		opt(s)
	}

	if err := s.recover(); err != nil {
		return nil, fmt.Errorf("[filestore.Open] recover sessions: %w", err)
	}

	if s.sweep > 0 {
		s.wg.Add(1)
		go s.sweepLoop()
	}
	return s, nil
}

// recover loads session save files eagerly. Unparsable files are
// skipped with a warning; when two files claim the same id the newer
// file by modification time wins.
func (s *Store) recover() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read session dir: %w", err)
	}

	now := s.nowTime()
	mtimes := make(map[string]time.Time)
	loaded, skipped, expired := 0, 0, 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, saveFileExt) {
			continue // .tmp leftovers from a crash mid-write are ignored
		}
		path := filepath.Join(s.dir, name)

		raw, err := os.ReadFile(path)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping unreadable session file")
			skipped++
			continue
		}
		var sess sessions.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping corrupt session file")
			skipped++
			continue
		}
		if sess.ID == "" {
			log.Warn().Str("file", name).Msg("skipping session file without an id")
			skipped++
			continue
		}
		if sess.Expired(now) {
			_ = os.Remove(path)
			expired++
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("skipping session file without metadata")
			skipped++
			continue
		}
		if prev, ok := mtimes[sess.ID]; ok {
			if !info.ModTime().After(prev) {
				log.Warn().Str("session_id", sess.ID).Str("file", name).Msg("ignoring older duplicate session file")
				continue
			}
			log.Warn().Str("session_id", sess.ID).Str("file", name).Msg("duplicate session file, keeping newer")
		}
		mtimes[sess.ID] = info.ModTime()
		s.live[sess.ID] = &sess
		loaded++
	}

	log.Info().Int("loaded", loaded).Int("skipped", skipped).Int("expired", expired).
		Str("dir", s.dir).Msg("session recovery complete")
	return nil
}

// Close stops the sweeper and flushes every live session to disk.
func (s *Store) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()

	s.mu.RLock()
	defer s.mu.RUnlock()
	var firstErr error
	for _, sess := range s.live {
		if err := s.persist(sess); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Create allocates a new unauthenticated session and persists it.
func (s *Store) Create(ctx context.Context) (*sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.nowTime()
	sess := &sessions.Session{
		ID:        uuid.NewString(),
		State:     sessions.StateUnauthenticated,
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.persist(sess); err != nil {
		return nil, fmt.Errorf("[filestore.Create] persist: %w", err)
	}

	s.mu.Lock()
	s.live[sess.ID] = sess
	s.mu.Unlock()
	return sess.Clone(), nil
}

// Get returns the current record, purging it when expired.
func (s *Store) Get(ctx context.Context, id string) (*sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	sess, ok := s.live[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sessions.ErrNotFound
	}
	if sess.Expired(s.nowTime()) {
		s.purgeExpired(id)
		return nil, sessions.ErrNotFound
	}
	return sess.Clone(), nil
}

// AppendStep appends a verification attempt under the session's lock,
// recomputes the state tag, and persists before acknowledging.
func (s *Store) AppendStep(ctx context.Context, id string, record sessions.StepRecord, userID string) (*sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.current(id)
	if err != nil {
		return nil, err
	}
	if cur.State.Terminal() {
		return nil, sessions.ErrTerminal
	}
	next, ok := s.flow.NextKind(cur.Steps)
	if !ok || record.Kind != next {
		return nil, sessions.ErrStepOrder
	}

	updated := cur.Clone()
	updated.Steps = append(updated.Steps, record)
	updated.State = s.flow.DeriveState(updated.Steps)
	updated.LastSeen = s.nowTime()
	if userID != "" {
		updated.UserID = userID
	}

	if err := s.persist(updated); err != nil {
		return nil, fmt.Errorf("[filestore.AppendStep] persist: %w", err)
	}
	s.mu.Lock()
	s.live[id] = updated
	s.mu.Unlock()
	return updated.Clone(), nil
}

// Touch refreshes the last-activity and expiry timestamps.
func (s *Store) Touch(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	cur, err := s.current(id)
	if err != nil {
		return err
	}
	updated := cur.Clone()
	now := s.nowTime()
	updated.LastSeen = now
	updated.ExpiresAt = now.Add(s.ttl)

	if err := s.persist(updated); err != nil {
		return fmt.Errorf("[filestore.Touch] persist: %w", err)
	}
	s.mu.Lock()
	s.live[id] = updated
	s.mu.Unlock()
	return nil
}

// Delete removes a session and its save file.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	s.purge(id)
	return nil
}

// current returns the live record for a held per-id lock, treating
// expired records as absent.
func (s *Store) current(id string) (*sessions.Session, error) {
	s.mu.RLock()
	sess, ok := s.live[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sessions.ErrNotFound
	}
	if sess.Expired(s.nowTime()) {
		s.purge(id)
		return nil, sessions.ErrNotFound
	}
	return sess, nil
}

func (s *Store) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// purge removes the record, its save file and its lock entry. Callers
// must hold the per-id lock.
func (s *Store) purge(id string) {
	s.mu.Lock()
	delete(s.live, id)
	delete(s.locks, id)
	s.mu.Unlock()
	_ = os.Remove(s.savePath(id))
}

// purgeExpired takes the per-id lock and re-checks expiry before
// purging, so it never discards a record a concurrent Touch or
// AppendStep just refreshed.
func (s *Store) purgeExpired(id string) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	sess, ok := s.live[id]
	s.mu.RUnlock()
	if ok && sess.Expired(s.nowTime()) {
		s.purge(id)
	}
}

func (s *Store) savePath(id string) string {
	return filepath.Join(s.dir, id+saveFileExt)
}

// persist writes the record to a temp file and renames it into place,
// so a crash mid-write never leaves a readable partial record.
func (s *Store) persist(sess *sessions.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	path := s.savePath(sess.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

func (s *Store) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store) sweepExpired() {
	now := s.nowTime()
	s.mu.RLock()
	var stale []string
	for id, sess := range s.live {
		if sess.Expired(now) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range stale {
		s.purgeExpired(id)
	}
	if len(stale) > 0 {
		log.Debug().Int("purged", len(stale)).Msg("session sweep removed expired sessions")
	}
}

var _ sessions.Repo = (*Store)(nil)
