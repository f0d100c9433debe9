package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetview/internal/export"
	"github.com/JonMunkholm/sheetview/internal/format"
	"github.com/JonMunkholm/sheetview/internal/logging"
	"github.com/JonMunkholm/sheetview/internal/sheet"
	"github.com/JonMunkholm/sheetview/internal/store"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions is returned by CreateSession at the session cap.
	ErrTooManySessions = errors.New("too many sessions")

	// ErrFileTooLarge is returned when an upload exceeds Options.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when a load has no file name.
	ErrNoFile = errors.New("no file provided")
)

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	MaxFileSize        int64         // bytes per upload (default 50MB)
	LoadTimeout        time.Duration // per decode (default 2m)
	MaxConcurrentLoads int
	MaxLoadWait        time.Duration
	SessionTTL         time.Duration // idle time before eviction (default 24h)
	MaxSessions        int           // 0 means unlimited
	LegacyCSV          bool          // use the line-splitting CSV reader
}

const (
	DefaultMaxFileSize = 50 << 20
	DefaultLoadTimeout = 2 * time.Minute
	DefaultSessionTTL  = 24 * time.Hour
)

func (o *Options) setDefaults() {
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = DefaultMaxFileSize
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}
}

// Service owns every viewer session. Each session holds one table; loads,
// edits, filters and exports go through here.
type Service struct {
	store   store.Store
	limiter *LoadLimiter
	opts    Options
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

// session is one user's table and filter.
//
// saveMu serialises writers from snapshot to store. mu guards every field
// below it. A live table is never mutated in place; edits replace it with a
// changed copy.
type session struct {
	id string

	saveMu sync.Mutex

	mu      sync.RWMutex
	state   sessionState
	created time.Time
	touched time.Time
}

// sessionState is the part of a session that is persisted.
type sessionState struct {
	table    *sheet.Table
	fileName string
	filter   string
	edited   bool
}

// NewService returns a Service persisting to st. A nil store keeps
// sessions in memory only.
func NewService(st store.Store, opts Options) *Service {
	opts.setDefaults()
	if st == nil {
		st = store.NewMemory()
	}
	return &Service{
		store:    st,
		limiter:  NewLoadLimiter(opts.MaxConcurrentLoads, opts.MaxLoadWait),
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Limiter exposes the decode limiter for health reporting and shutdown.
func (s *Service) Limiter() *LoadLimiter {
	return s.limiter
}

// MaxFileSize is the configured upload cap in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.opts.MaxFileSize
}

// SessionCount is the number of sessions held in memory.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CreateSession starts an empty session and returns its id.
func (s *Service) CreateSession(ctx context.Context) (string, error) {
	now := s.now()
	sess := &session{
		id:      uuid.NewString(),
		created: now,
		touched: now,
	}

	s.mu.Lock()
	if s.opts.MaxSessions > 0 && len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		return "", ErrTooManySessions
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if err := s.persist(ctx, sess); err != nil {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		return "", err
	}

	logging.WithFields(ctx, "session_id", sess.id).Info("session created")
	return sess.id, nil
}

// lookup returns the live session for id, restoring it from the store if
// this process has not seen it yet.
func (s *Service) lookup(ctx context.Context, id string) (*session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	rec, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}

	restored := &session{
		id: rec.ID,
		state: sessionState{
			fileName: rec.FileName,
			filter:   rec.Filter,
			edited:   rec.Edited,
		},
		created: rec.CreatedAt,
		touched: s.now(),
	}
	if rec.Rows != nil {
		restored.state.table = sheet.New(rec.Rows)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	s.sessions[id] = restored
	logging.WithFields(ctx, "session_id", id).Debug("session restored")
	return restored, nil
}

// record builds the store record for one session state.
func record(id string, st sessionState, created, updated time.Time) store.Record {
	r := store.Record{
		ID:        id,
		FileName:  st.fileName,
		Filter:    st.filter,
		Edited:    st.edited,
		CreatedAt: created,
		UpdatedAt: updated,
	}
	if st.table != nil {
		r.Rows = st.table.Rows()
	}
	return r
}

func (s *Service) persist(ctx context.Context, sess *session) error {
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	sess.mu.RLock()
	rec := record(sess.id, sess.state, sess.created, sess.touched)
	sess.mu.RUnlock()

	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// commit applies change to a copy of the session state, saves the result and
// only then makes it live. If change or the save fails the session is left
// as it was. Commits on one session run one at a time, so the store always
// ends up with the latest state.
func (s *Service) commit(ctx context.Context, sess *session, change func(*sessionState) error) (sessionState, error) {
	sess.saveMu.Lock()
	defer sess.saveMu.Unlock()

	sess.mu.RLock()
	next := sess.state
	created := sess.created
	sess.mu.RUnlock()

	if err := change(&next); err != nil {
		return sessionState{}, err
	}

	now := s.now()
	if err := s.store.Save(ctx, record(sess.id, next, created, now)); err != nil {
		return sessionState{}, fmt.Errorf("persist session: %w", err)
	}

	sess.mu.Lock()
	sess.state = next
	sess.touched = now
	sess.mu.Unlock()
	return next, nil
}

// LoadResult describes a successful load.
type LoadResult struct {
	FileName string      `json:"file_name"`
	Kind     format.Kind `json:"kind"`
	Rows     int         `json:"rows"`
	Columns  int         `json:"columns"`
	Notice   string      `json:"notice"`
}

// Load decodes r as the file name and replaces the session's table.
//
// Decoding runs outside the session lock, bounded by the load limiter; the
// finished table is swapped in under the lock. If two loads race, the one
// that finishes last wins. On any error the previous table is kept.
func (s *Service) Load(ctx context.Context, id, name string, r io.Reader) (*LoadResult, error) {
	if name == "" {
		return nil, ErrNoFile
	}
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	// Fail fast on the extension before taking a decode slot.
	if _, err := format.Detect(name); err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	data, err := readLimited(ctx, r, s.opts.MaxFileSize)
	if err != nil {
		return nil, err
	}

	var csvOpts []format.CSVOption
	if s.opts.LegacyCSV {
		csvOpts = append(csvOpts, format.LegacyCSV())
	}

	start := s.now()
	table, kind, err := format.Load(name, bytes.NewReader(data), csvOpts...)
	if err != nil {
		logging.WithFields(ctx, "session_id", id, "file", name).Warn("load failed", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, err = s.commit(ctx, sess, func(st *sessionState) error {
		st.table = table
		st.fileName = name
		st.edited = false
		return nil
	})
	if err != nil {
		logging.WithFields(ctx, "session_id", id, "file", name).Error("load not saved", "error", err)
		return nil, err
	}

	logging.WithFields(ctx, "session_id", id).Info("file loaded",
		"file", name,
		"kind", kind,
		"rows", table.Len(),
		"bytes", len(data),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)

	return &LoadResult{
		FileName: name,
		Kind:     kind,
		Rows:     table.Len(),
		Columns:  table.Width(),
		Notice:   LoadedNotice(kind),
	}, nil
}

// ViewResult is what a client renders.
type ViewResult struct {
	FileName string
	Filter   string
	Rows     []sheet.ViewRow // nil before the first load
}

// View returns the session's current filtered view.
func (s *Service) View(ctx context.Context, id string) (*ViewResult, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	st := sess.state
	sess.touched = s.now()
	sess.mu.Unlock()

	return &ViewResult{
		FileName: st.fileName,
		Filter:   st.filter,
		Rows:     sheet.View(st.table, st.filter),
	}, nil
}

// SetFilter stores a new search term and returns the resulting view.
// The term is lowercased; the table is not touched.
func (s *Service) SetFilter(ctx context.Context, id, term string) (*ViewResult, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	st, err := s.commit(ctx, sess, func(st *sessionState) error {
		st.filter = sheet.NormalizeTerm(term)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ViewResult{
		FileName: st.fileName,
		Filter:   st.filter,
		Rows:     sheet.View(st.table, st.filter),
	}, nil
}

// EditResult reports the outcome of a cell edit.
type EditResult struct {
	FirstEdit bool   `json:"first_edit"`
	Notice    string `json:"notice,omitempty"`
}

// Edit sets the cell at (row, col) of the stored table. row is the stored
// row index (ViewRow.Index), not the position in a filtered view. Only the
// first edit of a loaded table carries a notice.
func (s *Service) Edit(ctx context.Context, id string, row, col int, value string) (*EditResult, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	var first bool
	_, err = s.commit(ctx, sess, func(st *sessionState) error {
		if st.table == nil {
			return fmt.Errorf("%w: no table loaded", sheet.ErrCellOutOfRange)
		}
		table := st.table.Clone()
		if err := table.Set(row, col, value); err != nil {
			return err
		}
		first = !st.edited
		st.table = table
		st.edited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &EditResult{FirstEdit: first}
	if first {
		res.Notice = NoticeCellUpdated
	}
	return res, nil
}

// Export renders the session's table. Live tables are never mutated, so the
// table taken under the session lock is rendered outside it.
func (s *Service) Export(ctx context.Context, id string, f export.Format) (*export.Artifact, error) {
	sess, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	snapshot := sess.state.table
	term := sess.state.filter
	sess.touched = s.now()
	sess.mu.Unlock()

	art, err := export.Render(ctx, f, snapshot, term)
	if err != nil {
		return nil, err
	}
	logging.WithFields(ctx, "session_id", id).Info("table exported",
		"format", f,
		"bytes", len(art.Body),
	)
	return art, nil
}

// Delete drops a session from memory and the store.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	return s.store.Delete(ctx, id)
}
