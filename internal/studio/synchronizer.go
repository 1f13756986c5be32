package studio

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"uistudio/internal/model"
)

// Store is the remote persistence collaborator.
type Store interface {
	ListSessions(ctx context.Context) ([]model.Session, error)
	GetSession(ctx context.Context, id uint) (*model.Session, error)
	CreateSession(ctx context.Context, name string) (*model.Session, error)
	UpdateSession(ctx context.Context, id uint, patch model.SessionPatch) (*model.Session, error)
	DeleteSession(ctx context.Context, id uint) error
}

type Options struct {
	// DisableAutoSave turns off background persistence of local mutations.
	DisableAutoSave bool
	DebounceWindow  time.Duration
	RequestTimeout  time.Duration
	RetryInitial    time.Duration
	RetryMax        time.Duration
	Logger          *zap.Logger
}

const (
	DefaultDebounceWindow = time.Second
	DefaultRequestTimeout = 10 * time.Second
	defaultRetryInitial   = 500 * time.Millisecond
	defaultRetryMax       = 30 * time.Second
)

type field uint8

const (
	fieldName field = 1 << iota
	fieldChat
	fieldCode
	fieldUI
)

// Synchronizer owns the current session and the session list. Local
// mutations apply immediately under the state mutex; remote writes are
// serialized and reconciled by revision so a late response never overwrites
// a newer local edit.
type Synchronizer struct {
	store Store
	opts  Options
	log   *zap.Logger

	mu       sync.Mutex
	current  *model.Session
	sessions []model.Session
	loading  int
	lastErr  string
	autoSave bool
	revision uint64
	dirty    field
	inflight field
	unsaved  bool
	timer    *time.Timer
	retry    *backoff.ExponentialBackOff
	closed   bool

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func NewSynchronizer(store Store, opts Options) *Synchronizer {
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = defaultRetryInitial
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = defaultRetryMax
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = opts.RetryInitial
	retry.MaxInterval = opts.RetryMax
	retry.Reset()

	return &Synchronizer{
		store:    store,
		opts:     opts,
		log:      log.Named("synchronizer"),
		sessions: []model.Session{},
		autoSave: !opts.DisableAutoSave,
		retry:    retry,
	}
}

// ListSessions replaces the local list with the server's. The current
// session is not touched.
func (s *Synchronizer) ListSessions(ctx context.Context) error {
	s.begin()
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	list, err := s.store.ListSessions(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		return s.failLocked("list sessions failed", err)
	}
	s.sessions = cloneSessions(list)
	return nil
}

// CreateSession creates a session remotely and makes it current. Pending
// writes of the previous current session are flushed first; if that fails
// nothing is created and the previous session stays current.
func (s *Synchronizer) CreateSession(ctx context.Context, name string) (*model.Session, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		s.mu.Lock()
		s.lastErr = err.Message
		s.mu.Unlock()
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.flushBeforeSwitch(ctx); err != nil {
		return nil, err
	}

	s.begin()
	reqCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	created, err := s.store.CreateSession(reqCtx, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		return nil, s.failLocked("create session failed", err)
	}

	created.Normalize()
	s.replaceCurrentLocked(created)
	s.sessions = append(s.sessions, created.Clone())
	out := created.Clone()
	return &out, nil
}

// SelectSession fetches the session and makes the server copy current.
// Unsaved local changes to that session are discarded. When switching from
// another session its pending writes are flushed first; if that fails the
// error is returned and the previous session stays current.
func (s *Synchronizer) SelectSession(ctx context.Context, id uint) (*model.Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	switching := s.current != nil && s.current.ID != id
	s.mu.Unlock()
	if switching {
		if err := s.flushBeforeSwitch(ctx); err != nil {
			return nil, err
		}
	}

	s.begin()
	reqCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	fetched, err := s.store.GetSession(reqCtx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		return nil, s.failLocked("select session failed", err)
	}

	fetched.Normalize()
	if s.current != nil && s.current.ID == id && (s.dirty|s.inflight) != 0 {
		s.log.Info("discarding unsaved local changes", zap.Uint("session_id", id))
	}
	s.replaceCurrentLocked(fetched)
	s.upsertLocked(*fetched)
	out := fetched.Clone()
	return &out, nil
}

// Persist writes the patch to the server and adopts the returned record.
// A zero id is a no-op.
func (s *Synchronizer) Persist(ctx context.Context, id uint, patch model.SessionPatch) error {
	if id == 0 {
		s.log.Warn("persist skipped: no session id")
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.begin()
	s.mu.Lock()
	rev := s.revision
	s.mu.Unlock()

	updated, err := s.update(ctx, id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		return s.failLocked("persist session failed", err)
	}
	if s.current != nil && s.current.ID == id && s.revision == rev {
		s.dirty &^= patchFields(patch)
	}
	s.applyLocked(updated, rev)
	return nil
}

// SoftDelete deletes the session remotely, drops it from the list and
// clears current if it was the deleted one.
func (s *Synchronizer) SoftDelete(ctx context.Context, id uint) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.begin()
	reqCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.store.DeleteSession(reqCtx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		return s.failLocked("delete session failed", err)
	}

	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	if s.current != nil && s.current.ID == id {
		s.current = nil
		s.resetPendingLocked()
	}
	return nil
}

// MutateCode replaces the current artifact and, with auto-save on, persists
// it immediately in the background.
func (s *Synchronizer) MutateCode(code model.GeneratedCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return NewError(ErrNoSession, 0, "", nil)
	}

	code = code.Clone()
	if code.ComponentName == "" {
		code.ComponentName = model.DefaultComponentName
	}
	if code.Dependencies == nil {
		code.Dependencies = []string{}
	}
	now := time.Now()
	if code.LastUpdated.IsZero() {
		code.LastUpdated = now
	}
	s.current.GeneratedCode = code
	s.touchLocked(fieldCode, now)

	if s.autoSave && s.current.ID != 0 {
		s.goFlushLocked()
	}
	return nil
}

// AppendChatMessage appends msg to the current session. A message whose id
// is already present is ignored. The returned message carries the assigned
// id and timestamp.
func (s *Synchronizer) AppendChatMessage(msg model.ChatMessage) (model.ChatMessage, bool) {
	if msg.ID == "" {
		msg.ID = model.NewMessageID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.HasMessage(msg.ID) {
		return msg, false
	}

	s.current.ChatHistory = append(s.current.ChatHistory, msg.Clone())
	s.touchLocked(fieldChat, time.Now())
	if s.autoSave && s.current.ID != 0 {
		s.armLocked(s.opts.DebounceWindow)
	}
	return msg, true
}

// PatchUIState merges patch into the current UI state and schedules a
// debounced persist.
func (s *Synchronizer) PatchUIState(patch model.UIStatePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return NewError(ErrNoSession, 0, "", nil)
	}

	s.current.UIState = patch.MergeInto(s.current.UIState)
	s.touchLocked(fieldUI, time.Now())
	if s.autoSave && s.current.ID != 0 {
		s.armLocked(s.opts.DebounceWindow)
	}
	return nil
}

// Rename changes the current session's name and persists it with the next
// debounced write.
func (s *Synchronizer) Rename(name string) error {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return NewError(ErrNoSession, 0, "", nil)
	}
	s.current.Name = name
	s.touchLocked(fieldName, time.Now())
	if s.autoSave && s.current.ID != 0 {
		s.armLocked(s.opts.DebounceWindow)
	}
	return nil
}

// Flush cancels the debounce timer and writes pending changes now.
func (s *Synchronizer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.flush(ctx)
}

// Close stops background activity and performs a final flush.
func (s *Synchronizer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return s.flush(ctx)
}

func (s *Synchronizer) SetAutoSave(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoSave = enabled
	if !enabled {
		if s.timer != nil {
			s.timer.Stop()
		}
		return
	}
	if s.dirty != 0 && s.current != nil && s.current.ID != 0 {
		s.armLocked(s.opts.DebounceWindow)
	}
}

func (s *Synchronizer) AutoSaveEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoSave
}

func (s *Synchronizer) Current() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	out := s.current.Clone()
	return &out
}

func (s *Synchronizer) Sessions() []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSessions(s.sessions)
}

func (s *Synchronizer) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Synchronizer) ClearError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Synchronizer) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// HasUnsavedChanges reports local edits the server has not acknowledged.
func (s *Synchronizer) HasUnsavedChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty != 0 || s.inflight != 0 || s.unsaved
}

func (s *Synchronizer) flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.flushHeld(ctx)
}

// flushHeld writes the dirty fields of the current session, reading their
// live values. writeMu must be held.
func (s *Synchronizer) flushHeld(ctx context.Context) error {
	s.mu.Lock()
	if s.current == nil || s.current.ID == 0 || s.dirty == 0 {
		s.mu.Unlock()
		return nil
	}
	id := s.current.ID
	fields := s.dirty
	patch := buildPatch(s.current, fields)
	rev := s.revision
	s.dirty = 0
	s.inflight = fields
	s.mu.Unlock()

	updated, err := s.update(ctx, id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight = 0
	stillCurrent := s.current != nil && s.current.ID == id

	if err != nil {
		serr := s.failLocked("background persist failed", err)
		if !stillCurrent {
			return serr
		}
		s.unsaved = true
		switch {
		case errors.Is(serr, ErrNotFound):
			// The session is gone; there is nothing left to write to.
		case Retryable(serr):
			s.dirty |= fields
			s.scheduleRetryLocked()
		default:
			s.dirty |= fields
		}
		return serr
	}

	s.retry.Reset()
	if stillCurrent {
		s.unsaved = false
	}
	s.applyLocked(updated, rev)
	return nil
}

// flushBeforeSwitch writes the current session's pending changes before
// another session replaces it. A session that no longer exists on the server
// does not block the switch. writeMu must be held.
func (s *Synchronizer) flushBeforeSwitch(ctx context.Context) error {
	err := s.flushHeld(ctx)
	if err == nil || errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (s *Synchronizer) update(ctx context.Context, id uint, patch model.SessionPatch) (*model.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.UpdateSession(ctx, id, patch)
}

// applyLocked adopts a server record unless a local mutation happened after
// the write was issued. Fields still marked dirty keep their local values.
func (s *Synchronizer) applyLocked(updated *model.Session, rev uint64) {
	if updated == nil {
		return
	}
	updated.Normalize()
	if s.current != nil && s.current.ID == updated.ID {
		if s.revision != rev {
			s.log.Debug("discarding stale persist response",
				zap.Uint("session_id", updated.ID),
				zap.Uint64("issued_revision", rev),
				zap.Uint64("revision", s.revision),
			)
			return
		}
		cp := updated.Clone()
		if s.dirty != 0 {
			buildPatch(s.current, s.dirty).Apply(&cp)
		}
		s.current = &cp
		s.upsertLocked(cp)
		return
	}
	s.upsertLocked(*updated)
}

func (s *Synchronizer) touchLocked(f field, now time.Time) {
	s.current.UpdatedAt = now
	s.revision++
	s.dirty |= f
	s.upsertLocked(*s.current)
}

func (s *Synchronizer) replaceCurrentLocked(sess *model.Session) {
	cp := sess.Clone()
	s.current = &cp
	s.resetPendingLocked()
}

func (s *Synchronizer) resetPendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.revision++
	s.dirty = 0
	s.unsaved = false
	s.retry.Reset()
}

// upsertLocked mirrors sess into the list entry with the same id.
func (s *Synchronizer) upsertLocked(sess model.Session) {
	for i := range s.sessions {
		if s.sessions[i].ID == sess.ID {
			s.sessions[i] = sess.Clone()
			return
		}
	}
	if sess.ID != 0 {
		s.sessions = append(s.sessions, sess.Clone())
	}
}

func (s *Synchronizer) armLocked(d time.Duration) {
	if s.closed {
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(d, s.fire)
		return
	}
	s.timer.Reset(d)
}

func (s *Synchronizer) scheduleRetryLocked() {
	if !s.autoSave {
		return
	}
	d := s.retry.NextBackOff()
	if d < 0 {
		d = s.opts.RetryMax
	}
	s.log.Debug("scheduling persist retry", zap.Duration("after", d))
	s.armLocked(d)
}

func (s *Synchronizer) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	_ = s.flush(context.Background())
}

func (s *Synchronizer) goFlushLocked() {
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.flush(context.Background())
	}()
}

func (s *Synchronizer) begin() {
	s.mu.Lock()
	s.loading++
	s.lastErr = ""
	s.mu.Unlock()
}

func (s *Synchronizer) failLocked(msg string, err error) *Error {
	serr := Classify(err)
	s.log.Warn(msg, zap.Error(err))
	s.lastErr = serr.Message
	return serr
}

func (s *Synchronizer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.RequestTimeout)
}

func buildPatch(sess *model.Session, fields field) model.SessionPatch {
	var patch model.SessionPatch
	if fields&fieldName != 0 {
		name := sess.Name
		patch.Name = &name
	}
	if fields&fieldChat != 0 {
		patch.ChatHistory = sess.Clone().ChatHistory
	}
	if fields&fieldCode != 0 {
		code := sess.GeneratedCode.Clone()
		patch.GeneratedCode = &code
	}
	if fields&fieldUI != 0 {
		ui := sess.UIState.Clone()
		patch.UIState = &ui
	}
	return patch
}

func patchFields(patch model.SessionPatch) field {
	var fields field
	if patch.Name != nil {
		fields |= fieldName
	}
	if patch.ChatHistory != nil {
		fields |= fieldChat
	}
	if patch.GeneratedCode != nil {
		fields |= fieldCode
	}
	if patch.UIState != nil {
		fields |= fieldUI
	}
	return fields
}

func validateName(name string) *Error {
	if name == "" {
		return NewError(ErrValidation, 0, "Session name is required", nil)
	}
	if utf8.RuneCountInString(name) > model.MaxSessionNameLength {
		return NewError(ErrValidation, 0, "Session name must be between 1 and 100 characters", nil)
	}
	return nil
}

func cloneSessions(in []model.Session) []model.Session {
	out := make([]model.Session, len(in))
	for i, sess := range in {
		out[i] = sess.Clone()
		out[i].Normalize()
	}
	return out
}
