package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/rbac"
)

// Store is what the manager needs from the exam store.
type Store interface {
	ExamSource
	Recorder
}

type entry struct {
	owner   string
	eng     *Engine
	cancel  context.CancelFunc
	retired bool
}

// Manager owns live sessions and drives their countdowns.
type Manager struct {
	store     Store
	log       *zap.Logger
	retention time.Duration
	tick      time.Duration

	base   context.Context
	stop   context.CancelFunc
	mu     sync.Mutex
	byID   map[string]*entry
	wg     sync.WaitGroup
	newEng func(rbac.Viewer) *Engine
}

func NewManager(store Store, log *zap.Logger, retention time.Duration) *Manager {
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		store:     store,
		log:       log,
		retention: retention,
		tick:      time.Second,
		base:      base,
		stop:      stop,
		byID:      map[string]*entry{},
		newEng:    NewEngine,
	}
}

// Start loads the exam for v and starts its countdown. The runner outlives
// ctx; it ends on Abandon, on submission, at zero or on Close.
func (m *Manager) Start(ctx context.Context, v rbac.Viewer, examID string) (string, View, error) {
	if !v.Authenticated() {
		return "", View{}, rbac.ErrUnauthenticated
	}
	eng := m.newEng(v)
	if err := eng.Load(ctx, m.store, examID); err != nil {
		return "", View{}, err
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(m.base)
	m.mu.Lock()
	m.byID[id] = &entry{owner: v.ID, eng: eng, cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx, id, eng)

	m.log.Info("session started",
		zap.String("session_id", id), zap.String("exam_id", examID), zap.String("user_id", v.ID))
	return id, eng.Snapshot(), nil
}

// Get returns the engine only to the viewer that started it.
func (m *Manager) Get(v rbac.Viewer, id string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok || !rbac.OwnsRow(v, e.owner) {
		return nil, ErrSessionNotFound
	}
	return e.eng, nil
}

// Submit submits the session on behalf of its owner.
func (m *Manager) Submit(ctx context.Context, v rbac.Viewer, id string) (string, error) {
	eng, err := m.Get(v, id)
	if err != nil {
		return "", err
	}
	attemptID, err := eng.Submit(ctx, m.store)
	if err != nil {
		return "", err
	}
	m.retire(id)
	return attemptID, nil
}

// Abandon stops the countdown and forgets the session. Nothing is recorded.
func (m *Manager) Abandon(v rbac.Viewer, id string) error {
	m.mu.Lock()
	e, ok := m.byID[id]
	if !ok || !rbac.OwnsRow(v, e.owner) {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(m.byID, id)
	m.mu.Unlock()
	e.cancel()
	m.log.Info("session abandoned", zap.String("session_id", id))
	return nil
}

// Len reports the number of sessions held, submitted ones included.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Close stops every runner and waits for them to exit.
func (m *Manager) Close() {
	m.stop()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, id string, eng *Engine) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-eng.Done():
			return
		case <-ticker.C:
			if !eng.Tick() {
				continue
			}
			attemptID, err := eng.Submit(ctx, m.store)
			if err != nil {
				if errors.Is(err, ErrSubmissionInFlight) {
					return
				}
				// the clock is spent; only a manual retry remains within the window
				m.log.Warn("auto-submit failed", zap.String("session_id", id), zap.Error(err))
				m.retire(id)
				return
			}
			m.log.Info("session auto-submitted", zap.String("session_id", id), zap.String("attempt_id", attemptID))
			m.retire(id)
			return
		}
	}
}

// retire schedules removal of a finished session, submitted or timed out
// with a failed submission, after the retention window.
func (m *Manager) retire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok || e.retired {
		return
	}
	e.retired = true
	e.cancel()
	time.AfterFunc(m.retention, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if cur, ok := m.byID[id]; ok && cur == e {
			delete(m.byID, id)
		}
	})
}
