package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/rbac"
)

func newTestManager(t *testing.T, store *fakeStore, retention time.Duration) *Manager {
	t.Helper()
	m := NewManager(store, zap.NewNop(), retention)
	m.tick = time.Millisecond
	t.Cleanup(m.Close)
	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestManagerOwnerOnly(t *testing.T) {
	m := newTestManager(t, newFakeStore(threeQuestions()), time.Minute)
	ctx := context.Background()
	id, view, err := m.Start(ctx, student, "exam-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Status != StatusInProgress {
		t.Errorf("status = %s", view.Status)
	}
	intruder := rbac.Viewer{ID: "student-2", Role: rbac.RoleStudent}
	if _, err := m.Get(intruder, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("get by other: %v", err)
	}
	if err := m.Abandon(intruder, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("abandon by other: %v", err)
	}
	if _, err := m.Get(student, id); err != nil {
		t.Errorf("get by owner: %v", err)
	}
}

func TestManagerStartRequiresViewer(t *testing.T) {
	m := newTestManager(t, newFakeStore(threeQuestions()), time.Minute)
	if _, _, err := m.Start(context.Background(), rbac.Viewer{}, "exam-1"); !errors.Is(err, rbac.ErrUnauthenticated) {
		t.Errorf("err = %v", err)
	}
	if _, _, err := m.Start(context.Background(), student, "missing"); !errors.Is(err, exam.ErrExamNotFound) {
		t.Errorf("err = %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("sessions = %d", m.Len())
	}
}

func TestManagerAutoSubmitsAtZero(t *testing.T) {
	store := newFakeStore(threeQuestions())
	m := newTestManager(t, store, time.Minute)
	id, _, err := m.Start(context.Background(), student, "exam-1")
	if err != nil {
		t.Fatal(err)
	}
	eng, _ := m.Get(student, id)
	if err := eng.Select("q3", exam.OptionD); err != nil {
		t.Fatal(err)
	}
	select {
	case <-eng.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("not auto-submitted")
	}
	recs := store.recorded()
	if len(recs) != 1 || recs[0].CorrectAnswers != 1 {
		t.Fatalf("records = %+v", recs)
	}
	if v := eng.Snapshot(); v.Status != StatusSubmitted || v.AttemptID != "attempt-1" {
		t.Errorf("view = %+v", v)
	}
	if _, err := m.Get(student, id); err != nil {
		t.Errorf("submitted session should stay readable: %v", err)
	}
}

func TestManagerAbandonStopsCountdown(t *testing.T) {
	store := newFakeStore(threeQuestions())
	m := newTestManager(t, store, time.Minute)
	id, _, err := m.Start(context.Background(), student, "exam-1")
	if err != nil {
		t.Fatal(err)
	}
	eng, _ := m.Get(student, id)
	if err := m.Abandon(student, id); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if n := len(store.recorded()); n != 0 {
		t.Errorf("records = %d after abandon", n)
	}
	if r := eng.Snapshot().RemainingSeconds; r == 0 {
		t.Error("countdown kept running")
	}
	if _, err := m.Get(student, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("get after abandon: %v", err)
	}
}

func TestManagerRetentionDropsSubmitted(t *testing.T) {
	store := newFakeStore(threeQuestions())
	m := newTestManager(t, store, 10*time.Millisecond)
	id, _, err := m.Start(context.Background(), student, "exam-1")
	if err != nil {
		t.Fatal(err)
	}
	attemptID, err := m.Submit(context.Background(), student, id)
	if err != nil || attemptID != "attempt-1" {
		t.Fatalf("submit = %q, %v", attemptID, err)
	}
	waitFor(t, func() bool { return m.Len() == 0 })
}

func TestManagerAutoSubmitFailureLeavesRetry(t *testing.T) {
	store := newFakeStore(threeQuestions())
	store.fail = errors.New("db down")
	m := newTestManager(t, store, time.Minute)
	id, _, err := m.Start(context.Background(), student, "exam-1")
	if err != nil {
		t.Fatal(err)
	}
	eng, _ := m.Get(student, id)
	waitFor(t, func() bool { return eng.Status() == StatusFailed })

	store.mu.Lock()
	store.fail = nil
	store.mu.Unlock()
	if _, err := m.Submit(context.Background(), student, id); err != nil {
		t.Fatalf("manual retry: %v", err)
	}
	if n := len(store.recorded()); n != 1 {
		t.Errorf("records = %d", n)
	}
}

func TestManagerReleasesTimedOutFailedSession(t *testing.T) {
	store := newFakeStore(threeQuestions())
	store.fail = errors.New("db down")
	m := newTestManager(t, store, 10*time.Millisecond)
	id, _, err := m.Start(context.Background(), student, "exam-1")
	if err != nil {
		t.Fatal(err)
	}
	eng, _ := m.Get(student, id)
	waitFor(t, func() bool { return eng.Status() == StatusFailed })
	waitFor(t, func() bool { return m.Len() == 0 })
	if _, err := m.Get(student, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("get after release: %v", err)
	}
}
