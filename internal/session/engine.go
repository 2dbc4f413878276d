package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/grading"
	"github.com/mind-engage/examprep/internal/rbac"
)

type Status string

const (
	StatusLoading    Status = "loading"
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusFailed     Status = "failed"
)

var (
	ErrNotInProgress      = errors.New("session is not in progress")
	ErrInvalidOption      = errors.New("option must be one of A, B, C, D")
	ErrUnknownQuestion    = errors.New("question does not belong to this exam")
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrTimeUp             = errors.New("time is up")
	ErrSessionNotFound    = errors.New("session not found")
)

// ExamSource loads an exam with its ordered questions for a viewer.
type ExamSource interface {
	GetExam(ctx context.Context, v rbac.Viewer, id string) (exam.Exam, error)
}

// Recorder persists a graded attempt and its answer records atomically.
type Recorder interface {
	RecordAttempt(ctx context.Context, v rbac.Viewer, in exam.AttemptInput) (exam.Attempt, error)
}

// Engine is one student's pass through one exam. All methods are safe for
// concurrent use; the countdown runner and HTTP handlers share it.
type Engine struct {
	mu sync.Mutex

	viewer    rbac.Viewer
	exam      exam.Exam
	index     map[string]int
	current   int
	answers   map[string]exam.Option
	remaining int
	startedAt time.Time
	status    Status
	attemptID string
	lastErr   error

	autoRequested bool
	done          chan struct{}
	now           func() time.Time
}

func NewEngine(v rbac.Viewer) *Engine {
	return &Engine{
		viewer:  v,
		status:  StatusLoading,
		answers: map[string]exam.Option{},
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Load fetches the exam and starts the clock. A missing, inactive or empty
// exam leaves the engine in StatusLoading.
func (e *Engine) Load(ctx context.Context, src ExamSource, examID string) error {
	ex, err := src.GetExam(ctx, e.viewer, examID)
	if err != nil {
		return err
	}
	if len(ex.Questions) == 0 {
		return exam.ErrNoQuestions
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusLoading {
		return ErrNotInProgress
	}
	e.exam = ex
	e.index = make(map[string]int, len(ex.Questions))
	for i, q := range ex.Questions {
		e.index[q.ID] = i
	}
	e.current = 0
	e.remaining = ex.DurationMinutes * 60
	e.startedAt = e.now()
	e.status = StatusInProgress
	return nil
}

// Tick takes one second off the clock. It returns true exactly once, on the
// decrement that reaches zero, to request automatic submission.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active() || e.remaining <= 0 {
		return false
	}
	e.remaining--
	if e.remaining == 0 && !e.autoRequested {
		e.autoRequested = true
		return true
	}
	return false
}

// GoTo moves to question i. Out-of-range indexes are ignored.
func (e *Engine) GoTo(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active() || i < 0 || i >= len(e.exam.Questions) {
		return
	}
	e.current = i
}

// Select records or overwrites the answer for a question.
func (e *Engine) Select(questionID string, opt exam.Option) error {
	if !opt.Valid() {
		return ErrInvalidOption
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active() {
		return ErrNotInProgress
	}
	if e.remaining <= 0 {
		return ErrTimeUp
	}
	if _, ok := e.index[questionID]; !ok {
		return ErrUnknownQuestion
	}
	e.answers[questionID] = opt
	return nil
}

// Submit grades the session and records it through rec. It returns the
// attempt id. While a submission is running further calls fail with
// ErrSubmissionInFlight; once submitted they return the same id.
func (e *Engine) Submit(ctx context.Context, rec Recorder) (string, error) {
	e.mu.Lock()
	switch e.status {
	case StatusSubmitted:
		id := e.attemptID
		e.mu.Unlock()
		return id, nil
	case StatusSubmitting:
		e.mu.Unlock()
		return "", ErrSubmissionInFlight
	case StatusLoading:
		e.mu.Unlock()
		return "", ErrNotInProgress
	}
	e.status = StatusSubmitting
	in := e.attemptInput()
	e.mu.Unlock()

	a, err := rec.RecordAttempt(ctx, e.viewer, in)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.status = StatusFailed
		e.lastErr = err
		return "", err
	}
	e.status = StatusSubmitted
	e.attemptID = a.ID
	e.lastErr = nil
	close(e.done)
	return a.ID, nil
}

// attemptInput grades every question in order. Caller holds mu.
func (e *Engine) attemptInput() exam.AttemptInput {
	qs := make([]grading.Q, len(e.exam.Questions))
	selected := make(map[string]string, len(e.answers))
	for i, q := range e.exam.Questions {
		qs[i] = grading.Q{ID: q.ID, CorrectOption: string(q.CorrectOption)}
	}
	for id, opt := range e.answers {
		selected[id] = string(opt)
	}
	out := grading.Grade(qs, selected)

	in := exam.AttemptInput{
		ExamID:           e.exam.ID,
		UserID:           e.viewer.ID,
		TotalQuestions:   out.Total,
		CorrectAnswers:   out.Correct,
		Score:            out.Score,
		TimeTakenSeconds: int(e.now().Sub(e.startedAt) / time.Second),
		Answers:          make([]exam.AnswerInput, len(out.Items)),
	}
	for i, it := range out.Items {
		in.Answers[i] = exam.AnswerInput{QuestionID: it.QuestionID, Selected: exam.Option(it.Selected), IsCorrect: it.IsCorrect}
	}
	return in
}

// active reports whether the student may still interact. A failed
// submission keeps answers and position for a retry.
func (e *Engine) active() bool {
	return e.status == StatusInProgress || e.status == StatusFailed
}

// Done is closed once the attempt has been recorded.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// View is what the student sees. Answer keys are never included.
type View struct {
	ExamID           string                 `json:"exam_id"`
	Title            string                 `json:"title"`
	Category         exam.Category          `json:"category"`
	DurationMinutes  int                    `json:"duration_minutes"`
	Questions        []exam.Question        `json:"questions"`
	CurrentIndex     int                    `json:"current_index"`
	Answers          map[string]exam.Option `json:"answers"`
	AnsweredCount    int                    `json:"answered_count"`
	RemainingSeconds int                    `json:"remaining_seconds"`
	Status           Status                 `json:"status"`
	AttemptID        string                 `json:"attempt_id,omitempty"`
	Error            string                 `json:"error,omitempty"`
}

func (e *Engine) Snapshot() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	stripped := e.exam.WithoutAnswerKey()
	answers := make(map[string]exam.Option, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	v := View{
		ExamID:           e.exam.ID,
		Title:            e.exam.Title,
		Category:         e.exam.Category,
		DurationMinutes:  e.exam.DurationMinutes,
		Questions:        stripped.Questions,
		CurrentIndex:     e.current,
		Answers:          answers,
		AnsweredCount:    len(answers),
		RemainingSeconds: e.remaining,
		Status:           e.status,
		AttemptID:        e.attemptID,
	}
	if e.lastErr != nil {
		v.Error = e.lastErr.Error()
	}
	return v
}
