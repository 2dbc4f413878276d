package exam

import (
	"context"

	"github.com/mind-engage/examprep/internal/rbac"
)

type ListOpts struct {
	Q               string
	Category        Category
	Title           string // exact, case-insensitive
	IncludeInactive bool   // honoured for admins only
	Limit           int
	Offset          int
}

type AttemptListOpts struct {
	ExamID string
	Limit  int
	Offset int
}

// Store is the authorization data store for exams, questions, attempts and
// answer records. Every call is evaluated against the viewer's row-level
// policies; rows the viewer may not see are reported as not found.
type Store interface {
	CreateExam(ctx context.Context, v rbac.Viewer, in ExamInput) (Exam, error)
	UpdateExam(ctx context.Context, v rbac.Viewer, id string, in ExamInput) (Exam, error)
	SetExamActive(ctx context.Context, v rbac.Viewer, id string, active bool) (Exam, error)
	DeleteExam(ctx context.Context, v rbac.Viewer, id string) error
	GetExam(ctx context.Context, v rbac.Viewer, id string) (Exam, error)
	ListExams(ctx context.Context, v rbac.Viewer, opts ListOpts) ([]Exam, error)
	ListQuestions(ctx context.Context, v rbac.Viewer, examID string) ([]Question, error)

	RecordAttempt(ctx context.Context, v rbac.Viewer, in AttemptInput) (Attempt, error)
	GetAttempt(ctx context.Context, v rbac.Viewer, id string) (AttemptDetail, error)
	ListAttempts(ctx context.Context, v rbac.Viewer, opts AttemptListOpts) ([]Attempt, error)
	Summary(ctx context.Context, v rbac.Viewer) (Summary, error)
	Stats(ctx context.Context, v rbac.Viewer) (Stats, error)
}
