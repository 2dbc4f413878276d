package exam

import (
	"errors"

	"github.com/mind-engage/examprep/internal/grading"
)

type Category string

const (
	CategoryBasic   Category = "basic"
	CategoryPrelims Category = "prelims"
	CategoryMains   Category = "mains"
)

// Categories in display order.
var Categories = []Category{CategoryBasic, CategoryPrelims, CategoryMains}

// DefaultDuration is the suggested duration in minutes for the category.
func (c Category) DefaultDuration() int {
	switch c {
	case CategoryBasic:
		return 40
	case CategoryPrelims:
		return 20
	case CategoryMains:
		return 30
	}
	return 0
}

func (c Category) Valid() bool { return c.DefaultDuration() > 0 }

// Option labels one of the four answer choices.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

func (o Option) Valid() bool {
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return true
	}
	return false
}

type Question struct {
	ID            string `json:"id"`
	ExamID        string `json:"exam_id"`
	Text          string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectOption Option `json:"correct_option,omitempty"` // empty when withheld
	OrderIndex    int    `json:"order_index"`
}

type Exam struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        Category   `json:"category"`
	DurationMinutes int        `json:"duration_minutes"`
	IsActive        bool       `json:"is_active"`
	CreatedBy       string     `json:"created_by,omitempty"`
	CreatedAt       int64      `json:"created_at"`
	UpdatedAt       int64      `json:"updated_at"`
	QuestionCount   int        `json:"question_count"`
	Questions       []Question `json:"questions,omitempty"`
}

// WithoutAnswerKey returns a copy safe to show to someone taking the exam.
func (e Exam) WithoutAnswerKey() Exam {
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		qs[i].CorrectOption = ""
	}
	e.Questions = qs
	return e
}

// ExamInput is the authoring form. A zero duration takes the category
// default; a nil IsActive means active.
type ExamInput struct {
	Title           string          `json:"title" validate:"required,max=200"`
	Description     string          `json:"description" validate:"max=4000"`
	Category        Category        `json:"category" validate:"required,oneof=basic prelims mains"`
	DurationMinutes int             `json:"duration_minutes" validate:"min=0,max=600"`
	IsActive        *bool           `json:"is_active,omitempty"`
	Questions       []QuestionInput `json:"questions" validate:"min=1,dive"`
}

// QuestionInput carries an ID when it edits an existing question.
type QuestionInput struct {
	ID            string `json:"id,omitempty"`
	Text          string `json:"question_text" validate:"required"`
	OptionA       string `json:"option_a" validate:"required"`
	OptionB       string `json:"option_b" validate:"required"`
	OptionC       string `json:"option_c" validate:"required"`
	OptionD       string `json:"option_d" validate:"required"`
	CorrectOption Option `json:"correct_option" validate:"required,oneof=A B C D"`
}

// ToInput turns a stored exam back into an authoring form, keeping question
// IDs so the result can be fed to UpdateExam unchanged.
func ToInput(e Exam) ExamInput {
	active := e.IsActive
	in := ExamInput{
		Title:           e.Title,
		Description:     e.Description,
		Category:        e.Category,
		DurationMinutes: e.DurationMinutes,
		IsActive:        &active,
		Questions:       make([]QuestionInput, len(e.Questions)),
	}
	for i, q := range e.Questions {
		in.Questions[i] = QuestionInput{
			ID:            q.ID,
			Text:          q.Text,
			OptionA:       q.OptionA,
			OptionB:       q.OptionB,
			OptionC:       q.OptionC,
			OptionD:       q.OptionD,
			CorrectOption: q.CorrectOption,
		}
	}
	return in
}

type Attempt struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	ExamID           string `json:"exam_id"`
	ExamTitle        string `json:"exam_title,omitempty"`
	TotalQuestions   int    `json:"total_questions"`
	CorrectAnswers   int    `json:"correct_answers"`
	Score            int    `json:"score"`
	TimeTakenSeconds int    `json:"time_taken_seconds"`
	CompletedAt      int64  `json:"completed_at"`
}

// AttemptInput is one finished session, graded. Answers holds one entry per
// question of the exam in order; Selected is empty for unanswered ones.
type AttemptInput struct {
	ExamID           string
	UserID           string
	TotalQuestions   int
	CorrectAnswers   int
	Score            int
	TimeTakenSeconds int
	Answers          []AnswerInput
}

type AnswerInput struct {
	QuestionID string
	Selected   Option
	IsCorrect  bool
}

// AttemptDetail is the results view of one attempt.
type AttemptDetail struct {
	Attempt
	Band  grading.Band  `json:"band"`
	Items []AttemptItem `json:"items"`
}

type AttemptItem struct {
	Question       Question `json:"question"`
	SelectedOption *Option  `json:"selected_option"`
	IsCorrect      bool     `json:"is_correct"`
}

// Summary aggregates a student's own attempts.
type Summary struct {
	Attempts     int     `json:"attempts"`
	AverageScore float64 `json:"average_score"`
	BestScore    int     `json:"best_score"`
}

// Stats backs the admin dashboard.
type Stats struct {
	TotalExams    int `json:"total_exams"`
	ActiveExams   int `json:"active_exams"`
	TotalAttempts int `json:"total_attempts"`
}

var (
	ErrExamNotFound    = errors.New("exam not found")
	ErrNoQuestions     = errors.New("exam has no questions")
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrForbidden       = errors.New("forbidden")
	ErrExamChanged     = errors.New("exam questions changed during the attempt")
)
