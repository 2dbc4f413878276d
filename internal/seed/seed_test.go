package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/db"
	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/rbac"
	syncx "github.com/mind-engage/examprep/internal/sync"
	"github.com/mind-engage/examprep/internal/validate"
)

const bank = `
exams:
  - title: Polity Basics
    category: basic
    questions:
      - text: Who presides over the Lok Sabha?
        options: [President, Speaker, Prime Minister, Vice President]
        answer: b
      - text: Article 32 concerns
        options: [Equality, Religion, Constitutional remedies, Education]
        answer: C
  - title: Economy Mains
    category: mains
    duration_minutes: 45
    active: false
    questions:
      - text: GDP measures
        options: [Output, Inflation, Debt, Exports]
        answer: A
`

var admin = rbac.Viewer{ID: "admin-1", Role: rbac.RoleAdmin}

func newStore(t *testing.T) *exam.SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	if _, err := dbh.Exec(`INSERT INTO accounts (id, email, display_name, password_hash, created_at) VALUES ('admin-1','root@example.com','root','x',0)`); err != nil {
		t.Fatal(err)
	}
	return exam.NewSQLStore(dbh, syncx.NewEventRepo(dbh), zap.NewNop())
}

func TestLoadAndApply(t *testing.T) {
	f, err := Load(strings.NewReader(bank))
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Exams) != 2 || len(f.Exams[0].Questions) != 2 {
		t.Fatalf("file = %+v", f)
	}
	store := newStore(t)
	ctx := context.Background()

	n, err := Apply(ctx, store, admin, f, zap.NewNop())
	if err != nil || n != 2 {
		t.Fatalf("apply = %d, %v", n, err)
	}
	list, err := store.ListExams(ctx, admin, exam.ListOpts{IncludeInactive: true})
	if err != nil || len(list) != 2 {
		t.Fatalf("list = %v, %v", list, err)
	}
	for _, e := range list {
		switch e.Title {
		case "Polity Basics":
			if e.DurationMinutes != 40 || !e.IsActive {
				t.Errorf("polity = %+v", e)
			}
			full, _ := store.GetExam(ctx, admin, e.ID)
			if full.Questions[0].CorrectOption != exam.OptionB {
				t.Errorf("answer not normalised: %q", full.Questions[0].CorrectOption)
			}
		case "Economy Mains":
			if e.DurationMinutes != 45 || e.IsActive {
				t.Errorf("economy = %+v", e)
			}
		}
	}

	n, err = Apply(ctx, store, admin, f, zap.NewNop())
	if err != nil || n != 0 {
		t.Errorf("re-apply = %d, %v", n, err)
	}
}

func TestInputRejectsWrongOptionCount(t *testing.T) {
	d := ExamDoc{Title: "x", Category: "basic", Questions: []QuestionDoc{{Text: "q", Options: []string{"a", "b"}, Answer: "A"}}}
	if _, err := d.Input(); err == nil {
		t.Fatal("expected error")
	}
}

func TestApplyStopsOnInvalidExam(t *testing.T) {
	store := newStore(t)
	f := File{Exams: []ExamDoc{{Title: "Bad", Category: "weekly", Questions: []QuestionDoc{
		{Text: "q", Options: []string{"a", "b", "c", "d"}, Answer: "A"},
	}}}}
	_, err := Apply(context.Background(), store, admin, f, zap.NewNop())
	var ve *validate.Error
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestApplyTreatsWildcardsLiterally(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	opts := []string{"a", "b", "c", "d"}
	f := File{Exams: []ExamDoc{
		{Title: "Mock_1", Category: "basic", Questions: []QuestionDoc{{Text: "q", Options: opts, Answer: "A"}}},
		{Title: "MockX1", Category: "basic", Questions: []QuestionDoc{{Text: "q", Options: opts, Answer: "A"}}},
		{Title: "100% Revision", Category: "basic", Questions: []QuestionDoc{{Text: "q", Options: opts, Answer: "A"}}},
	}}
	n, err := Apply(ctx, store, admin, f, zap.NewNop())
	if err != nil || n != 3 {
		t.Fatalf("apply = %d, %v", n, err)
	}
	exists, err := titleExists(ctx, store, admin, "100_ Revision")
	if err != nil || exists {
		t.Errorf("titleExists(100_ Revision) = %v, %v", exists, err)
	}
}
