package syncx

import (
	"context"
	"testing"

	"github.com/mind-engage/examprep/internal/db"
)

func TestAppendAndSince(t *testing.T) {
	ctx := context.Background()
	dbh, err := db.Open(ctx, db.DriverSQLite, "file:eventlog_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer dbh.Close()

	repo := NewEventRepo(dbh)
	if err := repo.Append(ctx, nil, TypeExamCreated, "exam-1", map[string]string{"title": "Algebra"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.Append(ctx, nil, TypeExamDeleted, "exam-1", nil); err != nil {
		t.Fatalf("append: %v", err)
	}

	evs, err := repo.Since(ctx, 0, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Type != TypeExamCreated || evs[0].DataJSON != `{"title":"Algebra"}` {
		t.Errorf("first event = %+v", evs[0])
	}

	rest, err := repo.Since(ctx, evs[0].Seq, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(rest) != 1 || rest[0].Type != TypeExamDeleted {
		t.Errorf("rest = %+v", rest)
	}
}
