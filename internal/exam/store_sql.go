package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/db"
	"github.com/mind-engage/examprep/internal/grading"
	"github.com/mind-engage/examprep/internal/rbac"
	syncx "github.com/mind-engage/examprep/internal/sync"
	"github.com/mind-engage/examprep/internal/validate"
)

type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo
	log    *zap.Logger
}

func NewSQLStore(dbh *sql.DB, events *syncx.EventRepo, log *zap.Logger) *SQLStore {
	return &SQLStore{db: dbh, events: events, log: log}
}

var _ Store = (*SQLStore)(nil)

const examColumns = `e.id, e.title, e.description, e.category, e.duration_minutes, e.is_active,
	COALESCE(e.created_by, ''), e.created_at, e.updated_at,
	(SELECT COUNT(1) FROM questions q WHERE q.exam_id = e.id)`

const questionColumns = `id, exam_id, question_text, option_a, option_b, option_c, option_d, correct_option, order_index`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExam(row rowScanner) (Exam, error) {
	var e Exam
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category, &e.DurationMinutes, &e.IsActive,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.QuestionCount)
	return e, err
}

func scanQuestion(row rowScanner) (Question, error) {
	var q Question
	err := row.Scan(&q.ID, &q.ExamID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
		&q.CorrectOption, &q.OrderIndex)
	return q, err
}

// prepare trims the form, validates it and fills defaults.
func prepare(in ExamInput) (ExamInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = Category(strings.ToLower(strings.TrimSpace(string(in.Category))))
	for i := range in.Questions {
		q := &in.Questions[i]
		q.Text = strings.TrimSpace(q.Text)
		q.OptionA = strings.TrimSpace(q.OptionA)
		q.OptionB = strings.TrimSpace(q.OptionB)
		q.OptionC = strings.TrimSpace(q.OptionC)
		q.OptionD = strings.TrimSpace(q.OptionD)
		q.CorrectOption = Option(strings.ToUpper(strings.TrimSpace(string(q.CorrectOption))))
	}
	if err := validate.Struct(in); err != nil {
		return in, err
	}
	if in.DurationMinutes == 0 {
		in.DurationMinutes = in.Category.DefaultDuration()
	}
	if in.IsActive == nil {
		active := true
		in.IsActive = &active
	}
	return in, nil
}

func (s *SQLStore) CreateExam(ctx context.Context, v rbac.Viewer, in ExamInput) (Exam, error) {
	if !rbac.CanWriteExams(v) {
		return Exam{}, ErrForbidden
	}
	in, err := prepare(in)
	if err != nil {
		return Exam{}, err
	}
	id := uuid.NewString()
	now := time.Now().Unix()

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exams (id, title, description, category, duration_minutes, is_active, created_by, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`,
			id, in.Title, in.Description, string(in.Category), in.DurationMinutes, *in.IsActive, v.ID, now); err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}
		for i, q := range in.Questions {
			if err := insertQuestion(ctx, tx, id, uuid.NewString(), q, i, now); err != nil {
				return err
			}
		}
		return s.events.Append(ctx, tx, syncx.TypeExamCreated, id,
			map[string]any{"title": in.Title, "questions": len(in.Questions), "by": v.ID})
	})
	if err != nil {
		return Exam{}, err
	}
	s.log.Info("exam created", zap.String("exam_id", id), zap.Int("questions", len(in.Questions)))
	return s.GetExam(ctx, v, id)
}

func insertQuestion(ctx context.Context, tx *sql.Tx, examID, id string, q QuestionInput, order int, now int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO questions (id, exam_id, question_text, option_a, option_b, option_c, option_d, correct_option, order_index, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		id, examID, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, string(q.CorrectOption), order, now)
	if err != nil {
		return fmt.Errorf("insert question %d: %w", order, err)
	}
	return nil
}

// UpdateExam rewrites the exam row and reconciles its questions: inputs with
// a known ID are edited in place, the rest are inserted, and questions left
// out are deleted together with their answer records.
func (s *SQLStore) UpdateExam(ctx context.Context, v rbac.Viewer, id string, in ExamInput) (Exam, error) {
	if !rbac.CanWriteExams(v) {
		return Exam{}, ErrForbidden
	}
	in, err := prepare(in)
	if err != nil {
		return Exam{}, err
	}
	now := time.Now().Unix()

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE exams SET title=$1, description=$2, category=$3, duration_minutes=$4, is_active=$5, updated_at=$6 WHERE id=$7`,
			in.Title, in.Description, string(in.Category), in.DurationMinutes, *in.IsActive, now, id)
		if err != nil {
			return fmt.Errorf("update exam: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrExamNotFound
		}

		existing, err := questionIDs(ctx, tx, id)
		if err != nil {
			return err
		}
		kept := make(map[string]bool, len(in.Questions))
		for i, q := range in.Questions {
			if q.ID != "" && existing[q.ID] && !kept[q.ID] {
				kept[q.ID] = true
				if _, err := tx.ExecContext(ctx,
					`UPDATE questions SET question_text=$1, option_a=$2, option_b=$3, option_c=$4, option_d=$5, correct_option=$6, order_index=$7
					 WHERE id=$8 AND exam_id=$9`,
					q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD, string(q.CorrectOption), i, q.ID, id); err != nil {
					return fmt.Errorf("update question %d: %w", i, err)
				}
				continue
			}
			if err := insertQuestion(ctx, tx, id, uuid.NewString(), q, i, now); err != nil {
				return err
			}
		}
		for qid := range existing {
			if kept[qid] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, qid); err != nil {
				return fmt.Errorf("delete question: %w", err)
			}
		}
		return s.events.Append(ctx, tx, syncx.TypeExamUpdated, id,
			map[string]any{"title": in.Title, "questions": len(in.Questions), "by": v.ID})
	})
	if err != nil {
		return Exam{}, err
	}
	return s.GetExam(ctx, v, id)
}

func questionIDs(ctx context.Context, tx *sql.Tx, examID string) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM questions WHERE exam_id=$1`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var qid string
		if err := rows.Scan(&qid); err != nil {
			return nil, err
		}
		out[qid] = true
	}
	return out, rows.Err()
}

func (s *SQLStore) SetExamActive(ctx context.Context, v rbac.Viewer, id string, active bool) (Exam, error) {
	if !rbac.CanWriteExams(v) {
		return Exam{}, ErrForbidden
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE exams SET is_active=$1, updated_at=$2 WHERE id=$3`,
			active, time.Now().Unix(), id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrExamNotFound
		}
		return s.events.Append(ctx, tx, syncx.TypeExamUpdated, id, map[string]any{"is_active": active, "by": v.ID})
	})
	if err != nil {
		return Exam{}, err
	}
	return s.GetExam(ctx, v, id)
}

// DeleteExam relies on the schema cascades for questions, attempts and
// answer records.
func (s *SQLStore) DeleteExam(ctx context.Context, v rbac.Viewer, id string) error {
	if !rbac.CanWriteExams(v) {
		return ErrForbidden
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("delete exam: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrExamNotFound
		}
		return s.events.Append(ctx, tx, syncx.TypeExamDeleted, id, map[string]any{"by": v.ID})
	})
	if err != nil {
		return err
	}
	s.log.Info("exam deleted", zap.String("exam_id", id))
	return nil
}

// getExamRow applies the read policy: inactive exams do not exist for
// non-admins.
func (s *SQLStore) getExamRow(ctx context.Context, v rbac.Viewer, id string) (Exam, error) {
	e, err := scanExam(s.db.QueryRowContext(ctx, `SELECT `+examColumns+` FROM exams e WHERE e.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, ErrExamNotFound
	}
	if err != nil {
		return Exam{}, err
	}
	if !rbac.CanReadExam(v, e.IsActive) {
		return Exam{}, ErrExamNotFound
	}
	return e, nil
}

// GetExam returns the exam with its ordered questions, answer keys included.
// Callers serving students strip them with WithoutAnswerKey.
func (s *SQLStore) GetExam(ctx context.Context, v rbac.Viewer, id string) (Exam, error) {
	e, err := s.getExamRow(ctx, v, id)
	if err != nil {
		return Exam{}, err
	}
	qs, err := s.questions(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	e.Questions = qs
	return e, nil
}

func (s *SQLStore) ListQuestions(ctx context.Context, v rbac.Viewer, examID string) ([]Question, error) {
	if _, err := s.getExamRow(ctx, v, examID); err != nil {
		return nil, err
	}
	return s.questions(ctx, examID)
}

func (s *SQLStore) questions(ctx context.Context, examID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE exam_id=$1 ORDER BY order_index, id`, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListExams(ctx context.Context, v rbac.Viewer, opts ListOpts) ([]Exam, error) {
	limit, offset := clampPage(opts.Limit, opts.Offset)
	where := []string{"1=1"}
	args := []any{}
	arg := func(x any) string {
		args = append(args, x)
		return fmt.Sprintf("$%d", len(args))
	}
	if !v.IsAdmin() || !opts.IncludeInactive {
		where = append(where, "e.is_active = "+arg(true))
	}
	if opts.Category != "" {
		where = append(where, "e.category = "+arg(string(opts.Category)))
	}
	if t := strings.TrimSpace(opts.Title); t != "" {
		where = append(where, "LOWER(e.title) = "+arg(strings.ToLower(t)))
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		where = append(where, "(LOWER(e.title) LIKE "+arg(like)+" OR LOWER(e.description) LIKE "+arg(like)+")")
	}
	query := `SELECT ` + examColumns + ` FROM exams e WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY e.created_at DESC, e.id LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()
	out := []Exam{}
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordAttempt writes the attempt and then its answer records in one
// transaction, so a failure leaves neither behind.
func (s *SQLStore) RecordAttempt(ctx context.Context, v rbac.Viewer, in AttemptInput) (Attempt, error) {
	if !rbac.OwnsRow(v, in.UserID) {
		return Attempt{}, ErrForbidden
	}
	if len(in.Answers) == 0 {
		return Attempt{}, ErrNoQuestions
	}
	a := Attempt{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		ExamID:           in.ExamID,
		TotalQuestions:   in.TotalQuestions,
		CorrectAnswers:   in.CorrectAnswers,
		Score:            in.Score,
		TimeTakenSeconds: in.TimeTakenSeconds,
		CompletedAt:      time.Now().Unix(),
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := questionIDs(ctx, tx, in.ExamID)
		if err != nil {
			return fmt.Errorf("exam questions: %w", err)
		}
		if !sameQuestions(current, in.Answers) {
			return ErrExamChanged
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exam_results (id, user_id, exam_id, total_questions, correct_answers, score, time_taken_seconds, completed_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			a.ID, a.UserID, a.ExamID, a.TotalQuestions, a.CorrectAnswers, a.Score, a.TimeTakenSeconds, a.CompletedAt); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		if err := insertAnswers(ctx, tx, a.ID, in.Answers, a.CompletedAt); err != nil {
			return err
		}
		return s.events.Append(ctx, tx, syncx.TypeAttemptRecorded, a.ID,
			map[string]any{"exam_id": a.ExamID, "user_id": a.UserID, "score": a.Score})
	})
	if err != nil {
		return Attempt{}, err
	}
	s.log.Info("attempt recorded",
		zap.String("attempt_id", a.ID), zap.String("exam_id", a.ExamID), zap.Int("score", a.Score))
	return a, nil
}

// sameQuestions reports whether answers cover exactly the exam's current
// questions, each once.
func sameQuestions(current map[string]bool, answers []AnswerInput) bool {
	if len(current) != len(answers) {
		return false
	}
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		if !current[a.QuestionID] || seen[a.QuestionID] {
			return false
		}
		seen[a.QuestionID] = true
	}
	return true
}

// insertAnswers writes every answer record in a single multi-row INSERT.
func insertAnswers(ctx context.Context, tx *sql.Tx, resultID string, answers []AnswerInput, now int64) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO user_answers (id, result_id, question_id, selected_option, is_correct, created_at) VALUES `)
	args := make([]any, 0, len(answers)*6)
	for i, ans := range answers {
		if i > 0 {
			sb.WriteString(",")
		}
		n := len(args)
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		var selected any
		if ans.Selected != "" {
			selected = string(ans.Selected)
		}
		args = append(args, uuid.NewString(), resultID, ans.QuestionID, selected, ans.IsCorrect, now)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert answers: %w", err)
	}
	return nil
}

const attemptColumns = `r.id, r.user_id, r.exam_id, e.title, r.total_questions, r.correct_answers, r.score,
	r.time_taken_seconds, r.completed_at`

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	err := row.Scan(&a.ID, &a.UserID, &a.ExamID, &a.ExamTitle, &a.TotalQuestions, &a.CorrectAnswers,
		&a.Score, &a.TimeTakenSeconds, &a.CompletedAt)
	return a, err
}

// GetAttempt is self-only: other viewers get ErrAttemptNotFound.
func (s *SQLStore) GetAttempt(ctx context.Context, v rbac.Viewer, id string) (AttemptDetail, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM exam_results r JOIN exams e ON e.id = r.exam_id WHERE r.id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return AttemptDetail{}, ErrAttemptNotFound
	}
	if err != nil {
		return AttemptDetail{}, err
	}
	if !rbac.OwnsRow(v, a.UserID) {
		return AttemptDetail{}, ErrAttemptNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.exam_id, q.question_text, q.option_a, q.option_b, q.option_c, q.option_d, q.correct_option, q.order_index,
		        ua.selected_option, ua.is_correct
		   FROM user_answers ua JOIN questions q ON q.id = ua.question_id
		  WHERE ua.result_id=$1
		  ORDER BY q.order_index, q.id`, id)
	if err != nil {
		return AttemptDetail{}, fmt.Errorf("attempt items: %w", err)
	}
	defer rows.Close()
	d := AttemptDetail{Attempt: a, Band: grading.BandFor(a.Score), Items: []AttemptItem{}}
	for rows.Next() {
		var it AttemptItem
		var sel sql.NullString
		q := &it.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&q.CorrectOption, &q.OrderIndex, &sel, &it.IsCorrect); err != nil {
			return AttemptDetail{}, err
		}
		if sel.Valid {
			o := Option(sel.String)
			it.SelectedOption = &o
		}
		d.Items = append(d.Items, it)
	}
	return d, rows.Err()
}

// ListAttempts returns the viewer's own attempts, newest first.
func (s *SQLStore) ListAttempts(ctx context.Context, v rbac.Viewer, opts AttemptListOpts) ([]Attempt, error) {
	if !v.Authenticated() {
		return nil, ErrForbidden
	}
	limit, offset := clampPage(opts.Limit, opts.Offset)
	query := `SELECT ` + attemptColumns + ` FROM exam_results r JOIN exams e ON e.id = r.exam_id WHERE r.user_id=$1`
	args := []any{v.ID}
	if opts.ExamID != "" {
		args = append(args, opts.ExamID)
		query += fmt.Sprintf(" AND r.exam_id=$%d", len(args))
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY r.completed_at DESC, r.id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()
	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) Summary(ctx context.Context, v rbac.Viewer) (Summary, error) {
	if !v.Authenticated() {
		return Summary{}, ErrForbidden
	}
	var sum Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(CAST(AVG(score) AS DOUBLE PRECISION), 0), COALESCE(MAX(score), 0) FROM exam_results WHERE user_id=$1`, v.ID).
		Scan(&sum.Attempts, &sum.AverageScore, &sum.BestScore)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	return sum, nil
}

// Stats reports aggregate counts only; no attempt rows leave the store.
func (s *SQLStore) Stats(ctx context.Context, v rbac.Viewer) (Stats, error) {
	if !rbac.CanWriteExams(v) {
		return Stats{}, ErrForbidden
	}
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(1) FROM exams),
		        (SELECT COUNT(1) FROM exams WHERE is_active = $1),
		        (SELECT COUNT(1) FROM exam_results)`, true).
		Scan(&st.TotalExams, &st.ActiveExams, &st.TotalAttempts)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
