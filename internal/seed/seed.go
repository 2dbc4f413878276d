// Package seed loads exam banks from YAML and creates them through the
// exam store.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mind-engage/examprep/internal/exam"
	"github.com/mind-engage/examprep/internal/rbac"
)

type File struct {
	Exams []ExamDoc `yaml:"exams"`
}

type ExamDoc struct {
	Title           string        `yaml:"title"`
	Description     string        `yaml:"description"`
	Category        string        `yaml:"category"`
	DurationMinutes int           `yaml:"duration_minutes"`
	Active          *bool         `yaml:"active"`
	Questions       []QuestionDoc `yaml:"questions"`
}

// QuestionDoc lists the four options in A-D order; Answer is the letter.
type QuestionDoc struct {
	Text    string   `yaml:"text"`
	Options []string `yaml:"options"`
	Answer  string   `yaml:"answer"`
}

func Load(r io.Reader) (File, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	return f, nil
}

func LoadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer fh.Close()
	return Load(fh)
}

// Input converts the document into an authoring form. Field-level checks
// are left to the store.
func (d ExamDoc) Input() (exam.ExamInput, error) {
	in := exam.ExamInput{
		Title:           d.Title,
		Description:     d.Description,
		Category:        exam.Category(d.Category),
		DurationMinutes: d.DurationMinutes,
		IsActive:        d.Active,
		Questions:       make([]exam.QuestionInput, 0, len(d.Questions)),
	}
	for i, q := range d.Questions {
		if len(q.Options) != 4 {
			return exam.ExamInput{}, fmt.Errorf("%q question %d: want 4 options, got %d", d.Title, i+1, len(q.Options))
		}
		in.Questions = append(in.Questions, exam.QuestionInput{
			Text:          q.Text,
			OptionA:       q.Options[0],
			OptionB:       q.Options[1],
			OptionC:       q.Options[2],
			OptionD:       q.Options[3],
			CorrectOption: exam.Option(strings.ToUpper(strings.TrimSpace(q.Answer))),
		})
	}
	return in, nil
}

// Apply creates every exam in f as v. Exams whose title already exists are
// skipped, so a seed file can be applied more than once.
func Apply(ctx context.Context, store exam.Store, v rbac.Viewer, f File, log *zap.Logger) (int, error) {
	created := 0
	for _, d := range f.Exams {
		exists, err := titleExists(ctx, store, v, d.Title)
		if err != nil {
			return created, err
		}
		if exists {
			log.Info("seed: exam exists, skipping", zap.String("title", d.Title))
			continue
		}
		in, err := d.Input()
		if err != nil {
			return created, err
		}
		e, err := store.CreateExam(ctx, v, in)
		if err != nil {
			return created, fmt.Errorf("create %q: %w", d.Title, err)
		}
		log.Info("seed: exam created", zap.String("exam_id", e.ID), zap.String("title", e.Title),
			zap.Int("questions", e.QuestionCount))
		created++
	}
	return created, nil
}

func titleExists(ctx context.Context, store exam.Store, v rbac.Viewer, title string) (bool, error) {
	title = strings.TrimSpace(title)
	list, err := store.ListExams(ctx, v, exam.ListOpts{Title: title, IncludeInactive: true, Limit: 200})
	if err != nil {
		return false, err
	}
	for _, e := range list {
		if strings.EqualFold(e.Title, title) {
			return true, nil
		}
	}
	return false, nil
}
