package grading

import "math"

// Q is the minimal view of a question needed for grading.
type Q struct {
	ID            string
	CorrectOption string
}

// Item is the graded outcome of one question. Selected is empty when the
// question was left unanswered.
type Item struct {
	QuestionID string
	Selected   string
	IsCorrect  bool
}

// Outcome aggregates a full exam. Items follow the question order given to
// Grade, one per question whether answered or not.
type Outcome struct {
	Items   []Item
	Total   int
	Correct int
	Score   int
}

// Grade marks every question in order against the selected options.
// A question counts as correct only when its selection equals the key.
func Grade(questions []Q, selected map[string]string) Outcome {
	out := Outcome{Items: make([]Item, 0, len(questions)), Total: len(questions)}
	for _, q := range questions {
		sel := selected[q.ID]
		ok := sel != "" && sel == q.CorrectOption
		if ok {
			out.Correct++
		}
		out.Items = append(out.Items, Item{QuestionID: q.ID, Selected: sel, IsCorrect: ok})
	}
	out.Score = Percent(out.Correct, out.Total)
	return out
}

// Percent is round(100 * correct / total); zero when total is zero.
func Percent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
