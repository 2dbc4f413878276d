package rbac

import "errors"

// ErrUnauthenticated is returned when an operation needs a signed-in viewer.
var ErrUnauthenticated = errors.New("unauthenticated")

// Row-level policies. Stores call these before returning or writing a row;
// route middleware alone is not enough because it cannot see row contents.

// CanWriteExams: admin-only create/update/delete of exams and questions.
func CanWriteExams(v Viewer) bool {
	return v.Authenticated() && v.IsAdmin()
}

// CanReadExam: admins see every exam, everyone else only active ones.
// Questions inherit the visibility of their exam.
func CanReadExam(v Viewer, active bool) bool {
	return v.IsAdmin() || active
}

// CanSeeAnswerKey: correct options are withheld from non-admins until the
// attempt is over.
func CanSeeAnswerKey(v Viewer) bool {
	return v.IsAdmin()
}

// OwnsRow is the self-only rule for accounts, roles, attempts and answers.
func OwnsRow(v Viewer, ownerID string) bool {
	return v.Authenticated() && v.ID == ownerID
}
