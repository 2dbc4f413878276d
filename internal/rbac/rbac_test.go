package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{RoleAdmin, "exam:create", true},
		{RoleAdmin, "exam:delete", true},
		{RoleAdmin, "dashboard:admin", true},
		{RoleAdmin, "session:start", false},
		{RoleStudent, "exam:view", true},
		{RoleStudent, "exam:create", false},
		{RoleStudent, "session:take", true},
		{RoleStudent, "dashboard:admin", false},
		{"", "exam:view", false},
		{"teacher", "exam:view", false},
	}
	for _, tc := range cases {
		if got := c.Has(tc.role, tc.perm); got != tc.want {
			t.Errorf("Has(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
	if !c.Any(RoleStudent, "exam:create", "exam:view") {
		t.Error("Any should match exam:view")
	}
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require("exam:create")(ok)

	for _, tc := range []struct {
		viewer Viewer
		want   int
	}{
		{Viewer{}, http.StatusForbidden},
		{Viewer{ID: "s1", Role: RoleStudent}, http.StatusForbidden},
		{Viewer{ID: "a1", Role: RoleAdmin}, http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodPost, "/exams", nil)
		req = req.WithContext(WithViewer(context.Background(), tc.viewer))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("viewer %+v: status %d, want %d", tc.viewer, rec.Code, tc.want)
		}
	}
}

func TestRowPolicies(t *testing.T) {
	admin := Viewer{ID: "a", Role: RoleAdmin}
	student := Viewer{ID: "s", Role: RoleStudent}

	if !CanWriteExams(admin) || CanWriteExams(student) || CanWriteExams(Viewer{Role: RoleAdmin}) {
		t.Error("CanWriteExams mismatch")
	}
	if !CanReadExam(student, true) || CanReadExam(student, false) || !CanReadExam(admin, false) {
		t.Error("CanReadExam mismatch")
	}
	if !OwnsRow(student, "s") || OwnsRow(student, "a") || OwnsRow(Viewer{}, "") {
		t.Error("OwnsRow mismatch")
	}
	if CanSeeAnswerKey(student) || !CanSeeAnswerKey(admin) {
		t.Error("CanSeeAnswerKey mismatch")
	}
}

func TestRequireAnyAssignedRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireAny("dashboard:student", "dashboard:admin")(ok)

	for _, tc := range []struct {
		viewer Viewer
		want   int
	}{
		{Viewer{}, http.StatusForbidden},
		{Viewer{ID: "t1", Role: "teacher"}, http.StatusForbidden},
		{Viewer{ID: "s1", Role: RoleStudent}, http.StatusNoContent},
		{Viewer{ID: "a1", Role: RoleAdmin}, http.StatusNoContent},
	} {
		req := httptest.NewRequest(http.MethodGet, "/categories", nil)
		req = req.WithContext(WithViewer(context.Background(), tc.viewer))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("viewer %+v: status %d, want %d", tc.viewer, rec.Code, tc.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for role, want := range map[string]bool{RoleAdmin: true, RoleStudent: true, "teacher": false, "": false} {
		if got := ValidRole(role); got != want {
			t.Errorf("ValidRole(%q) = %v", role, got)
		}
	}
}
