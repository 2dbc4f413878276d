package validate

import (
	"errors"
	"strings"
	"testing"
)

type item struct {
	Text   string `json:"text" validate:"required"`
	Choice string `json:"choice" validate:"required,oneof=A B C D"`
}

type form struct {
	Email string `json:"email" validate:"required,email"`
	Items []item `json:"items" validate:"min=1,dive"`
}

func TestStructReportsJSONPaths(t *testing.T) {
	err := Struct(form{Email: "nope", Items: []item{{Text: "ok", Choice: "E"}}})
	var ve *Error
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if ve.Fields["email"] != "must be a valid email" {
		t.Errorf("email msg = %q", ve.Fields["email"])
	}
	if !strings.HasPrefix(ve.Fields["items[0].choice"], "must be one of") {
		t.Errorf("fields = %v", ve.Fields)
	}
}

func TestStructEmptySlice(t *testing.T) {
	err := Struct(form{Email: "a@b.co"})
	var ve *Error
	if !errors.As(err, &ve) || ve.Fields["items"] == "" {
		t.Fatalf("err = %v, want items error", err)
	}
}

func TestStructValid(t *testing.T) {
	if err := Struct(form{Email: "a@b.co", Items: []item{{Text: "x", Choice: "B"}}}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}
