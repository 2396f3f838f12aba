package patient

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
)

func validInput() Input {
	return Input{FirstName: "Asha", LastName: "Rao", Phone: "9812345678", DateOfBirth: "1990-04-12"}
}

func TestValidate(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		mutate  func(in *Input)
		wantErr bool
	}{
		{"valid", func(in *Input) {}, false},
		{"apostrophe and hyphen", func(in *Input) { in.LastName = "O'Neil-Smith" }, false},
		{"short first name", func(in *Input) { in.FirstName = "A" }, true},
		{"digits in name", func(in *Input) { in.FirstName = "Asha2" }, true},
		{"long last name", func(in *Input) { in.LastName = strings.Repeat("a", 51) }, true},
		{"short phone", func(in *Input) { in.Phone = "12345" }, true},
		{"bad email", func(in *Input) { in.Email = "asha@" }, true},
		{"good email", func(in *Input) { in.Email = "asha@example.com" }, false},
		{"future dob", func(in *Input) { in.DateOfBirth = "2030-01-01" }, true},
		{"ancient dob", func(in *Input) { in.DateOfBirth = "1850-01-01" }, true},
		{"malformed dob", func(in *Input) { in.DateOfBirth = "12/04/1990" }, true},
		{"empty dob", func(in *Input) { in.DateOfBirth = "" }, false},
		{"bad gender", func(in *Input) { in.Gender = "Unknown" }, true},
		{"long address", func(in *Input) { in.Address = strings.Repeat("x", 201) }, true},
		{"long notes", func(in *Input) { in.Notes = strings.Repeat("x", 1001) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := validate(&in, now)
			if tt.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Errorf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_TrimsNotes(t *testing.T) {
	in := validInput()
	in.Notes = "  sensitive gums  "
	if _, err := validate(&in, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Notes != "sensitive gums" {
		t.Errorf("expected trimmed notes, got %q", in.Notes)
	}
}

func TestCleanAllergies(t *testing.T) {
	got := cleanAllergies([]string{" Penicillin", "", "penicillin", "Latex"})
	if len(got) != 2 || got[0] != "Penicillin" || got[1] != "Latex" {
		t.Errorf("unexpected allergies %v", got)
	}
}
