package patient

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dentaldesk/dentaldesk/internal/platform/apperr"
)

var namePattern = regexp.MustCompile(`^\p{L}[\p{L}\s'\-]*$`)

var validGenders = map[string]bool{
	"Male": true, "Female": true, "Other": true,
}

// validate trims in place and checks the form rules, returning the parsed date
// of birth.
func validate(in *Input, now time.Time) (*time.Time, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.Gender = strings.TrimSpace(in.Gender)
	in.Address = strings.TrimSpace(in.Address)
	in.Notes = strings.TrimSpace(in.Notes)

	if err := validName("first name", in.FirstName); err != nil {
		return nil, err
	}
	if err := validName("last name", in.LastName); err != nil {
		return nil, err
	}
	if len(NormalizePhone(in.Phone)) < 10 {
		return nil, apperr.Validation("phone number must have at least 10 characters")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return nil, apperr.Validation("invalid email address")
		}
	}
	if in.Gender != "" && !validGenders[in.Gender] {
		return nil, apperr.Validation("gender must be Male, Female or Other")
	}
	if utf8.RuneCountInString(in.Address) > 200 {
		return nil, apperr.Validation("address must be at most 200 characters")
	}
	if utf8.RuneCountInString(in.Notes) > 1000 {
		return nil, apperr.Validation("notes must be at most 1000 characters")
	}

	var dob *time.Time
	if d := strings.TrimSpace(in.DateOfBirth); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, apperr.Validation("date of birth must be YYYY-MM-DD")
		}
		if t.After(now) {
			return nil, apperr.Validation("date of birth cannot be in the future")
		}
		if now.Year()-t.Year() > 150 {
			return nil, apperr.Validation("date of birth is too far in the past")
		}
		dob = &t
	}
	return dob, nil
}

func validName(field, v string) error {
	n := utf8.RuneCountInString(v)
	if n < 2 || n > 50 {
		return apperr.Validation("%s must be between 2 and 50 characters", field)
	}
	if !namePattern.MatchString(v) {
		return apperr.Validation("%s can only contain letters", field)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cleanAllergies(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" || seen[strings.ToLower(a)] {
			continue
		}
		seen[strings.ToLower(a)] = true
		out = append(out, a)
	}
	return out
}
