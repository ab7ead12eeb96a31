// Package contact validates and summarises the visitor contact form.
//
// Field messages are the Lithuanian texts shown next to the inputs.
package contact

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Field names in form order.
const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldEmail     = "email"
	FieldAddress   = "address"
	FieldQ1        = "q1"
	FieldQ2        = "q2"
	FieldQ3        = "q3"
	FieldPhone     = "phone"
)

// Fields lists every validated field in display order.
var Fields = []string{
	FieldFirstName, FieldLastName, FieldEmail, FieldAddress,
	FieldQ1, FieldQ2, FieldQ3, FieldPhone,
}

const (
	MsgEmpty   = "Laukas negali būti tuščias"
	MsgEmail   = "Įveskite galiojantį el. pašto adresą"
	MsgName    = "Vardas ir pavardė turi būti sudaryti tik iš raidžių"
	MsgAddress = "Įveskite adresą tekstu"
	MsgRating  = "Įvertinimas turi būti nuo 1 iki 10"
	MsgPhone   = "Įveskite lietuvišką mobilų numerį (+370 6xx xxxxx)"
)

const (
	countryCode   = "+370"
	nsnLength     = 8
	maxDigits     = 11
	mobilePrefix  = '6'
	minRating     = 1
	maxRating     = 10
	ratingDecimal = 10
)

var (
	namePattern    = regexp.MustCompile(`^[\p{L}\p{Zs}\s'\-]+$`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	addressPattern = regexp.MustCompile(`[\p{L}\p{N}]`)
	nonDigit       = regexp.MustCompile(`\D`)
)

// Form is the raw contact form as submitted.
type Form struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	Q1        string `json:"q1"`
	Q2        string `json:"q2"`
	Q3        string `json:"q3"`
	Phone     string `json:"phone"`
}

// Value returns the raw value of a named field.
func (f Form) Value(field string) (string, bool) {
	switch field {
	case FieldFirstName:
		return f.FirstName, true
	case FieldLastName:
		return f.LastName, true
	case FieldEmail:
		return f.Email, true
	case FieldAddress:
		return f.Address, true
	case FieldQ1:
		return f.Q1, true
	case FieldQ2:
		return f.Q2, true
	case FieldQ3:
		return f.Q3, true
	case FieldPhone:
		return f.Phone, true
	}
	return "", false
}

// FieldErrors maps field names to their validation message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e[name])
	}
	return "contact form invalid: " + strings.Join(parts, "; ")
}

// ValidateField checks a single field and returns its message, or "" if valid.
// Unknown fields are accepted.
func ValidateField(field, value string) string {
	val := strings.TrimSpace(value)
	if val == "" {
		return MsgEmpty
	}

	switch field {
	case FieldEmail:
		if !emailPattern.MatchString(val) {
			return MsgEmail
		}
	case FieldFirstName, FieldLastName:
		if !namePattern.MatchString(norm.NFC.String(val)) {
			return MsgName
		}
	case FieldAddress:
		if !addressPattern.MatchString(val) {
			return MsgAddress
		}
	case FieldQ1, FieldQ2, FieldQ3:
		if _, ok := parseRating(val); !ok {
			return MsgRating
		}
	case FieldPhone:
		if _, ok := nationalNumber(val); !ok {
			return MsgPhone
		}
	}
	return ""
}

// Validate checks every field. It returns nil when the form is valid.
func Validate(f Form) FieldErrors {
	errs := FieldErrors{}
	for _, field := range Fields {
		value, _ := f.Value(field)
		if msg := ValidateField(field, value); msg != "" {
			errs[field] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func parseRating(val string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil || math.IsNaN(n) || n < minRating || n > maxRating {
		return 0, false
	}
	return n, true
}

// nationalNumber returns the last eight digits of a phone number and whether
// they form a mobile number.
func nationalNumber(raw string) (string, bool) {
	digits := nonDigit.ReplaceAllString(raw, "")
	nsn := digits
	if len(nsn) > nsnLength {
		nsn = nsn[len(nsn)-nsnLength:]
	}
	return nsn, len(nsn) == nsnLength && nsn[0] == mobilePrefix
}

// FormatPhone renders partial input as "+370 6xx xxxxx". Non-digits are
// dropped, input is capped at eleven digits and the last eight are used as
// the subscriber number.
func FormatPhone(raw string) string {
	digits := nonDigit.ReplaceAllString(raw, "")
	if len(digits) > maxDigits {
		digits = digits[:maxDigits]
	}
	nsn := digits
	if len(nsn) > nsnLength {
		nsn = nsn[len(nsn)-nsnLength:]
	}

	var b strings.Builder
	b.WriteString(countryCode)
	if len(nsn) > 0 {
		b.WriteString(" " + nsn[:min(3, len(nsn))])
	}
	if len(nsn) > 3 {
		b.WriteString(" " + nsn[3:])
	}
	return b.String()
}

// Submission is an accepted contact form.
type Submission struct {
	ID          string    `json:"id"`
	Form        Form      `json:"form"`
	Phone       string    `json:"phone"`
	Average     float64   `json:"average"`
	AverageText string    `json:"average_text"`
	Summary     string    `json:"summary"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Submit validates the form and builds its summary. Invalid forms return
// FieldErrors.
func Submit(f Form, now time.Time) (*Submission, error) {
	if errs := Validate(f); errs != nil {
		return nil, errs
	}

	clean := Form{
		FirstName: norm.NFC.String(strings.TrimSpace(f.FirstName)),
		LastName:  norm.NFC.String(strings.TrimSpace(f.LastName)),
		Email:     strings.TrimSpace(f.Email),
		Address:   strings.TrimSpace(f.Address),
		Q1:        strings.TrimSpace(f.Q1),
		Q2:        strings.TrimSpace(f.Q2),
		Q3:        strings.TrimSpace(f.Q3),
		Phone:     strings.TrimSpace(f.Phone),
	}

	avg := Average(clean.Q1, clean.Q2, clean.Q3)
	text := fmt.Sprintf("%.1f", avg)
	return &Submission{
		ID:          uuid.NewString(),
		Form:        clean,
		Phone:       FormatPhone(clean.Phone),
		Average:     avg,
		AverageText: text,
		Summary:     fmt.Sprintf("%s %s: %s", clean.FirstName, clean.LastName, text),
		SubmittedAt: now.UTC(),
	}, nil
}

// Average returns the mean of the ratings rounded to one decimal.
// Unparseable ratings count as zero.
func Average(ratings ...string) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratings {
		n, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
		if err == nil && !math.IsNaN(n) {
			sum += n
		}
	}
	return math.Round(sum/float64(len(ratings))*ratingDecimal) / ratingDecimal
}
