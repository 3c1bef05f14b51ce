// Package validation checks raw score submissions before they are trusted.
//
// Struct-level rules are expressed as go-playground/validator tags; the
// anti-cheat checks are independent Validators run in order by a Pipeline.
package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	domainerrors "github.com/punkouter26/podropsquare-server/internal/errors"
)

var initialsPattern = regexp.MustCompile(`^[A-Z0-9]{1,3}$`)

// clientTimestampLayouts are the ISO-8601 forms accepted from game clients.
// A timestamp without an offset is taken as UTC.
var clientTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z0700",
}

// ParseClientTimestamp parses an ISO-8601 client timestamp.
func ParseClientTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clientTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO-8601 timestamp: %q", s)
}

// StructValidator wraps go-playground/validator with domain error conversion.
type StructValidator struct {
	v *validator.Validate
}

// New creates a validator with the score server's custom tags registered:
//
//	initials  1-3 uppercase letters or digits
//	finite    a float that is neither NaN nor infinite
//	iso8601   a string ParseClientTimestamp accepts
func New() *StructValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("initials", func(fl validator.FieldLevel) bool {
		return initialsPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Float32 && f.Kind() != reflect.Float64 {
			return false
		}
		x := f.Float()
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	})
	_ = v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		_, err := ParseClientTimestamp(fl.Field().String())
		return err == nil
	})

	return &StructValidator{v: v}
}

// Validate validates a struct. It returns a MALFORMED_INPUT domain error naming
// the first offending field, with every failing field listed in Details.
func (v *StructValidator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domainerrors.Wrap(err, domainerrors.CodeMalformedInput, "malformed submission")
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = friendlyMessage(fe)
	}
	first := fieldErrs[0]
	return domainerrors.MalformedInput(first.Field(), friendlyMessage(first)).WithDetails(details)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "initials":
		return "must be 1 to 3 uppercase letters or digits"
	case "finite":
		return "must be a finite number"
	case "iso8601":
		return "must be an ISO-8601 timestamp"
	case "hexadecimal":
		return "must be hexadecimal"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "gt":
		return "must be greater than " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	default:
		return "is invalid"
	}
}

// NormalizeInitials applies the same normalization the contract validator uses
// and checks the result, for initials that arrive outside a submission (path
// parameters, CLI flags). Lowercase input is accepted and upper-cased.
func NormalizeInitials(raw string) (string, error) {
	initials := strings.ToUpper(strings.TrimSpace(norm.NFKC.String(raw)))
	if !initialsPattern.MatchString(initials) {
		return "", domainerrors.MalformedInput(FieldPlayerInitials, "must be 1-3 characters A-Z or 0-9")
	}
	return initials, nil
}
