// Package profile holds the validation rules for user-editable profile
// fields. The wizard checks fields one at a time; storage checks the whole
// record again before writing.
package profile

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	svcErr "github.com/oggyb/matchbot/internal/errors"
)

const (
	MinAge  = 18
	MaxAge  = 100
	MinCity = 2
	MinBio  = 10
)

// Profile is the full set of six fields written by the profile wizard.
type Profile struct {
	Age           int    `validate:"gte=18,lte=100"`
	Gender        string `validate:"oneof=male female"`
	City          string `validate:"min=2,max=128"`
	SeekingGender string `validate:"oneof=male female any"`
	Goal          string `validate:"oneof=serious friendship casual active"`
	Bio           string `validate:"min=10,max=1000"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field and reports the first violation.
func (p Profile) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
		return svcErr.Validation(fieldMessage(verrs[0].Field()))
	}
	return svcErr.Validation("invalid profile")
}

func asValidationErrors(err error, out *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*out = v
	}
	return ok
}

func fieldMessage(field string) string {
	switch field {
	case "Age":
		return fmt.Sprintf("Age must be a number between %d and %d.", MinAge, MaxAge)
	case "Gender":
		return "Please choose male or female."
	case "City":
		return fmt.Sprintf("City name must be at least %d characters.", MinCity)
	case "SeekingGender":
		return "Please choose male, female or any."
	case "Goal":
		return "Please choose one of the goals on the keyboard."
	case "Bio":
		return fmt.Sprintf("Tell a bit more about yourself: at least %d characters.", MinBio)
	default:
		return "invalid " + strings.ToLower(field)
	}
}

// ParseAge validates free-text age input.
func ParseAge(s string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || validate.Var(age, "gte=18,lte=100") != nil {
		return 0, svcErr.Validation(fieldMessage("Age"))
	}
	return age, nil
}

func ParseGender(s string) (string, error) {
	v := strings.TrimSpace(s)
	if validate.Var(v, "oneof=male female") != nil {
		return "", svcErr.Validation(fieldMessage("Gender"))
	}
	return v, nil
}

func ParseSeeking(s string) (string, error) {
	v := strings.TrimSpace(s)
	if validate.Var(v, "oneof=male female any") != nil {
		return "", svcErr.Validation(fieldMessage("SeekingGender"))
	}
	return v, nil
}

func ParseGoal(s string) (string, error) {
	v := strings.TrimSpace(s)
	if validate.Var(v, "oneof=serious friendship casual active") != nil {
		return "", svcErr.Validation(fieldMessage("Goal"))
	}
	return v, nil
}

// ParseCity strips decorations and checks the length in runes.
func ParseCity(s string) (string, error) {
	city := NormalizeCity(s)
	if validate.Var(city, "min=2,max=128") != nil {
		return "", svcErr.Validation(fieldMessage("City"))
	}
	return city, nil
}

func ParseBio(s string) (string, error) {
	bio := strings.TrimSpace(s)
	if validate.Var(bio, "min=10,max=1000") != nil {
		return "", svcErr.Validation(fieldMessage("Bio"))
	}
	return bio, nil
}

// NormalizeCity removes emoji and other symbols (keyboard buttons often
// carry a flag or pin) and collapses whitespace.
func NormalizeCity(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '\'', r == '.':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}

// CityKey is the search form of a city: normalized and lower-cased.
func CityKey(s string) string {
	return strings.ToLower(NormalizeCity(s))
}
