// Package validation holds the field predicates shared by request models.
// Every function is pure and reports pass/fail only; callers attach the
// user-facing message.
package validation

import (
	"regexp"
	"strings"
)

const (
	MinPasswordLength    = 6
	MinGroupCodeLength   = 4
	MaxDisplayNameLength = 60
)

var (
	emailPattern = regexp.MustCompile(`(.+)@(.+){2,}\.(.+){2,}`)
	urlPattern   = regexp.MustCompile(`(http(s)?://.)?(www\.)?[-a-zA-Z0-9@:%._+~#=]{2,256}\.[a-z]{2,6}\b([-a-zA-Z0-9@:%_+.~#?&/=]*)`)
)

func ValidateEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

func ValidatePassword(password string) bool {
	return len(password) >= MinPasswordLength
}

func ValidatePasswordConfirmation(password, confirmation string) bool {
	return password != "" && password == confirmation
}

// ValidateDisplayName accepts any input once a display name is already set;
// otherwise the input must be present and at most MaxDisplayNameLength runes.
func ValidateDisplayName(input, current string) bool {
	if current != "" {
		return true
	}
	return input != "" && len([]rune(input)) <= MaxDisplayNameLength
}

// ValidatePhotoURL allows an empty value ("no photo").
func ValidatePhotoURL(input string) bool {
	return input == "" || IsValidURL(input)
}

func IsValidURL(url string) bool {
	return urlPattern.MatchString(url)
}

func ValidateGroupCode(code string) bool {
	return len(code) >= MinGroupCodeLength
}

func ValidateRequiredField(input string) bool {
	return strings.TrimSpace(input) != ""
}

// ValidateEmptyStringField reports whether an optional field was left empty.
func ValidateEmptyStringField(input string) bool {
	return input == ""
}
