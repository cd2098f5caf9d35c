package validation

import (
	"strings"
	"testing"
)

func TestValidateGroupCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"", false},
		{"abc", false},
		{"ab12", true},
		{"longer-code", true},
	}
	for _, tt := range tests {
		if got := ValidateGroupCode(tt.code); got != tt.want {
			t.Errorf("ValidateGroupCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestValidatePhotoURL(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"not a url", false},
		{"https://example.com/x.png", true},
		{"www.example.org", true},
		{"http://localhost", false},
	}
	for _, tt := range tests {
		if got := ValidatePhotoURL(tt.input); got != tt.want {
			t.Errorf("ValidatePhotoURL(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"", false},
		{"plainaddress", false},
		{"user@example.com", true},
		{"first.last@sub.domain.org", true},
		{"missing@tld", false},
	}
	for _, tt := range tests {
		if got := ValidateEmail(tt.email); got != tt.want {
			t.Errorf("ValidateEmail(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if ValidatePassword("") {
		t.Error("empty password must fail")
	}
	if ValidatePassword("12345") {
		t.Error("five characters must fail")
	}
	if !ValidatePassword("123456") {
		t.Error("six characters must pass")
	}
}

func TestValidatePasswordConfirmation(t *testing.T) {
	if ValidatePasswordConfirmation("", "") {
		t.Error("two empty values must fail")
	}
	if ValidatePasswordConfirmation("secret1", "secret2") {
		t.Error("mismatch must fail")
	}
	if !ValidatePasswordConfirmation("secret1", "secret1") {
		t.Error("equal values must pass")
	}
}

func TestValidateDisplayName(t *testing.T) {
	long := strings.Repeat("x", MaxDisplayNameLength+1)

	if !ValidateDisplayName("", "Existing") {
		t.Error("a current name makes any input acceptable")
	}
	if ValidateDisplayName("", "") {
		t.Error("empty input without a current name must fail")
	}
	if ValidateDisplayName(long, "") {
		t.Error("too long input must fail")
	}
	if !ValidateDisplayName("Ana", "") {
		t.Error("short input must pass")
	}
}

func TestRequiredAndEmptyFields(t *testing.T) {
	if ValidateRequiredField("   ") {
		t.Error("blank required field must fail")
	}
	if !ValidateRequiredField("Xmas") {
		t.Error("non-empty required field must pass")
	}
	if !ValidateEmptyStringField("") {
		t.Error("empty optional field must report empty")
	}
	if ValidateEmptyStringField("x") {
		t.Error("filled optional field must not report empty")
	}
}
