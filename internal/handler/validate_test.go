package handler

import "testing"

func TestValidEmail(t *testing.T) {
	valid := []string{
		"a@b.co",
		"ann.smith@example.com",
		"ann+tag@example.co.uk",
	}
	for _, s := range valid {
		if !validEmail(s) {
			t.Errorf("validEmail(%q) = false, want true", s)
		}
	}

	invalid := []string{
		"",
		"not-an-email",
		"@example.com",
		"ann@",
		"Ann Smith <ann@example.com>", // display-name form is rejected
		"ann@example.com ",
	}
	for _, s := range invalid {
		if validEmail(s) {
			t.Errorf("validEmail(%q) = true, want false", s)
		}
	}
}

func TestValidPassword(t *testing.T) {
	tests := []struct {
		password string
		want     bool
	}{
		{"P@ss1x", true},
		{"N3w-P@ssw0rd", true},
		{"", false},
		{"P@s1x", false},     // too short
		{"p@ssw0rd1", false}, // no uppercase
		{"P@SSW0RD1", false}, // no lowercase
		{"P@ssword!", false}, // no digit
		{"Passw0rd1", false}, // no symbol
	}
	for _, tt := range tests {
		if got := validPassword(tt.password); got != tt.want {
			t.Errorf("validPassword(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}

func TestLengthBetween(t *testing.T) {
	if !lengthBetween("abc", 3, 20) || lengthBetween("ab", 3, 20) {
		t.Error("lengthBetween bounds are inclusive on min")
	}
	if !lengthBetween("ééé", 3, 3) {
		t.Error("lengthBetween counts runes, not bytes")
	}
}
