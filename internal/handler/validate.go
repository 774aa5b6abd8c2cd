package handler

// Boundary validation. The password policy and email syntax check gate
// the external interface here; the services below assume well-formed
// input and only enforce invariants the store can check (uniqueness).

import (
	"net/mail"
	"unicode"
	"unicode/utf8"
)

// validEmail reports whether s parses as a bare RFC 5322 address.
// mail.ParseAddress accepts "Name <a@b>" forms; we require the address
// alone, so the round trip must give back exactly the input.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// validPassword enforces the password policy for credentialed accounts:
// at least 6 characters with a digit, a lowercase letter, an uppercase
// letter, and a symbol.
func validPassword(s string) bool {
	if utf8.RuneCountInString(s) < 6 {
		return false
	}
	var digit, lower, upper, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return digit && lower && upper && symbol
}

const passwordPolicyMessage = "password must be at least 6 characters and contain a digit, a lowercase letter, an uppercase letter, and a symbol"

// lengthBetween checks an inclusive rune-count range.
func lengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}
