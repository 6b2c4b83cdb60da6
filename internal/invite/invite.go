package invite

import (
	"math/rand"
	"strings"

	"gritAPI/internal/apperr"
)

// Alphabet excludes the visually ambiguous I, O, 0 and 1. 32 symbols over 6
// positions gives ~1.07e9 codes; uniqueness is enforced lazily by the store's
// unique constraint rather than checked at generation time.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed invite-code length.
const CodeLength = 6

// GenerateCode returns a fresh 6-character invite code.
func GenerateCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(Alphabet[rand.Intn(len(Alphabet))])
	}
	return b.String()
}

// Normalize upper-cases and trims a user-typed code so "ab3d9k " matches
// the stored "AB3D9K".
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate rejects codes that cannot possibly exist before any store lookup.
// Call with an already normalized code.
func Validate(code string) error {
	if len(code) != CodeLength {
		return apperr.ValidationError{Field: "invite_code", Message: "invite code must be 6 characters"}
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(Alphabet, rune(code[i])) {
			return apperr.ValidationError{Field: "invite_code", Message: "invite code contains invalid characters"}
		}
	}
	return nil
}
