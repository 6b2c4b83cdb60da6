package invite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"gritAPI/internal/apperr"
)

func TestGenerateCodeFormat(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		code := GenerateCode()

		assert.Len(t, code, CodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(Alphabet, r), "code %q contains %q outside the alphabet", code, r)
		}
		seen[code] = true
	}

	// Not a uniqueness guarantee, just a sanity check that the generator
	// isn't stuck.
	assert.Greater(t, len(seen), 190)
}

func TestAlphabetExcludesAmbiguousSymbols(t *testing.T) {
	for _, r := range "IO01" {
		assert.False(t, strings.ContainsRune(Alphabet, r), "alphabet must not contain %q", r)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "AB3D9K", Normalize("ab3d9k "))
	assert.Equal(t, "AB3D9K", Normalize("  AB3D9K"))
	assert.Equal(t, "AB3D9K", Normalize("Ab3d9K"))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("AB3D9K"))

	for _, bad := range []string{"", "ABC", "ABCDEFG", "AB3D9O", "AB3D91", "AB3D9!"} {
		err := Validate(bad)
		assert.Error(t, err, "code %q", bad)
		assert.True(t, apperr.IsValidation(err))
	}
}

func TestNormalizeThenValidateRoundTrip(t *testing.T) {
	code := GenerateCode()
	assert.NoError(t, Validate(Normalize(strings.ToLower(code)+" ")))
}
