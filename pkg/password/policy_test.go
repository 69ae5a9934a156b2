package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	checker := NewDefaultPolicyChecker(nil)

	t.Run("ValidPassword", func(t *testing.T) {
		eval := checker.Evaluate("Abcdef1!")
		assert.True(t, eval.IsValid)
		assert.Empty(t, eval.Errors)
	})

	t.Run("TooShort", func(t *testing.T) {
		eval := checker.Evaluate("Ab1!")
		assert.False(t, eval.IsValid)
		assert.Contains(t, eval.Errors, "password must be at least 8 characters long")
	})

	t.Run("MissingUppercase", func(t *testing.T) {
		eval := checker.Evaluate("abcdef1!")
		assert.False(t, eval.IsValid)
		assert.Contains(t, eval.Errors, "password must contain at least one uppercase letter")
	})

	t.Run("MissingLowercase", func(t *testing.T) {
		eval := checker.Evaluate("ABCDEF1!")
		assert.False(t, eval.IsValid)
		assert.Contains(t, eval.Errors, "password must contain at least one lowercase letter")
	})

	t.Run("MissingDigit", func(t *testing.T) {
		eval := checker.Evaluate("Abcdefg!")
		assert.False(t, eval.IsValid)
		assert.Contains(t, eval.Errors, "password must contain at least one digit")
	})

	t.Run("MissingSpecialChar", func(t *testing.T) {
		eval := checker.Evaluate("Abcdefg1")
		assert.False(t, eval.IsValid)
		assert.Contains(t, eval.Errors, "password must contain at least one special character")
	})

	t.Run("OneErrorPerViolatedRule", func(t *testing.T) {
		eval := checker.Evaluate("abc")
		assert.False(t, eval.IsValid)
		// short, no uppercase, no digit, no special char
		assert.Len(t, eval.Errors, 4)
	})
}

func TestStrengthLabels(t *testing.T) {
	checker := NewDefaultPolicyChecker(nil)

	tests := []struct {
		name     string
		password string
		strength string
	}{
		{"EmptyIsWeak", "", StrengthWeak},
		{"LowercaseOnlyIsWeak", "abcdefgh", StrengthWeak},
		{"MixedCaseAndDigitIsMedium", "Abcdefg1", StrengthMedium},
		{"AllClassesIsStrong", "Abcdef1!", StrengthStrong},
		{"LongWithAllClassesIsVeryStrong", "Abcdefghij1!", StrengthVeryStrong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := checker.Evaluate(tt.password)
			assert.Equal(t, tt.strength, eval.Strength)
		})
	}
}

func TestHashAndVerify(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		hash, err := Hash("Abcdef1!")
		require.NoError(t, err)
		require.NotEmpty(t, hash)

		ok, err := Verify("Abcdef1!", hash)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		hash, err := Hash("Abcdef1!")
		require.NoError(t, err)

		ok, err := Verify("Wrong1!pass", hash)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("EmptyPassword", func(t *testing.T) {
		_, err := Hash("")
		assert.Error(t, err)

		ok, err := Verify("", "something")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("CorruptedHash", func(t *testing.T) {
		ok, err := Verify("Abcdef1!", "not-a-bcrypt-hash")
		assert.Error(t, err)
		assert.False(t, ok)
	})
}
