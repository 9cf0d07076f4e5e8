package password

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicyAcceptsStrongPassword(t *testing.T) {
	p := DefaultPolicy(8, DefaultMaxSimilarity)
	got := p.Validate("Secr3t!Pass",
		Attribute{Name: "username", Value: "alice001"},
		Attribute{Name: "email address", Value: "alice@gmail.com"},
	)
	require.Empty(t, got)
}

func TestMinimumLength(t *testing.T) {
	v := MinimumLength(8)
	require.Equal(t, &Violation{Code: CodeTooShort, Param: "8"}, v.Validate("k9#mQ2v", nil))
	require.Nil(t, v.Validate("k9#mQ2vz", nil))
	// Runes, not bytes.
	require.NotNil(t, v.Validate("ñññññññ", nil))
}

func TestNumeric(t *testing.T) {
	v := Numeric()
	require.Equal(t, &Violation{Code: CodeNumeric}, v.Validate("90817263", nil))
	require.Nil(t, v.Validate("9081726a", nil))
	require.Nil(t, v.Validate("", nil))
}

func TestCommonPassword(t *testing.T) {
	v := CommonPassword()
	for _, pw := range []string{"password", "PassWord1", "  qwerty123 ", "iloveyou"} {
		require.Equal(t, &Violation{Code: CodeCommon}, v.Validate(pw, nil), pw)
	}
	require.Nil(t, v.Validate("Secr3t!Pass", nil))
}

func TestUserAttributeSimilarity(t *testing.T) {
	v := UserAttributeSimilarity(DefaultMaxSimilarity)
	attrs := []Attribute{
		{Name: "username", Value: "alice001"},
		{Name: "email address", Value: "marketplace.buyer@gmail.com"},
	}

	require.Equal(t, &Violation{Code: CodeSimilar, Param: "username"}, v.Validate("Alice0012", attrs))
	// A word of the email matches even though the full address does not.
	require.Equal(t, &Violation{Code: CodeSimilar, Param: "email address"}, v.Validate("buyer123", attrs))
	require.Nil(t, v.Validate("Secr3t!Pass", attrs))
}

func TestUserAttributeSimilaritySkipsShortParts(t *testing.T) {
	v := UserAttributeSimilarity(DefaultMaxSimilarity)
	// "a" is far shorter than the password, so it cannot cause a rejection.
	attrs := []Attribute{{Name: "username", Value: "a"}}
	require.Nil(t, v.Validate("aaaaaaaaaaaa", attrs))
}

func TestPolicyCollectsAllViolations(t *testing.T) {
	p := DefaultPolicy(8, DefaultMaxSimilarity)
	got := p.Validate("123456")
	require.Equal(t, []Violation{
		{Code: CodeTooShort, Param: "8"},
		{Code: CodeCommon},
		{Code: CodeNumeric},
	}, got)
}

func TestQuickRatio(t *testing.T) {
	require.InDelta(t, 1.0, quickRatio([]rune("abc"), []rune("cba")), 1e-9)
	require.InDelta(t, 0.5, quickRatio([]rune("ab"), []rune("ac")), 1e-9)
	require.InDelta(t, 0.0, quickRatio([]rune("ab"), []rune("cd")), 1e-9)
}
