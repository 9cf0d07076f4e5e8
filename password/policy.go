package password

import (
	"bufio"
	_ "embed"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Violation codes reported by the built-in validators. They double as form
// error codes so callers can surface them without translation.
const (
	CodeTooShort = "password_too_short"
	CodeSimilar  = "password_too_similar"
	CodeCommon   = "password_too_common"
	CodeNumeric  = "password_entirely_numeric"
)

// DefaultMaxSimilarity is the quick-ratio threshold at which a password is
// considered too close to a user attribute.
const DefaultMaxSimilarity = 0.7

// Attribute is a named user value a password must not resemble.
// Name is the human readable label reported back on a violation.
type Attribute struct {
	Name  string
	Value string
}

// Violation describes one failed rule. Param carries the rule argument:
// the minimum length for CodeTooShort and the attribute name for CodeSimilar.
type Violation struct {
	Code  string
	Param string
}

// Validator checks a candidate password against the given user attributes.
type Validator interface {
	Validate(password string, attrs []Attribute) *Violation
}

// Policy runs validators in order and collects every violation.
type Policy struct {
	validators []Validator
}

// NewPolicy builds a policy from validators, run in the order given.
func NewPolicy(validators ...Validator) *Policy {
	return &Policy{validators: validators}
}

// DefaultPolicy is the registration and reset policy: minimum length,
// attribute similarity, common password list, and the all-digits check.
func DefaultPolicy(minLength int, maxSimilarity float64) *Policy {
	return NewPolicy(
		MinimumLength(minLength),
		UserAttributeSimilarity(maxSimilarity),
		CommonPassword(),
		Numeric(),
	)
}

// Validate returns every violation for password, or nil when it passes.
func (p *Policy) Validate(password string, attrs ...Attribute) []Violation {
	var out []Violation
	for _, v := range p.validators {
		if violation := v.Validate(password, attrs); violation != nil {
			out = append(out, *violation)
		}
	}
	return out
}

type minimumLength int

// MinimumLength rejects passwords with fewer than n characters.
func MinimumLength(n int) Validator { return minimumLength(n) }

func (n minimumLength) Validate(password string, _ []Attribute) *Violation {
	if utf8.RuneCountInString(password) < int(n) {
		return &Violation{Code: CodeTooShort, Param: strconv.Itoa(int(n))}
	}
	return nil
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

type attributeSimilarity float64

// UserAttributeSimilarity rejects passwords whose quick ratio against any
// attribute, or any word of it, reaches maxSimilarity. Comparison is
// case-insensitive.
func UserAttributeSimilarity(maxSimilarity float64) Validator {
	return attributeSimilarity(maxSimilarity)
}

func (s attributeSimilarity) Validate(password string, attrs []Attribute) *Violation {
	pwd := []rune(strings.ToLower(password))
	for _, attr := range attrs {
		if attr.Value == "" {
			continue
		}
		value := strings.ToLower(attr.Value)
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			candidate := []rune(part)
			if exceedsLengthRatio(len(pwd), len(candidate), float64(s)) {
				continue
			}
			if quickRatio(pwd, candidate) >= float64(s) {
				return &Violation{Code: CodeSimilar, Param: attr.Name}
			}
		}
	}
	return nil
}

// exceedsLengthRatio reports whether the value is so much shorter than the
// password that no ratio above maxSimilarity is reachable.
func exceedsLengthRatio(pwdLen, valueLen int, maxSimilarity float64) bool {
	bound := maxSimilarity / 2 * float64(pwdLen)
	return pwdLen >= 10*valueLen && float64(valueLen) < bound
}

// quickRatio is an upper bound on the sequence similarity of a and b:
// twice the multiset intersection over the combined length.
func quickRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	avail := make(map[rune]int, len(b))
	for _, r := range b {
		avail[r]++
	}
	matches := 0
	for _, r := range a {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

//go:embed common-passwords.txt
var commonPasswordsFile string

var (
	commonOnce sync.Once
	commonSet  map[string]struct{}
)

func loadCommonPasswords() map[string]struct{} {
	commonOnce.Do(func() {
		commonSet = make(map[string]struct{}, 512)
		sc := bufio.NewScanner(strings.NewReader(commonPasswordsFile))
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			commonSet[strings.ToLower(line)] = struct{}{}
		}
	})
	return commonSet
}

type commonPassword struct {
	set map[string]struct{}
}

// CommonPassword rejects passwords found in the embedded list of commonly
// used passwords, ignoring case and surrounding whitespace.
func CommonPassword() Validator {
	return commonPassword{set: loadCommonPasswords()}
}

func (c commonPassword) Validate(password string, _ []Attribute) *Violation {
	if _, ok := c.set[strings.ToLower(strings.TrimSpace(password))]; ok {
		return &Violation{Code: CodeCommon}
	}
	return nil
}

type numeric struct{}

// Numeric rejects passwords made up only of digits.
func Numeric() Validator { return numeric{} }

func (numeric) Validate(password string, _ []Attribute) *Violation {
	if password == "" {
		return nil
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return nil
		}
	}
	return &Violation{Code: CodeNumeric}
}
