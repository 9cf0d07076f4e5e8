package flows

import (
	netmail "net/mail"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/afromart/gate/form"
	"github.com/afromart/gate/password"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// FieldRules are the shape constraints on submitted account fields.
type FieldRules struct {
	UsernameMinLen      int
	UsernameMaxLen      int
	PasswordMaxLen      int
	AllowedEmailDomains []string
}

// PasswordPolicy checks a candidate password against the strength rules.
type PasswordPolicy func(pw string, attrs ...password.Attribute) []password.Violation

// Attribute labels reported when a password resembles account data.
const (
	AttributeUsername = "username"
	AttributeEmail    = "email address"
)

// CheckUsername reports the first rule username breaks, if any.
func CheckUsername(username string, rules FieldRules, errs *form.Errors) bool {
	if username == "" {
		errs.Add(form.FieldUsername, form.CodeRequired)
		return false
	}
	if n := utf8.RuneCountInString(username); n < rules.UsernameMinLen || n > rules.UsernameMaxLen {
		errs.Add(form.FieldUsername, form.CodeUsernameLength)
		return false
	}
	if !usernamePattern.MatchString(username) {
		errs.Add(form.FieldUsername, form.CodeUsernameCharset)
		return false
	}
	return true
}

// CheckEmailSyntax accepts a bare address with a dotted domain.
func CheckEmailSyntax(email string, errs *form.Errors) bool {
	if email == "" {
		errs.Add(form.FieldEmail, form.CodeRequired)
		return false
	}
	if !validEmail(email) {
		errs.Add(form.FieldEmail, form.CodeEmailInvalid)
		return false
	}
	return true
}

// CheckEmailDomain restricts a syntactically valid address to the allowed
// domains. Domains compare case-insensitively.
func CheckEmailDomain(email string, rules FieldRules, errs *form.Errors) bool {
	domain := strings.ToLower(email[strings.LastIndexByte(email, '@')+1:])
	for _, allowed := range rules.AllowedEmailDomains {
		if domain == strings.ToLower(allowed) {
			return true
		}
	}
	errs.Add(form.FieldEmail, form.CodeEmailDomain)
	return false
}

func validEmail(email string) bool {
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	if strings.ContainsAny(email, " \t") || !strings.Contains(domain, ".") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return true
}

// CheckPassword applies the optional maximum length and then the strength
// policy, attaching every violation to field. maxLen <= 0 disables the
// length cap.
func CheckPassword(field, pw string, maxLen int, policy PasswordPolicy, errs *form.Errors, attrs ...password.Attribute) bool {
	if pw == "" {
		errs.Add(field, form.CodeRequired)
		return false
	}
	if maxLen > 0 && utf8.RuneCountInString(pw) > maxLen {
		errs.AddParam(field, form.CodePasswordMaxLength, strconv.Itoa(maxLen))
		return false
	}
	if policy == nil {
		return true
	}
	violations := policy(pw, attrs...)
	for _, v := range violations {
		errs.AddParam(field, form.Code(v.Code), v.Param)
	}
	return len(violations) == 0
}

func userAttributes(username, email string) []password.Attribute {
	return []password.Attribute{
		{Name: AttributeUsername, Value: username},
		{Name: AttributeEmail, Value: email},
	}
}
