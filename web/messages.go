package web

import (
	"html/template"
	"strings"

	"github.com/afromart/gate/form"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var supported = []language.Tag{language.English}

var matcher = language.NewMatcher(supported)

// Codes whose text carries a link and is emitted unescaped. Their only
// argument is a route path from the configuration.
var htmlCodes = map[form.Code]bool{
	form.CodeCredentialsMismatch: true,
	form.CodeEmailTaken:          true,
}

func init() {
	lang := language.English

	message.SetString(lang, string(form.CodeRequired), "This field is required.")

	// Signup
	message.SetString(lang, string(form.CodeUsernameLength), "Username needs to be at least %[1]s and at most %[2]s characters.")
	message.SetString(lang, string(form.CodeUsernameCharset), "Username can only contain letters and numbers.")
	message.SetString(lang, string(form.CodeUsernameTaken), "This username is already taken. Please choose a different one.")
	message.SetString(lang, string(form.CodeEmailInvalid), "Enter a valid email address.")
	message.SetString(lang, string(form.CodeEmailDomain), "Please use your GMail email address.")
	message.SetString(lang, string(form.CodeEmailTaken), "A customer with this email address already exists. Would you like to <a href=%s>log in</a> instead?")

	// Passwords
	message.SetString(lang, string(form.CodePasswordMaxLength), "Password must not exceed %s characters.")
	message.SetString(lang, string(form.CodePasswordTooShort), "This password is too short. It must contain at least %s characters.")
	message.SetString(lang, string(form.CodePasswordSimilar), "The password is too similar to the %s.")
	message.SetString(lang, string(form.CodePasswordCommon), "This password is too common.")
	message.SetString(lang, string(form.CodePasswordNumeric), "This password is entirely numeric.")
	message.SetString(lang, string(form.CodePasswordMismatch), "Passwords don't match.")

	// Sign-in
	message.SetString(lang, string(form.CodeCredentialsMismatch), "Username and password combination didn't match. <a href=%s>Reset password?</a>")
	message.SetString(lang, string(form.CodeAccountUnverified), "Please verify your email address.")
	message.SetString(lang, string(form.CodeTooManyAttempts), "Too many failed sign-in attempts. Try again later.")

	// Password reset
	message.SetString(lang, string(form.CodeNoActiveAccount), "We couldn't find an active customer with that email address.")
	message.SetString(lang, string(form.CodeResetLinkStillValid), "The password reset link we emailed you is still valid.")
}

// messageArgs supplies the values a message refers to.
type messageArgs struct {
	UsernameMin  string
	UsernameMax  string
	SignIn       string
	ResetRequest string
}

func printerFor(acceptLanguage string) *message.Printer {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	_, idx, _ := matcher.Match(tags...)
	return message.NewPrinter(supported[idx])
}

func translate(p *message.Printer, fe form.Error, args messageArgs) template.HTML {
	var text string
	switch fe.Code {
	case form.CodeUsernameLength:
		text = p.Sprintf(string(fe.Code), args.UsernameMin, args.UsernameMax)
	case form.CodeEmailTaken:
		text = p.Sprintf(string(fe.Code), args.SignIn)
	case form.CodeCredentialsMismatch:
		text = p.Sprintf(string(fe.Code), args.ResetRequest)
	case form.CodePasswordMaxLength, form.CodePasswordTooShort, form.CodePasswordSimilar:
		text = p.Sprintf(string(fe.Code), fe.Param)
	default:
		text = p.Sprintf(string(fe.Code))
	}
	if htmlCodes[fe.Code] {
		return template.HTML(text)
	}
	return template.HTML(template.HTMLEscapeString(text))
}

// fieldMessages renders every error in errs, keyed by field.
func fieldMessages(p *message.Printer, errs form.Errors, args messageArgs) map[string][]template.HTML {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string][]template.HTML, len(errs))
	for field, list := range errs {
		for _, fe := range list {
			out[field] = append(out[field], translate(p, fe, args))
		}
	}
	return out
}

func joinMessages(msgs []template.HTML) template.HTML {
	parts := make([]string, len(msgs))
	for i, m := range msgs {
		parts[i] = string(m)
	}
	return template.HTML(strings.Join(parts, " "))
}
