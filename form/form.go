// Package form carries field-keyed validation results between the flows and
// whatever renders them. Validation failures are values, not errors: a flow
// returns a populated Errors and the caller re-renders the form.
package form

// Field names used by the gate forms.
const (
	FieldUsername  = "username"
	FieldPassword  = "password"
	FieldEmail     = "email"
	FieldPassword1 = "password1"
	FieldPassword2 = "password2"
)

// Code identifies a user-facing message. Renderers translate codes into text.
type Code string

const (
	CodeRequired            Code = "required"
	CodeUsernameLength      Code = "username_length"
	CodeUsernameCharset     Code = "username_charset"
	CodeUsernameTaken       Code = "username_taken"
	CodePasswordMaxLength   Code = "password_max_length"
	CodePasswordTooShort    Code = "password_too_short"
	CodePasswordSimilar     Code = "password_too_similar"
	CodePasswordCommon      Code = "password_too_common"
	CodePasswordNumeric     Code = "password_entirely_numeric"
	CodePasswordMismatch    Code = "password_mismatch"
	CodeEmailInvalid        Code = "email_invalid"
	CodeEmailDomain         Code = "email_domain"
	CodeEmailTaken          Code = "email_taken"
	CodeCredentialsMismatch Code = "credentials_mismatch"
	CodeAccountUnverified   Code = "account_unverified"
	CodeTooManyAttempts     Code = "too_many_attempts"
	CodeNoActiveAccount     Code = "no_active_account"
	CodeResetLinkStillValid Code = "reset_link_still_valid"
)

// Error is one message attached to a field. Param carries an optional value
// the message refers to, such as the attribute a password resembles.
type Error struct {
	Code  Code
	Param string
}

// Errors maps field names to their messages, in the order they were added.
type Errors map[string][]Error

// Add attaches code to field.
func (e *Errors) Add(field string, code Code) {
	e.AddParam(field, code, "")
}

// AddParam attaches code with a parameter to field.
func (e *Errors) AddParam(field string, code Code, param string) {
	if *e == nil {
		*e = make(Errors)
	}
	(*e)[field] = append((*e)[field], Error{Code: code, Param: param})
}

// Valid reports whether no field carries an error.
func (e Errors) Valid() bool {
	for _, errs := range e {
		if len(errs) > 0 {
			return false
		}
	}
	return true
}

// Has reports whether field carries code.
func (e Errors) Has(field string, code Code) bool {
	for _, fe := range e[field] {
		if fe.Code == code {
			return true
		}
	}
	return false
}

// Field returns the errors attached to field.
func (e Errors) Field(field string) []Error {
	return e[field]
}
