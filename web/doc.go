// Package web serves the account pages: sign-in, sign-out, signup, email
// verification and password reset. Mount [Handler.Routes] under /gate.
//
// Form failures re-render the page with status 200 and per-field messages
// from the English catalog in messages.go. Only an unknown verification
// link answers 404. Infrastructure errors render a generic 500 page
// carrying the request id.
package web
