// Package flows contains the orchestration for every Engine operation:
// registration, verification, sign-in, sign-out and both halves of the
// password reset.
//
// Each Run function takes a typed dependency struct of plain functions and
// returns a result value. Field validation and business-rule rejections are
// reported through form.Errors on that result; only infrastructure failures
// come back as errors. The Engine owns every resource the flows touch.
//
// This package must not import the root gate package.
package flows
