package form

import "testing"

func TestErrorsAddAndQuery(t *testing.T) {
	var errs Errors
	if !errs.Valid() {
		t.Fatal("nil Errors must be valid")
	}

	errs.Add(FieldUsername, CodeUsernameLength)
	errs.AddParam(FieldPassword, CodePasswordSimilar, "username")
	errs.Add(FieldUsername, CodeUsernameCharset)

	if errs.Valid() {
		t.Fatal("expected errors to be invalid after Add")
	}
	if !errs.Has(FieldUsername, CodeUsernameCharset) {
		t.Fatal("expected username charset error")
	}
	if errs.Has(FieldEmail, CodeEmailDomain) {
		t.Fatal("unexpected email error")
	}

	got := errs.Field(FieldUsername)
	if len(got) != 2 || got[0].Code != CodeUsernameLength || got[1].Code != CodeUsernameCharset {
		t.Fatalf("unexpected username errors order: %+v", got)
	}
	if p := errs.Field(FieldPassword)[0].Param; p != "username" {
		t.Fatalf("expected param username, got %q", p)
	}
}
