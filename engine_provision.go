package gate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/afromart/gate/form"
	"github.com/afromart/gate/internal/flows"
	"github.com/afromart/gate/password"
)

// ProvisionUser creates an account that is active from the start, for
// operators and seed data. It applies the username and password rules but
// not the email domain allow-list, and sends no email. Rule violations are
// returned as a *ProvisionError wrapping ErrProvisionInvalid.
func (e *Engine) ProvisionUser(ctx context.Context, req ProvisionRequest) (User, error) {
	if e == nil || e.users == nil || e.hasher == nil {
		return User{}, ErrEngineNotReady
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	var errs form.Errors
	flows.CheckUsername(username, e.fieldRules(), &errs)
	flows.CheckEmailSyntax(email, &errs)
	flows.CheckPassword(form.FieldPassword, req.Password, e.config.Policy.PasswordMaxLen, e.policy.Validate, &errs,
		password.Attribute{Name: flows.AttributeUsername, Value: username},
		password.Attribute{Name: flows.AttributeEmail, Value: email},
	)
	if !errs.Valid() {
		return User{}, &ProvisionError{Errors: errs}
	}

	taken, err := e.users.UsernameExists(ctx, username)
	if err != nil {
		return User{}, e.fatal(ctx, "provision", err)
	}
	if taken {
		return User{}, ErrUsernameTaken
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return User{}, err
	}
	id, err := e.users.CreateUser(ctx, NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Staff:        req.Staff,
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return User{}, err
		}
		return User{}, e.fatal(ctx, "provision", err)
	}

	e.metricInc(MetricUserProvisioned)
	e.emitAudit(ctx, flows.AuditRecord{
		Event:    AuditUserProvisioned,
		Success:  true,
		UserID:   id,
		Username: username,
	})

	return e.users.GetUserByID(ctx, id)
}

// ProvisionError lists the fields a provisioning request got wrong.
type ProvisionError struct {
	Errors form.Errors
}

func (p *ProvisionError) Error() string {
	fields := make([]string, 0, len(p.Errors))
	for field, errs := range p.Errors {
		for _, fe := range errs {
			fields = append(fields, field+": "+string(fe.Code))
		}
	}
	sort.Strings(fields)
	return fmt.Sprintf("%v: %s", ErrProvisionInvalid, strings.Join(fields, ", "))
}

func (p *ProvisionError) Unwrap() error { return ErrProvisionInvalid }
