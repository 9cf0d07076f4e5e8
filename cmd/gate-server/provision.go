package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/afromart/gate"
	"github.com/afromart/gate/internal/logging"
	"github.com/afromart/gate/mail"
)

// provision creates an active account. It needs DATABASE_URL; against the
// in-memory fallback the account would vanish on exit.
func provision(pe processEnv, log logging.Logger, args []string) error {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (PROVISION_PASSWORD env if empty)")
	staff := fs.Bool("staff", false, "grant staff access")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		*password = os.Getenv("PROVISION_PASSWORD")
	}
	if *username == "" || *email == "" || *password == "" {
		fs.Usage()
		return errors.New("username, email and password are required")
	}
	if pe.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx := context.Background()
	d, err := openDeps(ctx, pe, log)
	if err != nil {
		return err
	}
	defer d.close()

	engine, err := buildEngine(pe, d, discardNotifier{}, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	user, err := engine.ProvisionUser(ctx, gate.ProvisionRequest{
		Username: *username,
		Email:    *email,
		Password: *password,
		Staff:    *staff,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created user %d (%s)\n", user.ID, user.Username)
	return nil
}

// discardNotifier refuses every message; provisioned accounts get no mail.
type discardNotifier struct{}

func (discardNotifier) Submit(context.Context, mail.Message) bool { return false }
