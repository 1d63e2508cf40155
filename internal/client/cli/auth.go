package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/cryptodesk/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errPasswordMismatch = errors.New("passwords do not match")

// Login prompts for admin credentials and opens a session. A configured
// admin email is used without prompting. The password is wiped before
// returning.
func (a *App) Login(ctx context.Context) error {
	email := a.config.AdminEmail
	if email == "" {
		var err error
		email, err = getSimpleText(a.reader, "Enter admin email", a.out)
		if err != nil {
			return err
		}
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.api.Login(ctx, email, password); err != nil {
		return err
	}
	a.email = email
	fmt.Fprintln(a.out, "Login successful")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.api.Logout(ctx)
	a.email = ""
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// ChangePassword asks for the new password twice. Other admin sessions are
// signed out by the server; this console stays logged in.
func (a *App) ChangePassword(ctx context.Context) error {
	first, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(first)

	second, err := getPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(second)

	if !bytes.Equal(first, second) {
		return errPasswordMismatch
	}

	if err := a.api.ChangePassword(ctx, first); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed, other sessions were signed out")
	return nil
}
