package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cryptodesk/internal/client/client"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Stats(ctx context.Context) error
	Users(ctx context.Context) error
	Transactions(ctx context.Context) error
	Resets(ctx context.Context) error
	Reconcile(ctx context.Context) error
	Export(ctx context.Context) error
	MarkPaid(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit"/"quit".
//
//	Not logged in:
//	  - help           show available commands
//	  - login          authenticate as admin
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - stats          platform totals and fee earned
//	  - users          users with balances
//	  - tx             all transactions
//	  - resets         password reset requests
//	  - reconcile      ledger consistency report
//	  - export         archive transactions to object storage
//	  - paid <id>      mark a pending transaction paid
//	  - failed <id>    mark a pending transaction failed
//	  - passwd         change the admin password
//	  - logout         end the session
//
// Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("cdesk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: stats, users, tx, resets, reconcile, export, paid <id>, failed <id>, passwd, logout, exit")
			} else {
				printlnFn("Available commands: login, exit")
			}
			continue
		case "exit", "quit":
			printlnFn("Bye!")
			return
		case "login":
			report(a.Login(ctx))
			continue
		}

		if !a.isLoggedIn() {
			if isAdminCommand(cmd) {
				printlnFn("Not logged in, use 'login' first")
			} else {
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		switch cmd {
		case "stats":
			report(a.Stats(ctx))
		case "users":
			report(a.Users(ctx))
		case "tx", "transactions":
			report(a.Transactions(ctx))
		case "resets":
			report(a.Resets(ctx))
		case "reconcile":
			report(a.Reconcile(ctx))
		case "export":
			report(a.Export(ctx))
		case "paid", "failed":
			if len(args) != 1 {
				printlnFn(fmt.Sprintf("Usage: %s <transaction id>", cmd))
				continue
			}
			if cmd == "paid" {
				report(a.MarkPaid(ctx, args[0]))
			} else {
				report(a.MarkFailed(ctx, args[0]))
			}
		case "passwd":
			report(a.ChangePassword(ctx))
		case "logout":
			report(a.Logout(ctx))
		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func isAdminCommand(cmd string) bool {
	switch cmd {
	case "stats", "users", "tx", "transactions", "resets", "reconcile", "export", "paid", "failed", "passwd", "logout":
		return true
	}
	return false
}

func report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, client.ErrUnauthorized):
		printlnFn("Unauthorized, please login again")
	case errors.Is(err, client.ErrUnavailable):
		printlnFn("Server unavailable:", err)
	default:
		printlnFn("Error:", err)
	}
}
