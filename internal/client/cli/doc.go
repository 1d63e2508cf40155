// Package cli provides the interactive CryptoDesk admin console.
//
// It wires configuration, the HTTP admin client and a REPL. Typical flow:
// prompt for admin credentials, then run commands until exit.
//
// Commands:
//   - login / logout / passwd
//   - stats, users, tx (transactions), resets, reconcile
//   - paid <id>, failed <id> to settle a pending transaction
//   - export to archive the transaction set
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
