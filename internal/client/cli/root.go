package cli

import (
	"bufio"
	"context"
	"fmt"
	"log"
)

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return "(guest)"
	}
	return fmt.Sprintf("(%s)", a.email)
}

func (a *App) Root(ctx context.Context) {

	log.Println("Welcome to CryptoDesk admin console (type 'help' for commands)")

	if err := a.api.Ping(ctx); err != nil {
		log.Printf("server %s is not reachable: %v", a.config.ServerURL, err)
	} else if err := a.Login(ctx); err != nil {
		log.Printf("Login unsuccessful: %v", err)
	}

	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}
