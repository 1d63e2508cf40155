package server

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/cryptodesk/internal/server/config"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.HTTPAddr = "127.0.0.1:0"
	c.BcryptCost = 4
	c.LogFormat = "text"
	return c
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := testConfig()
	c.SecretKey = ""

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
}

func TestNewApp_BadAdminEmail(t *testing.T) {
	c := testConfig()
	c.AdminEmail = "not-an-email"

	_, err := NewApp(context.Background(), c)
	require.ErrorContains(t, err, "admin bootstrap")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	c := testConfig()
	c.GRPCHealthAddr = "127.0.0.1:0"

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, app.health)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
