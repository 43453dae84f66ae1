package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/esign-platform/config"
	"go.uber.org/zap"
)

func TestNewHTTPServer(t *testing.T) {
	cfg := config.Defaults().Server
	handler := http.NewServeMux()

	srv := newHTTPServer(cfg, handler)

	assert.Equal(t, "0.0.0.0:8080", srv.Addr)
	assert.Equal(t, cfg.ReadTimeout, srv.ReadTimeout)
	assert.Equal(t, cfg.WriteTimeout, srv.WriteTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
	assert.Same(t, handler, srv.Handler)
}

func TestServe(t *testing.T) {
	t.Run("shuts down when context is cancelled", func(t *testing.T) {
		cfg := config.Defaults().Server
		cfg.Host, cfg.Port = "127.0.0.1", 0
		cfg.ShutdownTimeout = time.Second
		srv := newHTTPServer(cfg, http.NewServeMux())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- serve(ctx, srv, cfg, zap.NewNop()) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("serve did not return after cancel")
		}
	})

	t.Run("reports listen errors", func(t *testing.T) {
		cfg := config.Defaults().Server
		cfg.Host, cfg.Port = "127.0.0.1", -1
		srv := newHTTPServer(cfg, http.NewServeMux())

		err := serve(context.Background(), srv, cfg, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server error")
	})
}
