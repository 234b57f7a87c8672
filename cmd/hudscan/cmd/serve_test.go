package cmd

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/config"
	"github.com/MeKo-Tech/hudscan/internal/extract"
	"github.com/MeKo-Tech/hudscan/internal/server"
	"github.com/MeKo-Tech/hudscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommandInvalidPort(t *testing.T) {
	t.Chdir(t.TempDir())
	rec := testutil.NewScriptedRecognizer()
	useRecognizer(t, rec)

	_, _, err := runCommand(t, "serve", "--port", "70000")
	require.Error(t, err)

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "server.port", cfgErr.Key)
	assert.Equal(t, 0, rec.Calls())
}

func TestServeUntilDone(t *testing.T) {
	rec := testutil.NewScriptedRecognizer()
	srv, err := server.NewServer(server.Config{
		Catalog:   testutil.FixtureCatalog(),
		Extractor: extract.New(rec),
		Closer:    rec,
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	httpServer := &http.Server{Addr: "127.0.0.1:0", Handler: mux, ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, serveUntilDone(ctx, httpServer, srv, time.Second))
	assert.True(t, rec.Closed(), "recognizer should be released on shutdown")
}
