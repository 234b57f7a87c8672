package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/hudscan/internal/extract"
	"github.com/MeKo-Tech/hudscan/internal/server"
	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server streaming extractions over WebSocket",
		Long: `Start an HTTP server that runs extractions on frame directories it can read.

The server provides the following endpoints:
  GET /health     - Health check endpoint
  GET /regions    - Active region catalog
  GET /metrics    - Prometheus metrics
  GET /ws/extract - WebSocket; send {"type":"extract","dir":"..."} and receive
                    one frame message per frame followed by a summary

Examples:
  hudscan serve
  hudscan serve --port 8080 --frames-root /data/frames
  hudscan serve --host 0.0.0.0 --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config()
			overrideString(cmd, "host", &cfg.Server.Host)
			overrideInt(cmd, "port", &cfg.Server.Port)
			overrideString(cmd, "cors-origin", &cfg.Server.CORSOrigin)
			overrideInt(cmd, "shutdown-timeout", &cfg.Server.ShutdownTimeout)
			overrideString(cmd, "frames-root", &cfg.Server.FramesRoot)
			overrideWorkers(cmd, &cfg)
			overrideFloat(cmd, "fps", &cfg.Frames.FPS)
			overrideString(cmd, "regions", &cfg.RegionsFile)
			if cmd.Flags().Changed("regions") {
				cfg.Regions = nil
			}
			overrideInt(cmd, "threshold-cutoff", &cfg.ThresholdCutoff)
			overrideString(cmd, "language", &cfg.OCR.Language)
			overrideString(cmd, "tessdata", &cfg.OCR.TesseractData)
			if err := cfg.Validate(); err != nil {
				return err
			}

			catalog, err := cfg.Catalog()
			if err != nil {
				return fmt.Errorf("failed to load region catalog: %w", err)
			}
			rec, err := recognizerFactory(cfg.ToOCRConfig())
			if err != nil {
				return fmt.Errorf("failed to initialize OCR: %w", err)
			}

			srv, err := server.NewServer(server.Config{
				Host:       cfg.Server.Host,
				Port:       cfg.Server.Port,
				CORSOrigin: cfg.Server.CORSOrigin,
				Catalog:    catalog,
				Extractor:  extract.New(rec, extract.WithCutoff(cfg.Cutoff())),
				Closer:     rec,
				Workers:    cfg.Pipeline.Workers,
				FPS:        cfg.Frames.FPS,
				FramesRoot: cfg.Server.FramesRoot,
				Logger:     slog.Default(),
			})
			if err != nil {
				_ = rec.Close()
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			mux := http.NewServeMux()
			srv.SetupRoutes(mux)

			httpServer := &http.Server{
				Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serveUntilDone(cmd.Context(), httpServer, srv, time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		},
	}

	f := cmd.Flags()
	f.StringP("host", "H", "localhost", "server host")
	f.IntP("port", "p", 8080, "server port")
	f.String("cors-origin", "*", "CORS allowed origins")
	f.Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	f.String("frames-root", "", "only serve frame directories below this path")
	f.IntP("workers", "w", 0, "default number of frames processed in parallel per request (0: number of CPUs)")
	f.Float64("fps", 3, "default sampling rate of requested frame directories")
	f.String("regions", "", "YAML file with the region catalog")
	f.Int("threshold-cutoff", 220, "luminance cutoff for binarized regions (0-255)")
	f.String("language", "eng", "Tesseract language")
	f.String("tessdata", "", "directory containing Tesseract traineddata files")
	return cmd
}

// serveUntilDone runs httpServer until ctx is cancelled or the listener
// fails, then shuts it down gracefully and releases srv.
func serveUntilDone(ctx context.Context, httpServer *http.Server, srv *server.Server, shutdownTimeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting hudscan server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			errCh <- err
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	if err := srv.Close(); err != nil {
		slog.Error("Server cleanup error", "error", err)
	}
	slog.Info("Graceful shutdown completed")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	default:
		return nil
	}
}
