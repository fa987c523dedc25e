// Command server runs a scripted stand-in for the download worker, for
// trying the client without the real backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/dl-client/internal/testutil"
	"github.com/yourusername/dl-client/pkg/logger"
)

var (
	addr         = flag.String("addr", "localhost:8000", "Listen address")
	steps        = flag.Int("steps", 10, "Status polls until the job finishes")
	postprocess  = flag.Int("postprocess", 2, "Polls spent in POSTPROCESSING before finishing")
	failAt       = flag.Int("fail-at", 0, "Report ERROR at this poll (0 never)")
	artifactPath = flag.String("artifact", "", "File served as the artifact (default a small text payload)")
	logLevel     = flag.String("log-level", "info", "Log level")
)

func main() {
	flag.Parse()

	log, err := logger.New(logger.Config{Level: *logLevel, Format: "console", OutputPath: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	opts, err := backendOptions()
	if err != nil {
		log.Fatal("Failed to prepare backend", zap.Error(err))
	}

	backend := testutil.NewBackend(opts, log)
	server := &http.Server{
		Addr:    *addr,
		Handler: backend.Handler(),
	}

	go func() {
		log.Info("Fake download backend listening",
			zap.String("addr", *addr),
			zap.Int("steps", *steps),
			zap.Int("fail_at", *failAt))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// backendOptions builds the status script and artifact from flags
func backendOptions() (testutil.BackendOptions, error) {
	opts := testutil.BackendOptions{
		Script:      buildScript(*steps, *postprocess, *failAt),
		Artifact:    []byte("fake artifact\n"),
		Disposition: `attachment; filename="artifact.txt"`,
	}

	if *artifactPath != "" {
		data, err := os.ReadFile(*artifactPath)
		if err != nil {
			return opts, err
		}
		opts.Artifact = data
		opts.Disposition = fmt.Sprintf("attachment; filename=%q", filepath.Base(*artifactPath))
	}

	return opts, nil
}

// buildScript returns steps IN_PROGRESS reports with rising progress,
// postprocess POSTPROCESSING reports and a final FINISHED. failAt replaces
// the report at that poll with ERROR and ends the script there.
func buildScript(steps, postprocess, failAt int) []testutil.Step {
	var script []testutil.Step
	for i := 0; i < steps; i++ {
		script = append(script, testutil.Step{
			Status:   "IN_PROGRESS",
			Progress: float64(i) * 100 / float64(steps),
		})
	}
	for i := 0; i < postprocess; i++ {
		script = append(script, testutil.Step{Status: "POSTPROCESSING", Progress: 100})
	}
	script = append(script, testutil.Step{Status: "FINISHED", Progress: 100})

	if failAt > 0 && failAt <= len(script) {
		script = append(script[:failAt-1], testutil.Step{Status: "ERROR", Progress: script[failAt-1].Progress})
	}
	return script
}
