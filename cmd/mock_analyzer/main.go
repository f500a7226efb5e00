package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tetra360/bolt-test/internal/analyzer"
	"github.com/Tetra360/bolt-test/internal/logger"
	"github.com/Tetra360/bolt-test/internal/opencv"
)

var (
	addr        = flag.String("http", ":5001", "HTTP server address")
	cascadePath = flag.String("cascade", "haarcascade_frontalface_default.xml", "Haar cascade XML for face detection")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor    = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, *logColor)

	detector, err := opencv.NewCascadeDetector(*cascadePath, opencv.DefaultCascadeParams())
	if err != nil {
		log.Fatalf("Failed to load face detector: %v", err)
	}
	defer detector.Close()

	counter, err := opencv.NewCascadeDetector(*cascadePath, opencv.CountingCascadeParams())
	if err != nil {
		log.Fatalf("Failed to load face counter: %v", err)
	}
	defer counter.Close()
	logger.Info("Main", "Face detector initialized with %s", *cascadePath)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           analyzer.NewServer(detector, counter, nil).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen %s: %v", *addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Main", "Stand-in analyzer listening on %s", ln.Addr())
	if err := serve(ctx, httpServer, ln, shutdownGrace); err != nil {
		logger.Error("Main", "HTTP server: %v", err)
	}
	logger.Info("Main", "Analyzer stopped")
}

const shutdownGrace = 5 * time.Second

// serve runs srv on ln until ctx is done, then drains in-flight requests
// for at most grace.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Main", "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
