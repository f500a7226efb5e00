package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" // Enable pprof
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Tetra360/bolt-test/internal/camera"
	"github.com/Tetra360/bolt-test/internal/discovery"
	"github.com/Tetra360/bolt-test/internal/logger"
	"github.com/Tetra360/bolt-test/internal/opencv"
	"github.com/Tetra360/bolt-test/internal/webmonitor"
)

func main() {
	cfg := webmonitor.DefaultConfig()

	var (
		logLevel  string
		logColor  bool
		stun      string
		pprofAddr string
	)

	flag.StringVar(&cfg.Addr, "http", cfg.Addr, "HTTP server address")
	flag.StringVar(&cfg.APIURL, "api", cfg.APIURL, "Analysis service base URL (env API_URL)")
	flag.StringVar(&cfg.AssetsDir, "assets", cfg.AssetsDir, "Directory overriding built-in web assets")
	flag.DurationVar(&cfg.HealthInterval, "health-interval", cfg.HealthInterval, "Health probe interval")
	flag.DurationVar(&cfg.ProbeTimeout, "probe-timeout", cfg.ProbeTimeout, "Health probe timeout")
	flag.DurationVar(&cfg.AnalyzeTimeout, "analyze-timeout", cfg.AnalyzeTimeout, "Analysis request timeout")
	flag.StringVar(&cfg.CameraSource, "camera", cfg.CameraSource, "Camera source (opencv, testpattern)")
	flag.IntVar(&cfg.CameraDevice, "device", cfg.CameraDevice, "OpenCV device index of the user-facing camera")
	flag.IntVar(&cfg.CameraWidth, "width", cfg.CameraWidth, "Requested camera width")
	flag.IntVar(&cfg.CameraHeight, "height", cfg.CameraHeight, "Requested camera height")
	flag.DurationVar(&cfg.PreviewInterval, "preview-interval", cfg.PreviewInterval, "MJPEG preview frame interval")
	flag.IntVar(&cfg.PreviewQuality, "preview-quality", cfg.PreviewQuality, "MJPEG preview JPEG quality")
	flag.IntVar(&cfg.MaxPeers, "max-peers", cfg.MaxPeers, "Maximum WebRTC data channel peers")
	flag.StringVar(&stun, "stun", strings.Join(cfg.StunServers, ","), "STUN server URLs (comma-separated)")
	flag.BoolVar(&cfg.MDNS, "mdns", cfg.MDNS, "Advertise the console over mDNS")
	flag.StringVar(&pprofAddr, "pprof", "", "pprof server address (disabled when empty)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error, silent)")
	flag.BoolVar(&logColor, "log-color", true, "Enable colored log output")
	flag.Parse()

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.Init(level, os.Stderr, logColor)

	if stun != "" {
		cfg.StunServers = strings.Split(stun, ",")
	}

	var devices camera.MediaDevices
	switch cfg.CameraSource {
	case webmonitor.CameraOpenCV:
		devices = opencv.NewDevices(cfg.CameraDevice)
	case webmonitor.CameraTestPattern:
		devices = camera.NewTestPattern(cfg.CameraWidth, cfg.CameraHeight)
	default:
		log.Fatalf("Unknown camera source %q", cfg.CameraSource)
	}

	console := webmonitor.NewServer(cfg, devices)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	console.Start(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           console.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if pprofAddr != "" {
		go func() {
			logger.Info("Main", "pprof listening on %s", pprofAddr)
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				logger.Error("Main", "pprof server error: %v", err)
			}
		}()
	}

	var mdns *discovery.Service
	if cfg.MDNS {
		mdns = discovery.NewService(listenPort(cfg.Addr), cfg.Version)
		if err := mdns.Start(); err != nil {
			logger.Warn("Main", "mDNS registration failed: %v", err)
		}
	}

	go func() {
		logger.Info("Main", "Vision console listening on %s (camera=%s, api=%s)", cfg.Addr, cfg.CameraSource, cfg.APIURL)
		logger.Info("Main", "Log level: %s", level)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Main", "Shutting down...")

	if mdns != nil {
		mdns.Stop()
	}

	// Closing the console first ends SSE and MJPEG streams so the HTTP
	// server can drain.
	if err := console.Shutdown(); err != nil {
		logger.Warn("Main", "Console shutdown: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Main", "HTTP shutdown: %v", err)
	}

	logger.Info("Main", "Server stopped")
}

// listenPort extracts the numeric port from a listen address like ":8080".
func listenPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
