package webmonitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/Tetra360/bolt-test/internal/analysis"
	"github.com/Tetra360/bolt-test/internal/camera"
	"github.com/Tetra360/bolt-test/internal/health"
	"github.com/Tetra360/bolt-test/internal/httpc"
	"github.com/Tetra360/bolt-test/internal/logger"
	"github.com/Tetra360/bolt-test/internal/metrics"
	"github.com/Tetra360/bolt-test/internal/middleware"
	"github.com/Tetra360/bolt-test/internal/view"
	"github.com/Tetra360/bolt-test/internal/webrtc"
	"github.com/Tetra360/bolt-test/pkg/types"
)

// Toast shown when the camera cannot be opened.
const (
	WebcamErrorTitle       = "Webcam Error"
	WebcamErrorDescription = "Failed to access webcam. Please check your permissions."
)

const maxOfferSize = 64 * 1024

// Server serves the vision console dashboard and owns its components.
type Server struct {
	cfg     Config
	webcam  *camera.Webcam
	session *analysis.Session
	health  *health.Monitor
	metrics *metrics.Metrics
	rtc     *webrtc.Server
	state   *State
	events  *EventBroadcaster
	frames  *FrameBroadcaster
	loc     *time.Location
	now     func() time.Time

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// NewServer wires the console around the given camera devices.
func NewServer(cfg Config, devices camera.MediaDevices) *Server {
	cfg = cfg.normalize()

	m := metrics.New()
	state := NewState()
	events := state.Events()

	webcam := camera.NewWebcam(devices, camera.Constraints{
		FacingMode: camera.FacingUser,
		Width:      cfg.CameraWidth,
		Height:     cfg.CameraHeight,
	})

	client := analysis.NewClient(cfg.APIURL, httpc.NewClient(cfg.AnalyzeTimeout))
	session := analysis.NewSession(countingFrames{webcam, m}, client, state, m)
	session.OnAnalyzing = state.SetAnalyzing
	session.OnResult = state.SetAnalysis

	monitor := health.NewMonitor(health.Config{
		BaseURL:      cfg.APIURL,
		Interval:     cfg.HealthInterval,
		ProbeTimeout: cfg.ProbeTimeout,
		HTTPClient:   httpc.NewClient(cfg.ProbeTimeout),
		Recorder:     m,
	})
	monitor.OnChange = state.SetConnectivity

	rtc := webrtc.NewServer(cfg.StunServers, cfg.MaxPeers)
	rtc.Initial = func() []byte {
		ev, err := EncodeEvent(state.StateEvent())
		if err != nil {
			return nil
		}
		return ev.JSONData
	}
	rtc.OnPeerCount = func(n int) { m.WebRTCPeers.Store(int64(n)) }

	events.OnPublish = func(ev *SerializedEvent) { rtc.Broadcast(ev.JSONData) }
	events.OnClientCount = func(n int) { m.EventClients.Store(int64(n)) }

	frames := NewFrameBroadcaster(webcam, cfg.PreviewInterval, cfg.PreviewWidth, cfg.PreviewQuality)
	frames.OnFrame = func() { m.PreviewFrames.Add(1) }

	return &Server{
		cfg:     cfg,
		webcam:  webcam,
		session: session,
		health:  monitor,
		metrics: m,
		rtc:     rtc,
		state:   state,
		events:  events,
		frames:  frames,
		loc:     time.Local,
		now:     time.Now,
	}
}

// countingFrames counts frames captured for analysis.
type countingFrames struct {
	webcam  *camera.Webcam
	metrics *metrics.Metrics
}

func (c countingFrames) CaptureFrame() (*types.Frame, error) {
	frame, err := c.webcam.CaptureFrame()
	if frame != nil {
		c.metrics.FramesCaptured.Add(1)
	}
	return frame, err
}

// State returns the console state owner.
func (s *Server) State() *State { return s.state }

// Metrics returns the console metrics.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// Start launches the health monitor and the preview loop.
func (s *Server) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.shutdown {
		return
	}
	s.started = true

	s.health.Start(ctx)
	s.frames.Start()
	logger.Info("WebMonitor", "Console started (api=%s)", s.cfg.APIURL)
}

// Shutdown stops every background goroutine and releases the camera.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	s.mu.Unlock()

	s.health.Stop()
	s.frames.Stop()
	rtcErr := s.rtc.Close()
	camErr := s.webcam.Close()
	s.metrics.SetCameraStreaming(false)
	s.events.Close()

	logger.Info("WebMonitor", "Console stopped")
	return errors.Join(rtcErr, camErr)
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", newAssetHandler(s.cfg.AssetsDir)))
	mux.HandleFunc("GET /stream", s.handleStream)

	mux.HandleFunc("POST /api/camera/start", s.handleCameraStart)
	mux.HandleFunc("POST /api/camera/stop", s.handleCameraStop)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/webrtc/offer", s.handleWebRTCOffer)

	mux.HandleFunc("GET /panel/status", s.handlePanelStatus)
	mux.HandleFunc("GET /panel/analysis", s.handlePanelAnalysis)
	mux.HandleFunc("GET /panel/badge", s.handlePanelBadge)

	mux.Handle("GET /metrics", s.metrics.Handler())

	return middleware.Chain(
		middleware.Recovery,
		middleware.Logging,
		middleware.CORS,
	)(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.frames.Subscribe()
	defer s.frames.Unsubscribe(id)

	s.metrics.StreamClients.Add(1)
	defer s.metrics.StreamClients.Add(-1)

	streamMJPEGFromChannel(w, r, frameCh)
}

func (s *Server) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	err := s.webcam.Start(r.Context())
	camState := s.syncCamera()
	if err != nil {
		logger.Warn("WebMonitor", "Camera start failed: %v", err)
		s.state.Notify(types.Toast{
			Variant:     types.ToastDestructive,
			Title:       WebcamErrorTitle,
			Description: WebcamErrorDescription,
			CreatedAt:   s.now(),
		})
		status := http.StatusInternalServerError
		if errors.Is(err, camera.ErrPermissionDenied) {
			status = http.StatusForbidden
		}
		writeJSONWithStatus(w, map[string]any{
			"error":  camera.PermissionMessage,
			"detail": err.Error(),
			"camera": camState,
		}, status)
		return
	}
	writeJSON(w, camState)
}

func (s *Server) handleCameraStop(w http.ResponseWriter, r *http.Request) {
	if err := s.webcam.Stop(); err != nil {
		logger.Warn("WebMonitor", "Camera stop: %v", err)
	}
	writeJSON(w, s.syncCamera())
}

func (s *Server) syncCamera() types.CameraState {
	camState := s.webcam.State()
	s.state.SetCamera(camState)
	s.metrics.SetCameraStreaming(camState.Streaming)
	return camState
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	result, err := s.session.AnalyzeFrame(r.Context())
	switch {
	case err == nil:
		writeJSON(w, result)
	case errors.Is(err, analysis.ErrBusy):
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusConflict)
	case errors.Is(err, camera.ErrCaptureUnavailable):
		writeJSONWithStatus(w, map[string]any{"error": "camera is not streaming"}, http.StatusConflict)
	default:
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusBadGateway)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.state.Snapshot())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	streamEventsFromChannel(w, r, eventCh, wantsProtobuf(r), s.cfg.KeepaliveInterval)
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOfferSize))
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	answer, err := s.rtc.HandleOffer(body)
	if err != nil {
		logger.Warn("WebRTC", "Offer rejected: %v", err)
		status := http.StatusBadRequest
		if errors.Is(err, webrtc.ErrMaxClients) {
			status = http.StatusServiceUnavailable
		}
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

func (s *Server) handlePanelStatus(w http.ResponseWriter, r *http.Request) {
	s.renderPanel(w, func(buf *bytes.Buffer) error {
		return view.RenderStatus(buf, s.state.Snapshot(), s.loc)
	})
}

func (s *Server) handlePanelAnalysis(w http.ResponseWriter, r *http.Request) {
	s.renderPanel(w, func(buf *bytes.Buffer) error {
		return view.RenderAnalysis(buf, s.state.Snapshot().Analysis, s.loc)
	})
}

func (s *Server) handlePanelBadge(w http.ResponseWriter, r *http.Request) {
	s.renderPanel(w, func(buf *bytes.Buffer) error {
		return view.RenderBadge(buf, s.state.Snapshot().Connectivity, s.loc)
	})
}

func (s *Server) renderPanel(w http.ResponseWriter, render func(buf *bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		logger.Error("WebMonitor", "Render panel: %v", err)
		http.Error(w, "Failed to render panel", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":%q}`, err.Error())
	}
}
