package webmonitor

import (
	"os"
	"time"
)

// Camera sources selectable with Config.CameraSource.
const (
	CameraOpenCV      = "opencv"
	CameraTestPattern = "testpattern"
)

// DefaultAPIURL is used when neither a flag nor API_URL is set.
const DefaultAPIURL = "http://localhost:5001"

// Config defines the runtime configuration for the vision console.
type Config struct {
	Addr      string
	APIURL    string
	AssetsDir string

	HealthInterval time.Duration
	ProbeTimeout   time.Duration
	AnalyzeTimeout time.Duration

	CameraSource string
	CameraDevice int
	CameraWidth  int
	CameraHeight int

	PreviewInterval time.Duration
	PreviewWidth    int
	PreviewQuality  int

	KeepaliveInterval time.Duration

	StunServers []string
	MaxPeers    int

	MDNS    bool
	Version string
}

// DefaultConfig returns the console defaults. API_URL overrides the analysis
// service base URL.
func DefaultConfig() Config {
	apiURL := DefaultAPIURL
	if env := os.Getenv("API_URL"); env != "" {
		apiURL = env
	}
	return Config{
		Addr:              ":8080",
		APIURL:            apiURL,
		AssetsDir:         "./web_assets",
		HealthInterval:    10 * time.Second,
		ProbeTimeout:      5 * time.Second,
		AnalyzeTimeout:    30 * time.Second,
		CameraSource:      CameraTestPattern,
		CameraDevice:      0,
		CameraWidth:       640,
		CameraHeight:      480,
		PreviewInterval:   100 * time.Millisecond,
		PreviewWidth:      640,
		PreviewQuality:    70,
		KeepaliveInterval: 30 * time.Second,
		StunServers:       []string{"stun:stun.l.google.com:19302"},
		MaxPeers:          4,
		Version:           "dev",
	}
}

// normalize fills zero fields from DefaultConfig.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.APIURL == "" {
		c.APIURL = def.APIURL
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = def.HealthInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = def.ProbeTimeout
	}
	if c.AnalyzeTimeout <= 0 {
		c.AnalyzeTimeout = def.AnalyzeTimeout
	}
	if c.PreviewInterval <= 0 {
		c.PreviewInterval = def.PreviewInterval
	}
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = def.PreviewWidth
	}
	if c.PreviewQuality <= 0 || c.PreviewQuality > 100 {
		c.PreviewQuality = def.PreviewQuality
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = def.KeepaliveInterval
	}
	if c.MaxPeers <= 0 {
		c.MaxPeers = def.MaxPeers
	}
	if c.Version == "" {
		c.Version = def.Version
	}
	return c
}
