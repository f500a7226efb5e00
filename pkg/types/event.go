package types

import "time"

// ToastVariant selects how a toast is styled.
type ToastVariant string

const (
	ToastDefault     ToastVariant = "default"
	ToastDestructive ToastVariant = "destructive"
)

// Toast is a transient user-visible notification.
type Toast struct {
	ID          string       `json:"id"`
	Variant     ToastVariant `json:"variant"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// CameraState describes the console's camera.
type CameraState struct {
	Streaming bool   `json:"streaming"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Error     string `json:"error,omitempty"`
}

// ConsoleState is the full snapshot pushed to dashboard clients.
type ConsoleState struct {
	Connectivity ConnectivityState `json:"connectivity"`
	Camera       CameraState       `json:"camera"`
	Analyzing    bool              `json:"analyzing"`
	Analysis     *AnalysisResult   `json:"analysis"`
}

// EventType identifies the payload of an Event.
type EventType string

const (
	EventState EventType = "state"
	EventToast EventType = "toast"
)

// Event is the envelope delivered over SSE, websocket and WebRTC data channels.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	State     *ConsoleState `json:"state,omitempty"`
	Toast     *Toast        `json:"toast,omitempty"`
}
