// Package camera acquires a live video stream and captures still frames from it.
package camera

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrPermissionDenied is returned when the camera could not be acquired.
	ErrPermissionDenied = errors.New("camera access denied")

	// ErrCaptureUnavailable signals a capture attempt without an active stream.
	ErrCaptureUnavailable = errors.New("no active camera stream")

	// ErrTrackEnded is returned when reading from a stopped track.
	ErrTrackEnded = errors.New("track ended")
)

// FacingMode selects which physical camera to use.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

// Constraints describe the stream requested from MediaDevices.
type Constraints struct {
	FacingMode FacingMode
	// Ideal size; zero lets the device choose.
	Width  int
	Height int
}

// DefaultConstraints requests the user-facing camera at its native size.
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: FacingUser}
}

// Track is one hardware track of a stream.
type Track interface {
	ID() string
	Kind() string
	// Stop releases the underlying hardware. Stopping twice is a no-op.
	Stop() error
}

// Stream is a live media stream holding one or more tracks.
type Stream interface {
	Tracks() []Track
	// VideoSize returns the intrinsic width and height of the video track.
	VideoSize() (int, int)
	// Snapshot returns the current visual frame.
	Snapshot() (image.Image, error)
}

// MediaDevices acquires streams that satisfy the given constraints.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}
