package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpeech marks the backend's "No speech detected" rejection. It is
	// not surfaced as an error: the turn is silently discarded.
	ErrNoSpeech = errors.New("no speech detected")

	// ErrDeviceUnavailable means capture device access was denied or no
	// device exists. Terminal until the next explicit start.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrNotRecording is returned when stop is called without an open take.
	ErrNotRecording = errors.New("no recording in progress")

	// ErrBusy guards against a second take completing while a prior turn is
	// still processing.
	ErrBusy = errors.New("previous turn still processing")
)

// TransportError is a network failure or non-2xx response from the backend,
// carrying the server-provided message when one was present.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}
