package practice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// MaxRecordingDuration is the hard ceiling on one recording; the session
// force-stops itself when it elapses.
const MaxRecordingDuration = 60 * time.Second

const captureMimeType = "audio/m4a"

// ErrPermissionDenied is returned by Start when the microphone permission
// was refused. The caller surfaces a notice; no recording begins.
var ErrPermissionDenied = errors.New("microphone permission denied")

// Recorder is the device recording handle. Stop returns a local file path
// to the captured audio.
type Recorder interface {
	RequestPermission(ctx context.Context) (bool, error)
	Start(ctx context.Context) error
	Stop() (string, error)
}

// AudioMode toggles the device-wide audio configuration. It is shared
// global state; every capture must leave it playback-safe, on error paths
// included.
type AudioMode interface {
	SetRecording() error
	SetPlayback() error
}

// TranscribeClient is the client subset the capture session hands audio to.
type TranscribeClient interface {
	Transcribe(ctx context.Context, audioBase64, mimeType string) (Transcription, error)
}

type captureState int

const (
	captureIdle captureState = iota
	captureRecording
	captureTranscribing
)

// CaptureSession owns at most one active recording at a time: start,
// ceiling-timed stop, encode, transcription handoff. Results arrive through
// the OnTranscript callback so the manual-stop and auto-stop paths behave
// identically.
type CaptureSession struct {
	recorder    Recorder
	mode        AudioMode
	transcriber TranscribeClient
	maxDuration time.Duration

	// OnTranscript receives the transcription after a successful stop.
	// OnError receives recoverable capture and transcription failures.
	OnTranscript func(Transcription)
	OnError      func(error)

	mu    sync.Mutex
	state captureState
	timer *time.Timer
}

// NewCaptureSession creates a session. A non-positive maxDuration falls
// back to the 60 second ceiling.
func NewCaptureSession(recorder Recorder, mode AudioMode, transcriber TranscribeClient, maxDuration time.Duration) *CaptureSession {
	if maxDuration <= 0 {
		maxDuration = MaxRecordingDuration
	}
	return &CaptureSession{
		recorder:    recorder,
		mode:        mode,
		transcriber: transcriber,
		maxDuration: maxDuration,
	}
}

// Recording reports whether a capture is in progress.
func (s *CaptureSession) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == captureRecording
}

// Start begins a recording. Starting while one is active is a no-op. The
// ceiling timer arms here and forces Stop if the user never does.
func (s *CaptureSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != captureIdle {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	granted, err := s.recorder.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("requesting microphone permission: %w", err)
	}
	if !granted {
		return ErrPermissionDenied
	}

	if err := s.mode.SetRecording(); err != nil {
		return fmt.Errorf("enabling record mode: %w", err)
	}
	if err := s.recorder.Start(ctx); err != nil {
		if restoreErr := s.mode.SetPlayback(); restoreErr != nil && s.OnError != nil {
			s.OnError(restoreErr)
		}
		return fmt.Errorf("starting recording: %w", err)
	}

	s.mu.Lock()
	s.state = captureRecording
	s.timer = time.AfterFunc(s.maxDuration, func() {
		if err := s.Stop(ctx); err != nil && s.OnError != nil {
			s.OnError(err)
		}
	})
	s.mu.Unlock()
	return nil
}

// Stop finalizes the recording and hands the audio to transcription. The
// audio mode is restored to playback on every path. A finalization failure
// returns the session to idle without transcribing.
func (s *CaptureSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != captureRecording {
		s.mu.Unlock()
		return nil
	}
	s.state = captureTranscribing
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = captureIdle
		s.mu.Unlock()
	}()
	defer func() {
		if err := s.mode.SetPlayback(); err != nil && s.OnError != nil {
			s.OnError(err)
		}
	}()

	uri, err := s.recorder.Stop()
	if err != nil {
		return fmt.Errorf("finalizing recording: %w", err)
	}

	audio, err := os.ReadFile(uri)
	if err != nil {
		return fmt.Errorf("reading captured audio: %w", err)
	}

	result, err := s.transcriber.Transcribe(ctx, base64.StdEncoding.EncodeToString(audio), captureMimeType)
	if err != nil {
		return fmt.Errorf("transcribing: %w", err)
	}

	if s.OnTranscript != nil {
		s.OnTranscript(result)
	}
	return nil
}

// Dispose tears the session down. A recording in progress is force-stopped
// and discarded, never transcribed; the audio mode is still restored.
func (s *CaptureSession) Dispose() {
	s.mu.Lock()
	wasRecording := s.state == captureRecording
	s.state = captureIdle
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if wasRecording {
		s.recorder.Stop()
		if err := s.mode.SetPlayback(); err != nil && s.OnError != nil {
			s.OnError(err)
		}
	}
}
