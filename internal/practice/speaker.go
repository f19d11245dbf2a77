package practice

import (
	"context"
	"sync"
)

// Player is the device playback handle for one sound at a time.
type Player interface {
	Load(audioURL string) error
	Play() error
	Stop() error
	Unload() error
}

// SynthesizeClient is the client subset the speaker pulls audio from.
type SynthesizeClient interface {
	Synthesize(ctx context.Context, text, voice string, speed float64) (string, error)
}

// Speaker reads feedback aloud. Only one playback may be active; speaking
// again stops and unloads the previous sound before loading the new one.
type Speaker struct {
	synth  SynthesizeClient
	player Player
	voice  string
	speed  float64

	mu     sync.Mutex
	active bool
}

// NewSpeaker creates a Speaker. Empty voice and non-positive speed use the
// server defaults.
func NewSpeaker(synth SynthesizeClient, player Player, voice string, speed float64) *Speaker {
	return &Speaker{synth: synth, player: player, voice: voice, speed: speed}
}

// Speak synthesizes text and plays it, replacing any current playback.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.player.Stop()
		s.player.Unload()
		s.active = false
	}

	audioURL, err := s.synth.Synthesize(ctx, text, s.voice, s.speed)
	if err != nil {
		return err
	}
	if err := s.player.Load(audioURL); err != nil {
		return err
	}
	if err := s.player.Play(); err != nil {
		s.player.Unload()
		return err
	}
	s.active = true
	return nil
}

// Stop halts and releases the current playback, if any.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.player.Stop()
	s.player.Unload()
	s.active = false
}
