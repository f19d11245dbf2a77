package practice

import (
	"context"
	"errors"
	"testing"
)

type mockPlayer struct {
	ops []string
}

func (m *mockPlayer) Load(audioURL string) error { m.ops = append(m.ops, "load:"+audioURL); return nil }
func (m *mockPlayer) Play() error                { m.ops = append(m.ops, "play"); return nil }
func (m *mockPlayer) Stop() error                { m.ops = append(m.ops, "stop"); return nil }
func (m *mockPlayer) Unload() error              { m.ops = append(m.ops, "unload"); return nil }

type mockSynth struct {
	url string
	err error
}

func (m *mockSynth) Synthesize(context.Context, string, string, float64) (string, error) {
	return m.url, m.err
}

func TestSpeaker_ReplacesPreviousPlayback(t *testing.T) {
	player := &mockPlayer{}
	s := NewSpeaker(&mockSynth{url: "data:audio/mp3;base64,AAAA"}, player, "nova", 1.0)

	if err := s.Speak(context.Background(), "first"); err != nil {
		t.Fatalf("first speak: %v", err)
	}
	if err := s.Speak(context.Background(), "second"); err != nil {
		t.Fatalf("second speak: %v", err)
	}

	want := []string{
		"load:data:audio/mp3;base64,AAAA", "play",
		"stop", "unload",
		"load:data:audio/mp3;base64,AAAA", "play",
	}
	if len(player.ops) != len(want) {
		t.Fatalf("unexpected ops: %v", player.ops)
	}
	for i, op := range want {
		if player.ops[i] != op {
			t.Fatalf("op %d: got %s, want %s (full: %v)", i, player.ops[i], op, player.ops)
		}
	}
}

func TestSpeaker_SynthesisFailureLeavesNothingPlaying(t *testing.T) {
	player := &mockPlayer{}
	s := NewSpeaker(&mockSynth{err: errors.New("tts down")}, player, "", 0)

	if err := s.Speak(context.Background(), "hello there"); err == nil {
		t.Fatal("expected synthesis error")
	}
	if len(player.ops) != 0 {
		t.Fatalf("player must stay untouched on synthesis failure: %v", player.ops)
	}

	// Stop with nothing active is a no-op.
	s.Stop()
	if len(player.ops) != 0 {
		t.Fatalf("stop without playback must do nothing: %v", player.ops)
	}
}

func TestSpeaker_StopReleasesPlayback(t *testing.T) {
	player := &mockPlayer{}
	s := NewSpeaker(&mockSynth{url: "data:audio/mp3;base64,AAAA"}, player, "nova", 1.0)

	if err := s.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	s.Stop()

	last := player.ops[len(player.ops)-2:]
	if last[0] != "stop" || last[1] != "unload" {
		t.Fatalf("expected stop+unload, got %v", player.ops)
	}
}
