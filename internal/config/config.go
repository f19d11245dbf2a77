// Package config layers configuration from defaults, a JSON config file,
// a .env file, and LINGOSCENE_* environment variables, in that order.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	OpenAI  OpenAIConfig
	Limits  LimitsConfig
	Client  ClientConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	// InternalToken guards the server-to-server generate-image route.
	// Generated at startup when left empty.
	InternalToken string
}

type StorageConfig struct {
	DataDir string
}

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	EvalModel       string
	ImageModel      string
	TranscribeModel string
	SpeechModel     string
}

type LimitsConfig struct {
	SubmitPerMinute int
}

// ClientConfig configures the practice CLI side.
type ClientConfig struct {
	ServerURL string
	Voice     string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		OpenAI: OpenAIConfig{
			EvalModel:       "gpt-4o",
			ImageModel:      "dall-e-3",
			TranscribeModel: "whisper-1",
			SpeechModel:     "tts-1",
		},
		Limits: LimitsConfig{
			SubmitPerMinute: 6,
		},
		Client: ClientConfig{
			ServerURL: "http://localhost:4000",
			Voice:     "nova",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/lingoscene/config.json, a .env file in the working
// directory, and LINGOSCENE_* environment variables. Later layers win.
// Secrets (the OpenAI API key) come from the environment only.
func Load() (Config, error) {
	godotenv.Load() // missing .env is fine

	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// RequireAPIKey validates that the OpenAI key is present. The server needs
// it; client-only commands do not.
func (c Config) RequireAPIKey() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("missing required config: OpenAI API key. Set it via environment variable LINGOSCENE_OPENAI_API_KEY or a .env file")
	}
	return nil
}
