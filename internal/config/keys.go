package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LINGOSCENE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.internal_token", typ: kString, env: "LINGOSCENE_INTERNAL_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.InternalToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.InternalToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LINGOSCENE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "openai.api_key", typ: kString, env: "LINGOSCENE_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.OpenAI.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.APIKey },
	},
	{
		key: "openai.base_url", typ: kString, env: "LINGOSCENE_OPENAI_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.BaseURL },
	},
	{
		key: "openai.eval_model", typ: kString, env: "LINGOSCENE_OPENAI_EVAL_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.EvalModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.EvalModel },
	},
	{
		key: "openai.image_model", typ: kString, env: "LINGOSCENE_OPENAI_IMAGE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.ImageModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.ImageModel },
	},
	{
		key: "openai.transcribe_model", typ: kString, env: "LINGOSCENE_OPENAI_TRANSCRIBE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.TranscribeModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.TranscribeModel },
	},
	{
		key: "openai.speech_model", typ: kString, env: "LINGOSCENE_OPENAI_SPEECH_MODEL",
		apply:   func(cfg *Config, v any) { cfg.OpenAI.SpeechModel = v.(string) },
		extract: func(cfg Config) any { return cfg.OpenAI.SpeechModel },
	},
	{
		key: "limits.submit_per_minute", typ: kInt, env: "LINGOSCENE_LIMITS_SUBMIT_PER_MINUTE",
		apply:   func(cfg *Config, v any) { cfg.Limits.SubmitPerMinute = v.(int) },
		extract: func(cfg Config) any { return cfg.Limits.SubmitPerMinute },
	},
	{
		key: "client.server_url", typ: kString, env: "LINGOSCENE_CLIENT_SERVER_URL",
		apply:   func(cfg *Config, v any) { cfg.Client.ServerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Client.ServerURL },
	},
	{
		key: "client.voice", typ: kString, env: "LINGOSCENE_CLIENT_VOICE",
		apply:   func(cfg *Config, v any) { cfg.Client.Voice = v.(string) },
		extract: func(cfg Config) any { return cfg.Client.Voice },
	},
	{
		key: "log.level", typ: kString, env: "LINGOSCENE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
