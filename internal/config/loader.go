package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Loader.
const (
	EnvConfigFile           = "VAD_CONFIG_FILE"
	EnvConfigJSON           = "VAD_CONFIG"
	EnvListenAddr           = "VAD_LISTEN_ADDR"
	EnvMetricsAddr          = "VAD_METRICS_ADDR"
	EnvLogLevel             = "VAD_LOG_LEVEL"
	EnvEngine               = "VAD_ENGINE"
	EnvModelPath            = "VAD_MODEL_PATH"
	EnvSamplingRate         = "VAD_SAMPLING_RATE"
	EnvThreshold            = "VAD_THRESHOLD"
	EnvMinSilenceDurationMs = "VAD_MIN_SILENCE_DURATION_MS"
	EnvSpeechPadMs          = "VAD_SPEECH_PAD_MS"
	EnvConcurrency          = "VAD_CONCURRENCY"

	envMinSpeechDurationMs = "VAD_MIN_SPEECH_DURATION_MS"
)

// LoadResult is a validated Config plus non-fatal warnings about ignored
// settings.
type LoadResult struct {
	Config   Config
	Warnings []string
}

// Loader loads configuration from, in increasing priority: defaults, a YAML
// file named by VAD_CONFIG_FILE, a JSON blob in VAD_CONFIG, and individual
// VAD_* variables. Tests can override Lookup and ReadFile.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load retrieves and validates the configuration.
func (l Loader) Load() (LoadResult, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	res := LoadResult{Config: Default()}
	cfg := &res.Config

	if path, ok := l.Lookup(EnvConfigFile); ok && strings.TrimSpace(path) != "" {
		data, err := l.ReadFile(strings.TrimSpace(path))
		if err != nil {
			return LoadResult{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return LoadResult{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
		res.Warnings = append(res.Warnings, fc.apply(cfg)...)
	}

	if raw, ok := l.Lookup(EnvConfigJSON); ok && strings.TrimSpace(raw) != "" {
		var fc fileConfig
		if err := json.Unmarshal([]byte(raw), &fc); err != nil {
			return LoadResult{}, fmt.Errorf("config: decode %s: %w", EnvConfigJSON, err)
		}
		res.Warnings = append(res.Warnings, fc.apply(cfg)...)
	}

	overrideString(l.Lookup, EnvListenAddr, &cfg.ListenAddr)
	overrideString(l.Lookup, EnvMetricsAddr, &cfg.MetricsAddr)
	overrideString(l.Lookup, EnvLogLevel, &cfg.LogLevel)
	overrideString(l.Lookup, EnvEngine, &cfg.Engine)
	overrideString(l.Lookup, EnvModelPath, &cfg.ModelPath)
	if err := overrideFloat(l.Lookup, EnvThreshold, &cfg.Threshold); err != nil {
		return LoadResult{}, err
	}
	for key, target := range map[string]*int{
		EnvSamplingRate:         &cfg.SamplingRate,
		EnvMinSilenceDurationMs: &cfg.MinSilenceDurationMs,
		EnvSpeechPadMs:          &cfg.SpeechPadMs,
		EnvConcurrency:          &cfg.Concurrency,
	} {
		if err := overrideInt(l.Lookup, key, target); err != nil {
			return LoadResult{}, err
		}
	}
	if v, ok := l.Lookup(envMinSpeechDurationMs); ok && strings.TrimSpace(v) != "" {
		res.Warnings = append(res.Warnings, envMinSpeechDurationMs+" is ignored: segments have no minimum speech duration")
	}

	if err := cfg.Validate(); err != nil {
		return LoadResult{}, err
	}
	return res, nil
}

// fileConfig mirrors Config with optional fields so that absent keys keep
// lower-priority values.
type fileConfig struct {
	ListenAddr           string   `json:"listen_addr" yaml:"listen_addr"`
	MetricsAddr          string   `json:"metrics_addr" yaml:"metrics_addr"`
	LogLevel             string   `json:"log_level" yaml:"log_level"`
	Engine               string   `json:"engine" yaml:"engine"`
	ModelPath            string   `json:"model_path" yaml:"model_path"`
	SamplingRate         *int     `json:"sampling_rate" yaml:"sampling_rate"`
	Threshold            *float64 `json:"threshold" yaml:"threshold"`
	MinSilenceDurationMs *int     `json:"min_silence_duration_ms" yaml:"min_silence_duration_ms"`
	SpeechPadMs          *int     `json:"speech_pad_ms" yaml:"speech_pad_ms"`
	Concurrency          *int     `json:"concurrency" yaml:"concurrency"`
	MinSpeechDurationMs  *int     `json:"min_speech_duration_ms" yaml:"min_speech_duration_ms"`
}

func (fc fileConfig) apply(cfg *Config) (warnings []string) {
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.MetricsAddr, fc.MetricsAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.Engine, fc.Engine)
	setString(&cfg.ModelPath, fc.ModelPath)
	setPtr(&cfg.SamplingRate, fc.SamplingRate)
	setPtr(&cfg.Threshold, fc.Threshold)
	setPtr(&cfg.MinSilenceDurationMs, fc.MinSilenceDurationMs)
	setPtr(&cfg.SpeechPadMs, fc.SpeechPadMs)
	setPtr(&cfg.Concurrency, fc.Concurrency)
	if fc.MinSpeechDurationMs != nil {
		warnings = append(warnings, "min_speech_duration_ms is ignored: segments have no minimum speech duration")
	}
	return warnings
}

// ApplyOverrides parses per-request JSON overrides of threshold,
// min_silence_duration_ms and speech_pad_ms into cfg. Unknown keys are
// rejected so that client typos fail fast instead of silently using defaults.
func (c *Config) ApplyOverrides(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var o struct {
		Threshold            *float64 `json:"threshold"`
		MinSilenceDurationMs *int     `json:"min_silence_duration_ms"`
		SpeechPadMs          *int     `json:"speech_pad_ms"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&o); err != nil {
		return fmt.Errorf("config: invalid overrides: %w", err)
	}
	setPtr(&c.Threshold, o.Threshold)
	setPtr(&c.MinSilenceDurationMs, o.MinSilenceDurationMs)
	setPtr(&c.SpeechPadMs, o.SpeechPadMs)
	return c.ValidateVADParams()
}

func setString(target *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*target = v
	}
}

func setPtr[T any](target *T, value *T) {
	if value != nil {
		*target = *value
	}
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideFloat(lookup func(string) (string, bool), key string, target *float64) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}

func overrideInt(lookup func(string) (string, bool), key string, target *int) error {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("config: invalid value for %s: %w", key, err)
		}
		*target = parsed
	}
	return nil
}
