package config

import (
	"os"
	"strings"

	"github.com/yumeno-dev/musingd/internal/library"
)

// Config holds every runtime knob musingd reads at startup, per
// SPEC_FULL.md's Ambient stack config section. Grounded on the teacher's
// env-var Load()/getEnv/getEnvAsInt pattern, generalized with
// getEnvAsList for the extension allow-list.
type Config struct {
	BindAddr      string
	Port          string
	MusicDir      string
	Extensions    []string
	SnapshotFile  string
	DefaultDevice string
}

// Load reads Config from the environment, falling back to musingd's
// defaults (spec.md §1/§6: bind 127.0.0.1:2137 by default).
func Load() *Config {
	return &Config{
		BindAddr:      getEnv("MUSINGD_BIND_ADDR", "127.0.0.1"),
		Port:          getEnv("MUSINGD_PORT", "2137"),
		MusicDir:      getEnv("MUSINGD_MUSIC_DIR", "./music"),
		Extensions:    getEnvAsList("MUSINGD_EXTENSIONS", library.DefaultExtensions),
		SnapshotFile:  getEnv("MUSINGD_SNAPSHOT_FILE", "./data/musingd.snapshot"),
		DefaultDevice: getEnv("MUSINGD_DEFAULT_DEVICE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated env var into a trimmed slice,
// falling back to defaultValue when unset.
func getEnvAsList(name string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(name)
	if !exists {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
