package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vshulcz/prefect-exporter/internal/misc"
)

// FromEnvOrFlag returns the environment value when present, otherwise falls back to a CLI flag then default.
func FromEnvOrFlag(envKey, flagVal, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if v := strings.TrimSpace(flagVal); v != "" {
		return v
	}
	return def
}

// FromEnvOrFlagBool merges boolean values from ENV and flags (defaulting to def).
func FromEnvOrFlagBool(envKey string, flagVal, def bool) bool {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		return misc.GetBool(envKey, def)
	}
	if flagVal {
		return true
	}
	return def
}

// FromEnvOrFlagPort resolves a TCP port. A value that is set but not in
// 1..65535 is an error rather than a silent fallback; flag value 0 means unset.
func FromEnvOrFlagPort(envKey string, flagVal, def int) (int, error) {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		n := misc.GetInt(envKey, 0)
		if n < 1 || n > 65535 {
			return 0, fmt.Errorf("invalid port: %s=%q", envKey, ev)
		}
		return n, nil
	}
	if flagVal != 0 {
		if flagVal < 1 || flagVal > 65535 {
			return 0, fmt.Errorf("invalid port: %d", flagVal)
		}
		return flagVal, nil
	}
	return def, nil
}

// FromEnvOrFlagDuration reads a duration (seconds or Go syntax) with fallbacks and reports whether it came from config.
func FromEnvOrFlagDuration(envKey string, flagSeconds, flagSentinel, defSeconds int) (time.Duration, bool) {
	if ev := strings.TrimSpace(os.Getenv(envKey)); ev != "" {
		if n, err := strconv.ParseInt(ev, 10, 64); err == nil {
			return time.Duration(n) * time.Second, true
		}
		if d, err := time.ParseDuration(ev); err == nil {
			return d, true
		}
		return misc.GetDuration(envKey, time.Duration(defSeconds)*time.Second), true
	}
	if flagSeconds != flagSentinel {
		return time.Duration(flagSeconds) * time.Second, true
	}
	return time.Duration(defSeconds) * time.Second, false
}

// FromEnvOrFlagList splits a comma separated list from ENV, or the flag when ENV is unset.
// A variable that is set but holds only separators yields an empty list.
func FromEnvOrFlagList(envKey, flagVal string) []string {
	if ev, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(ev) != "" {
		return misc.SplitList(ev)
	}
	return misc.SplitList(flagVal)
}
