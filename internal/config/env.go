package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leodido/ffsys/internal/log"
)

// FeaturePrefix marks environment variables that toggle a single feature,
// e.g. FFSYS_FEATURE_BUILD_LIB_X264=1.
const FeaturePrefix = "FFSYS_FEATURE_"

// ParseString reads a string from an environment variable or returns the
// default. It logs which source was used.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if value == "" {
			logger.Debug().
				Str("key", key).
				Str("default", defaultValue).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
		return value
	}
	logger.Debug().
		Str("key", key).
		Str("default", defaultValue).
		Str("source", "default").
		Msg("using default value")
	return defaultValue
}

// ParseInt reads an integer from an environment variable or returns the
// default. Unparsable values fall back to the default with a warning.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			logger.Debug().
				Str("key", key).
				Int("default", defaultValue).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		if i, err := strconv.Atoi(v); err == nil {
			logger.Debug().
				Str("key", key).
				Int("value", i).
				Str("source", "environment").
				Msg("using environment variable")
			return i
		}
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Int("default", defaultValue).
		Str("source", "default").
		Msg("using default value")
	return defaultValue
}

// ParseBool reads a boolean from an environment variable or returns the
// default. It accepts true/false, 1/0 and yes/no in any case.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			logger.Debug().
				Str("key", key).
				Bool("default", defaultValue).
				Str("source", "default").
				Msg("using default value (environment variable is empty)")
			return defaultValue
		}
		if b, ok := parseBool(v); ok {
			logger.Debug().
				Str("key", key).
				Bool("value", b).
				Str("source", "environment").
				Msg("using environment variable")
			return b
		}
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Bool("default", defaultValue).
		Str("source", "default").
		Msg("using default value")
	return defaultValue
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}

// FeaturesFromEnv scans environ (KEY=value pairs, as from os.Environ) for
// FFSYS_FEATURE_<NAME> variables. A truthy value enables the feature, a
// falsy one disables it. Anything else is logged and ignored.
func FeaturesFromEnv(environ []string) (enabled, disabled []string) {
	logger := log.WithComponent("config")
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		name, ok := strings.CutPrefix(key, FeaturePrefix)
		if !ok || name == "" {
			continue
		}
		name = strings.ToLower(name)
		b, valid := parseBool(value)
		if value == "" {
			// Presence alone selects the feature.
			b, valid = true, true
		}
		if !valid {
			logger.Warn().Str("key", key).Str("value", value).Msg("invalid feature toggle, ignoring")
			continue
		}
		if b {
			enabled = append(enabled, name)
		} else {
			disabled = append(disabled, name)
		}
		logger.Debug().Str("key", key).Bool("enabled", b).Str("source", "environment").Msg("feature toggle")
	}
	return enabled, disabled
}
