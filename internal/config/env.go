package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var envVarPatterns = struct {
	withDefault *regexp.Regexp
	braced      *regexp.Regexp
	simple      *regexp.Regexp
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// expandEnvVarsInString resolves ${VAR}, ${VAR:-default}, and $VAR
// references against the process environment. Grounded verbatim on
// pkg/config/env.go's expandEnvVars.
func expandEnvVarsInString(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	s = envVarPatterns.braced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.braced.FindStringSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		return os.Getenv(parts[1])
	})

	return envVarPatterns.simple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.simple.FindStringSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// ExpandEnvVarsInData walks a koanf-decoded tree (maps/slices/scalars)
// expanding ${VAR} references in every string leaf. Grounded verbatim
// on pkg/config/env.go's ExpandEnvVarsInData.
func ExpandEnvVarsInData(data interface{}) interface{} {
	switch v := data.(type) {
	case string:
		return expandEnvVarsInString(v)
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = ExpandEnvVarsInData(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = ExpandEnvVarsInData(item)
		}
		return result
	default:
		return v
	}
}

// LoadEnvFiles layers .env.local over .env into the process environment,
// without overriding variables already set. Grounded on
// pkg/config/env.go's LoadEnvFiles.
func LoadEnvFiles() error {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: load %s: %w", name, err)
		}
	}
	return nil
}

// envKey upper-snake-cases name for use as an environment variable
// prefix, e.g. "gpt-4o" -> "GPT_4O".
func envKey(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// augmentProviderWithEnv overlays spec.md §6.6's per-model environment
// variables onto provider/model, keyed by the model's config name (e.g.
// model key "fast" reads FAST_BASE_URL, FAST_API_KEY, FAST_MODEL_NAME,
// FAST_MODEL_MAX_CONTEXT_SIZE, FAST_MODEL_CAPABILITIES,
// FAST_MODEL_TEMPERATURE, FAST_MODEL_TOP_P, FAST_MODEL_MAX_TOKENS).
// Returns the overrides actually applied, for diagnostic logging. An
// invalid numeric value fails loudly per spec.md §6.6 rather than being
// silently ignored.
// Grounded on app.rs's augment_provider_with_env_vars call site; the
// per-model env var naming scheme itself is spec.md §6.6, verbatim.
func augmentProviderWithEnv(modelKey string, provider *LLMProvider, model *LLMModel) (map[string]string, error) {
	prefix := envKey(modelKey)
	overrides := map[string]string{}

	if v := os.Getenv(prefix + "_BASE_URL"); v != "" {
		provider.BaseURL = v
		overrides[prefix+"_BASE_URL"] = v
	}
	if v := os.Getenv(prefix + "_API_KEY"); v != "" {
		provider.APIKey = v
		overrides[prefix+"_API_KEY"] = v
	}
	if v := os.Getenv(prefix + "_MODEL_NAME"); v != "" {
		model.Model = v
		overrides[prefix+"_MODEL_NAME"] = v
	}
	if v := os.Getenv(prefix + "_MODEL_MAX_CONTEXT_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s_MODEL_MAX_CONTEXT_SIZE: %w", prefix, err)
		}
		model.MaxContextSize = n
		overrides[prefix+"_MODEL_MAX_CONTEXT_SIZE"] = v
	}
	if v := os.Getenv(prefix + "_MODEL_CAPABILITIES"); v != "" {
		model.Capabilities = strings.Split(v, ",")
		overrides[prefix+"_MODEL_CAPABILITIES"] = v
	}
	if v := os.Getenv(prefix + "_MODEL_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s_MODEL_TEMPERATURE: %w", prefix, err)
		}
		model.Temperature = &f
		overrides[prefix+"_MODEL_TEMPERATURE"] = v
	}
	if v := os.Getenv(prefix + "_MODEL_TOP_P"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s_MODEL_TOP_P: %w", prefix, err)
		}
		model.TopP = &f
		overrides[prefix+"_MODEL_TOP_P"] = v
	}
	if v := os.Getenv(prefix + "_MODEL_MAX_TOKENS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: invalid %s_MODEL_MAX_TOKENS: %w", prefix, err)
		}
		model.MaxTokens = &n
		overrides[prefix+"_MODEL_MAX_TOKENS"] = v
	}

	return overrides, nil
}
