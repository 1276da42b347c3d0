package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

// Loader loads Config from a YAML file via koanf, with optional
// fsnotify-backed hot reload. Grounded on
// pkg/config/koanf_loader.go's Loader (the file provider path only;
// consul/etcd/zookeeper providers are dropped, see DESIGN.md).
type Loader struct {
	path     string
	watch    bool
	onChange func(*Config, error)

	k *koanf.Koanf
	p *file.File
}

// LoaderOption configures a Loader at construction time.
type LoaderOption func(*Loader)

// WithWatch enables fsnotify-backed reload; onChange is called with the
// freshly loaded Config on every successful reload, or with a non-nil
// error (and a nil Config) if a reload fails.
func WithWatch(onChange func(*Config, error)) LoaderOption {
	return func(l *Loader) {
		l.watch = true
		l.onChange = onChange
	}
}

// NewLoader builds a Loader reading path.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{path: path, k: koanf.New(".")}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and validates Config from disk, applying the ${VAR}
// expansion pass and the per-model environment overlay before
// structural validation. A missing file yields Default(), matching
// get_default_config()'s "no config on disk" behavior.
func (l *Loader) Load() (*Config, error) {
	l.p = file.Provider(l.path)
	if err := l.k.Load(l.p, yaml.Parser()); err != nil {
		if isNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: load %s: %w", l.path, err)
	}

	if err := l.expandEnv(); err != nil {
		return nil, err
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}

	if err := l.applyModelEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if l.watch {
		if err := l.startWatch(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (l *Loader) expandEnv() error {
	expanded, ok := ExpandEnvVarsInData(l.k.Raw()).(map[string]interface{})
	if !ok {
		return fmt.Errorf("config: unexpected type after environment expansion")
	}
	next := koanf.New(".")
	if err := next.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return fmt.Errorf("config: reload expanded values: %w", err)
	}
	l.k = next
	return nil
}

// unmarshal performs strict structural validation (rejecting unknown
// top-level/section fields) before the real unmarshal, mirroring
// ValidateConfigStructure/strictResult.FormatErrors()'s typo-detection
// pass — scoped to unknown-field detection rather than the full
// suggestion engine.
func (l *Loader) unmarshal() (*Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: build decoder: %w", err)
	}
	if err := decoder.Decode(l.k.Raw()); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.IsFromDefaultLocation = false
	return cfg, nil
}

// applyModelEnvOverrides overlays spec.md §6.6's per-model env vars onto
// every configured model/provider pair.
func (l *Loader) applyModelEnvOverrides(cfg *Config) error {
	for key, model := range cfg.Models {
		provider := cfg.Providers[model.Provider]
		overrides, err := augmentProviderWithEnv(key, &provider, &model)
		if err != nil {
			return err
		}
		if len(overrides) > 0 {
			cfg.Providers[model.Provider] = provider
			cfg.Models[key] = model
			slog.Info("config: applied environment overrides", "model", key, "count", len(overrides))
		}
	}
	return nil
}

func (l *Loader) startWatch() error {
	return l.p.Watch(func(event interface{}, err error) {
		if err != nil {
			slog.Warn("config: watch error", "error", err)
			l.onChange(nil, err)
			return
		}

		next := koanf.New(".")
		if err := next.Load(file.Provider(l.path), yaml.Parser()); err != nil {
			slog.Warn("config: reload failed", "error", err)
			l.onChange(nil, err)
			return
		}
		l.k = next

		if err := l.expandEnv(); err != nil {
			slog.Warn("config: reload expansion failed", "error", err)
			l.onChange(nil, err)
			return
		}

		cfg, err := l.unmarshal()
		if err != nil {
			slog.Warn("config: reload unmarshal failed", "error", err)
			l.onChange(nil, err)
			return
		}
		if err := l.applyModelEnvOverrides(cfg); err != nil {
			slog.Warn("config: reload env overrides failed", "error", err)
			l.onChange(nil, err)
			return
		}
		if err := cfg.Validate(); err != nil {
			slog.Warn("config: reload validation failed", "error", err)
			l.onChange(nil, err)
			return
		}

		slog.Info("config: reloaded", "path", l.path)
		l.onChange(cfg, nil)
	})
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Load is a convenience wrapper for the common case: load path once,
// no watch.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}
