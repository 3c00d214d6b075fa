package core

import (
	"randpic/pkg/storage"
)

const DefaultBasePrefix = "koishi/"

type Config struct {
	// BasePrefix is the storage prefix the tag directory lives under.
	BasePrefix string

	// PublicURL, when set, is the origin used for links on the index page
	// instead of the one derived from the request.
	PublicURL string

	Engine storage.StorageEngine

	// RandomSource draws an index in [0, n). Nil means math/rand/v2.
	RandomSource func(n int) int
}

type ConfigOption func(*Config)

func WithStorageEngine(engine storage.StorageEngine) ConfigOption {
	return func(cfg *Config) {
		cfg.Engine = engine
	}
}

func WithBasePrefix(prefix string) ConfigOption {
	return func(cfg *Config) {
		cfg.BasePrefix = prefix
	}
}

func WithPublicURL(publicURL string) ConfigOption {
	return func(cfg *Config) {
		cfg.PublicURL = publicURL
	}
}

func WithRandomSource(intn func(n int) int) ConfigOption {
	return func(cfg *Config) {
		cfg.RandomSource = intn
	}
}

func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{BasePrefix: DefaultBasePrefix}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
