package mpesa

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the credentials and addressing needed by every operation.
type Config struct {
	Mode                Mode   `json:"mode" validate:"required,oneof=sandbox production"`
	APIKey              string `json:"api_key" validate:"required"`
	PublicKey           string `json:"public_key" validate:"required"`
	Origin              string `json:"origin" validate:"required"`
	ServiceProviderCode string `json:"service_provider_code" validate:"required"`
}

// Validate returns a *ConfigurationError naming every missing or invalid field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigurationError{Err: err}
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fieldName(fe.Field()))
	}
	return &ConfigurationError{Missing: missing}
}

func fieldName(f string) string {
	switch f {
	case "Mode":
		return "mode"
	case "APIKey":
		return "apiKey"
	case "PublicKey":
		return "publicKey"
	case "Origin":
		return "origin"
	case "ServiceProviderCode":
		return "serviceProviderCode"
	}
	return f
}

// Store owns one Config. It is safe for concurrent use, so a single store can be
// shared by several clients without a dispatch seeing a half-applied update.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

// NewStore returns a store seeded with cfg. Mode defaults to sandbox; nothing else
// is checked until a dispatch needs it.
func NewStore(cfg Config) *Store {
	if cfg.Mode == "" {
		cfg.Mode = ModeSandbox
	}
	return &Store{cfg: cfg}
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update replaces each field that is non-empty in partial and leaves the rest alone.
func (s *Store) Update(partial Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if partial.Mode != "" {
		s.cfg.Mode = partial.Mode
	}
	if partial.APIKey != "" {
		s.cfg.APIKey = partial.APIKey
	}
	if partial.PublicKey != "" {
		s.cfg.PublicKey = partial.PublicKey
	}
	if partial.Origin != "" {
		s.cfg.Origin = partial.Origin
	}
	if partial.ServiceProviderCode != "" {
		s.cfg.ServiceProviderCode = partial.ServiceProviderCode
	}
}
