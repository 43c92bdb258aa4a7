// Package config loads schoolctl profiles. A profile names one backend and
// carries its base URL, session storage, logging and cache settings.
package config

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverRedis  = "redis"
)

// Profile is the resolved configuration of one backend.
type Profile struct {
	// Name is the profile identifier (e.g., "default", "staging")
	Name string `yaml:"-" json:"name"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// APIURL is the gateway base URL
	APIURL string `yaml:"api_url" json:"api_url" validate:"required,url"`

	// Timeout bounds every HTTP request
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`

	// OpenAPI is an optional contract document checked against 2xx responses
	OpenAPI string `yaml:"openapi,omitempty" json:"openapi,omitempty"`

	Storage StorageConfig `yaml:"storage" json:"storage"`
	Log     LogConfig     `yaml:"log" json:"log"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`

	// Identifier is the last login identifier, offered as the prompt default
	Identifier string `yaml:"identifier,omitempty" json:"identifier,omitempty"`

	// LastPath is the last screen the session navigated to
	LastPath string `yaml:"last_path,omitempty" json:"last_path,omitempty"`
}

// StorageConfig selects where the session is persisted.
type StorageConfig struct {
	Driver string `yaml:"driver" json:"driver" validate:"required,oneof=memory file redis"`

	// Path of the session file (file driver)
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Passphrase encrypts session values (file driver). Read from the
	// environment only.
	Passphrase string `yaml:"-" json:"-"`

	// RedisURL is a redis:// URL (redis driver)
	RedisURL string        `yaml:"redis_url,omitempty" json:"redis_url,omitempty" validate:"required_if=Driver redis"`
	TTL      time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty" validate:"gte=0"`
}

// Encrypted reports whether session values are sealed.
func (s StorageConfig) Encrypted() bool {
	return s.Passphrase != ""
}

// LogConfig configures diagnostics.
type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=text json"`
}

// CacheConfig configures the read cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl" validate:"gte=0"`
}

// Document is the on-disk layout of a config file.
type Document struct {
	Schema         string              `yaml:"schema,omitempty"`
	CurrentProfile string              `yaml:"current_profile,omitempty"`
	Profiles       map[string]*Profile `yaml:"profiles"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the profile.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if !stderrors.As(err, &fieldErrs) {
			return errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("invalid profile %q", p.Name), err)
		}
		problems := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return errors.New(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid profile %q: %s", p.Name, strings.Join(problems, "; "))).
			WithSuggestion("Check " + p.Name + " in the config file: schoolctl config view")
	}
	return nil
}

// Merge returns p with every non-zero field of other applied on top.
func (p *Profile) Merge(other *Profile) *Profile {
	merged := *p
	if other == nil {
		return &merged
	}

	if other.Description != "" {
		merged.Description = other.Description
	}
	if other.APIURL != "" {
		merged.APIURL = other.APIURL
	}
	if other.Timeout != 0 {
		merged.Timeout = other.Timeout
	}
	if other.OpenAPI != "" {
		merged.OpenAPI = other.OpenAPI
	}

	if other.Storage.Driver != "" {
		merged.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.Path != "" {
		merged.Storage.Path = other.Storage.Path
	}
	if other.Storage.Passphrase != "" {
		merged.Storage.Passphrase = other.Storage.Passphrase
	}
	if other.Storage.RedisURL != "" {
		merged.Storage.RedisURL = other.Storage.RedisURL
	}
	if other.Storage.TTL != 0 {
		merged.Storage.TTL = other.Storage.TTL
	}

	if other.Log.Level != "" {
		merged.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		merged.Log.Format = other.Log.Format
	}
	if other.Cache.TTL != 0 {
		merged.Cache.TTL = other.Cache.TTL
	}

	if other.Identifier != "" {
		merged.Identifier = other.Identifier
	}
	if other.LastPath != "" {
		merged.LastPath = other.LastPath
	}
	return &merged
}
