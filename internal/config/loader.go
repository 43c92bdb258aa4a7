package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/schoolctl/internal/errors"
	"github.com/felixgeelhaar/schoolctl/internal/log"
)

//go:embed builtin/*.yaml
var builtinConfig embed.FS

const (
	// DefaultProfile is used when no profile is named anywhere.
	DefaultProfile = "default"

	// FileName is the config file inside the config directory.
	FileName = "config.yaml"

	schemaPrefix = "schoolctl.config/v"
)

// Environment overrides. They win over every file.
const (
	EnvProfile           = "SCHOOLCTL_PROFILE"
	EnvAPIURL            = "SCHOOLCTL_API_URL"
	EnvTimeout           = "SCHOOLCTL_TIMEOUT"
	EnvOpenAPI           = "SCHOOLCTL_OPENAPI"
	EnvStorageDriver     = "SCHOOLCTL_STORAGE_DRIVER"
	EnvStoragePath       = "SCHOOLCTL_STORAGE_PATH"
	EnvStoragePassphrase = "SCHOOLCTL_STORAGE_PASSPHRASE"
	EnvRedisURL          = "SCHOOLCTL_REDIS_URL"
	EnvLogLevel          = "SCHOOLCTL_LOG_LEVEL"
	EnvLogFormat         = "SCHOOLCTL_LOG_FORMAT"
	EnvHome              = "SCHOOLCTL_HOME"
)

// Loader resolves profiles.
//
// Resolution order (highest to lowest precedence):
// 1. Process environment (SCHOOLCTL_*)
// 2. ./.env in the working directory
// 3. User config file (~/.schoolctl/config.yaml)
// 4. Built-in defaults (embedded in binary)
type Loader struct {
	// dir holds config.yaml and the default session files
	dir string

	// envFile is the dotenv file layered under the process environment
	envFile string

	lookupEnv func(string) (string, bool)
	logger    *log.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDir overrides the config directory.
func WithDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.dir = dir
	}
}

// WithEnvFile overrides the dotenv file. An empty path disables it.
func WithEnvFile(path string) LoaderOption {
	return func(l *Loader) {
		l.envFile = path
	}
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(lookup func(string) (string, bool)) LoaderOption {
	return func(l *Loader) {
		l.lookupEnv = lookup
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

// NewLoader creates a loader rooted at DefaultDir.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		envFile:   ".env",
		lookupEnv: os.LookupEnv,
		logger:    log.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.dir == "" {
		l.dir = DefaultDir(l.lookupEnv)
	}
	return l
}

// DefaultDir returns $SCHOOLCTL_HOME or ~/.schoolctl.
func DefaultDir(lookup func(string) (string, bool)) string {
	if home, ok := lookup(EnvHome); ok && home != "" {
		return home
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".schoolctl"
	}
	return filepath.Join(homeDir, ".schoolctl")
}

// Dir returns the config directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Path returns the config file path.
func (l *Loader) Path() string {
	return filepath.Join(l.dir, FileName)
}

// Load resolves a profile. An empty name falls back to SCHOOLCTL_PROFILE,
// then current_profile in the config file, then DefaultProfile.
func (l *Loader) Load(name string) (*Profile, error) {
	env, err := l.environment()
	if err != nil {
		return nil, err
	}

	doc, err := l.readDocument()
	if err != nil {
		return nil, err
	}

	name = l.resolveName(name, env, doc)

	base, err := loadBuiltin(DefaultProfile)
	if err != nil {
		return nil, err
	}
	if builtin, err := loadBuiltin(name); err == nil {
		base = base.Merge(builtin)
	}

	user, found := doc.Profiles[name]
	if !found && name != DefaultProfile {
		if _, builtinErr := loadBuiltin(name); builtinErr != nil {
			return nil, errors.New(errors.ErrCodeConfigRead, fmt.Sprintf("profile %q not found", name)).
				WithSuggestions(
					"List profiles: schoolctl config profiles",
					"Add it under profiles: in "+l.Path(),
				)
		}
	}
	profile := base.Merge(user)
	profile.Name = name

	if err := applyEnv(profile, env); err != nil {
		return nil, err
	}
	if profile.Storage.Driver == DriverFile && profile.Storage.Path == "" {
		profile.Storage.Path = l.sessionPath(name)
	}

	if err := profile.Validate(); err != nil {
		return nil, err
	}
	l.logger.Debug("profile loaded", "profile", name, "api_url", profile.APIURL, "storage", profile.Storage.Driver)
	return profile, nil
}

// Profiles returns the names of every known profile, sorted.
func (l *Loader) Profiles() ([]string, error) {
	doc, err := l.readDocument()
	if err != nil {
		return nil, err
	}
	names := map[string]bool{DefaultProfile: true}
	for name := range doc.Profiles {
		names[name] = true
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Current returns the profile named by current_profile, or DefaultProfile.
func (l *Loader) Current() (string, error) {
	doc, err := l.readDocument()
	if err != nil {
		return "", err
	}
	if doc.CurrentProfile == "" {
		return DefaultProfile, nil
	}
	return doc.CurrentProfile, nil
}

// Use makes name the current profile.
func (l *Loader) Use(name string) error {
	return l.update(func(doc *Document) error {
		if _, ok := doc.Profiles[name]; !ok && name != DefaultProfile {
			return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("profile %q not found", name))
		}
		doc.CurrentProfile = name
		return nil
	})
}

// Save updates the stored entry of profile name through fn. Environment
// overrides never reach the file.
func (l *Loader) Save(name string, fn func(p *Profile)) error {
	return l.update(func(doc *Document) error {
		p, ok := doc.Profiles[name]
		if !ok {
			p = &Profile{}
			doc.Profiles[name] = p
		}
		fn(p)
		return nil
	})
}

// Set assigns a dotted key of a stored profile (e.g. "storage.driver").
func (l *Loader) Set(name, key, value string) error {
	return l.update(func(doc *Document) error {
		p, ok := doc.Profiles[name]
		if !ok {
			p = &Profile{}
			doc.Profiles[name] = p
		}
		return setField(p, key, value)
	})
}

func (l *Loader) update(fn func(doc *Document) error) error {
	doc, err := l.readDocument()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	if doc.Schema == "" {
		doc.Schema = schemaPrefix + "1"
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfigWrite, "failed to encode config", err)
	}
	if err := os.MkdirAll(l.dir, 0700); err != nil {
		return errors.Wrap(errors.ErrCodeConfigWrite, "failed to create config directory", err)
	}
	if err := os.WriteFile(l.Path(), data, 0600); err != nil {
		return errors.Wrap(errors.ErrCodeConfigWrite, "failed to write config", err)
	}
	return nil
}

func (l *Loader) sessionPath(name string) string {
	if name == DefaultProfile {
		return filepath.Join(l.dir, "session.json")
	}
	return filepath.Join(l.dir, "session-"+name+".json")
}

func (l *Loader) resolveName(name string, env map[string]string, doc *Document) string {
	if name != "" {
		return name
	}
	if v := env[EnvProfile]; v != "" {
		return v
	}
	if doc.CurrentProfile != "" {
		return doc.CurrentProfile
	}
	return DefaultProfile
}

// environment merges the dotenv file under the process environment.
func (l *Loader) environment() (map[string]string, error) {
	env := map[string]string{}
	if l.envFile != "" {
		if _, err := os.Stat(l.envFile); err == nil {
			values, err := godotenv.Read(l.envFile)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeConfigRead, "failed to read "+l.envFile, err)
			}
			for k, v := range values {
				if strings.HasPrefix(k, "SCHOOLCTL_") {
					env[k] = v
				}
			}
		}
	}
	for _, k := range []string{
		EnvProfile, EnvAPIURL, EnvTimeout, EnvOpenAPI, EnvStorageDriver, EnvStoragePath,
		EnvStoragePassphrase, EnvRedisURL, EnvLogLevel, EnvLogFormat,
	} {
		if v, ok := l.lookupEnv(k); ok {
			env[k] = v
		}
	}
	return env, nil
}

func (l *Loader) readDocument() (*Document, error) {
	doc := &Document{Profiles: map[string]*Profile{}}

	data, err := os.ReadFile(l.Path())
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigRead, "failed to read config", err)
	}
	if err := parseDocument(data, doc); err != nil {
		return nil, errors.NewFileUnmarshalError(l.Path(), "YAML", err)
	}
	return doc, nil
}

func parseDocument(data []byte, doc *Document) error {
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), doc); err != nil {
		return err
	}
	if doc.Schema != "" && !strings.HasPrefix(doc.Schema, schemaPrefix) {
		return fmt.Errorf("unsupported schema version: %s", doc.Schema)
	}
	if doc.Profiles == nil {
		doc.Profiles = map[string]*Profile{}
	}
	return nil
}

func loadBuiltin(name string) (*Profile, error) {
	data, err := builtinConfig.ReadFile("builtin/default.yaml")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigRead, "built-in config missing", err)
	}
	doc := &Document{}
	if err := parseDocument(data, doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigRead, "failed to parse built-in config", err)
	}
	p, ok := doc.Profiles[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeConfigRead, fmt.Sprintf("no built-in profile %q", name))
	}
	return p, nil
}

func applyEnv(p *Profile, env map[string]string) error {
	if v := env[EnvAPIURL]; v != "" {
		p.APIURL = v
	}
	if v := env[EnvTimeout]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, EnvTimeout+" is not a duration", err)
		}
		p.Timeout = d
	}
	if v := env[EnvOpenAPI]; v != "" {
		p.OpenAPI = v
	}
	if v := env[EnvStorageDriver]; v != "" {
		p.Storage.Driver = v
	}
	if v := env[EnvStoragePath]; v != "" {
		p.Storage.Path = v
	}
	if v := env[EnvStoragePassphrase]; v != "" {
		p.Storage.Passphrase = v
	}
	if v := env[EnvRedisURL]; v != "" {
		p.Storage.RedisURL = v
	}
	if v := env[EnvLogLevel]; v != "" {
		p.Log.Level = v
	}
	if v := env[EnvLogFormat]; v != "" {
		p.Log.Format = v
	}
	return nil
}

// Keys lists the dotted keys accepted by Set.
var Keys = []string{
	"description", "api_url", "timeout", "openapi",
	"storage.driver", "storage.path", "storage.redis_url", "storage.ttl",
	"log.level", "log.format", "cache.ttl",
}

func setField(p *Profile, key, value string) error {
	duration := func(target *time.Duration) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeConfigInvalid, key+" must be a duration like 30s", err)
		}
		*target = d
		return nil
	}

	switch key {
	case "description":
		p.Description = value
	case "api_url":
		p.APIURL = value
	case "timeout":
		return duration(&p.Timeout)
	case "openapi":
		p.OpenAPI = value
	case "storage.driver":
		p.Storage.Driver = value
	case "storage.path":
		p.Storage.Path = value
	case "storage.redis_url":
		p.Storage.RedisURL = value
	case "storage.ttl":
		return duration(&p.Storage.TTL)
	case "log.level":
		p.Log.Level = value
	case "log.format":
		p.Log.Format = value
	case "cache.ttl":
		return duration(&p.Cache.TTL)
	default:
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown key %q", key)).
			WithSuggestion("Valid keys: " + strings.Join(Keys, ", "))
	}
	return nil
}

// Field returns the value of a dotted key in the form Set accepts.
func (p *Profile) Field(key string) (string, error) {
	switch key {
	case "name":
		return p.Name, nil
	case "description":
		return p.Description, nil
	case "api_url":
		return p.APIURL, nil
	case "timeout":
		return p.Timeout.String(), nil
	case "openapi":
		return p.OpenAPI, nil
	case "storage.driver":
		return p.Storage.Driver, nil
	case "storage.path":
		return p.Storage.Path, nil
	case "storage.redis_url":
		return p.Storage.RedisURL, nil
	case "storage.ttl":
		return p.Storage.TTL.String(), nil
	case "log.level":
		return p.Log.Level, nil
	case "log.format":
		return p.Log.Format, nil
	case "cache.ttl":
		return p.Cache.TTL.String(), nil
	case "identifier":
		return p.Identifier, nil
	case "last_path":
		return p.LastPath, nil
	default:
		return "", errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf("unknown key %q", key)).
			WithSuggestion("Valid keys: " + strings.Join(Keys, ", "))
	}
}

// LogConfig converts the profile's logging settings.
func (p *Profile) LogConfig() (log.Config, error) {
	level, err := log.ParseLevel(p.Log.Level)
	if err != nil {
		return log.Config{}, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid log level", err)
	}
	cfg := log.DefaultConfig()
	cfg.Level = level
	cfg.Format = log.ParseFormat(p.Log.Format)
	if level == log.LevelDebug {
		cfg.AddSource = true
	}
	return cfg, nil
}
