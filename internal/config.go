package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "300ms"
// or "5m", or from plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	Auth      AuthConfig        `yaml:"auth"`
	Cache     CacheConfig       `yaml:"cache"`
	Stream    StreamConfig      `yaml:"stream"`
	Watcher   WatcherConfig     `yaml:"watcher"`
	Templates TemplatesConfig   `yaml:"templates"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Stream.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the connection settings for the Obsidian REST API and
// the local path of the vault directory used for filesystem discovery.
type VaultConfig struct {
	APIURL      string `yaml:"api_url"`
	APIKey      string `yaml:"api_key"`
	Path        string `yaml:"path"`
	InsecureTLS bool   `yaml:"insecure_tls"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.APIURL, validation.Required),
		validation.Field(&c.APIKey, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the MCP endpoint.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable behind a
//     reverse proxy that terminates auth itself.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// CacheConfig holds the TTLs for the three read-through caches.
type CacheConfig struct {
	StructureTTL Duration `yaml:"structure_ttl"`
	NotesTTL     Duration `yaml:"notes_ttl"`
	ResourceTTL  Duration `yaml:"resource_ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StructureTTL, validation.Required, validation.Min(Duration(time.Second))),
		validation.Field(&c.NotesTTL, validation.Required, validation.Min(Duration(time.Second))),
		validation.Field(&c.ResourceTTL, validation.Required, validation.Min(Duration(time.Second))),
	)
}

// StreamConfig holds SSE streaming encoder settings.
type StreamConfig struct {
	ChunkSize  int      `yaml:"chunk_size"`
	FrameDelay Duration `yaml:"frame_delay"`
}

// Validate validates the stream configuration.
func (c *StreamConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ChunkSize, validation.Required, validation.Min(64), validation.Max(1<<20)),
	)
}

// WatcherConfig controls the optional local-vault change watcher that
// invalidates caches when files change on disk.
type WatcherConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Debounce Duration `yaml:"debounce"`
}

// TemplatesConfig controls folder-based template application on note creation.
type TemplatesConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8888,
			},
		},
		Vault: VaultConfig{
			APIURL: "http://localhost:36961",
			Path:   "./vault",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Cache: CacheConfig{
			StructureTTL: Duration(5 * time.Minute),
			NotesTTL:     Duration(3 * time.Minute),
			ResourceTTL:  Duration(5 * time.Minute),
		},
		Stream: StreamConfig{
			ChunkSize:  1024,
			FrameDelay: Duration(10 * time.Millisecond),
		},
		Watcher: WatcherConfig{
			Enabled:  false,
			Debounce: Duration(200 * time.Millisecond),
		},
		Templates: TemplatesConfig{
			Enabled: true,
		},
	}
}
