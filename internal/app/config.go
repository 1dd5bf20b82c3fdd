package app

import (
	"os"
	"time"
	_ "time/tzdata" // Location must resolve on hosts without a zoneinfo database.

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	validation "github.com/go-ozzo/ozzo-validation"
)

// Config holds the complete application configuration, loadable from
// environment variables (POS_ prefix), flags, or YAML config files.
type Config struct {
	Addr             string `default:"127.0.0.1:8080" usage:"API server listen address"`
	DataFile         string `default:"data/quickpay.db" usage:"Path to the bbolt store" flag:"data-file"`
	Location         string `default:"Europe/Prague" usage:"Time zone for day boundaries and export timestamps"`
	ImageInlineLimit int    `default:"65536" usage:"Uploads up to this many bytes stay inline on the product" flag:"image-inline-limit"`
	MaxUploadBytes   int64  `default:"5242880" usage:"Maximum product image upload size" flag:"max-upload-bytes"`
	MaxImportBytes   int64  `default:"52428800" usage:"Maximum product import file size" flag:"max-import-bytes"`
	Throttle         ThrottleConfig
	CORS             CORSConfig
	Graceful         GracefulConfig
}

// ThrottleConfig limits the export, import and backup endpoints per client.
type ThrottleConfig struct {
	Max    int           `default:"30" usage:"Max heavy requests per window, 0 disables"`
	Window time.Duration `default:"1m" usage:"Throttle window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "POS",
		Files:     []string{"config.yaml", "/etc/quickpay/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults honours the conventional PORT variable.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == "127.0.0.1:8080" {
		c.Addr = "127.0.0.1:" + port
	}
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DataFile, validation.Required),
		validation.Field(&c.Location, validation.Required),
		validation.Field(&c.ImageInlineLimit, validation.Min(0)),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.MaxImportBytes, validation.Required, validation.Min(int64(1))),
	)
	if err != nil {
		return errors.Wrap(err, "invalid config")
	}
	if c.Throttle.Max < 0 || c.Throttle.Window < 0 {
		return errors.New("invalid config: throttle values must not be negative")
	}

	if _, err := time.LoadLocation(c.Location); err != nil {
		return errors.Wrap(err, "invalid config: location")
	}
	return nil
}

// Loc resolves Location, falling back to UTC when it does not load.
func (c *Config) Loc() *time.Location {
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
