package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/remotestore/database"
	rshttp "github.com/sagarc03/remotestore/http"
	"github.com/sagarc03/remotestore/s3store"
)

// Blob store types.
const (
	BlobFilesystem = "filesystem"
	BlobS3         = "s3"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for remotestore.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Database  database.Config   `mapstructure:"database"`
	Blob      BlobConfig        `mapstructure:"blob"`
	Namespace NamespaceConfig   `mapstructure:"namespace"`
	Auth      AuthConfig        `mapstructure:"auth"`
	CORS      rshttp.CORSConfig `mapstructure:"cors"`
	Log       LogConfig         `mapstructure:"log"`
	Env       string            `mapstructure:"env" validate:"omitempty,oneof=dev development prod production"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize  int64         `mapstructure:"max_upload_size" validate:"min=0"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout" validate:"min=0"`
}

// BlobConfig selects where binary payloads are kept.
type BlobConfig struct {
	Type string         `mapstructure:"type" validate:"required,oneof=filesystem s3"`
	Path string         `mapstructure:"path" validate:"required_if=Type filesystem"`
	S3   s3store.Config `mapstructure:"s3"`
}

// NamespaceConfig tunes the directory index walks.
type NamespaceConfig struct {
	WalkConcurrency int `mapstructure:"walk_concurrency" validate:"min=1,max=64"`
}

// AuthConfig holds grant provisioning configuration.
type AuthConfig struct {
	// GrantsFile is imported into the grant store at startup when set.
	GrantsFile string `mapstructure:"grants_file"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// IsProduction reports whether env selects production logging.
func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// Validate checks the rules struct tags cannot express.
func (c *Config) Validate() error {
	if c.Blob.Type == BlobS3 && c.Blob.S3.Bucket == "" {
		return errors.New("blob.s3.bucket is required when blob.type is s3")
	}
	if c.Database.Type == database.TypeSQLite || c.Database.Type == database.TypePostgres {
		if err := c.Database.Tables.Validate(); err != nil {
			return fmt.Errorf("database.tables: %w", err)
		}
	}
	return nil
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":     "database.type",
	"db-dsn":      "database.dsn",
	"blob-type":   "blob.type",
	"blob-path":   "blob.path",
	"port":        "server.port",
	"grants-file": "auth.grants_file",
	"log-level":   "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance. Every key
// needs a default so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5708)
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.cleanup_timeout", 30*time.Second)

	v.SetDefault("database.type", database.TypeSQLite)
	v.SetDefault("database.dsn", "remotestore.db")
	v.SetDefault("database.tables.objects", "remotestore_objects")
	v.SetDefault("database.tables.directories", "remotestore_directories")
	v.SetDefault("database.tables.grants", "remotestore_grants")

	v.SetDefault("blob.type", BlobFilesystem)
	v.SetDefault("blob.path", "./data")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.key_prefix", "")
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("blob.s3.create_bucket", false)

	v.SetDefault("namespace.walk_concurrency", 4)

	v.SetDefault("auth.grants_file", "")

	v.SetDefault("cors.exposed_headers", []string{"ETag", "Last-Modified", "Content-Length"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("log.level", "info")
	v.SetDefault("env", "dev")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("REMOTESTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
