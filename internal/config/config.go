package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config represents the main application configuration
type Config struct {
	Database  Database  `json:"database" mapstructure:"database"`
	Server    Server    `json:"server" mapstructure:"server"`
	HTTP      HTTP      `json:"http" mapstructure:"http"`
	JWT       JWT       `json:"jwt" mapstructure:"jwt"`
	Admin     Admin     `json:"admin" mapstructure:"admin"`
	Signing   Signing   `json:"signing" mapstructure:"signing"`
	Storage   Storage   `json:"storage" mapstructure:"storage"`
	Migration Migration `json:"migration" mapstructure:"migration"`
}

// Database represents database configuration
type Database struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	User            string        `json:"user" mapstructure:"user"`
	Password        string        `json:"password" mapstructure:"password"`
	DBName          string        `json:"dbname" mapstructure:"dbname"`
	SSLMode         string        `json:"sslmode" mapstructure:"sslmode"`
	MaxConnections  int           `json:"max_connections" mapstructure:"max_connections"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Server represents logging and runtime configuration
type Server struct {
	LogLevel string `json:"log_level" mapstructure:"log_level"`
	Debug    bool   `json:"debug" mapstructure:"debug"`
}

// HTTP represents the admin HTTP server configuration
type HTTP struct {
	Port         int      `json:"port" mapstructure:"port"`
	AllowOrigins []string `json:"allow_origins" mapstructure:"allow_origins"`
}

// JWT represents JWT configuration for the admin API
type JWT struct {
	Secret string `json:"secret" mapstructure:"secret"`
}

// Admin represents the bootstrap admin account for the task API
type Admin struct {
	Email    string `json:"email" mapstructure:"email"`
	Password string `json:"-" mapstructure:"password"`
}

// Signing represents the external signing service configuration
type Signing struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Endpoint   string        `json:"endpoint" mapstructure:"endpoint"`
	APIKey     string        `json:"-" mapstructure:"api_key"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
}

// Storage represents filesystem paths used by package builds
type Storage struct {
	UploadDir string `json:"upload_dir" mapstructure:"upload_dir"`
	TmpDir    string `json:"tmp_dir" mapstructure:"tmp_dir"`
}

// Migration represents migration-task policy. Default fallbacks are
// resolved once per run from these values, not re-queried per record.
type Migration struct {
	DefaultOwnerEmail    string   `json:"default_owner_email" mapstructure:"default_owner_email"`
	DefaultCategorySlug  string   `json:"default_category_slug" mapstructure:"default_category_slug"`
	ChunkSize            int      `json:"chunk_size" mapstructure:"chunk_size"`
	Concurrency          int      `json:"concurrency" mapstructure:"concurrency"`
	SensitivePermissions []string `json:"sensitive_permissions" mapstructure:"sensitive_permissions"`
}

// DefaultSensitivePermissions are the manifest permissions that imply
// access to sensitive user data.
var DefaultSensitivePermissions = []string{
	"messagesRead",
	"messagesModify",
	"messagesMove",
	"messagesDelete",
	"accountsRead",
	"accountsFolders",
}

// SensitiveDataUploadPermission is the explicit opt-in permission that
// suppresses the reviewer-attention flag.
const SensitiveDataUploadPermission = "sensitiveDataUpload"

// NewDefault returns a Config instance with default values
func NewDefault() *Config {
	return &Config{
		Database: Database{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "",
			DBName:          "addonhub",
			SSLMode:         "disable",
			MaxConnections:  25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 1 * time.Minute,
		},
		Server: Server{
			LogLevel: "info",
			Debug:    false,
		},
		HTTP: HTTP{
			Port:         8082,
			AllowOrigins: []string{"http://localhost:3000"},
		},
		JWT: JWT{
			Secret: "change-me-in-production",
		},
		Admin: Admin{
			Email: "admin@addonhub.local",
		},
		Signing: Signing{
			Enabled:    false,
			Endpoint:   "",
			MaxRetries: 3,
			Timeout:    30 * time.Second,
		},
		Storage: Storage{
			UploadDir: "/tmp/addonhub/uploads",
			TmpDir:    "/tmp/addonhub/tmp",
		},
		Migration: Migration{
			DefaultOwnerEmail:    "addons-team@addonhub.local",
			DefaultCategorySlug:  "other",
			ChunkSize:            100,
			Concurrency:          4,
			SensitivePermissions: DefaultSensitivePermissions,
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database port must be between 1 and 65535")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be greater than 0")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("max idle connections cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxConnections {
		return fmt.Errorf("max idle connections cannot exceed max connections")
	}

	// Server validation
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	// HTTP validation
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret cannot be empty")
	}

	// Signing validation
	if c.Signing.Enabled && c.Signing.Endpoint == "" {
		return fmt.Errorf("signing endpoint is required when signing is enabled")
	}
	if c.Signing.MaxRetries < 0 {
		return fmt.Errorf("signing max retries cannot be negative")
	}
	if c.Signing.Timeout <= 0 {
		return fmt.Errorf("signing timeout must be positive")
	}

	// Storage validation
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("upload directory is required")
	}

	// Migration validation
	if c.Migration.DefaultOwnerEmail == "" {
		return fmt.Errorf("default owner email is required")
	}
	if c.Migration.DefaultCategorySlug == "" {
		return fmt.Errorf("default category slug is required")
	}
	if c.Migration.ChunkSize <= 0 {
		return fmt.Errorf("migration chunk size must be greater than 0")
	}
	if c.Migration.Concurrency <= 0 {
		return fmt.Errorf("migration concurrency must be greater than 0")
	}

	return nil
}

// DatabaseURL constructs a PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	params := url.Values{}
	params.Set("sslmode", c.Database.SSLMode)

	var userInfo *url.Userinfo
	if c.Database.Password == "" {
		userInfo = url.User(c.Database.User)
	} else {
		userInfo = url.UserPassword(c.Database.User, c.Database.Password)
	}

	u := &url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.DBName,
		RawQuery: params.Encode(),
	}

	return u.String()
}
