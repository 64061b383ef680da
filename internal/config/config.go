package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const (
	AuthProviderLocal    = "local"
	AuthProviderSupabase = "supabase"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	FrontendURL string

	MongoDBURI      string
	MongoDBPassword string
	MongoDBDatabase string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	AuthProvider    string
	JWTSecret       string
	JWTExpireHours  int
	SupabaseURL     string
	SupabaseAnonKey string

	RedisURL string

	// MaxPageSize caps the caller-supplied list limit; 0 disables the cap.
	MaxPageSize int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:        getEnvWithDefault("PORT", "8080"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		FrontendURL: getEnvWithDefault("FRONTEND_URL", "http://localhost:5173"),

		MongoDBURI:      os.Getenv("MONGODB_URI"),
		MongoDBPassword: os.Getenv("MONGODB_PASSWORD"),
		MongoDBDatabase: getEnvWithDefault("MONGODB_DATABASE", "eventhub"),

		CloudinaryCloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryFolder:    getEnvWithDefault("CLOUDINARY_FOLDER", "events"),

		AuthProvider:    strings.ToLower(getEnvWithDefault("AUTH_PROVIDER", AuthProviderLocal)),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_URL_ANON_KEY"),

		RedisURL: os.Getenv("REDIS_URL"),
	}

	var err error
	if cfg.JWTExpireHours, err = getIntWithDefault("JWT_EXPIRE_HOURS", 720); err != nil {
		return nil, err
	}
	if cfg.MaxPageSize, err = getIntWithDefault("MAX_PAGE_SIZE", 100); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		return nil, fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required")
	}
	if cfg.MaxPageSize < 0 {
		return nil, fmt.Errorf("MAX_PAGE_SIZE must not be negative")
	}

	if err := validateOrigins(cfg.FrontendOrigins()); err != nil {
		return nil, err
	}

	switch cfg.AuthProvider {
	case AuthProviderLocal:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required when AUTH_PROVIDER=local")
		}
		if cfg.JWTExpireHours <= 0 {
			return nil, fmt.Errorf("JWT_EXPIRE_HOURS must be positive")
		}
	case AuthProviderSupabase:
		if cfg.SupabaseURL == "" {
			return nil, fmt.Errorf("SUPABASE_URL is required when AUTH_PROVIDER=supabase")
		}
		if cfg.SupabaseAnonKey == "" {
			return nil, fmt.Errorf("SUPABASE_URL_ANON_KEY is required when AUTH_PROVIDER=supabase")
		}
	default:
		return nil, fmt.Errorf("unsupported AUTH_PROVIDER %q (expected local or supabase)", cfg.AuthProvider)
	}

	return cfg, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// MongoURI returns the connection string with the <password> placeholder filled in.
func (c *Config) MongoURI() string {
	if c.MongoDBPassword == "" {
		return c.MongoDBURI
	}
	return strings.Replace(c.MongoDBURI, "<password>", c.MongoDBPassword, 1)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// FrontendOrigins splits FRONTEND_URL, which may list several comma-separated origins.
func (c *Config) FrontendOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.FrontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// validateOrigins requires every origin to be an absolute http(s) URL; CORS rejects anything else.
func validateOrigins(origins []string) error {
	if len(origins) == 0 {
		return fmt.Errorf("FRONTEND_URL must list at least one origin")
	}
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("FRONTEND_URL origin %q must look like http://host[:port]", o)
		}
	}
	return nil
}
