package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// StorageURL is the public base URL of this service, as reachable by the
	// external document server. Download and callback URLs are built on it.
	StorageURL string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Document server configuration
	DocServerURL    string
	DocServerSecret string // optional; empty means open mode

	// HandleSecret signs the doc handles minted for download/track URLs.
	HandleSecret string

	// Blob store configuration
	BlobStore string // local or s3
	BlobDir   string
	S3Region  string
	S3Bucket  string
	S3Key     string
	S3Secret  string
	S3BaseURL string

	// Editor customization
	EditorPlugins bool
	EditorMacros  bool
	DefaultFormat string

	// Authorizer configuration (optional; unset means the acting user is
	// taken from the X-User-Id header, for deployments behind a gateway)
	AuthzURL      string
	AuthzClientID string
}

// Load loads configuration from environment variables, honoring a local
// .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		StorageURL:        getEnv("STORAGE_URL", ""),
		DBType:            getEnv("DB_TYPE", "mysql"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBDatabase:        getEnv("DB_DATABASE", ""),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBConnectionLimit: getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		DocServerURL:      getEnv("DOCSERVER_URL", ""),
		DocServerSecret:   getEnv("DOCSERVER_SECRET", ""),
		HandleSecret:      getEnv("HANDLE_SECRET", ""),
		BlobStore:         getEnv("BLOB_STORE", "local"),
		BlobDir:           getEnv("BLOB_DIR", "./blobs"),
		S3Region:          getEnv("S3_REGION", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Key:             getEnv("S3_ACCESS_KEY", ""),
		S3Secret:          getEnv("S3_SECRET_KEY", ""),
		S3BaseURL:         getEnv("S3_BASE_URL", ""),
		EditorPlugins:     getEnvAsBool("EDITOR_PLUGINS", false),
		EditorMacros:      getEnvAsBool("EDITOR_MACROS", false),
		DefaultFormat:     getEnv("DEFAULT_FORMAT", "docx"),
		AuthzURL:          getEnv("AUTHZ_URL", ""),
		AuthzClientID:     getEnv("AUTHZ_CLIENT_ID", ""),
	}

	if cfg.StorageURL == "" {
		cfg.StorageURL = "http://localhost:" + cfg.Port
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.DocServerURL == "" {
		return nil, fmt.Errorf("DOCSERVER_URL is required")
	}
	if cfg.HandleSecret == "" {
		return nil, fmt.Errorf("HANDLE_SECRET is required")
	}
	if cfg.BlobStore == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when BLOB_STORE=s3")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
