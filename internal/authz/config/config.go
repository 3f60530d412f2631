package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	MongoURI string
	Port     string
	DBName   string

	RoleAssignmentsCollection      string
	PermissionHistoryCollection    string
	TemporaryPermissionsCollection string
	PermissionRequestsCollection   string
	AuditEventsCollection          string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PendingRequestTTL bounds how long a permission request may stay
	// pending before review lazily rejects it. Zero disables expiry.
	PendingRequestTTL time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		Port:     getEnv("PORT", "8080"),
		DBName:   getEnv("DB_NAME", "authz_db"),

		RoleAssignmentsCollection:      getEnv("COLLECTION_ROLE_ASSIGNMENTS", "role_assignments"),
		PermissionHistoryCollection:    getEnv("COLLECTION_PERMISSION_HISTORY", "permission_history"),
		TemporaryPermissionsCollection: getEnv("COLLECTION_TEMPORARY_PERMISSIONS", "temporary_permissions"),
		PermissionRequestsCollection:   getEnv("COLLECTION_PERMISSION_REQUESTS", "permission_requests"),
		AuditEventsCollection:          getEnv("COLLECTION_AUDIT_EVENTS", "audit_events"),

		ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),

		PendingRequestTTL: getEnvDuration("PENDING_REQUEST_TTL", 30*24*time.Hour),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.PendingRequestTTL < 0 {
		return fmt.Errorf("PENDING_REQUEST_TTL must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	if val, err := strconv.Atoi(valStr); err == nil {
		return time.Duration(val) * time.Second
	}
	if d, err := time.ParseDuration(valStr); err == nil {
		return d
	}
	return fallback
}
