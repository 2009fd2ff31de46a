package utils

import (
	"os"
	"strconv"

	"github.com/google/uuid"
)

// GetEnv returns the value of key or fallback when the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

// GetEnvFloat parses key as a float64, returning fallback when unset or malformed.
func GetEnvFloat(key string, fallback float64) float64 {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return f
}

// GetEnvBool parses key as a bool, returning fallback when unset or malformed.
func GetEnvBool(key string, fallback bool) bool {
	raw := GetEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

// CreateFolder creates folderPath and any missing parents.
func CreateFolder(folderPath string) error {
	return os.MkdirAll(folderPath, 0o755)
}

// GenerateUniqueID returns a random UUID string used as a record identifier.
func GenerateUniqueID() string {
	return uuid.NewString()
}
