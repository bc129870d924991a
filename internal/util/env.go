package util

import "os"

// EnvOrDefault returns the environment variable value or fallback when it is
// unset or empty. Used for settings needed before the config file is read.
func EnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
