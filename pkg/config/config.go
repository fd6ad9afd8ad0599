package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds process configuration, sourced from the environment with a
// .env file as fallback for local development.
type Config struct {
	Port       string
	DBPath     string
	CORSOrigin string
	// MockAuth makes the API treat requests without identity headers as a
	// development admin. Never enable outside local development.
	MockAuth bool
}

// Load reads .env if present (without overwriting already-set variables) and
// builds the configuration with defaults.
func Load() *Config {
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}
	return &Config{
		Port:       getenv("PORT", "8080"),
		DBPath:     getenv("DB_PATH", "familyholdings.db"),
		CORSOrigin: getenv("CORS_ORIGIN", "*"),
		MockAuth:   getenv("MOCK_AUTH", "") == "1",
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
