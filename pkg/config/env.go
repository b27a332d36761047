// Package config reads the environment settings shared by the commands.
package config

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"safepath/pkg/geocode"
)

// DefaultUserAgent identifies safepath to upstream services.
const DefaultUserAgent = "safepath/1.0"

// Env holds the settings read from SAFEPATH_* variables.
type Env struct {
	NominatimURL  string // SAFEPATH_NOMINATIM_URL
	UserAgent     string // SAFEPATH_USER_AGENT
	ClassifierURL string // SAFEPATH_CLASSIFIER_URL, empty selects the rule classifier
}

// FromEnv loads ./.env when present and reads the SAFEPATH_* variables.
// Variables already set in the environment take precedence over .env.
func FromEnv() Env {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Ignoring .env: %v", err)
	}
	return Env{
		NominatimURL:  envOr("SAFEPATH_NOMINATIM_URL", geocode.DefaultNominatimURL),
		UserAgent:     envOr("SAFEPATH_USER_AGENT", DefaultUserAgent),
		ClassifierURL: os.Getenv("SAFEPATH_CLASSIFIER_URL"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
