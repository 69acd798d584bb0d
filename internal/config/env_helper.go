package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Helper to get float64 env with default
func getEnvAsFloat64(key string, fallback float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	val, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float64 for config %s, using default %f", valueStr, fallback)
		return fallback
	}
	return val
}

func getEnvAsInt(key string, fallback int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid int for config %s=%s, using default %d", key, valueStr, fallback)
		return fallback
	}
	return val
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid bool for config %s=%s, using default %t", key, valueStr, fallback)
		return fallback
	}
	return val
}

// getEnvAsSeconds reads a (possibly fractional) number of seconds.
func getEnvAsSeconds(key string, fallback float64) time.Duration {
	secs := getEnvAsFloat64(key, fallback)
	if secs <= 0 {
		log.Printf("Warning: Non-positive duration for config %s, using default %.0fs", key, fallback)
		secs = fallback
	}
	return time.Duration(secs * float64(time.Second))
}

// getEnvAsList splits a comma separated list, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
