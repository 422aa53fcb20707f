package config

import (
	"os"
	"strconv"
	"time"
)

// GetEnv возвращает значение переменной окружения или default.
func GetEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetIntEnv возвращает целочисленную переменную окружения или default.
// Невалидное значение молча заменяется default'ом.
func GetIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// GetBoolEnv возвращает булеву переменную окружения или default.
func GetBoolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// GetDurationEnv возвращает duration-переменную окружения или default.
func GetDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
