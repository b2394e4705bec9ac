package config

import (
	"os"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	ClientURL  string
}

func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "chatter"),
		DBPassword: getEnv("DB_PASSWORD", "chatter_dev_password"),
		DBName:     getEnv("DB_NAME", "chatter"),
		JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),
		ClientURL:  getEnv("CLIENT_URL", "http://localhost:5173"),
	}
}

func getEnv(key, fallback string) string {
	val, exists := os.LookupEnv(key)

	if exists {
		return val
	}

	return fallback
}
