package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Консоль скорера
	EventualQuota    int           // лимит матчей eventual-игрока за эдишен
	ConsoleAttempts  int           // попытки сохранения до отката
	ConsoleBackoff   time.Duration // базовая задержка между попытками
	ConsoleDeviceKey string        // bcrypt-хэш ключа устройства; пусто = выключено

	// Лента для внешних потребителей; пусто = внутрипроцессный брокер
	AMQPURL string

	// Экспорт отчётов (Cloudflare R2); все поля пустые = экспорт выключен
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	quota, err := intEnv("EVENTUAL_QUOTA", 2)
	if err != nil {
		return nil, err
	}
	if quota < 0 {
		return nil, fmt.Errorf("EVENTUAL_QUOTA must not be negative, got %d", quota)
	}

	attempts, err := intEnv("CONSOLE_RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}

	backoffMs, err := intEnv("CONSOLE_RETRY_BACKOFF_MS", 250)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		EventualQuota:    quota,
		ConsoleAttempts:  attempts,
		ConsoleBackoff:   time.Duration(backoffMs) * time.Millisecond,
		ConsoleDeviceKey: os.Getenv("CONSOLE_DEVICE_KEY_HASH"),

		AMQPURL: os.Getenv("AMQP_URL"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

// R2Configured сообщает, задан ли полный набор параметров экспорта.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}
