package config

import (
	"fmt"
	"os"
	"time"
)

// Config — конфигурация процесса, собранная из окружения.
//
// Config неизменяем после Load: компоненты получают его значения
// при создании и не перечитывают окружение.
type Config struct {
	// PipelineFile — путь к YAML-описанию pipeline.
	PipelineFile string

	// Workers — максимум одновременно выполняющихся jobs.
	Workers int

	// JobTimeout — таймаут job по умолчанию.
	JobTimeout time.Duration

	// ProjectID — проект, в котором разворачиваются тестовые кластеры.
	ProjectID string

	// ImageProject — проект, в котором публикуются образы.
	ImageProject string

	// CredentialsFile — путь к файлу credentials для collaborators.
	CredentialsFile string

	// Version — версия продукта, попадает в image family.
	Version string

	// ClusterPrefix — префикс имён тестовых кластеров.
	ClusterPrefix string

	// BuilderBin — бинарь сборщика образов.
	BuilderBin string

	// BuilderVarsFile — путь к var-file сборщика.
	BuilderVarsFile string

	// BuilderExtraArgs — дополнительные аргументы сборщика
	// (одна строка, разбирается по правилам shell).
	BuilderExtraArgs string

	// TesterBin — бинарь кластерных тестов.
	TesterBin string

	// TesterExtraArgs — дополнительные аргументы тестов.
	TesterExtraArgs string

	// DatabaseURL — DSN PostgreSQL для истории runs.
	// Пусто = история не сохраняется.
	DatabaseURL string

	// AMQPURL — адрес RabbitMQ для событий жизненного цикла.
	// Пусто = события не публикуются.
	AMQPURL string

	// HTTPPort — порт HTTP-сервера scheduler'а (healthz, metrics, runs).
	HTTPPort string
}

// Load собирает конфигурацию из переменных окружения.
func Load() *Config {
	return &Config{
		PipelineFile:     GetEnv("PIPELINE_FILE", "pipeline.yaml"),
		Workers:          GetIntEnv("WORKERS", 4),
		JobTimeout:       GetDurationEnv("JOB_TIMEOUT", 30*time.Minute),
		ProjectID:        GetEnv("PROJECT_ID", ""),
		ImageProject:     GetEnv("IMAGE_PROJECT", ""),
		CredentialsFile:  GetEnv("CREDENTIALS_FILE", ""),
		Version:          GetEnv("IMAGE_VERSION", ""),
		ClusterPrefix:    GetEnv("CLUSTER_PREFIX", "bakehouse"),
		BuilderBin:       GetEnv("BUILDER_BIN", "packer"),
		BuilderVarsFile:  GetEnv("BUILDER_VARS_FILE", ""),
		BuilderExtraArgs: GetEnv("BUILDER_EXTRA_ARGS", ""),
		TesterBin:        GetEnv("TESTER_BIN", "cluster-test"),
		TesterExtraArgs:  GetEnv("TESTER_EXTRA_ARGS", ""),
		DatabaseURL:      GetEnv("DB_URL", ""),
		AMQPURL:          GetEnv("RABBITMQ_URL", ""),
		HTTPPort:         GetEnv("HTTP_PORT", "8080"),
	}
}

// Validate проверяет согласованность конфигурации для запуска runs.
func (c *Config) Validate() error {
	if c.PipelineFile == "" {
		return fmt.Errorf("pipeline file is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.CredentialsFile != "" {
		if _, err := os.Stat(c.CredentialsFile); err != nil {
			return fmt.Errorf("credentials file: %w", err)
		}
	}
	return nil
}

// Variables возвращает глобальный слой переменных pipeline,
// производный от конфигурации.
func (c *Config) Variables() map[string]string {
	vars := make(map[string]string)
	if c.ProjectID != "" {
		vars["PROJECT_ID"] = c.ProjectID
	}
	if c.ImageProject != "" {
		vars["IMAGE_PROJECT"] = c.ImageProject
	}
	if c.Version != "" {
		vars["IMAGE_VERSION"] = c.Version
	}
	if c.CredentialsFile != "" {
		vars["CREDENTIALS_FILE"] = c.CredentialsFile
	}
	return vars
}
