// Package telemetry содержит наблюдаемость движка:
// structured logging (log/slog) и Prometheus-метрики.
package telemetry
