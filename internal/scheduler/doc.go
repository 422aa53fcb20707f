// Package scheduler запускает runs по cron-расписаниям pipeline.
//
// Scheduler хранит времена срабатывания в памяти и проверяет их
// раз в тик. Запуск run делегируется через TriggerFunc — scheduler
// не знает про orchestrator.
package scheduler
