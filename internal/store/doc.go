// Package store — внешнее хранилище истории runs в PostgreSQL.
//
// Хранилище опционально: без DSN оркестрация работает полностью
// в памяти. Сохраняются записи runs, терминальные результаты jobs
// и их combined-логи.
package store
