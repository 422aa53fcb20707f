// Package cli реализует команды bakehouse:
//
//   - validate — проверка описания pipeline
//   - plan     — предпросмотр решений триггеров без выполнения
//   - run      — выполнение pipeline
//   - build    — прямая сборка одного семейства образов
//   - test     — прямой прогон кластерных тестов
//   - runs     — история runs (требует DB_URL)
//
// Коды выхода: 0 — успех, 2 — невалидное описание, 3 — ошибка
// сборки, 4 — ошибка тестов, 1 — прочее.
package cli
