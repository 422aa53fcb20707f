// Package collab содержит внешние инструменты (collaborators):
// сборщик образов и cluster-test runner.
//
// Движок не реализует сборку и тесты сам — инструменты вызываются
// как процессы за интерфейсом Collaborator с единственной
// способностью run(args) → exit code. Это позволяет подменять
// реальные бинарники fake-реализациями в тестах.
package collab
