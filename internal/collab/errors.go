package collab

import "errors"

// Ошибки внешних инструментов.
var (
	// ErrUnavailable — внешний инструмент отсутствует или не исполняем.
	// Фатально только для job, который его вызывает.
	ErrUnavailable = errors.New("collaborator unavailable")

	// ErrBadReport — отчёт теста нечитаем или некорректен.
	ErrBadReport = errors.New("malformed test report")
)
