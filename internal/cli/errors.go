package cli

// Коды выхода CLI.
const (
	// ExitOK — успешное выполнение.
	ExitOK = 0

	// ExitFailure — прочие ошибки.
	ExitFailure = 1

	// ExitValidation — невалидное описание pipeline или конфигурация.
	ExitValidation = 2

	// ExitBuild — run прерван ошибкой сборки образа.
	ExitBuild = 3

	// ExitTest — run прерван ошибкой кластерных тестов.
	ExitTest = 4
)

// ExitError — ошибка с кодом выхода процесса.
type ExitError struct {
	// Code — код выхода.
	Code int

	// Err — исходная ошибка.
	Err error
}

// Error реализует интерфейс error.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap возвращает исходную ошибку.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError создаёт ExitError.
func NewExitError(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}
