package store

import "errors"

// Общие ошибки хранилища.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")
)
