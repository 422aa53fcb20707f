package executor

import (
	"strings"
	"sync"
)

// defaultBufferCap — максимальный объём вывода, сохраняемый в Buffer.
const defaultBufferCap = 1 << 20 // 1 MiB

// Buffer — потокобезопасный sink для combined stdout/stderr job.
//
// Хранит не более cap байт; при переполнении старейшие данные
// отбрасываются, чтобы хвост вывода (самое интересное при ошибке)
// всегда был доступен.
type Buffer struct {
	mu        sync.Mutex
	data      []byte
	cap       int
	truncated bool
}

// NewBuffer создаёт Buffer со стандартной ёмкостью.
func NewBuffer() *Buffer {
	return &Buffer{cap: defaultBufferCap}
}

// Write реализует io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = append(b.data, p...)
	if len(b.data) > b.cap {
		b.data = b.data[len(b.data)-b.cap:]
		b.truncated = true
	}
	return len(p), nil
}

// String возвращает накопленный вывод.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// Truncated возвращает true, если часть вывода была отброшена.
func (b *Buffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// Tail возвращает последние n строк вывода.
func (b *Buffer) Tail(n int) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := strings.TrimRight(string(b.data), "\n")
	if s == "" {
		return ""
	}

	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
