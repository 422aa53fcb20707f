package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Bakehouse/internal/domain"
)

// defaultTickInterval — интервал проверки расписаний по умолчанию.
const defaultTickInterval = time.Second

// TriggerFunc запускает run по сработавшему расписанию.
// Ошибка логируется и не останавливает scheduler.
type TriggerFunc func(ctx context.Context, schedule domain.Schedule) error

// Scheduler отслеживает расписания pipeline и запускает runs
// в момент их срабатывания.
//
// Расписания живут в описании pipeline, состояние next_due — только
// в памяти: после рестарта scheduler начинает отсчёт от текущего
// времени, пропущенные срабатывания не навёрстываются.
type Scheduler struct {
	entries  []*entry
	trigger  TriggerFunc
	logger   *slog.Logger
	interval time.Duration
}

// entry — расписание с вычисленным временем следующего срабатывания.
type entry struct {
	schedule domain.Schedule
	nextDue  time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	// Schedules — расписания pipeline. Выключенные пропускаются.
	Schedules []domain.Schedule

	// Trigger — запуск run по сработавшему расписанию. Обязателен.
	Trigger TriggerFunc

	// Logger — логгер. nil = slog.Default().
	Logger *slog.Logger

	// TickInterval — интервал проверки расписаний.
	// 0 = defaultTickInterval.
	TickInterval time.Duration
}

// New создаёт Scheduler и вычисляет первые срабатывания.
// Невалидное cron-выражение — ошибка конфигурации.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}

	now := time.Now()
	var entries []*entry
	for _, sched := range cfg.Schedules {
		if sched.Disabled {
			cfg.Logger.Info("schedule disabled", "schedule", sched.Name)
			continue
		}

		next, err := NextDue(sched.Expr, now)
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", sched.Name, err)
		}

		entries = append(entries, &entry{schedule: sched, nextDue: next})
		cfg.Logger.Info("schedule registered",
			"schedule", sched.Name,
			"cron", sched.Expr,
			"next_due", next)
	}

	return &Scheduler{
		entries:  entries,
		trigger:  cfg.Trigger,
		logger:   cfg.Logger,
		interval: cfg.TickInterval,
	}, nil
}

// Run крутит цикл scheduler'а до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		s.logger.Warn("no enabled schedules, scheduler idle")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick обрабатывает один тик: запускает due-расписания и
// пересчитывает их next_due. Ошибка одного расписания не блокирует
// остальные.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for _, e := range s.entries {
		if now.Before(e.nextDue) {
			continue
		}

		s.logger.Info("schedule due",
			"schedule", e.schedule.Name,
			"cron", e.schedule.Expr)

		if err := s.trigger(ctx, e.schedule); err != nil {
			s.logger.Error("failed to trigger scheduled run",
				"schedule", e.schedule.Name,
				"error", err)
		}

		next, err := NextDue(e.schedule.Expr, now)
		if err != nil {
			// Выражение валидировалось в New; сюда не попадаем.
			s.logger.Error("failed to calculate next due",
				"schedule", e.schedule.Name,
				"error", err)
			continue
		}
		e.nextDue = next
	}
}
