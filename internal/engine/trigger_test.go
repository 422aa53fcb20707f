package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Bakehouse/internal/domain"
)

func TestEvaluateAlways(t *testing.T) {
	e := NewEvaluator()
	meta := &domain.RunMeta{Source: domain.SourcePush}

	if got := e.Evaluate("job", domain.TriggerRule{When: domain.TriggerAlways}, meta); got != DecisionRun {
		t.Errorf("always = %s, want %s", got, DecisionRun)
	}

	// Отсутствующее правило эквивалентно always.
	if got := e.Evaluate("job", domain.TriggerRule{}, meta); got != DecisionRun {
		t.Errorf("empty rule = %s, want %s", got, DecisionRun)
	}
}

func TestEvaluatePathChange(t *testing.T) {
	e := NewEvaluator()
	rule := domain.TriggerRule{
		When:    domain.TriggerOnPathChange,
		Changes: []string{"ansible/**", "*.pkr.hcl"},
	}

	tests := []struct {
		name    string
		changed []string
		want    Decision
	}{
		{"directory prefix", []string{"ansible/roles/slurm/tasks/main.yml"}, DecisionRun},
		{"glob match", []string{"image.pkr.hcl"}, DecisionRun},
		{"no match", []string{"docs/README.md"}, DecisionSkip},
		{"empty change-set", nil, DecisionSkip},
		{"mixed paths", []string{"docs/x.md", "ansible/hosts"}, DecisionRun},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := &domain.RunMeta{Source: domain.SourcePush, ChangedPaths: tt.changed}
			if got := e.Evaluate("job", rule, meta); got != tt.want {
				t.Errorf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluateSchedule(t *testing.T) {
	e := NewEvaluator()

	anySchedule := domain.TriggerRule{When: domain.TriggerOnSchedule}
	nightlyOnly := domain.TriggerRule{When: domain.TriggerOnSchedule, Schedule: "0 3 * * *"}

	scheduled := &domain.RunMeta{Source: domain.SourceSchedule, ScheduleExpr: "0 3 * * *"}
	otherSchedule := &domain.RunMeta{Source: domain.SourceSchedule, ScheduleExpr: "0 12 * * *"}
	push := &domain.RunMeta{Source: domain.SourcePush}

	if got := e.Evaluate("job", anySchedule, scheduled); got != DecisionRun {
		t.Errorf("any schedule in scheduled run = %s, want %s", got, DecisionRun)
	}
	if got := e.Evaluate("job", anySchedule, push); got != DecisionSkip {
		t.Errorf("any schedule in push run = %s, want %s", got, DecisionSkip)
	}
	if got := e.Evaluate("job", nightlyOnly, scheduled); got != DecisionRun {
		t.Errorf("matching schedule = %s, want %s", got, DecisionRun)
	}
	if got := e.Evaluate("job", nightlyOnly, otherSchedule); got != DecisionSkip {
		t.Errorf("other schedule = %s, want %s", got, DecisionSkip)
	}
}

func TestEvaluateManual(t *testing.T) {
	e := NewEvaluator()
	rule := domain.TriggerRule{When: domain.TriggerManual}

	requested := &domain.RunMeta{
		Source:     domain.SourceManual,
		ManualJobs: map[string]bool{"deploy": true},
	}

	if got := e.Evaluate("deploy", rule, requested); got != DecisionRun {
		t.Errorf("requested manual job = %s, want %s", got, DecisionRun)
	}
	if got := e.Evaluate("other", rule, requested); got != DecisionSkip {
		t.Errorf("unrequested manual job = %s, want %s", got, DecisionSkip)
	}
}

func TestEvaluateManualOverridePrecedence(t *testing.T) {
	e := NewEvaluator()

	// Явный запрос запускает job, даже если его правило иначе
	// решило бы SKIP.
	rule := domain.TriggerRule{When: domain.TriggerOnPathChange, Changes: []string{"nothing/**"}}
	meta := &domain.RunMeta{
		Source:     domain.SourceManual,
		ManualJobs: map[string]bool{"job": true},
	}

	if got := e.Evaluate("job", rule, meta); got != DecisionRun {
		t.Errorf("manual override = %s, want %s", got, DecisionRun)
	}
}

func TestEvaluateAllowFailure(t *testing.T) {
	e := NewEvaluator()
	meta := &domain.RunMeta{Source: domain.SourcePush}

	rule := domain.TriggerRule{When: domain.TriggerAlways, AllowFailure: true}
	if got := e.Evaluate("job", rule, meta); got != DecisionRunAllowFailure {
		t.Errorf("allow_failure run = %s, want %s", got, DecisionRunAllowFailure)
	}

	// SKIP не поднимается до RUN_ALLOW_FAILURE.
	skip := domain.TriggerRule{When: domain.TriggerManual, AllowFailure: true}
	if got := e.Evaluate("job", skip, meta); got != DecisionSkip {
		t.Errorf("allow_failure skip = %s, want %s", got, DecisionSkip)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	e := NewEvaluator()
	rule := domain.TriggerRule{When: domain.TriggerOnPathChange, Changes: []string{"src/**"}}
	meta := &domain.RunMeta{Source: domain.SourcePush, ChangedPaths: []string{"src/main.go"}}

	first := e.Evaluate("job", rule, meta)
	for i := 0; i < 100; i++ {
		if got := e.Evaluate("job", rule, meta); got != first {
			t.Fatalf("Evaluate() not deterministic: %s then %s", first, got)
		}
	}
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"ansible/**", "ansible/roles/main.yml", true},
		{"ansible/**", "ansible", true},
		{"ansible/**", "ansible-config/x.yml", false},
		{"*.pkr.hcl", "image.pkr.hcl", true},
		{"*.pkr.hcl", "nested/image.pkr.hcl", false},
		{"terraform/*.tf", "terraform/main.tf", true},
		{"terraform/*.tf", "terraform/modules/a.tf", false},
	}

	for _, tt := range tests {
		if got := matchPath(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPath(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestValidateRule(t *testing.T) {
	valid := []domain.TriggerRule{
		{},
		{When: domain.TriggerAlways},
		{When: domain.TriggerManual},
		{When: domain.TriggerOnPathChange, Changes: []string{"src/**"}},
		{When: domain.TriggerOnSchedule},
		{When: domain.TriggerOnSchedule, Schedule: "0 3 * * *"},
	}
	for _, rule := range valid {
		if err := ValidateRule("job", rule); err != nil {
			t.Errorf("ValidateRule(%+v) error: %v", rule, err)
		}
	}

	invalid := []struct {
		rule domain.TriggerRule
		want error
	}{
		{domain.TriggerRule{When: "on_full_moon"}, ErrUnknownTriggerKind},
		{domain.TriggerRule{When: domain.TriggerOnPathChange}, ErrNoChangePatterns},
		{domain.TriggerRule{When: domain.TriggerOnPathChange, Changes: []string{"[broken"}}, ErrBadChangePattern},
		{domain.TriggerRule{When: domain.TriggerOnSchedule, Schedule: "not cron"}, ErrBadScheduleExpr},
	}
	for _, tt := range invalid {
		err := ValidateRule("job", tt.rule)
		if !errors.Is(err, tt.want) {
			t.Errorf("ValidateRule(%+v) error = %v, want %v", tt.rule, err, tt.want)
		}
	}
}
