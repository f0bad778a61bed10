package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	errDown := errors.New("down")

	h := Healthy("ok")
	d := Degraded("slow")
	u := Unhealthy("broken", errDown).WithDetails(map[string]any{"len": 3})

	if h.Status != StatusHealthy || h.Message != "ok" || h.Timestamp.IsZero() {
		t.Errorf("Healthy() = %+v", h)
	}
	if d.Status != StatusDegraded || d.Message != "slow" {
		t.Errorf("Degraded() = %+v", d)
	}
	if u.Status != StatusUnhealthy || !errors.Is(u.Error, errDown) || u.Details["len"] != 3 {
		t.Errorf("Unhealthy() = %+v", u)
	}
}

func TestCheckerFunc(t *testing.T) {
	checker := NewCheckerFunc("ping", func(ctx context.Context) Result {
		return Healthy("pong")
	})

	if checker.Name() != "ping" {
		t.Errorf("Name() = %v, want ping", checker.Name())
	}
	if got := checker.Check(context.Background()); got.Message != "pong" {
		t.Errorf("Check().Message = %v, want pong", got.Message)
	}
}

func TestSentinelErrors(t *testing.T) {
	for _, err := range []error{ErrCheckFailed, ErrCheckTimeout, ErrCheckerNotFound} {
		if err == nil || err.Error() == "" {
			t.Errorf("sentinel %v should have a message", err)
		}
	}
}
