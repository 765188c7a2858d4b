package subscription

import (
	"testing"
	"time"
)

var now = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func ptrTime(t time.Time) *time.Time { return &t }

func TestEvaluate_TrialRunning(t *testing.T) {
	g := Evaluate(StatusTrial, ptrTime(now.Add(3*24*time.Hour)), now)
	if !g.IsActive || !g.CanCreatePrescription {
		t.Errorf("expected active trial, got %+v", g)
	}
	if g.DaysRemaining == nil || *g.DaysRemaining != 3 {
		t.Errorf("expected 3 days remaining, got %v", g.DaysRemaining)
	}
	if g.MessageCode != MessageTrialDaysRemaining {
		t.Errorf("expected trial warning, got %q", g.MessageCode)
	}
}

func TestEvaluate_TrialJustEnded(t *testing.T) {
	g := Evaluate(StatusTrial, ptrTime(now.Add(-time.Second)), now)
	if g.IsActive || g.CanCreatePrescription {
		t.Errorf("expected inactive trial, got %+v", g)
	}
	if g.DaysRemaining == nil || *g.DaysRemaining > 0 {
		t.Errorf("expected days remaining <= 0, got %v", g.DaysRemaining)
	}
	if g.MessageCode != MessageTrialExpired || !g.CanUpgrade {
		t.Errorf("expected trial expired with upgrade, got %+v", g)
	}
}

func TestEvaluate_TrialWithoutEnd(t *testing.T) {
	g := Evaluate(StatusTrial, nil, now)
	if g.IsActive || g.DaysRemaining != nil {
		t.Errorf("expected inactive trial with no days, got %+v", g)
	}
}

func TestEvaluate_LongTrialHasNoWarning(t *testing.T) {
	g := Evaluate(StatusTrial, ptrTime(now.Add(10*24*time.Hour)), now)
	if !g.IsActive || g.MessageCode != "" || g.CanUpgrade {
		t.Errorf("expected quiet active trial, got %+v", g)
	}
}

func TestEvaluate_ActiveIgnoresTrialEnd(t *testing.T) {
	for _, end := range []*time.Time{nil, ptrTime(now.Add(-90 * 24 * time.Hour))} {
		g := Evaluate(StatusActive, end, now)
		if !g.IsActive || !g.CanCreatePrescription || g.MessageCode != "" {
			t.Errorf("expected active, got %+v", g)
		}
	}
}

func TestEvaluate_ExpiredAndSuspended(t *testing.T) {
	expired := Evaluate(StatusExpired, nil, now)
	if expired.IsActive || !expired.CanUpgrade || expired.MessageCode != MessageExpired {
		t.Errorf("unexpected expired gate %+v", expired)
	}
	suspended := Evaluate(StatusSuspended, ptrTime(now.Add(24*time.Hour)), now)
	if suspended.IsActive || suspended.CanCreatePrescription {
		t.Errorf("expected suspended to be inactive, got %+v", suspended)
	}
	if suspended.CanUpgrade {
		t.Error("suspended tenants are not offered an upgrade")
	}
}

func TestEvaluate_StatusFallbacks(t *testing.T) {
	unset := Evaluate("", ptrTime(now.Add(3*24*time.Hour)), now)
	if unset.Status != StatusTrial || !unset.IsActive || unset.MessageCode != MessageTrialDaysRemaining {
		t.Errorf("expected empty status to behave as a running trial, got %+v", unset)
	}
	unknown := Evaluate("paused", ptrTime(now.Add(3*24*time.Hour)), now)
	if unknown.IsActive || unknown.CanCreatePrescription || unknown.MessageCode != MessageExpired {
		t.Errorf("expected unknown status to be refused, got %+v", unknown)
	}
}

func TestDaysRemaining_RoundsUp(t *testing.T) {
	tests := []struct {
		end  time.Time
		want int
	}{
		{now.Add(time.Hour), 1},
		{now.Add(24 * time.Hour), 1},
		{now.Add(25 * time.Hour), 2},
		{now, 0},
		{now.Add(-23 * time.Hour), 0},
		{now.Add(-25 * time.Hour), -1},
	}
	for _, tc := range tests {
		if got := DaysRemaining(tc.end, now); got != tc.want {
			t.Errorf("DaysRemaining(%v) = %d, want %d", tc.end.Sub(now), got, tc.want)
		}
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{StatusTrial, StatusActive, StatusExpired, StatusSuspended} {
		if !ValidStatus(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	if ValidStatus("cancelled") {
		t.Error("expected cancelled to be invalid")
	}
}
