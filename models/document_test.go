package models

import "testing"

func TestValidTransition(t *testing.T) {
	allowed := []struct{ from, to DocumentStatus }{
		{StatusPending, StatusProcessing},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusFailed},
	}
	for _, tr := range allowed {
		if !ValidTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to DocumentStatus }{
		{StatusPending, StatusCompleted},
		{StatusPending, StatusFailed},
		{StatusCompleted, StatusProcessing},
		{StatusCompleted, StatusPending},
		{StatusFailed, StatusProcessing},
		{StatusProcessing, StatusPending},
		{StatusPending, StatusPending},
	}
	for _, tr := range denied {
		if ValidTransition(tr.from, tr.to) {
			t.Errorf("%s -> %s must be rejected", tr.from, tr.to)
		}
	}
}
