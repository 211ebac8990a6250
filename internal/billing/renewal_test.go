package billing

import "testing"

func TestNewRenewalScannerAppliesDefaultWindows(t *testing.T) {
	r := NewRenewalScanner(nil, nil, nil, 0, 0, nil)
	if r.reminderDays != DefaultRenewalReminderDays {
		t.Errorf("reminderDays = %d, want default %d", r.reminderDays, DefaultRenewalReminderDays)
	}
	if r.graceDays != DefaultRenewalGraceDays {
		t.Errorf("graceDays = %d, want default %d", r.graceDays, DefaultRenewalGraceDays)
	}
}

func TestNewRenewalScannerKeepsExplicitWindows(t *testing.T) {
	r := NewRenewalScanner(nil, nil, nil, 5, 10, nil)
	if r.reminderDays != 5 || r.graceDays != 10 {
		t.Errorf("expected explicit windows to be kept, got reminder=%d grace=%d", r.reminderDays, r.graceDays)
	}
}
