package core

import (
	"testing"
	"time"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid name", "daily-ingest", false},
		{"empty name", "", true},
		{"long name", string(make([]byte, 256)), true},
		{"normal name", "workflow.sync", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"valid timeout", 5 * time.Second, false},
		{"zero timeout", 0, true},
		{"negative timeout", -1 * time.Second, true},
		{"too large timeout", time.Hour, true},
		{"max valid timeout", 30 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTimeout(tt.timeout)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTimeout() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFailFast(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("FailFast() should panic")
		}
	}()

	FailFast(&Error{Code: "TEST", Message: "test error"})
}

func TestFailFastIf(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("FailFastIf() should panic when condition is true")
		}
	}()

	FailFastIf(true, "condition was true")
}

func TestFailFastIfNoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("FailFastIf() should not panic when condition is false, got %v", r)
		}
	}()

	FailFastIf(false, "should not fire")
}
