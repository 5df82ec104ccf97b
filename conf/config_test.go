package conf

import (
	"os"
	"testing"
)

func TestSetEnvGetEnvRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Single Value", "TEST_BIX_HELLO", "world"},
		{"Multi-value separated by commas", "TEST_BIX_LIST", "One,Two,Three,Four"},
		{"Path", "TEST_BIX_SOMEPATH", "../../FAKE/PATH"},
		{"Number", "TEST_BIX_NUM", "1234"},
		{"Boolean", "TEST_BIX_BOOL", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := SetEnv(t, tt.key, tt.value); err != nil {
				t.Fatalf("SetEnv() error = %v", err)
			}
			if got := GetEnv(tt.key); got != tt.value {
				t.Errorf("GetEnv() = %v, want %v", got, tt.value)
			}
			if err := UnsetEnv(t, tt.key); err != nil {
				t.Fatalf("UnsetEnv() error = %v", err)
			}
		})
	}
}

func TestGetEnvUnsetKey(t *testing.T) {
	if got := GetEnv("TEST_BIX_NEVER_SET"); got != "" {
		t.Errorf("GetEnv() = %v, want empty string", got)
	}
}

func TestGetEnvFallsBackToProcessEnvironment(t *testing.T) {
	const key = "TEST_BIX_OSENV"

	if err := os.Setenv(key, "from-process"); err != nil {
		t.Fatalf("os.Setenv() error = %v", err)
	}
	defer func() {
		_ = UnsetEnv(t, key)
	}()

	if got := GetEnv(key); got != "from-process" {
		t.Errorf("GetEnv() = %v, want from-process", got)
	}
}

func TestUnsetEnv(t *testing.T) {
	const key = "TEST_BIX_UNSET"

	if err := SetEnv(t, key, "temporary"); err != nil {
		t.Fatalf("SetEnv() error = %v", err)
	}
	if err := UnsetEnv(t, key); err != nil {
		t.Fatalf("UnsetEnv() error = %v", err)
	}
	if got := GetEnv(key); got != "" {
		t.Errorf("GetEnv() after UnsetEnv = %v, want empty string", got)
	}
}

func TestLookupEnv(t *testing.T) {
	const key = "TEST_BIX_LOOKUP"

	if _, found := LookupEnv(key); found {
		t.Errorf("LookupEnv() found a key that was never set")
	}

	if err := SetEnv(t, key, "present"); err != nil {
		t.Fatalf("SetEnv() error = %v", err)
	}
	value, found := LookupEnv(key)
	if !found || value != "present" {
		t.Errorf("LookupEnv() = (%v, %v), want (present, true)", value, found)
	}

	if err := UnsetEnv(t, key); err != nil {
		t.Fatalf("UnsetEnv() error = %v", err)
	}
	if _, found := LookupEnv(key); found {
		t.Errorf("LookupEnv() found a key after UnsetEnv")
	}
}
