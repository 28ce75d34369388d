package config

import (
	"testing"
	"time"
)

func TestEnvStringFallsBackToDefault(t *testing.T) {
	t.Setenv("EVSNOW_TEST_STRING", "")
	if got := envString("EVSNOW_TEST_STRING", "fallback"); got != "fallback" {
		t.Errorf("envString = %q, want fallback", got)
	}
}

func TestEnvStringReadsSetValue(t *testing.T) {
	t.Setenv("EVSNOW_TEST_STRING", "custom")
	if got := envString("EVSNOW_TEST_STRING", "fallback"); got != "custom" {
		t.Errorf("envString = %q, want custom", got)
	}
}

func TestEnvIntIgnoresUnparseableValue(t *testing.T) {
	t.Setenv("EVSNOW_TEST_INT", "not-a-number")
	if got := envInt("EVSNOW_TEST_INT", 7); got != 7 {
		t.Errorf("envInt = %d, want 7", got)
	}
}

func TestEnvBoolParsesTrue(t *testing.T) {
	t.Setenv("EVSNOW_TEST_BOOL", "true")
	if got := envBool("EVSNOW_TEST_BOOL", false); !got {
		t.Error("envBool = false, want true")
	}
}

func TestEnvDurationParsesValue(t *testing.T) {
	t.Setenv("EVSNOW_TEST_DURATION", "5s")
	if got := envDuration("EVSNOW_TEST_DURATION", time.Second); got != 5*time.Second {
		t.Errorf("envDuration = %v, want 5s", got)
	}
}
