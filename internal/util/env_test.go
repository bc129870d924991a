package util

import "testing"

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("PINREPORT_TEST_SET", "custom.yaml")
	t.Setenv("PINREPORT_TEST_EMPTY", "")

	if got := EnvOrDefault("PINREPORT_TEST_SET", "x"); got != "custom.yaml" {
		t.Errorf("set: got %q", got)
	}
	if got := EnvOrDefault("PINREPORT_TEST_EMPTY", "fallback"); got != "fallback" {
		t.Errorf("empty: got %q", got)
	}
}
