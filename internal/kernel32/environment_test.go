package kernel32

import "testing"

func TestEnvironmentOverride(t *testing.T) {
	k := newTestSubsystem()

	if _, ok := k.GetEnvironmentVariable("CITC_TEST_VAR"); ok {
		t.Fatalf("unexpected preexisting value for CITC_TEST_VAR")
	}

	k.SetEnvironmentVariable("CITC_TEST_VAR", "1")
	if v, ok := k.GetEnvironmentVariable("CITC_TEST_VAR"); !ok || v != "1" {
		t.Fatalf("GetEnvironmentVariable = (%q, %v), want (1, true)", v, ok)
	}

	k.SetEnvironmentVariable("CITC_TEST_VAR", "")
	if _, ok := k.GetEnvironmentVariable("CITC_TEST_VAR"); ok {
		t.Fatalf("value still present after clearing with an empty string")
	}
}
