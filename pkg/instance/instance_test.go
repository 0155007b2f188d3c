package instance

import "testing"

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("INSTANCE_ID", "i-0abc")
	if got := GetID(); got != "i-0abc" {
		t.Fatalf("expected env instance id, got %q", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("INSTANCE_ID", "")
	if got := GetID(); got == "" {
		t.Fatalf("expected a fallback id")
	}
}
