package session

import (
	"testing"

	"github.com/matheus3301/zfetch/internal/config"
)

func TestResolve(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	t.Setenv(SessionEnv, "")

	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultSessionName)
	}
	if err := config.Save(ConfigPath(), &config.Config{DefaultSession: "work"}); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "work" {
		t.Errorf("Resolve() = %q, want work from config", got)
	}
	t.Setenv(SessionEnv, "ci")
	if got := Resolve(""); got != "ci" {
		t.Errorf("Resolve() = %q, want ci from environment", got)
	}
	if got := Resolve("other"); got != "other" {
		t.Errorf("Resolve(other) = %q, flag should win", got)
	}
}
