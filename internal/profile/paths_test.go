package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matheus3301/smsync/internal/config"
)

func TestDirDefault(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".smsync", "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestPathsUnderHome(t *testing.T) {
	base := t.TempDir()
	t.Setenv(HomeEnv, base)

	tests := []struct {
		got  string
		want string
	}{
		{SocketPath("test"), filepath.Join(base, "profiles", "test", "daemon.sock")},
		{LockPath("test"), filepath.Join(base, "profiles", "test", "LOCK")},
		{CacheDBPath("test"), filepath.Join(base, "profiles", "test", "smsync.db")},
		{MessagesDBPath("test"), filepath.Join(base, "profiles", "test", "messages.db")},
		{LogPath("test"), filepath.Join(base, "profiles", "test", "logs", "smsyncd.log")},
		{ConfigPath(), filepath.Join(base, "config.toml")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("path = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(LogDir("test"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("log dir is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("log dir permission = %o, want 0700", perm)
	}
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("SMSYNC_DEFAULT_PROFILE", "")
	os.Unsetenv("SMSYNC_DEFAULT_PROFILE")

	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve() without config = %q, want %q", got, DefaultName)
	}

	if err := config.Save(ConfigPath(), &config.Config{DefaultProfile: "phone"}); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "phone" {
		t.Errorf("Resolve() with config = %q, want phone", got)
	}
	if got := Resolve("flag"); got != "flag" {
		t.Errorf("Resolve(flag) = %q, want flag", got)
	}
}
