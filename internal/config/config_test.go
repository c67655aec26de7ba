package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func TestRuntimePort(t *testing.T) {
	orig := GetRuntimePort()
	defer SetRuntimePort(orig)

	SetRuntimePort(0)
	if got := GetRuntimePort(); got != orig {
		t.Fatalf("expected port to remain %d, got %d", orig, got)
	}

	SetRuntimePort(9090)
	if got := GetRuntimePort(); got != 9090 {
		t.Fatalf("expected port 9090, got %d", got)
	}
}

func TestRuntimeDataDirAndEnv(t *testing.T) {
	SetRuntimeDataDir("")
	defer SetRuntimeDataDir("")

	tmp := t.TempDir()
	SetRuntimeDataDir(tmp)
	dir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir: %v", err)
	}
	if dir != tmp {
		t.Fatalf("expected runtime dir %q, got %q", tmp, dir)
	}

	SetRuntimeDataDir("")
	tmpEnv := filepath.Join(t.TempDir(), "data")
	t.Setenv("CHARTEYE_DATA_DIR", tmpEnv)
	dir, err = GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir env: %v", err)
	}
	if dir != tmpEnv {
		t.Fatalf("expected env dir %q, got %q", tmpEnv, dir)
	}
	if _, err := os.Stat(tmpEnv); err != nil {
		t.Fatalf("expected env dir to be created: %v", err)
	}
}

func TestGetDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.sqlite")
	t.Setenv("CHARTEYE_DB_PATH", path)
	got, err := GetDBPath()
	if err != nil {
		t.Fatalf("GetDBPath: %v", err)
	}
	if got != path {
		t.Fatalf("expected %q, got %q", path, got)
	}

	t.Setenv("CHARTEYE_DB_PATH", "")
	dataDir := t.TempDir()
	t.Setenv("CHARTEYE_DATA_DIR", dataDir)
	got, err = GetDBPath()
	if err != nil {
		t.Fatalf("GetDBPath default: %v", err)
	}
	if got != filepath.Join(dataDir, defaultDBName) {
		t.Fatalf("unexpected default db path %q", got)
	}
}

func TestGetNewsDir(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("CHARTEYE_DATA_DIR", dataDir)

	dir, err := GetNewsDir(Settings{})
	if err != nil {
		t.Fatalf("GetNewsDir: %v", err)
	}
	if dir != filepath.Join(dataDir, "news") {
		t.Fatalf("unexpected news dir %q", dir)
	}

	custom := filepath.Join(t.TempDir(), "feed")
	dir, err = GetNewsDir(Settings{NewsDataDir: custom})
	if err != nil {
		t.Fatalf("GetNewsDir custom: %v", err)
	}
	if dir != custom {
		t.Fatalf("expected %q, got %q", custom, dir)
	}
}

func TestIsMacOSWindows(t *testing.T) {
	if IsMacOS() != (runtime.GOOS == "darwin") {
		t.Fatalf("IsMacOS mismatch")
	}
	if IsWindows() != (runtime.GOOS == "windows") {
		t.Fatalf("IsWindows mismatch")
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"CHARTEYE_ENV", "CHARTEYE_HOST", "CHARTEYE_PORT", "AI_API_KEY", "OPENAI_API_KEY",
		"GEMINI_API_KEY", "ANTHROPIC_API_KEY", "AI_TIMEOUT", "FREE_UPLOAD_LIMIT",
		"TEST_UPGRADE_KEY", "NEXT_PUBLIC_APP_URL", "APP_URL", "STORAGE_BUCKET",
		"SQUARE_ACCESS_TOKEN", "SQUARE_LOCATION_ID", "NEWS_REFRESH_SCHEDULE",
	} {
		t.Setenv(key, "")
	}

	s := Load()
	if s.Environment != "development" || s.Host != defaultHost || s.Port != defaultPort {
		t.Fatalf("unexpected server defaults: %+v", s)
	}
	if s.AIAPIKey != "" {
		t.Fatalf("expected empty ai key, got %q", s.AIAPIKey)
	}
	if s.AITimeout != defaultAITimeout {
		t.Fatalf("expected default timeout, got %s", s.AITimeout)
	}
	if s.FreeUploadLimit != 10 {
		t.Fatalf("expected free limit 10, got %d", s.FreeUploadLimit)
	}
	if s.TestUpgradeKey != "test-upgrade-key-123" {
		t.Fatalf("unexpected test key %q", s.TestUpgradeKey)
	}
	if s.AppURL != "http://localhost:8000" {
		t.Fatalf("unexpected app url %q", s.AppURL)
	}
	if s.NewsSchedule != "@every 15m" {
		t.Fatalf("unexpected schedule %q", s.NewsSchedule)
	}
	if s.Storage.Enabled() || s.PaymentsEnabled() {
		t.Fatalf("expected storage and payments disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AI_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("AI_TIMEOUT", "45")
	t.Setenv("FREE_UPLOAD_LIMIT", "3")
	t.Setenv("APP_URL", "https://charteye.example.com/")
	t.Setenv("NEXT_PUBLIC_APP_URL", "")
	t.Setenv("STORAGE_BUCKET", "charts")
	t.Setenv("SQUARE_ACCESS_TOKEN", "sq")
	t.Setenv("SQUARE_LOCATION_ID", "loc")

	s := Load()
	if s.AIAPIKey != "sk-ant" {
		t.Fatalf("expected anthropic key, got %q", s.AIAPIKey)
	}
	if s.AITimeout != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %s", s.AITimeout)
	}
	if s.FreeUploadLimit != 3 {
		t.Fatalf("expected limit 3, got %d", s.FreeUploadLimit)
	}
	if s.AppURL != "https://charteye.example.com" {
		t.Fatalf("unexpected app url %q", s.AppURL)
	}
	if !s.Storage.Enabled() || !s.PaymentsEnabled() {
		t.Fatalf("expected storage and payments enabled")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CHARTEYE_TEST_INT", "abc")
	if got := getEnvInt("CHARTEYE_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback for invalid int, got %d", got)
	}
	t.Setenv("CHARTEYE_TEST_INT", "-1")
	if got := getEnvInt("CHARTEYE_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback for negative int, got %d", got)
	}

	t.Setenv("CHARTEYE_TEST_DURATION", "90s")
	if got := getEnvDuration("CHARTEYE_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	t.Setenv("CHARTEYE_TEST_DURATION", "soon")
	if got := getEnvDuration("CHARTEYE_TEST_DURATION", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %s", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("CHARTEYE_ENV_FILE_KEY=from-file\nCHARTEYE_ENV_FILE_SET=from-file\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CHARTEYE_ENV_FILE_KEY", "")
	os.Unsetenv("CHARTEYE_ENV_FILE_KEY")
	t.Setenv("CHARTEYE_ENV_FILE_SET", "from-process")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("CHARTEYE_ENV_FILE_KEY"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("CHARTEYE_ENV_FILE_SET"); got != "from-process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
}
