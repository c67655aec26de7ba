package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDBName          = "charteye.db"
	defaultPort            = 8000
	defaultHost            = "127.0.0.1"
	defaultFreeUploadLimit = 10
	defaultAITimeout       = 2 * time.Minute
	defaultTestUpgradeKey  = "test-upgrade-key-123"
	defaultNewsSchedule    = "@every 15m"
	defaultSquareBaseURL   = "https://connect.squareupsandbox.com/v2"
)

// Settings is the environment-derived configuration of the server.
type Settings struct {
	Environment string
	Host        string
	Port        int

	AIProvider       string
	AIAPIKey         string
	AIBaseURL        string
	AIModel          string
	AIVisionModel    string
	AIEmbeddingModel string
	AITimeout        time.Duration

	SquareAccessToken string
	SquareLocationID  string
	SquareBaseURL     string
	AppURL            string

	NewsDataDir     string
	NewsSourcesFile string
	NewsSchedule    string

	TestUpgradeKey  string
	JWTSecret       string
	FreeUploadLimit int

	Storage StorageSettings
}

// StorageSettings configures the S3-compatible chart image bucket.
type StorageSettings struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

// Enabled reports whether a bucket is configured.
func (s StorageSettings) Enabled() bool {
	return strings.TrimSpace(s.Bucket) != ""
}

// PaymentsEnabled reports whether the Square client can be built.
func (s Settings) PaymentsEnabled() bool {
	return s.SquareAccessToken != "" && s.SquareLocationID != ""
}

var runtimeDataDir string
var runtimePort = defaultPort

func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

func IsWindows() bool {
	return runtime.GOOS == "windows"
}

func SetRuntimeDataDir(dir string) {
	runtimeDataDir = dir
}

func SetRuntimePort(port int) {
	if port > 0 {
		runtimePort = port
	}
}

func GetRuntimePort() int {
	return runtimePort
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// Load reads Settings from the environment.
func Load() Settings {
	s := Settings{
		Environment: getEnv("CHARTEYE_ENV", "development"),
		Host:        getEnv("CHARTEYE_HOST", defaultHost),
		Port:        getEnvInt("CHARTEYE_PORT", defaultPort),

		AIProvider:       getEnv("AI_PROVIDER", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		AIModel:          getEnv("AI_MODEL", ""),
		AIVisionModel:    getEnv("AI_VISION_MODEL", ""),
		AIEmbeddingModel: getEnv("AI_EMBEDDING_MODEL", ""),
		AITimeout:        getEnvDuration("AI_TIMEOUT", defaultAITimeout),

		SquareAccessToken: getEnv("SQUARE_ACCESS_TOKEN", ""),
		SquareLocationID:  getEnv("SQUARE_LOCATION_ID", ""),
		SquareBaseURL:     getEnv("SQUARE_BASE_URL", defaultSquareBaseURL),
		AppURL:            strings.TrimRight(firstEnv("NEXT_PUBLIC_APP_URL", "APP_URL"), "/"),

		NewsDataDir:     getEnv("NEWS_DATA_DIR", ""),
		NewsSourcesFile: getEnv("NEWS_SOURCES_FILE", ""),
		NewsSchedule:    getEnv("NEWS_REFRESH_SCHEDULE", defaultNewsSchedule),

		TestUpgradeKey:  getEnv("TEST_UPGRADE_KEY", defaultTestUpgradeKey),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		FreeUploadLimit: getEnvInt("FREE_UPLOAD_LIMIT", defaultFreeUploadLimit),

		Storage: StorageSettings{
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			Region:          getEnv("STORAGE_REGION", "us-east-1"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			PublicURL:       getEnv("STORAGE_PUBLIC_URL", ""),
		},
	}
	s.AIAPIKey = resolveAIKey(s.AIProvider)
	if s.AppURL == "" {
		s.AppURL = "http://localhost:" + strconv.Itoa(s.Port)
	}
	return s
}

// resolveAIKey prefers the generic key, then the provider specific one.
func resolveAIKey(provider string) string {
	if key := firstEnv("AI_API_KEY"); key != "" {
		return key
	}
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gemini":
		return firstEnv("GEMINI_API_KEY", "OPENAI_API_KEY")
	case "anthropic":
		return firstEnv("ANTHROPIC_API_KEY", "OPENAI_API_KEY")
	default:
		return firstEnv("OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY")
	}
}

func userHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return home, nil
}

func appConfigDir() (string, error) {
	if IsMacOS() {
		home, err := userHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "ChartEye"), nil
	}
	if IsWindows() {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := userHomeDir()
			if err != nil {
				return "", err
			}
			appData = home
		}
		return filepath.Join(appData, "ChartEye"), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		home, err := userHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "charteye"), nil
	}
	return filepath.Join(configDir, "charteye"), nil
}

func GetDataDir() (string, error) {
	if runtimeDataDir != "" {
		if err := os.MkdirAll(runtimeDataDir, 0o755); err != nil {
			return "", err
		}
		return runtimeDataDir, nil
	}
	if envDir := os.Getenv("CHARTEYE_DATA_DIR"); envDir != "" {
		if err := os.MkdirAll(envDir, 0o755); err != nil {
			return "", err
		}
		return envDir, nil
	}
	defaultDir, err := appConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(defaultDir, 0o755); err != nil {
		return "", err
	}
	return defaultDir, nil
}

func GetDBPath() (string, error) {
	if envPath := os.Getenv("CHARTEYE_DB_PATH"); envPath != "" {
		return envPath, nil
	}
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, defaultDBName), nil
}

// GetNewsDir returns the news snapshot directory, defaulting to {dataDir}/news.
func GetNewsDir(s Settings) (string, error) {
	dir := s.NewsDataDir
	if dir == "" {
		dataDir, err := GetDataDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(dataDir, "news")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
