package charteye

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultFreeUploadLimit is the number of chart uploads a Free account may make.
const DefaultFreeUploadLimit = 10

// Options controls Core initialization.
type Options struct {
	DBPath          string
	Logger          *slog.Logger
	AI              AIGateway
	ObjectStore     ObjectStore
	Payments        PaymentProvider
	News            NewsSource
	FreeUploadLimit int
	AITimeout       time.Duration
	TestUpgradeKey  string
	Rand            *rand.Rand
	Now             func() time.Time
}

// Core provides access to ChartEye business logic and storage.
type Core struct {
	db              *sql.DB
	logger          *slog.Logger
	ai              AIGateway
	objects         ObjectStore
	payments        PaymentProvider
	news            NewsSource
	freeUploadLimit int
	aiTimeout       time.Duration
	testUpgradeKey  string
	synth           *synthesizer
	now             func() time.Time
	dbPath          string
}

// Open initializes a Core using the provided database path and no external collaborators.
func Open(dbPath string) (*Core, error) {
	return OpenWithOptions(Options{DBPath: dbPath})
}

// OpenWithOptions initializes a Core using the provided options.
func OpenWithOptions(opts Options) (*Core, error) {
	if opts.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	cleanPath := filepath.Clean(opts.DBPath)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite performs best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Warn("pragma busy_timeout failed", "err", err)
	}

	if err := initDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	testKey := opts.TestUpgradeKey
	if testKey == "" {
		testKey = defaultTestUpgradeKey
	}

	return &Core{
		db:              db,
		logger:          logger,
		ai:              opts.AI,
		objects:         opts.ObjectStore,
		payments:        opts.Payments,
		news:            opts.News,
		freeUploadLimit: defaultInt(opts.FreeUploadLimit, DefaultFreeUploadLimit),
		aiTimeout:       defaultDuration(opts.AITimeout, defaultAITimeout),
		testUpgradeKey:  testKey,
		synth:           &synthesizer{rng: rng},
		now:             now,
		dbPath:          cleanPath,
	}, nil
}

// Close releases database resources.
func (c *Core) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// DBPath returns the underlying database path.
func (c *Core) DBPath() string {
	return c.dbPath
}

// Ping reports whether the database is reachable.
func (c *Core) Ping() error {
	if err := c.db.Ping(); err != nil {
		return WrapError(ErrCodeDatabase, "database unreachable", err)
	}
	return nil
}

// AIEnabled reports whether a model gateway is configured.
func (c *Core) AIEnabled() bool {
	return c.ai != nil
}

// FreeUploadLimit returns the upload cap applied to Free accounts.
func (c *Core) FreeUploadLimit() int {
	return c.freeUploadLimit
}

func (c *Core) timestamp() string {
	return c.now().UTC().Format(time.RFC3339)
}

type synthesizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (s *synthesizer) float(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *synthesizer) intn(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func (s *synthesizer) pick(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[s.intn(len(items))]
}

func defaultDuration(v time.Duration, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

func defaultInt(v int, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
