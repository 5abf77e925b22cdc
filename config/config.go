// Package config reads process configuration from environment variables.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"kanban-board/remote"
)

// Backing store kinds for the API server.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreTable  = "table"
)

// Mock configures the simulated latency and failures of remote.Mock.
type Mock struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	FailureRate float64
}

// Options returns the mock options for m.
func (m Mock) Options() []remote.MockOption {
	return []remote.MockOption{
		remote.WithLatency(m.MinDelay, m.MaxDelay),
		remote.WithFailureRate(m.FailureRate),
	}
}

// API is the configuration of cmd/board-api.
type API struct {
	Port           int
	Store          string
	RedisConn      string
	StorageConnStr string
	TasksTable     string
	CacheTTL       time.Duration
	DeduperTTL     time.Duration
	Mock           Mock
	Debug          bool
}

// CLI is the configuration of cmd/board before flags are applied.
type CLI struct {
	APIURL   string
	StateDir string
	Mock     Mock
	Debug    bool
}

func LoadAPI() (API, error) {
	var err error
	cfg := API{
		Store:          strings.ToLower(envString("BOARD_STORE", StoreMemory)),
		RedisConn:      os.Getenv("REDIS_CONNECTION_STRING"),
		StorageConnStr: os.Getenv("STORAGE_CONNECTION_STRING"),
		TasksTable:     envString("TASKS_TABLE", "tasks"),
		Debug:          envBool("DEBUG"),
	}
	if cfg.Port, err = envInt("BOARD_API_PORT", 8080); err != nil {
		return API{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return API{}, fmt.Errorf("invalid BOARD_API_PORT: %d", cfg.Port)
	}
	if cfg.CacheTTL, err = envDur("CACHE_TTL", 30*time.Second); err != nil {
		return API{}, err
	}
	if cfg.DeduperTTL, err = envDur("DEDUPER_TTL", 24*time.Hour); err != nil {
		return API{}, err
	}
	if cfg.Mock, err = loadMock(); err != nil {
		return API{}, err
	}

	switch cfg.Store {
	case StoreMemory:
	case StoreRedis:
		if cfg.RedisConn == "" {
			return API{}, errors.New("missing redis config")
		}
	case StoreTable:
		if cfg.StorageConnStr == "" || cfg.TasksTable == "" {
			return API{}, errors.New("missing storage config")
		}
	default:
		return API{}, fmt.Errorf("invalid BOARD_STORE %q", cfg.Store)
	}
	return cfg, nil
}

// ListenAddr is the address the server binds to.
func (c API) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

func LoadCLI() (CLI, error) {
	mock, err := loadMock()
	if err != nil {
		return CLI{}, err
	}
	dir := os.Getenv("BOARD_STATE_DIR")
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "kanban-board")
	}
	return CLI{
		APIURL:   os.Getenv("BOARD_API_URL"),
		StateDir: dir,
		Mock:     mock,
		Debug:    envBool("DEBUG"),
	}, nil
}

func loadMock() (Mock, error) {
	var (
		m   Mock
		err error
	)
	if m.MinDelay, err = envDur("MOCK_MIN_DELAY", remote.DefaultMinDelay); err != nil {
		return Mock{}, err
	}
	if m.MaxDelay, err = envDur("MOCK_MAX_DELAY", remote.DefaultMaxDelay); err != nil {
		return Mock{}, err
	}
	if m.MaxDelay < m.MinDelay {
		return Mock{}, fmt.Errorf("invalid MOCK_MAX_DELAY: %v is below MOCK_MIN_DELAY %v", m.MaxDelay, m.MinDelay)
	}
	if m.FailureRate, err = envFloat("MOCK_FAILURE_RATE", remote.DefaultFailureRate); err != nil {
		return Mock{}, err
	}
	if m.FailureRate < 0 || m.FailureRate > 1 {
		return Mock{}, fmt.Errorf("invalid MOCK_FAILURE_RATE: %v not in [0,1]", m.FailureRate)
	}
	return m, nil
}

// RedisOptions accepts either a redis:// URL or an Azure style
// "host:port,password=...,ssl=True" connection string.
func RedisOptions(conn string) (*redis.Options, error) {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	if strings.TrimSpace(parts[0]) == "" {
		return nil, errors.New("empty redis address")
	}
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envDur(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return f, nil
}
