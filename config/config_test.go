package config

import (
	"testing"
	"time"

	"kanban-board/remote"
)

func TestLoadAPIDefaults(t *testing.T) {
	for _, k := range []string{"BOARD_API_PORT", "BOARD_STORE", "CACHE_TTL", "DEDUPER_TTL", "MOCK_MIN_DELAY", "MOCK_MAX_DELAY", "MOCK_FAILURE_RATE", "DEBUG"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadAPI()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr() != ":8080" || cfg.Store != StoreMemory {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
	if cfg.CacheTTL != 30*time.Second || cfg.DeduperTTL != 24*time.Hour {
		t.Fatalf("unexpected ttls %#v", cfg)
	}
	if cfg.Mock.MinDelay != remote.DefaultMinDelay || cfg.Mock.MaxDelay != remote.DefaultMaxDelay || cfg.Mock.FailureRate != remote.DefaultFailureRate {
		t.Fatalf("unexpected mock defaults %#v", cfg.Mock)
	}
}

func TestLoadAPIOverrides(t *testing.T) {
	t.Setenv("BOARD_API_PORT", "9090")
	t.Setenv("BOARD_STORE", "Redis")
	t.Setenv("REDIS_CONNECTION_STRING", "localhost:6379")
	t.Setenv("MOCK_MIN_DELAY", "0s")
	t.Setenv("MOCK_MAX_DELAY", "10ms")
	t.Setenv("MOCK_FAILURE_RATE", "0")
	t.Setenv("DEBUG", "true")

	cfg, err := LoadAPI()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.Store != StoreRedis || !cfg.Debug {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if cfg.Mock.MaxDelay != 10*time.Millisecond || cfg.Mock.FailureRate != 0 {
		t.Fatalf("unexpected mock config %#v", cfg.Mock)
	}
}

func TestLoadAPIInvalid(t *testing.T) {
	testCases := map[string]map[string]string{
		"store":        {"BOARD_STORE": "postgres"},
		"redis_conn":   {"BOARD_STORE": "redis", "REDIS_CONNECTION_STRING": ""},
		"table_conn":   {"BOARD_STORE": "table", "STORAGE_CONNECTION_STRING": ""},
		"port":         {"BOARD_API_PORT": "abc"},
		"port_range":   {"BOARD_API_PORT": "70000"},
		"ttl":          {"CACHE_TTL": "soon"},
		"rate":         {"MOCK_FAILURE_RATE": "1.5"},
		"delay_order":  {"MOCK_MIN_DELAY": "2s", "MOCK_MAX_DELAY": "1s"},
		"negative_dur": {"DEDUPER_TTL": "-1s"},
	}
	for name, env := range testCases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := LoadAPI(); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

func TestLoadCLI(t *testing.T) {
	t.Setenv("BOARD_API_URL", "http://localhost:8080")
	t.Setenv("BOARD_STATE_DIR", "/tmp/board-state")
	t.Setenv("MOCK_FAILURE_RATE", "")

	cfg, err := LoadCLI()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080" || cfg.StateDir != "/tmp/board-state" {
		t.Fatalf("unexpected config %#v", cfg)
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := RedisOptions("redis://:secret@cache:6380/2")
	if err != nil {
		t.Fatalf("url: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "secret" || opts.DB != 2 {
		t.Fatalf("unexpected url options %#v", opts)
	}

	opts, err = RedisOptions("board.redis.cache.windows.net:6380,password=pw,ssl=True,abortConnect=False")
	if err != nil {
		t.Fatalf("conn string: %v", err)
	}
	if opts.Addr != "board.redis.cache.windows.net:6380" || opts.Password != "pw" || opts.TLSConfig == nil {
		t.Fatalf("unexpected conn string options %#v", opts)
	}

	if _, err := RedisOptions(""); err == nil {
		t.Fatalf("expected error for empty connection string")
	}
}
