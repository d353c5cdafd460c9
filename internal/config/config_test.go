package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadGatewayConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("addr %s", cfg.HTTPAddr)
	}
	if cfg.KafkaRequestTopic != "request-events" || cfg.KafkaPushTopic != "push-notifications" {
		t.Fatalf("topics %s %s", cfg.KafkaRequestTopic, cfg.KafkaPushTopic)
	}
	if cfg.SessionKeyPrefix != "session:" {
		t.Fatalf("prefix %s", cfg.SessionKeyPrefix)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("format %s", cfg.LogFormat)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("HTTP_READ_TIMEOUT", "2s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("MIGRATE", "true")

	cfg, err := LoadGatewayConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("addr %s", cfg.HTTPAddr)
	}
	if cfg.ReadTimeout != 2*time.Second {
		t.Fatalf("read timeout %s", cfg.ReadTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers %v", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("level %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Fatalf("format %s", cfg.LogFormat)
	}
	if !cfg.RunMigrations {
		t.Fatal("migrations flag")
	}
}

func TestInvalidValuesAccumulate(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("WS_MAX_FRAME_BYTES", "lots")
	if _, err := LoadGatewayConfig(); err == nil {
		t.Fatal("expected error for invalid env values")
	}
}
