package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Booking.LockTimeout != 3*time.Second {
		t.Errorf("expected default lock timeout 3s, got %s", cfg.Booking.LockTimeout)
	}
	if cfg.Clinic.MaxAdvanceDays != 90 {
		t.Errorf("expected 90 advance days, got %d", cfg.Clinic.MaxAdvanceDays)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("expected postgres storage, got %s", cfg.Storage.Driver)
	}
	if !cfg.IsDev() {
		t.Error("expected development environment by default")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CLINIC_TIMEZONE", "Asia/Bangkok")
	t.Setenv("BOOKING_LOCK_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Clinic.Location().String() != "Asia/Bangkok" {
		t.Errorf("location = %s", cfg.Clinic.Location())
	}
	if cfg.Booking.LockTimeout != 750*time.Millisecond {
		t.Errorf("lock timeout = %s", cfg.Booking.LockTimeout)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("storage = %s", cfg.Storage.Driver)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	path := filepath.Join(t.TempDir(), "dentflow.yaml")
	content := "clinic:\n  max_advance_days: 30\nrate_limit:\n  rps: 5\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Clinic.MaxAdvanceDays != 30 || cfg.RateLimit.RequestsPerSecond != 5 {
		t.Errorf("file values not applied: %+v %+v", cfg.Clinic, cfg.RateLimit)
	}
}

func TestValidate_Production(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{Environment: "production"},
		Storage:  StorageConfig{Driver: "memory"},
		Database: DatabaseConfig{SSLMode: "disable"},
		JWT:      JWTConfig{Secret: "short"},
		Clinic:   ClinicConfig{Timezone: "Mars/Olympus", MaxAdvanceDays: 0},
		Booking:  BookingConfig{LockTimeout: time.Second},
	}
	err := validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"JWT_SECRET", "STORAGE_DRIVER=memory", "CLINIC_TIMEZONE", "CLINIC_MAX_ADVANCE_DAYS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
