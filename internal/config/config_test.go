package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP:  HTTPConfig{Port: 8080},
		Store: StoreConfig{Driver: "redis", Addrs: []string{"localhost:6379"}},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_Driver(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Driver = "mysql"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown driver")
	}

	cfg = validConfig()
	cfg.Store.Addrs = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing redis addrs")
	}

	cfg = Config{
		HTTP:  HTTPConfig{Port: 8080},
		Store: StoreConfig{Driver: "qdrant"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing qdrant url")
	}
	cfg.Store.URL = "https://qdrant.example.com:6334"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_VectorizerReferences(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding = EmbeddingConfig{
		Vectorizer: "missing",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for undefined vectorizer")
	}

	cfg.Embedding = EmbeddingConfig{
		Vectorizer: "queries",
		Vectorizers: map[string]VectorizerConfig{
			"queries": {Provider: "nowhere", Model: "m"},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider reference")
	}

	cfg.Embedding.Providers = map[string]ProviderConfig{
		"nowhere": {APIKey: "k"},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 10 {
		t.Errorf("expected WriteTimeoutSec=10, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Store.Driver != "redis" {
		t.Errorf("expected driver=redis, got %q", cfg.Store.Driver)
	}
	if cfg.Store.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Store.ReadinessTimeout)
	}
	if cfg.Store.KeyPrefix != "vecscope:" {
		t.Errorf("expected KeyPrefix='vecscope:', got %q", cfg.Store.KeyPrefix)
	}
	if cfg.Browse.DefaultPageSize != 25 {
		t.Errorf("expected DefaultPageSize=25, got %d", cfg.Browse.DefaultPageSize)
	}
	if cfg.Browse.SearchLimit != 50 {
		t.Errorf("expected SearchLimit=50, got %d", cfg.Browse.SearchLimit)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Store:  StoreConfig{Driver: "qdrant", ReadinessTimeout: 15, KeyPrefix: "custom:"},
		Browse: BrowseConfig{DefaultPageSize: 50, SearchLimit: 200},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Store.Driver != "qdrant" {
		t.Errorf("expected driver=qdrant, got %q", cfg.Store.Driver)
	}
	if cfg.Store.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Store.KeyPrefix)
	}
	if cfg.Browse.DefaultPageSize != 50 {
		t.Errorf("expected DefaultPageSize=50, got %d", cfg.Browse.DefaultPageSize)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("VECSCOPE_TEST_PASSWORD", "s3cret")

	in := []byte("password: ${VECSCOPE_TEST_PASSWORD}\nprefix: ${VECSCOPE_TEST_MISSING:-vecscope:}\n")
	out := string(expandEnvVars(in))

	if out != "password: s3cret\nprefix: vecscope:\n" {
		t.Errorf("unexpected expansion:\n%s", out)
	}
}
