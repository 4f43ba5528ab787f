package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("ENV", "Development")
	t.Setenv("FRONTEND_URL", "http://localhost:5173")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != "8080" {
		t.Errorf("default port should be 8080 : %q", cfg.Port)
	}
	if cfg.IsProduction() {
		t.Error("development env should not be production")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("origins should fall back to FRONTEND_URL : %v", cfg.AllowedOrigins)
	}
	if cfg.OTPResendCooldown.Seconds() != 30 {
		t.Errorf("resend cooldown should default to 30s : %v", cfg.OTPResendCooldown)
	}
}

func TestLoadRedisPool(t *testing.T) {
	t.Setenv("REDIS_POOL_SIZE", "32")
	t.Setenv("REDIS_READ_TIMEOUT", "750ms")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RedisPoolSize != 32 || cfg.RedisReadTimeout.Milliseconds() != 750 {
		t.Errorf("redis pool not read from env : %d %v", cfg.RedisPoolSize, cfg.RedisReadTimeout)
	}
	if cfg.RedisDialTimeout.Seconds() != 5 {
		t.Errorf("dial timeout should default to 5s : %v", cfg.RedisDialTimeout)
	}
}

func TestLoadAllowedOriginsDedup(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://shop.example.com, https://SHOP.example.com ,https://admin.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("duplicate origins should be collapsed : %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("production with the default JWT secret should fail")
	}
}
