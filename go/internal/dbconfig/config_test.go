package dbconfig

import "testing"

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "fields",
			cfg:  Config{Host: "db", Port: 5433, User: "u", Password: "p", Database: "ts", SSLMode: "disable"},
			want: "postgres://u:p@db:5433/ts?sslmode=disable",
		},
		{
			name: "url wins",
			cfg:  Config{URL: "postgres://x@y/z", Host: "db"},
			want: "postgres://x@y/z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_PORT", "6000")
	t.Setenv("DB_USER", "ts")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "ledger")
	t.Setenv("DB_SSLMODE", "require")

	cfg, err := NewConfigFromEnv()
	if err != nil {
		t.Fatalf("NewConfigFromEnv: %v", err)
	}
	want := "postgres://ts:secret@pg:6000/ledger?sslmode=require"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestNewConfigFromEnvBadPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	if _, err := NewConfigFromEnv(); err == nil {
		t.Fatal("expected an error for a non-numeric port")
	}
}
