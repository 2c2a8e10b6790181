package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SECRET_KEY", testSecret)
	t.Setenv("ADMIN_USERNAME", "operator")
	t.Setenv("ADMIN_PASSWORD", "correct horse battery staple")
}

func TestLoadDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "permissive", cfg.Review.StatusPolicy)
	assert.Equal(t, 50, cfg.Review.NotificationFeedSize)
	assert.Equal(t, "/admin/login", cfg.Admin.LoginPath)
	assert.Equal(t, 5, cfg.Admin.LoginRatePerMinute)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"short secret", "SECRET_KEY", "too-short"},
		{"unknown policy", "STATUS_POLICY", "strict"},
		{"unknown log format", "LOG_FORMAT", "xml"},
		{"zero session", "ADMIN_SESSION_MINUTES", "0"},
		{"zero feed", "NOTIFICATION_FEED_SIZE", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresAdminCredentials(t *testing.T) {
	t.Setenv("SECRET_KEY", testSecret)
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")

	_, err := Load()
	assert.ErrorContains(t, err, "ADMIN_USERNAME")
}

func TestGetEnvAsSliceTrims(t *testing.T) {
	t.Setenv("ALLOWED_HOSTS", "https://almondsense.id, https://www.almondsense.id")

	got := getEnvAsSlice("ALLOWED_HOSTS", nil)
	assert.Equal(t, []string{"https://almondsense.id", "https://www.almondsense.id"}, got)
}

func TestGetPostgresDSN(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{
			url:  "postgresql://lead:s3cr:et@db.internal:6543/leads?sslmode=require",
			want: "host=db.internal port=6543 user=lead dbname=leads sslmode=require password=s3cr:et",
		},
		{
			url:  "postgres://lead@localhost/leads",
			want: "host=localhost port=5432 user=lead dbname=leads sslmode=disable",
		},
		{
			url:  "host=x port=1 user=u dbname=d",
			want: "host=x port=1 user=u dbname=d",
		},
	}
	for _, tt := range tests {
		cfg := DatabaseConfig{URL: tt.url}
		assert.Equal(t, tt.want, cfg.GetPostgresDSN(), tt.url)
	}
}

func TestSQLitePathAndKind(t *testing.T) {
	cfg := DatabaseConfig{URL: "sqlite:///./almondsense.db"}
	assert.False(t, cfg.IsPostgres())
	assert.Equal(t, "./almondsense.db", cfg.GetSQLitePath())

	pg := DatabaseConfig{URL: "postgres://u@h/d"}
	assert.True(t, pg.IsPostgres())
}
