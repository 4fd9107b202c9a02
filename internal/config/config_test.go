package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("ADMIN_PASSWORD_HASH", "")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Storage.Driver)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "MEM", cfg.Membership.IDPrefix)
	assert.Equal(t, 4, cfg.Membership.IDWidth)
	assert.Equal(t, "admin", cfg.Admin.Username)
	assert.Equal(t, "admin123", cfg.Admin.Password)
	assert.Equal(t, 30*time.Second, cfg.Jobs.DashboardCacheTTL)
	assert.EqualValues(t, 5<<20, cfg.Upload.MaxBytes)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
}

func TestFromEnvProdPrefixes(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("PROD_DB_HOST", "db.internal")
	t.Setenv("PROD_JWT_SECRET", "s3cret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("MEMBERSHIP_ID_PREFIX", "org")
	t.Setenv("MEMBERSHIP_ID_WIDTH", "6")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProd())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "ORG", cfg.Membership.IDPrefix)
	assert.Equal(t, 6, cfg.Membership.IDWidth)
}

func TestFromEnvWidestIDWidth(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("MEMBERSHIP_ID_WIDTH", "18")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 18, cfg.Membership.IDWidth)
}

func TestFromEnvRejects(t *testing.T) {
	tests := map[string]map[string]string{
		"bad mode":              {"APP_MODE": "staging"},
		"bad driver":            {"STORAGE_DRIVER": "oracle"},
		"narrow id width":       {"MEMBERSHIP_ID_WIDTH": "3"},
		"overflowing id width":  {"MEMBERSHIP_ID_WIDTH": "19"},
		"huge id width":         {"MEMBERSHIP_ID_WIDTH": "20"},
		"dash in prefix":        {"MEMBERSHIP_ID_PREFIX": "MEM-X"},
		"bad timezone":          {"APP_TIMEZONE": "Mars/Olympus"},
		"prod without password": {"APP_MODE": "prod", "ADMIN_PASSWORD": "", "ADMIN_PASSWORD_HASH": ""},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestOpenMemberStoreJSONFile(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "jsonfile")
	t.Setenv("JSON_STORE_PATH", filepath.Join(t.TempDir(), "members.json"))

	cfg, err := FromEnv()
	require.NoError(t, err)

	store, err := OpenMemberStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenMemberStoreSQLite(t *testing.T) {
	t.Setenv("APP_MODE", "prod")
	t.Setenv("ADMIN_PASSWORD", "x")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "db", "members.db"))

	cfg, err := FromEnv()
	require.NoError(t, err)

	store, err := OpenMemberStore(context.Background(), cfg)
	require.NoError(t, err)
	defer store.Close()

	count, err := store.CountMembers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDSNs(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "u:p@tcp(h:1)/n?charset=utf8mb4&parseTime=True&loc=UTC", buildMySQLDSN(d))
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable TimeZone=UTC", buildPostgresDSN(d))
}
