package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ADMIN_EMAILS", "Boss@Example.com, ops@example.com")
	t.Setenv("JWT_EXPIRES_IN", "2h")
	t.Setenv("STORAGE_DRIVER", "memory")

	cf, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "9090", cf.ServerPort)
	require.Equal(t, 2*time.Hour, cf.JWTExpiresIn)
	require.Equal(t, DriverMemory, cf.StorageDriver)
	require.Equal(t, []string{"boss@example.com", "ops@example.com"}, cf.AdminEmails)
	require.True(t, cf.IsAdminEmail(" BOSS@example.com"))
	require.False(t, cf.IsAdminEmail("someone@example.com"))
	require.Equal(t, 30*time.Second, cf.CacheTTL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefront.env")
	content := "JWT_SECRET=file-secret\nMONGO_DATABASE=shop\nORDERS_STRICT_TRANSITIONS=true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "file-secret", cf.JWTSecret)
	require.Equal(t, "shop", cf.MongoDatabase)
	require.True(t, cf.StrictOrderTransitions)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load("")
	require.Error(t, err)
}

func TestRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("STORAGE_DRIVER", "postgres")
	_, err := Load("")
	require.ErrorContains(t, err, "STORAGE_DRIVER")
}

func TestMongoConnectionURIFallback(t *testing.T) {
	cf := &Config{MongoURL: "mongodb://fallback:27017"}
	require.Equal(t, "mongodb://fallback:27017", cf.MongoConnectionURI())

	cf.MongoPublicURL = "mongodb://public:27017"
	require.Equal(t, "mongodb://public:27017", cf.MongoConnectionURI())

	require.Equal(t, "mongodb://localhost:27017", (&Config{}).MongoConnectionURI())
}
