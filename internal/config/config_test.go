package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/braintease/backend/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Auth struct {
		Secret string
		Issuer string
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	t.Run("file values override struct defaults", func(t *testing.T) {
		var c testConfig
		c.HTTP.Port = 8080
		c.Auth.Issuer = "default-issuer"

		p := writeFile(t, `
http:
  port: 9090
auth:
  secret: from-file
`)

		require.NoError(t, config.Load(p, &c))
		require.Equal(t, int32(9090), c.HTTP.Port)
		require.Equal(t, "from-file", c.Auth.Secret)
		require.Equal(t, "default-issuer", c.Auth.Issuer)
	})

	t.Run("environment overrides the file", func(t *testing.T) {
		t.Setenv("AUTH_SECRET", "from-env")

		var c testConfig
		p := writeFile(t, `
auth:
  secret: from-file
`)

		require.NoError(t, config.Load(p, &c))
		require.Equal(t, "from-env", c.Auth.Secret)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		var c testConfig
		require.Error(t, config.Load("/does/not/exist.yaml", &c))
	})
}
