package config_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/gitpoints/internal/config"
)

var requiredVariables = map[string]string{
	"GITHUB_CLIENT_ID":     "client-id",
	"GITHUB_CLIENT_SECRET": "client-secret",
	"FRONTEND_URL":         "https://gitpoints.example.com",
	"SESSION_SECRET":       "0123456789abcdef0123",
}

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range requiredVariables {
		t.Setenv(k, v)
	}
}

func TestFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)

		conf, err := config.FromEnv()
		require.NoError(t, err)

		require.Equal(t, config.Development, conf.Env)
		require.Equal(t, 8080, conf.HTTP.Port)
		require.Equal(t, "http://localhost:8080/auth/github/callback", conf.OAuth.CallbackURL)
		require.Equal(t, "https://gitpoints.example.com/login?error=auth_failed", conf.Frontend.FailureURL)
		require.Equal(t, config.DriverSQLite, conf.Store.Driver)
		require.Equal(t, "data/gitpoints.db", conf.Store.DBPath)
		require.Nil(t, conf.Store.Credentials)
		require.Equal(t, 100, conf.Scan.PageSize)
		require.Equal(t, 100*time.Millisecond, conf.Scan.PageDelay)
		require.Equal(t, 200*time.Millisecond, conf.Scan.RepoDelay)
		require.Equal(t, 3, conf.Scan.QuickEventPages)
		require.Equal(t, 2*time.Minute, conf.Scan.Timeout)
		require.Equal(t, 14*time.Minute, conf.Keepalive.Interval)
		require.Equal(t, slog.LevelInfo, conf.LogLevel)
		require.False(t, conf.LogJSON)
		require.False(t, conf.DebugEndpointEnabled)
		require.False(t, conf.IsProduction())
	})

	t.Run("overrides", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "9000")
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("LOG_FORMAT", "json")
		t.Setenv("SCAN_REPO_DELAY", "1s")
		t.Setenv("DEBUG_ENDPOINT_ENABLED", "true")
		t.Setenv("FRONTEND_FAILURE_URL", "https://gitpoints.example.com/oops")

		conf, err := config.FromEnv()
		require.NoError(t, err)

		require.Equal(t, 9000, conf.HTTP.Port)
		require.Equal(t, "http://localhost:9000/auth/github/callback", conf.OAuth.CallbackURL)
		require.True(t, conf.IsProduction())
		require.Equal(t, slog.LevelDebug, conf.LogLevel)
		require.True(t, conf.LogJSON)
		require.Equal(t, time.Second, conf.Scan.RepoDelay)
		require.True(t, conf.DebugEndpointEnabled)
		require.Equal(t, "https://gitpoints.example.com/oops", conf.Frontend.FailureURL)
		require.NotContains(t, conf.NonSensitiveString(), requiredVariables["SESSION_SECRET"])
	})

	t.Run("missing required values", func(t *testing.T) {
		for key := range requiredVariables {
			t.Run(key, func(t *testing.T) {
				setRequired(t)
				t.Setenv(key, "")

				_, err := config.FromEnv()
				require.ErrorIs(t, err, config.ErrMissingRequiredValue)
				require.ErrorContains(t, err, key)
			})
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := map[string]string{
			"PORT":               "eighty",
			"SCAN_PAGE_DELAY":    "soon",
			"SCAN_PAGE_SIZE":     "0",
			"ENVIRONMENT":        "moon",
			"STORE_DRIVER":       "postgres",
			"LOG_LEVEL":          "loud",
			"FRONTEND_URL":       "not a url",
			"SESSION_SECRET":     "short",
			"HTTP_WRITE_TIMEOUT": "30s",
		}
		for key, value := range cases {
			t.Run(key, func(t *testing.T) {
				setRequired(t)
				t.Setenv(key, value)

				_, err := config.FromEnv()
				require.ErrorIs(t, err, config.ErrInvalidValue)
			})
		}
	})

	t.Run("mongo requires credentials", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE_DRIVER", "mongo")

		_, err := config.FromEnv()
		require.ErrorIs(t, err, config.ErrMissingRequiredValue)
		require.ErrorContains(t, err, "STORE_CREDENTIALS")
	})

	t.Run("malformed credentials are fatal", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("STORE_CREDENTIALS", "{not json")

		_, err := config.FromEnv()
		require.ErrorIs(t, err, config.ErrInvalidValue)
	})

	t.Run("mongo with credentials", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("STORE_CREDENTIALS", `{"uri":"mongodb://db:27017","database":"gitpoints"}`)

		conf, err := config.FromEnv()
		require.NoError(t, err)
		require.NotNil(t, conf.Store.Credentials)
		require.Equal(t, "gitpoints", conf.Store.Credentials.Database)
	})
}

func TestParseStoreCredentials(t *testing.T) {
	certPEM, keyPEM := selfSignedPair(t)

	t.Run("escaped newlines are restored", func(t *testing.T) {
		raw := singleLineJSON(t, map[string]string{
			"uri":                "mongodb://db:27017",
			"database":           "gitpoints",
			"client_certificate": certPEM,
			"private_key":        keyPEM,
		})
		require.NotContains(t, raw, "-----\n")

		creds, err := config.ParseStoreCredentials(raw)
		require.NoError(t, err)
		require.Equal(t, keyPEM, creds.PrivateKey)
		require.Equal(t, certPEM, creds.ClientCertificate)

		pair, err := creds.X509KeyPair()
		require.NoError(t, err)
		require.NotNil(t, pair)
	})

	t.Run("no certificate", func(t *testing.T) {
		creds, err := config.ParseStoreCredentials(`{"uri":"mongodb://db","database":"d"}`)
		require.NoError(t, err)

		pair, err := creds.X509KeyPair()
		require.NoError(t, err)
		require.Nil(t, pair)
	})

	t.Run("rejections", func(t *testing.T) {
		cases := map[string]struct {
			raw string
			err error
		}{
			"not json":         {`uri=mongodb://db`, config.ErrInvalidValue},
			"unknown field":    {`{"uri":"mongodb://db","database":"d","password":"x"}`, config.ErrInvalidValue},
			"missing uri":      {`{"database":"d"}`, config.ErrMissingRequiredValue},
			"missing database": {`{"uri":"mongodb://db"}`, config.ErrMissingRequiredValue},
			"key without cert": {`{"uri":"mongodb://db","database":"d","private_key":"k"}`, config.ErrInvalidValue},
			"garbage key pair": {`{"uri":"mongodb://db","database":"d","private_key":"k","client_certificate":"c"}`, config.ErrInvalidValue},
		}
		for name, c := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := config.ParseStoreCredentials(c.raw)
				require.ErrorIs(t, err, c.err)
			})
		}
	})
}

// singleLineJSON encodes v with every newline replaced by a literal
// backslash-n, the way a PEM ends up in a one-line env variable.
func singleLineJSON(t *testing.T, v map[string]string) string {
	t.Helper()
	flattened := make(map[string]string, len(v))
	for k, s := range v {
		flattened[k] = strings.ReplaceAll(s, "\n", `\n`)
	}
	b, err := json.Marshal(flattened)
	require.NoError(t, err)
	return string(b)
}

func selfSignedPair(t *testing.T) (string, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "gitpoints"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return string(certPEM), string(keyPEM)
}
