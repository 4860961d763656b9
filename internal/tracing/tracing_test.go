package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geox/judge/internal/config"
)

func TestNewProvider(t *testing.T) {
	badCA := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(badCA, []byte("not a pem"), 0o600))

	tests := []struct {
		name        string
		cfg         config.TracingSettings
		expectError bool
	}{
		{name: "disabled", cfg: config.TracingSettings{}},
		{name: "enabled without endpoint", cfg: config.TracingSettings{Enabled: true}, expectError: true},
		{name: "tls without verification", cfg: config.TracingSettings{Enabled: true, Endpoint: "localhost:4317", Insecure: true}},
		{name: "missing ca file", cfg: config.TracingSettings{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: "/nonexistent/ca.crt"}, expectError: true},
		{name: "ca file without certificates", cfg: config.TracingSettings{Enabled: true, Endpoint: "localhost:4317", TLSCAPath: badCA}, expectError: true},
		{name: "plaintext", cfg: config.TracingSettings{Enabled: true, Endpoint: "localhost:4317"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg, "test")
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Enabled, provider.Enabled())
			assert.NotNil(t, provider.Tracer("judge"))
			assert.NoError(t, provider.Stop(context.Background()))
		})
	}
}

func TestPlaintext(t *testing.T) {
	assert.True(t, plaintext(config.TracingSettings{Endpoint: "x:4317"}))
	assert.False(t, plaintext(config.TracingSettings{Insecure: true}))
	assert.False(t, plaintext(config.TracingSettings{TLSCAPath: "ca.crt"}))
}
