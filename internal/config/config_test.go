package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"database_url": "postgres://localhost/content",
		"blob_backend": "bolt",
		"output_dir": "/tmp/manifests",
		"platforms": ["twitter", "linkedin"],
		"include_retry": true,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "postgres://localhost/content", cfg.DatabaseURL)
	assert.Equal(t, BlobBackendBolt, cfg.BlobBackend)
	assert.Equal(t, "/tmp/manifests", cfg.OutputDir)
	assert.Equal(t, []string{"twitter", "linkedin"}, cfg.Platforms)
	assert.True(t, cfg.IncludeRetry)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "empty", cfg: Config{}},
		{name: "bolt backend", cfg: Config{BlobBackend: BlobBackendBolt, LogLevel: "debug"}},
		{name: "unknown backend", cfg: Config{BlobBackend: "s3"}, wantErr: "blob_backend"},
		{name: "bad log level", cfg: Config{LogLevel: "loud"}, wantErr: "log_level"},
		{name: "missing options file", cfg: Config{FormattingOptions: "/nonexistent/options.yaml"}, wantErr: "formatting options file not found"},
		{name: "empty platform", cfg: Config{Platforms: []string{"twitter", ""}}, wantErr: "platforms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		OutputDir: "/custom",
		Platforms: []string{"twitter"},
	}

	merged := partial.MergeWithDefaults(Config{
		OutputDir:   "/default",
		LogLevel:    "warn",
		BlobBackend: BlobBackendBolt,
		Platforms:   []string{"facebook"},
	})

	assert.Equal(t, "/custom", merged.OutputDir)
	assert.Equal(t, []string{"twitter"}, merged.Platforms)
	assert.Equal(t, "warn", merged.LogLevel)
	assert.Equal(t, BlobBackendBolt, merged.BlobBackend)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{Section: "blog"}
	merged := cfg.MergeWithDefaults(Config{})
	assert.Equal(t, "blog", merged.Section)
	assert.Empty(t, merged.OutputDir)
}

func TestApplyEnv_FillsOnlyEmptyFields(t *testing.T) {
	cfg := Config{OutputDir: "/from-file"}
	cfg.ApplyEnv(envMap(map[string]string{
		EnvDatabaseURL: "postgres://env",
		EnvOutputDir:   "/from-env",
		EnvLogLevel:    "debug",
	}))

	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
	assert.Equal(t, "/from-file", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestResolve(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"section": "social"}`), 0644))

	cfg, err := Resolve(tmpFile, envMap(map[string]string{EnvDatabaseURL: "postgres://env"}))
	require.NoError(t, err)

	assert.Equal(t, "social", cfg.Section)
	assert.Equal(t, "postgres://env", cfg.DatabaseURL)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultBlobBackend, cfg.BlobBackend)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestResolve_NoFile(t *testing.T) {
	cfg, err := Resolve("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestResolve_InvalidEnvLevel(t *testing.T) {
	_, err := Resolve("", envMap(map[string]string{EnvLogLevel: "chatty"}))
	assert.Error(t, err)
}
