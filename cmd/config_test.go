package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxsense/internal/analysis"
	"github.com/teemow/inboxsense/internal/pipeline"
)

var allFlags = []string{
	flagGoogleClientID, flagGoogleClientSecret, flagGoogleRedirectURI,
	flagAIProvider, flagAIModel, flagGeminiAPIKey, flagOpenAIAPIKey, flagOpenAIBaseURL,
	flagStrictLabels, flagMailSource, flagStepTimeout, flagLogLevel, flagLogFormat,
	flagPort, flagPerSession, flagSecureCookies, flagMetricsEnabled, flagMetricsAddr,
}

func envName(flag string) string {
	return strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// clearEnv blanks every configuration variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, f := range allFlags {
		t.Setenv(envName(f), "")
	}
}

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addConfigFlags(fs)
	addServeFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func resolve(t *testing.T, args ...string) (Config, error) {
	t.Helper()
	v, err := newViper(parseFlags(t, args...))
	require.NoError(t, err)
	return configFromViper(v)
}

func TestConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := resolve(t)
	require.NoError(t, err)

	assert.Equal(t, analysis.ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, MailSourceGmail, cfg.MailSource)
	assert.Equal(t, pipeline.DefaultStepTimeout, cfg.StepTimeout)
	assert.Equal(t, ":3000", cfg.Server.Addr())
	assert.True(t, cfg.Server.MetricsEnabled)
	assert.False(t, cfg.Server.PerSession)
	assert.False(t, cfg.Google.Configured())
	assert.Empty(t, cfg.AI.APIKey())
}

func TestConfig_EnvironmentAndFlags(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOOGLE_CLIENT_ID", "id.apps.googleusercontent.com")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("GOOGLE_REDIRECT_URI", "http://localhost:3000/oauth2callback")
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("STEP_TIMEOUT", "5s")
	t.Setenv("STRICT_LABELS", "true")
	t.Setenv("PORT", "8080")

	cfg, err := resolve(t, "--openai-api-key", "sk-flag", "--port", "9000")
	require.NoError(t, err)

	assert.True(t, cfg.Google.Configured())
	assert.Equal(t, "http://localhost:3000/oauth2callback", cfg.Google.RedirectURL)
	assert.Equal(t, analysis.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "sk-flag", cfg.AI.APIKey(), "flag wins over environment")
	assert.Equal(t, 5*time.Second, cfg.StepTimeout)
	assert.True(t, cfg.AI.StrictLabels)
	assert.Equal(t, ":9000", cfg.Server.Addr())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		AI:          AIConfig{Provider: analysis.ProviderGemini},
		MailSource:  MailSourceGmail,
		StepTimeout: time.Second,
		Server:      ServerConfig{Port: 3000},
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "placeholder source", mutate: func(c *Config) { c.MailSource = MailSourcePlaceholder }},
		{name: "unknown provider", mutate: func(c *Config) { c.AI.Provider = "claude" }, wantErr: "invalid AI provider"},
		{name: "unknown mail source", mutate: func(c *Config) { c.MailSource = "imap" }, wantErr: "invalid mail source"},
		{name: "negative timeout", mutate: func(c *Config) { c.StepTimeout = -time.Second }, wantErr: "step timeout"},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "invalid port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("GEMINI_API_KEY=from-local\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-env\nAI_MODEL=gemini-test\n"), 0o600))
	// godotenv does not overwrite variables that are already set, so unset
	// the blanked ones before loading.
	require.NoError(t, os.Unsetenv("GEMINI_API_KEY"))
	require.NoError(t, os.Unsetenv("AI_MODEL"))

	cfg, err := loadConfig(parseFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "from-local", cfg.AI.GeminiAPIKey)
	assert.Equal(t, "gemini-test", cfg.AI.Model)
}

func TestLoadEnvFiles_Missing(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, loadEnvFiles())
}
