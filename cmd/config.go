package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/inboxsense/internal/analysis"
	"github.com/teemow/inboxsense/internal/google"
	"github.com/teemow/inboxsense/internal/logging"
	"github.com/teemow/inboxsense/internal/pipeline"
	"github.com/teemow/inboxsense/internal/server"
)

// Mail sources selectable with --mail-source.
const (
	MailSourceGmail       = "gmail"
	MailSourcePlaceholder = "placeholder"
)

// Flag names. Each is also read from the environment with dashes replaced
// by underscores and upper-cased.
const (
	flagGoogleClientID     = "google-client-id"
	flagGoogleClientSecret = "google-client-secret"
	flagGoogleRedirectURI  = "google-redirect-uri"
	flagAIProvider         = "ai-provider"
	flagAIModel            = "ai-model"
	flagGeminiAPIKey       = "gemini-api-key"
	flagOpenAIAPIKey       = "openai-api-key"
	flagOpenAIBaseURL      = "openai-base-url"
	flagStrictLabels       = "strict-labels"
	flagMailSource         = "mail-source"
	flagStepTimeout        = "step-timeout"
	flagLogLevel           = "log-level"
	flagLogFormat          = "log-format"
	flagPort               = "port"
	flagPerSession         = "per-session"
	flagSecureCookies      = "secure-cookies"
	flagMetricsEnabled     = "metrics-enabled"
	flagMetricsAddr        = "metrics-addr"
)

// envFiles are loaded in order. Values already in the environment win, so
// .env.local overrides .env.
var envFiles = []string{".env.local", ".env"}

// Config holds the settings shared by all commands.
type Config struct {
	Google google.ClientConfig
	AI     AIConfig

	MailSource  string
	StepTimeout time.Duration
	Log         logging.Options

	Server ServerConfig
}

// AIConfig selects and configures the analysis model.
type AIConfig struct {
	Provider      string
	Model         string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	StrictLabels  bool
}

// ServerConfig holds the serve command settings.
type ServerConfig struct {
	Port           int
	PerSession     bool
	SecureCookies  bool
	MetricsEnabled bool
	MetricsAddr    string
}

// Addr returns the API listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// APIKey returns the key of the selected provider.
func (c AIConfig) APIKey() string {
	if c.Provider == analysis.ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

func addConfigFlags(fs *pflag.FlagSet) {
	fs.String(flagGoogleClientID, "", "Google OAuth client ID (env: GOOGLE_CLIENT_ID)")
	fs.String(flagGoogleClientSecret, "", "Google OAuth client secret (env: GOOGLE_CLIENT_SECRET)")
	fs.String(flagGoogleRedirectURI, "", "OAuth redirect URI registered with Google (env: GOOGLE_REDIRECT_URI)")
	fs.String(flagAIProvider, analysis.ProviderGemini, "AI provider: gemini or openai (env: AI_PROVIDER)")
	fs.String(flagAIModel, "", "Model name (default depends on provider) (env: AI_MODEL)")
	fs.String(flagGeminiAPIKey, "", "Gemini API key (env: GEMINI_API_KEY)")
	fs.String(flagOpenAIAPIKey, "", "OpenAI API key (env: OPENAI_API_KEY)")
	fs.String(flagOpenAIBaseURL, "", "OpenAI-compatible API base URL including /v1 (env: OPENAI_BASE_URL)")
	fs.Bool(flagStrictLabels, false, "Reject labels outside the known classifications and sentiments (env: STRICT_LABELS)")
	fs.String(flagMailSource, MailSourceGmail, "Mail source: gmail or placeholder (env: MAIL_SOURCE)")
	fs.Duration(flagStepTimeout, pipeline.DefaultStepTimeout, "Timeout of each pipeline step (env: STEP_TIMEOUT)")
	fs.String(flagLogLevel, "info", "Log level: debug, info, warn, error (env: LOG_LEVEL)")
	fs.String(flagLogFormat, logging.FormatText, "Log format: text or json (env: LOG_FORMAT)")
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.Int(flagPort, 3000, "HTTP port (env: PORT)")
	fs.Bool(flagPerSession, false, "Keep a separate mailbox authorization per browser session (env: PER_SESSION)")
	fs.Bool(flagSecureCookies, false, "Mark session cookies Secure; enable behind HTTPS (env: SECURE_COOKIES)")
	fs.Bool(flagMetricsEnabled, true, "Serve Prometheus metrics on a separate port (env: METRICS_ENABLED)")
	fs.String(flagMetricsAddr, server.DefaultMetricsAddr, "Metrics server address (env: METRICS_ADDR)")
}

// loadEnvFiles loads the dotenv files that exist in the working directory.
func loadEnvFiles() error {
	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

// newViper binds flags to their environment variables. A flag set on the
// command line wins over the environment, which wins over the flag default.
func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	return v, nil
}

// loadConfig reads the dotenv files and resolves every setting.
func loadConfig(flags *pflag.FlagSet) (Config, error) {
	if err := loadEnvFiles(); err != nil {
		return Config{}, err
	}
	v, err := newViper(flags)
	if err != nil {
		return Config{}, err
	}
	return configFromViper(v)
}

func configFromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Google: google.ClientConfig{
			ClientID:     v.GetString(flagGoogleClientID),
			ClientSecret: v.GetString(flagGoogleClientSecret),
			RedirectURL:  v.GetString(flagGoogleRedirectURI),
		},
		AI: AIConfig{
			Provider:      strings.ToLower(strings.TrimSpace(v.GetString(flagAIProvider))),
			Model:         v.GetString(flagAIModel),
			GeminiAPIKey:  v.GetString(flagGeminiAPIKey),
			OpenAIAPIKey:  v.GetString(flagOpenAIAPIKey),
			OpenAIBaseURL: v.GetString(flagOpenAIBaseURL),
			StrictLabels:  v.GetBool(flagStrictLabels),
		},
		MailSource:  strings.ToLower(strings.TrimSpace(v.GetString(flagMailSource))),
		StepTimeout: v.GetDuration(flagStepTimeout),
		Log: logging.Options{
			Level:  v.GetString(flagLogLevel),
			Format: v.GetString(flagLogFormat),
		},
		Server: ServerConfig{
			Port:           v.GetInt(flagPort),
			PerSession:     v.GetBool(flagPerSession),
			SecureCookies:  v.GetBool(flagSecureCookies),
			MetricsEnabled: v.GetBool(flagMetricsEnabled),
			MetricsAddr:    v.GetString(flagMetricsAddr),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings that are present but invalid. Missing
// credentials are not an error; the affected component reports itself as
// misconfigured at use.
func (c Config) Validate() error {
	switch c.AI.Provider {
	case analysis.ProviderGemini, analysis.ProviderOpenAI:
	default:
		return fmt.Errorf("invalid AI provider %q, must be one of: gemini, openai", c.AI.Provider)
	}

	switch c.MailSource {
	case MailSourceGmail, MailSourcePlaceholder:
	default:
		return fmt.Errorf("invalid mail source %q, must be one of: gmail, placeholder", c.MailSource)
	}

	if c.StepTimeout < 0 {
		return fmt.Errorf("step timeout must not be negative, got %s", c.StepTimeout)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}
