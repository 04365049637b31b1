package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// LLM providers.
const (
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

// Config represents the application configuration.
type Config struct {
	App           ApplicationConfig   `yaml:"app"`
	Paths         PathsConfig         `yaml:"paths"`
	Audio         AudioConfig         `yaml:"audio"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	LLM           LLMConfig           `yaml:"llm"`
	Output        OutputConfig        `yaml:"output"`
	Auth          AuthConfig          `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Paths.Validate(); err != nil {
		return fmt.Errorf("paths: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// PathsConfig locates the vault and the directories inside it. Relative
// entries other than Vault are resolved against Vault.
type PathsConfig struct {
	Vault      string `yaml:"vault"`
	DailyNotes string `yaml:"daily_notes"`
	Projects   string `yaml:"projects"`
	Inbox      string `yaml:"inbox"`
	SQLite     string `yaml:"sqlite"`
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Vault, validation.Required),
		validation.Field(&c.DailyNotes, validation.Required),
		validation.Field(&c.Projects, validation.Required),
		validation.Field(&c.Inbox, validation.Required),
		validation.Field(&c.SQLite, validation.Required),
	)
}

// DailyNotesDir returns the directory that holds daily notes.
func (c *PathsConfig) DailyNotesDir() string { return c.resolve(c.DailyNotes) }

// ProjectsDir returns the root under which every project has a directory.
func (c *PathsConfig) ProjectsDir() string { return c.resolve(c.Projects) }

// InboxDir returns the audio inbox directory.
func (c *PathsConfig) InboxDir() string { return c.resolve(c.Inbox) }

// SQLitePath returns the search index database path.
func (c *PathsConfig) SQLitePath() string { return c.resolve(c.SQLite) }

// LocksDir returns the directory holding per-project lock files.
func (c *PathsConfig) LocksDir() string {
	return filepath.Join(c.Vault, ".worklog", "locks")
}

func (c *PathsConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Vault, p)
}

// AudioConfig controls inbox discovery and validation of recordings.
type AudioConfig struct {
	SupportedFormats      []string `yaml:"supported_formats"`
	MinDuration           float64  `yaml:"min_duration"`
	MaxDuration           float64  `yaml:"max_duration"`
	DeleteAfterProcessing bool     `yaml:"delete_after_processing"`
	FFprobeBinary         string   `yaml:"ffprobe_binary"`
}

// Validate validates the audio configuration.
func (c *AudioConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SupportedFormats, validation.Required),
		validation.Field(&c.MinDuration, validation.Min(0.0)),
		validation.Field(&c.MaxDuration, validation.Required, validation.Min(c.MinDuration)),
		validation.Field(&c.FFprobeBinary, validation.Required),
	)
}

// TranscriptionConfig configures the whisperx speech-to-text command.
type TranscriptionConfig struct {
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
	CUDA     bool   `yaml:"cuda"`
	Binary   string `yaml:"binary"`
}

// Validate validates the transcription configuration.
func (c *TranscriptionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Binary, validation.Required),
	)
}

// LLMConfig selects the language model provider and its request settings.
type LLMConfig struct {
	Provider       string  `yaml:"provider"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	WeeklyModel    string  `yaml:"weekly_model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RetryAttempts  int     `yaml:"retry_attempts"`
}

// Validate validates the LLM configuration.
func (c *LLMConfig) Validate() error {
	if c.WeeklyModel == "" {
		c.WeeklyModel = c.Model
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(ProviderOpenAI, ProviderDeepSeek, ProviderOpenRouter, ProviderAnthropic)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.TimeoutSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.RetryAttempts, validation.Required, validation.Min(1)),
	)
}

// OutputConfig controls the optional artifacts written next to daily notes.
type OutputConfig struct {
	SaveTranscript      bool   `yaml:"save_transcript"`
	TranscriptFolder    string `yaml:"transcript_folder"`
	TrackCompletedTodos bool   `yaml:"track_completed_todos"`
	DebugLLM            bool   `yaml:"debug_llm"`
	DebugFolder         string `yaml:"debug_folder"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TranscriptFolder, validation.Required),
		validation.Field(&c.DebugFolder, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Paths: PathsConfig{
			Vault:      "./vault",
			DailyNotes: "Daily Notes",
			Projects:   ".",
			Inbox:      "inbox",
			SQLite:     filepath.Join(".worklog", "index.db"),
		},
		Audio: AudioConfig{
			SupportedFormats: []string{".mp3", ".wav", ".m4a", ".aac", ".ogg", ".flac"},
			MinDuration:      5,
			MaxDuration:      1800,
			FFprobeBinary:    "ffprobe",
		},
		Transcription: TranscriptionConfig{
			Model:  "large-v3",
			Binary: "uvx",
		},
		LLM: LLMConfig{
			Provider:       ProviderOpenAI,
			Model:          "gpt-4.1-mini",
			WeeklyModel:    "gpt-4.1",
			Temperature:    0.3,
			MaxTokens:      2000,
			TimeoutSeconds: 60,
			RetryAttempts:  3,
		},
		Output: OutputConfig{
			SaveTranscript:      true,
			TranscriptFolder:    "transcripts",
			TrackCompletedTodos: true,
			DebugFolder:         "debug",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
