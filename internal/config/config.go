package config

import "errors"

// ErrConfiguration is returned when required settings are missing or invalid.
// It is fatal: the pipeline never starts.
var ErrConfiguration = errors.New("invalid configuration")

// Deck scopes select which cards end up in the exported package.
const (
	// ScopeHistory compiles the deck from every row in the store.
	ScopeHistory = "history"
	// ScopeBatch compiles the deck from the current run's cards only.
	ScopeBatch = "batch"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Deck    DeckConfig    `mapstructure:"deck"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Input   InputConfig   `mapstructure:"input"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
}

// DeckConfig names the deck and selects its scope.
type DeckConfig struct {
	Name  string `mapstructure:"name" validate:"required"`
	Scope string `mapstructure:"scope" validate:"required,oneof=history batch"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey       string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName          string `mapstructure:"model_name" validate:"required"`
	PromptTemplatePath string `mapstructure:"prompt_template_path" validate:"required"`
}

// InputConfig holds the source text, given inline or as a file path.
type InputConfig struct {
	Text string `mapstructure:"text" validate:"required_without=File"`
	File string `mapstructure:"file"`
}

// StorageConfig locates the CSV store and the exported package.
type StorageConfig struct {
	DataDir   string `mapstructure:"data_dir" validate:"required"`
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}
