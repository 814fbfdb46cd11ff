package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default values applied when no other source sets a key.
const (
	DefaultModelName          = "gemini-2.0-flash"
	DefaultPromptTemplatePath = "prompts/flashcards.tmpl"
	DefaultDataDir            = "data"
	DefaultOutputDir          = "."
	DefaultLogLevel           = "info"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"deck":      "deck.name",
	"scope":     "deck.scope",
	"api-key":   "llm.gemini_api_key",
	"model":     "llm.model_name",
	"prompt":    "llm.prompt_template_path",
	"text":      "input.text",
	"text-file": "input.file",
	"data-dir":  "storage.data_dir",
	"out-dir":   "storage.output_dir",
	"log-level": "log.level",
}

// positionalKeys are filled, in order, by positional arguments:
// deck name, API key, input text.
var positionalKeys = []string{"deck.name", "llm.gemini_api_key", "input.text"}

// NewFlagSet returns the command-line flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	fs.String("deck", "", "deck name (also first positional argument)")
	fs.String("api-key", "", "Gemini API key (also second positional argument)")
	fs.String("text", "", "source text (also third positional argument)")
	fs.String("text-file", "", "read the source text from this file")
	fs.String("prompt", DefaultPromptTemplatePath, "prompt template file")
	fs.String("model", DefaultModelName, "Gemini model name")
	fs.String("scope", ScopeHistory, "cards to include in the deck: history or batch")
	fs.String("data-dir", DefaultDataDir, "directory holding the CSV stores")
	fs.String("out-dir", DefaultOutputDir, "directory for the exported .apkg")
	fs.String("log-level", DefaultLogLevel, "log level: debug, info, warn, error")
	fs.String("config", "", "optional config file (yaml, toml, json)")
	return fs
}

// Load configuration from command-line arguments, environment variables,
// and optionally a config file.
// Precedence, highest first: positional arguments, flags, SCRY_* environment
// variables, config file, defaults.
// Returns a populated Config struct or an error wrapping ErrConfiguration.
// A request for help returns an error wrapping pflag.ErrHelp.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet("scry-deck")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	v := viper.New()
	setDefaults(v)

	for flagName, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, fmt.Errorf("%w: failed to bind flag %s: %v", ErrConfiguration, flagName, err)
		}
	}

	v.SetEnvPrefix("SCRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfiguration, path, err)
		}
	}

	positional := fs.Args()
	if len(positional) > len(positionalKeys) {
		return nil, fmt.Errorf("%w: expected at most %d positional arguments, got %d",
			ErrConfiguration, len(positionalKeys), len(positional))
	}
	for i, value := range positional {
		v.Set(positionalKeys[i], value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode configuration: %v", ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deck.scope", ScopeHistory)
	v.SetDefault("llm.model_name", DefaultModelName)
	v.SetDefault("llm.prompt_template_path", DefaultPromptTemplatePath)
	v.SetDefault("storage.data_dir", DefaultDataDir)
	v.SetDefault("storage.output_dir", DefaultOutputDir)
	v.SetDefault("log.level", DefaultLogLevel)
}

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			missing := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				missing = append(missing, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: validation failed: %s", ErrConfiguration, strings.Join(missing, ", "))
		}
		return fmt.Errorf("%w: validation failed: %v", ErrConfiguration, err)
	}
	return nil
}
