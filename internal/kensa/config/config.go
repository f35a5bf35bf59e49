// Package config loads Kensa's process configuration from environment
// variables, with optional .env file support for local development.
package config

import (
	"fmt"

	"github.com/joho/godotenv"

	"github.com/bdobrica/Kensa/common/environment"
)

// Settings holds everything the application needs to start.
type Settings struct {
	// OpenAIAPIKey authenticates against the chat completions API. Required.
	OpenAIAPIKey string
	// OpenAIModel is the chat model. Defaults to gpt-4o-mini.
	OpenAIModel string
	// OpenAIBaseURL overrides the API endpoint for OpenAI-compatible
	// backends (Ollama, Azure). Empty uses the public endpoint.
	OpenAIBaseURL string

	// MemoryDBPath is the SQLite file holding user identities and the
	// long-term memory ledger.
	MemoryDBPath string
	// AnalyticsDBPath is the SQLite database that generated SELECT
	// statements run against.
	AnalyticsDBPath string

	// RouterLexiconPath optionally points at a YAML file extending the
	// built-in intent trigger sets. Empty uses the defaults.
	RouterLexiconPath string
}

// Load reads settings from the environment. A .env file in the working
// directory is applied first when present (missing files are not an error).
func Load() (*Settings, error) {
	_ = godotenv.Load()

	apiKey, err := environment.RequiredString("OPENAI_API_KEY")
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &Settings{
		OpenAIAPIKey:      apiKey,
		OpenAIModel:       environment.StringOr("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     environment.StringOr("OPENAI_BASE_URL", ""),
		MemoryDBPath:      environment.StringOr("LONG_TERM_DB_PATH", "./long_term_memory.sqlite"),
		AnalyticsDBPath:   environment.StringOr("DATABASE_PATH", "./local.db"),
		RouterLexiconPath: environment.StringOr("KENSA_ROUTER_LEXICON", ""),
	}, nil
}
