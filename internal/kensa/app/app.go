// Package app wires Kensa's components together and runs the interactive
// analytics session.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // analytics database driver

	"github.com/bdobrica/Kensa/internal/kensa/auth"
	"github.com/bdobrica/Kensa/internal/kensa/config"
	"github.com/bdobrica/Kensa/internal/kensa/llm"
	"github.com/bdobrica/Kensa/internal/kensa/memory"
	"github.com/bdobrica/Kensa/internal/kensa/orchestrator"
	"github.com/bdobrica/Kensa/internal/kensa/router"
	"github.com/bdobrica/Kensa/internal/kensa/sqlrunner"
	"github.com/bdobrica/Kensa/internal/kensa/store"
)

// App holds the wired application.
type App struct {
	settings    *config.Settings
	memoryStore *store.Store
	analyticsDB *sql.DB

	creds        *auth.CredentialStore
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

// New builds the application from settings: opens both databases, loads the
// router lexicon, and wires the orchestrator. Callers must Close the
// returned App.
func New(settings *config.Settings) (*App, error) {
	memoryStore, err := store.New(settings.MemoryDBPath)
	if err != nil {
		return nil, fmt.Errorf("app: open memory store: %w", err)
	}

	analyticsDB, err := sql.Open("sqlite", settings.AnalyticsDBPath)
	if err != nil {
		memoryStore.Close()
		return nil, fmt.Errorf("app: open analytics database: %w", err)
	}

	lexicon := router.DefaultLexicon()
	if settings.RouterLexiconPath != "" {
		lexicon, err = router.LoadLexicon(settings.RouterLexiconPath)
		if err != nil {
			analyticsDB.Close()
			memoryStore.Close()
			return nil, fmt.Errorf("app: load router lexicon: %w", err)
		}
	}

	logger := slog.Default()
	ledger := memory.NewLedger(memoryStore.DB(), logger)
	provider := llm.NewOpenAI(llm.Config{
		APIKey:  settings.OpenAIAPIKey,
		BaseURL: settings.OpenAIBaseURL,
		Model:   settings.OpenAIModel,
	})

	orch := orchestrator.New(
		router.New(lexicon),
		memory.NewRanker(ledger),
		ledger,
		provider,
		sqlrunner.New(analyticsDB, logger),
		logger,
	)

	return &App{
		settings:     settings,
		memoryStore:  memoryStore,
		analyticsDB:  analyticsDB,
		creds:        auth.NewCredentialStore(memoryStore.DB(), logger),
		orchestrator: orch,
		logger:       logger,
	}, nil
}

// Close releases both database handles.
func (a *App) Close() error {
	var firstErr error
	if err := a.analyticsDB.Close(); err != nil {
		firstErr = err
	}
	if err := a.memoryStore.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
