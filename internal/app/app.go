package app

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"mailfootprint/internal/application/lock"
	"mailfootprint/internal/application/report"
	"mailfootprint/internal/application/state"
	appsync "mailfootprint/internal/application/sync"
	"mailfootprint/internal/domain/email"
	"mailfootprint/internal/infrastructure/auth"
	"mailfootprint/internal/infrastructure/config"
	"mailfootprint/internal/infrastructure/gmail"
	"mailfootprint/internal/infrastructure/llm"
	"mailfootprint/internal/infrastructure/persistence/sqlite"
	"mailfootprint/internal/infrastructure/pubsub"
	pubsubHandler "mailfootprint/internal/interfaces/pubsub"
	"mailfootprint/internal/interfaces/scheduler"
	"mailfootprint/internal/interfaces/worker"
)

// App wires the use cases to their adapters.
type App struct {
	cfg    *config.Config
	loc    *time.Location
	logger zerolog.Logger

	repo *sqlite.StateRepository
	auth *auth.OAuthProvider

	syncUC     *appsync.SyncMailboxUseCase
	resetUC    *state.ResetStateUseCase
	countersUC *state.RefreshCountersUseCase
	reportUC   *report.BuildReportUseCase
}

// New builds the application. in and out are used by the interactive
// consent flow.
func New(cfg *config.Config, logger zerolog.Logger, in io.Reader, out io.Writer) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	tokens, err := newTokenStore(cfg)
	if err != nil {
		return nil, err
	}

	oauthConfig, err := auth.LoadOAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("oauth config error: %w", err)
	}

	repo, err := sqlite.NewStateRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite error: %w", err)
	}

	var advisor report.Advisor
	if cfg.OpenAIAPIKey != "" {
		llmClient, err := llm.NewClient(cfg.OpenAIAPIKey, cfg.ModelName)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("llm client error: %w", err)
		}
		advisor = llmClient
	}

	provider := auth.NewOAuthProvider(oauthConfig, tokens, in, out, logger.With().Str("component", "auth").Logger())
	gmailClient := gmail.NewClient(cfg.GmailEndpoint, logger.With().Str("component", "gmail").Logger())
	guard := lock.NewGuard()

	syncUC := appsync.NewSyncMailboxUseCase(provider, gmailClient, repo, guard, appsync.Options{
		PageSize:          cfg.Sync.PageSize,
		PageDelay:         cfg.Sync.PageDelay,
		MaxPages:          cfg.Sync.MaxPages,
		DetailDelay:       cfg.Sync.DetailDelay,
		DetailConcurrency: cfg.Sync.DetailConcurrency,
		Interactive:       cfg.Interactive,
		CommitWait:        cfg.Sync.CommitWait,
	}, logger.With().Str("component", "sync").Logger())

	return &App{
		cfg:        cfg,
		loc:        loc,
		logger:     logger,
		repo:       repo,
		auth:       provider,
		syncUC:     syncUC,
		resetUC:    state.NewResetStateUseCase(repo, guard, cfg.Sync.CommitWait, logger.With().Str("component", "reset").Logger()),
		countersUC: state.NewRefreshCountersUseCase(provider, gmailClient, repo, logger.With().Str("component", "counters").Logger()),
		reportUC:   report.NewBuildReportUseCase(repo, advisor, loc, logger.With().Str("component", "report").Logger()),
	}, nil
}

func newTokenStore(cfg *config.Config) (auth.TokenStore, error) {
	if cfg.TokenStore == config.TokenStoreKeyring {
		store, err := auth.OpenKeyringTokenStore(filepath.Dir(cfg.TokenFile))
		if err != nil {
			return nil, fmt.Errorf("token store error: %w", err)
		}
		return store, nil
	}
	return auth.FileTokenStore{Path: cfg.TokenFile}, nil
}

func (a *App) RunSync(ctx context.Context) (email.SyncStats, error) {
	return a.syncUC.Execute(ctx)
}

func (a *App) Reset(ctx context.Context) error {
	return a.resetUC.Execute(ctx)
}

func (a *App) RefreshCounters(ctx context.Context) (email.Counters, error) {
	return a.countersUC.Execute(ctx)
}

func (a *App) Report(ctx context.Context) (report.Summary, error) {
	return a.reportUC.Execute(ctx)
}

func (a *App) Login(ctx context.Context) error {
	return a.auth.Login(ctx)
}

// Serve runs the reset schedule, the counters refresh and the sync queue
// until ctx is done. With a subscription configured, Pub/Sub triggers are
// fed into the queue.
func (a *App) Serve(ctx context.Context) error {
	pool := worker.NewPool(a.syncUC, 1, a.logger.With().Str("component", "worker").Logger())
	pool.Start(ctx)
	defer pool.Shutdown()

	resetRunner := scheduler.NewRunner("reset", scheduler.DailyAt{
		Hour:   a.cfg.Reset.Hour,
		Minute: a.cfg.Reset.Minute,
		Loc:    a.loc,
	}, a.resetUC.Execute, a.logger)
	if err := resetRunner.Start(ctx); err != nil {
		return err
	}
	defer resetRunner.Stop()

	if a.cfg.Counters.Interval > 0 {
		countersRunner := scheduler.NewRunner("counters", scheduler.Every{Interval: a.cfg.Counters.Interval}, func(ctx context.Context) error {
			_, err := a.countersUC.Execute(ctx)
			return err
		}, a.logger)
		if err := countersRunner.Start(ctx); err != nil {
			return err
		}
		defer countersRunner.Stop()
	}

	if a.cfg.Sync.OnStart {
		go func() {
			resp, err := pool.Submit(ctx)
			if err != nil {
				a.logger.Warn().Err(err).Msg("startup sync not run")
				return
			}
			a.logger.Info().Str("status", resp.Status).Msg("startup sync finished")
		}()
	}

	if a.cfg.PubSubEnabled() {
		subscriber, err := pubsub.NewSubscriber(ctx, a.cfg.GoogleCloudProject, a.cfg.SubscriptionID, a.logger.With().Str("component", "pubsub").Logger())
		if err != nil {
			return fmt.Errorf("pubsub subscriber error: %w", err)
		}
		defer func() {
			if err := subscriber.Close(); err != nil {
				a.logger.Warn().Err(err).Msg("failed to close subscriber")
			}
		}()

		handler := pubsubHandler.NewHandler(pool, a.logger.With().Str("component", "trigger").Logger())
		go func() {
			if err := subscriber.Listen(ctx, handler.HandleAction); err != nil && ctx.Err() == nil {
				a.logger.Error().Err(err).Msg("pubsub listener stopped")
			}
		}()
	}

	a.logger.Info().Msg("mailfootprint is running, press Ctrl+C to stop")
	<-ctx.Done()
	a.logger.Info().Msg("shutting down")
	return nil
}

func (a *App) Close() error {
	return a.repo.Close()
}
