package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stakevault/config"
	"stakevault/core/events"
	"stakevault/core/state"
	"stakevault/native/custody"
	"stakevault/native/params"
	"stakevault/native/staking"
	"stakevault/observability/logging"
	"stakevault/observability/otel"
	"stakevault/rpc"
	"stakevault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("stakevaultd", cfg.Log.Env, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "stakevaultd",
			Environment: cfg.Log.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			logger.Error("Failed to initialise telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	mgr := state.NewManager(db)
	paramStore := params.NewStore(mgr)
	items := custody.NewItemRegistry(mgr, custody.ModuleAddress, custody.ModuleAddress)
	vault := custody.NewRewardVault(mgr, custody.ModuleAddress, custody.ModuleAddress)
	engine := staking.NewEngine(mgr, paramStore, items, vault)
	engine.SetEmitter(events.NewLogEmitter(logger))

	if _, initialized, err := paramStore.Controller(); err != nil {
		logger.Error("Failed to read ledger state", slog.Any("error", err))
		os.Exit(1)
	} else if !initialized {
		if err := applyGenesis(cfg, mgr, paramStore, items, vault); err != nil {
			logger.Error("Failed to apply genesis", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Applied genesis state", "genesisFile", cfg.GenesisFile)
	}

	server := rpc.NewServer(engine, logger, rpc.ServerConfig{
		AdminJWTSecret:     cfg.AdminJWTSecret,
		RateLimitPerMinute: int(cfg.RateLimitPerMinute),
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting JSON-RPC server", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("RPC server failed", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown failed", slog.Any("error", err))
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case config.BackendLevelDB:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	case config.BackendBolt:
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "ledger.db"))
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// applyGenesis seeds a fresh ledger: controller, parameters, the item set and
// the reward reserve. Everything is staged in the manager overlay and reaches
// the database in the single trailing Commit, so a failed genesis leaves the
// ledger uninitialized and the next boot retries from scratch.
func applyGenesis(cfg *config.Config, mgr *state.Manager, paramStore *params.Store, items *custody.ItemRegistry, vault *custody.RewardVault) error {
	if cfg.GenesisFile == "" {
		return fmt.Errorf("ledger is uninitialized and no GenesisFile is configured")
	}
	gen, err := config.LoadGenesis(cfg.GenesisFile)
	if err != nil {
		return err
	}

	controller := gen.ControllerAddress()
	rate, err := gen.RewardRate()
	if err != nil {
		return err
	}
	if err := paramStore.SetController(controller); err != nil {
		return err
	}
	if err := paramStore.SetRewardRate(rate); err != nil {
		return err
	}
	if err := paramStore.SetUnbondingPeriod(gen.UnbondingPeriod); err != nil {
		return err
	}
	if err := paramStore.SetClaimDelay(gen.RewardClaimDelay); err != nil {
		return err
	}

	for _, item := range gen.Items {
		owner := item.OwnerAddress()
		if err := items.Mint(custody.ModuleAddress, owner, item.ID); err != nil {
			return fmt.Errorf("mint item %d: %w", item.ID, err)
		}
	}

	reserve, err := gen.Reserve()
	if err != nil {
		return err
	}
	if reserve.Sign() > 0 {
		if err := vault.AddController(custody.ModuleAddress, controller); err != nil {
			return err
		}
		if err := vault.Mint(controller, custody.ModuleAddress, reserve); err != nil {
			return err
		}
		if err := vault.Fund(custody.ModuleAddress, reserve); err != nil {
			return err
		}
	}

	return mgr.Commit()
}
