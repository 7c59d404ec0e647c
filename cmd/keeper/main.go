// Package main provides the keeper binary: the game state backend served
// as an MCP tool surface over stdio or streamable HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/keeper/internal/config"
	"github.com/cory-johannsen/keeper/internal/event"
	"github.com/cory-johannsen/keeper/internal/game/check"
	"github.com/cory-johannsen/keeper/internal/game/combat"
	"github.com/cory-johannsen/keeper/internal/game/dice"
	"github.com/cory-johannsen/keeper/internal/game/effect"
	"github.com/cory-johannsen/keeper/internal/game/resource"
	"github.com/cory-johannsen/keeper/internal/game/ruleset"
	"github.com/cory-johannsen/keeper/internal/game/table"
	"github.com/cory-johannsen/keeper/internal/gameserver"
	"github.com/cory-johannsen/keeper/internal/observability"
	"github.com/cory-johannsen/keeper/internal/server"
	"github.com/cory-johannsen/keeper/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	rulesetsDir := flag.String("rulesets", "", "ruleset YAML directory; overrides game.rulesets_dir when set")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *rulesetsDir != "" {
		cfg.Game.RulesetsDir = *rulesetsDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	cryptoSrc := dice.NewCryptoSource()
	diceRoller := dice.NewLoggedRoller(cryptoSrc, logger)

	// Connect to PostgreSQL for game state persistence.
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	db := pool.DB()
	combatRepo := postgres.NewCombatRepository(db)
	effectRepo := postgres.NewEffectRepository(db)
	resourceRepo := postgres.NewResourceRepository(db)
	tableRepo := postgres.NewTableRepository(db)
	charRepo := postgres.NewCharacterRepository(db)
	gameRepo := postgres.NewGameRepository(db)
	rulesetRepo := postgres.NewRulesetRepository(db)

	// Seed rulesets from YAML when a directory is configured. Existing rows
	// for the same game are overwritten.
	if cfg.Game.RulesetsDir != "" {
		rulesets, err := ruleset.LoadDirectory(cfg.Game.RulesetsDir)
		if err != nil {
			logger.Fatal("loading ruleset definitions",
				zap.String("dir", cfg.Game.RulesetsDir), zap.Error(err))
		}
		for _, rs := range rulesets {
			if err := rulesetRepo.PutRuleset(ctx, rs); err != nil {
				logger.Fatal("seeding ruleset",
					zap.String("game_id", rs.GameID), zap.Error(err))
			}
		}
		logger.Info("rulesets seeded", zap.Int("count", len(rulesets)))
	}

	bus := event.NewBus(logger)

	sequencer := combat.NewSequencer(combatRepo, charRepo, gameRepo, diceRoller, bus, logger)
	tracker := effect.NewTracker(effectRepo, bus, logger)
	evaluator := check.NewEvaluator(rulesetRepo, charRepo, diceRoller, logger)
	resolver := table.NewResolver(tableRepo, diceRoller, logger)
	ledger := resource.NewLedger(resourceRepo, bus, logger)

	srv := gameserver.New(cfg.Server.Name, gameserver.Deps{
		Sequencer: sequencer,
		Tracker:   tracker,
		Evaluator: evaluator,
		Resolver:  resolver,
		Ledger:    ledger,
		Roller:    diceRoller,
		Logger:    logger,
	})

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("mcp", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			switch cfg.Server.Transport {
			case "http":
				return srv.ServeHTTP(ctx, cfg.Server.HTTPAddr)
			default:
				return srv.ServeStdio(ctx)
			}
		},
	})

	lifecycle.Add("postgres", &server.FuncService{
		StartFn: func(ctx context.Context) error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(30 * time.Second):
				}
				if err := pool.Health(ctx, 5*time.Second); err != nil {
					logger.Warn("database health check failed", zap.Error(err))
				}
			}
		},
		StopFn: func() {
			pool.Close()
		},
	})

	logger.Info("keeper initialized",
		zap.String("transport", cfg.Server.Transport),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
