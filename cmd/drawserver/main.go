// Package main provides the draw server binary that serves draw tables,
// demo inventories, and snapshot persistence over an HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/config"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/drawserver"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/inventory"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/raffle"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/observability"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/scripting"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/server"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	itemsDir := flag.String("items-dir", "", "override for the item definitions directory")
	tablesDir := flag.String("tables-dir", "", "override for the draw table directory")
	scriptsDir := flag.String("scripts-dir", "", "override for the Lua scripts directory")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *itemsDir != "" {
		cfg.Content.ItemsDir = *itemsDir
	}
	if *tablesDir != "" {
		cfg.Content.TablesDir = *tablesDir
	}
	if *scriptsDir != "" {
		cfg.Content.ScriptsDir = *scriptsDir
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting draw server",
		zap.String("http_addr", cfg.Server.Addr()),
	)

	// Load item definitions.
	invRegistry := inventory.NewRegistry()
	if cfg.Content.ItemsDir != "" {
		itemStart := time.Now()
		count, err := invRegistry.LoadDefinitions(cfg.Content.ItemsDir)
		if err != nil {
			logger.Fatal("loading item definitions", zap.Error(err))
		}
		logger.Info("item definitions loaded",
			zap.Int("count", count),
			zap.Duration("elapsed", time.Since(itemStart)),
		)
	}

	// Initialise scripting and bind the authored item use hooks.
	var scriptMgr *scripting.Manager
	if cfg.Content.ScriptsDir != "" {
		if info, statErr := os.Stat(cfg.Content.ScriptsDir); statErr == nil && info.IsDir() {
			scriptStart := time.Now()
			scriptMgr = scripting.NewManager(scripting.Options{
				Logger: observability.Component(logger, "scripting"),
			})
			defer scriptMgr.Close()

			files, err := scriptMgr.LoadDir(cfg.Content.ScriptsDir)
			if err != nil {
				logger.Fatal("loading scripts", zap.Error(err))
			}
			hooks, err := scriptMgr.BindHooks(invRegistry)
			if err != nil {
				logger.Fatal("binding item hooks", zap.Error(err))
			}
			logger.Info("scripting engine initialized",
				zap.Int("files", files),
				zap.Int("hooks", hooks),
				zap.Duration("elapsed", time.Since(scriptStart)),
			)
		} else {
			logger.Warn("scripts dir not found, scripting disabled",
				zap.String("dir", cfg.Content.ScriptsDir))
		}
	}

	// Load draw tables.
	tables := make(map[string]*raffle.TableFile)
	if cfg.Content.TablesDir != "" {
		tableStart := time.Now()
		tables, err = raffle.LoadTables(cfg.Content.TablesDir)
		if err != nil {
			logger.Fatal("loading draw tables", zap.Error(err))
		}
		logger.Info("draw tables loaded",
			zap.Int("count", len(tables)),
			zap.Duration("elapsed", time.Since(tableStart)),
		)
	}

	// Connect to PostgreSQL for snapshot persistence when enabled,
	// otherwise keep snapshots in memory.
	var store drawserver.SnapshotStore = drawserver.NewMemoryStore()
	var pool *postgres.Pool
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err = postgres.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		store = drawserver.NewRepositoryStore(postgres.NewSnapshotRepository(pool.DB()))
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	srv, err := drawserver.New(drawserver.Options{
		Tables:   tables,
		Registry: invRegistry,
		Store:    store,
		Engine:   cfg.Engine,
		Logger:   observability.Component(logger, "drawserver"),
	})
	if err != nil {
		logger.Fatal("building draw server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Assemble the process group. The stop deadline comes from the
	// server config and bounds both the HTTP drain and the pool close.
	group := server.NewGroup(logger, cfg.Server.ShutdownTimeout)

	group.Add("http", &server.Funcs{
		OnStart: func() error {
			lis, err := net.Listen("tcp", httpServer.Addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", httpServer.Addr, err)
			}
			logger.Info("HTTP server listening",
				zap.String("addr", lis.Addr().String()),
			)
			if err := httpServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			return httpServer.Shutdown(stopCtx)
		},
	})

	if pool != nil {
		probeCtx, probeCancel := context.WithCancel(ctx)
		group.Add("postgres", &server.Funcs{
			OnStart: func() error {
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-probeCtx.Done():
						return nil
					case <-ticker.C:
						if err := pool.Health(probeCtx, 5*time.Second); err != nil {
							logger.Warn("database health check failed", zap.Error(err))
							continue
						}
						stat := pool.Stat()
						logger.Debug("database pool healthy",
							zap.Int32("total_conns", stat.TotalConns()),
							zap.Int32("idle_conns", stat.IdleConns()),
						)
					}
				}
			},
			OnStop: func(context.Context) error {
				probeCancel()
				pool.Close()
				return nil
			},
		})
	}

	logger.Info("draw server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.Server.Addr()),
		zap.Int("tables", len(tables)),
	)

	if err := group.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
