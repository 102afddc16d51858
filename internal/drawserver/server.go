// Package drawserver exposes draw tables, demo inventories, and snapshot
// persistence over an HTTP/JSON API.
//
// Each loaded table is served by its own raffle engine behind a mutex. The
// engines and inventories are single-threaded by design, so the server
// serializes access per entry rather than per request.
package drawserver

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/config"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/inventory"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/raffle"
)

// Options configures a Server.
type Options struct {
	// Tables holds the validated draw tables to serve, keyed by name.
	Tables map[string]*raffle.TableFile
	// Registry resolves item definitions for the demo inventories. Nil
	// means an empty registry.
	Registry *inventory.Registry
	// Store persists snapshots. Nil means a fresh in-memory store.
	Store SnapshotStore
	// Engine supplies the default normalization, random source, and
	// listener cap for each built engine.
	Engine config.EngineConfig
	// Logger receives request and lifecycle output. Nil disables logging.
	Logger *zap.Logger
}

// tableEntry pairs an engine with the mutex that serializes access to it.
type tableEntry struct {
	mu     sync.Mutex
	engine *raffle.Engine
}

// invEntry pairs a demo inventory with the mutex that serializes access to
// it. Import swaps inv in place so concurrent holders keep a valid entry.
type invEntry struct {
	mu  sync.Mutex
	inv *inventory.Inventory
}

// Server serves draw tables and demo inventories over HTTP.
type Server struct {
	logger   *zap.Logger
	store    SnapshotStore
	registry *inventory.Registry
	tables   map[string]*tableEntry

	invMu       sync.Mutex
	inventories map[string]*invEntry
}

// New builds the engines for every table in opts and returns a server
// ready to produce its Handler.
func New(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	registry := opts.Registry
	if registry == nil {
		registry = inventory.NewRegistry()
	}

	engineOpts, err := engineOptions(opts.Engine, logger)
	if err != nil {
		return nil, fmt.Errorf("drawserver: New: %w", err)
	}

	s := &Server{
		logger:      logger,
		store:       store,
		registry:    registry,
		tables:      make(map[string]*tableEntry, len(opts.Tables)),
		inventories: make(map[string]*invEntry),
	}
	for name, t := range opts.Tables {
		engine, err := t.Build(engineOpts)
		if err != nil {
			return nil, fmt.Errorf("drawserver: New: table %q: %w", name, err)
		}
		s.tables[name] = &tableEntry{engine: engine}
		logger.Info("draw table ready",
			zap.String("table", name),
			zap.Int("items", engine.Len()))
	}
	return s, nil
}

// engineOptions translates the engine config section into raffle options.
// A "seeded" source pins every table to the same reproducible stream.
func engineOptions(cfg config.EngineConfig, logger *zap.Logger) (raffle.Options, error) {
	opts := raffle.Options{
		Logger:       logger,
		MaxListeners: cfg.MaxListeners,
	}
	if cfg.Normalization != "" {
		norm, err := raffle.ParseNormalization(cfg.Normalization)
		if err != nil {
			return raffle.Options{}, err
		}
		opts.Normalization = norm
	}
	if cfg.RNG == "seeded" {
		seed := cfg.Seed
		opts.Seed = &seed
	}
	return opts, nil
}

// Handler returns the HTTP handler serving the draw API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/tables", s.handleTables)
	mux.HandleFunc("/tables/", s.handleTableRoutes)
	mux.HandleFunc("/inventories", s.handleInventories)
	mux.HandleFunc("/inventories/", s.handleInventoryRoutes)
	mux.HandleFunc("/snapshots/", s.handleSnapshotRoutes)
	return mux
}

// TableNames returns the served table names in ascending order.
func (s *Server) TableNames() []string {
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// table resolves a served table by name.
func (s *Server) table(name string) (*tableEntry, error) {
	entry, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("drawserver: table %q: %w", name, raffle.ErrNotFound)
	}
	return entry, nil
}

// inventoryEntry resolves a demo inventory by name.
func (s *Server) inventoryEntry(name string) (*invEntry, error) {
	s.invMu.Lock()
	defer s.invMu.Unlock()
	entry, ok := s.inventories[name]
	if !ok {
		return nil, fmt.Errorf("drawserver: inventory %q: %w", name, inventory.ErrNotFound)
	}
	return entry, nil
}
