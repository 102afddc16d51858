package drawserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/inventory"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/raffle"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/storage/postgres"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type tableListResponse struct {
	Tables []string `json:"tables"`
}

type tableItem struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	BaseWeight float64  `json:"baseWeight"`
	Groups     []string `json:"groups,omitempty"`
	Locked     bool     `json:"locked,omitempty"`
}

type tableInfoResponse struct {
	Name          string      `json:"name"`
	Normalization string      `json:"normalization"`
	Items         []tableItem `json:"items"`
}

type drawRequest struct {
	Count              int             `json:"count"`
	WithoutReplacement bool            `json:"withoutReplacement"`
	EnsureUnique       bool            `json:"ensureUnique"`
	Metadata           map[string]any  `json:"metadata"`
	PreviousDraws      []raffle.Result `json:"previousDraws"`
}

type drawResponse struct {
	Table   string          `json:"table"`
	Results []raffle.Result `json:"results"`
}

type weightsResponse struct {
	Table   string             `json:"table"`
	Weights map[string]float64 `json:"weights"`
}

type frequenciesResponse struct {
	Table       string         `json:"table"`
	Frequencies map[string]int `json:"frequencies"`
}

type snapshotRequest struct {
	Name string `json:"name"`
}

type snapshotResponse struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type snapshotListResponse struct {
	Kind  string   `json:"kind"`
	Names []string `json:"names"`
}

type inventoryListResponse struct {
	Inventories []string `json:"inventories"`
}

type inventoryCreateRequest struct {
	Name      string   `json:"name"`
	MaxWeight *float64 `json:"maxWeight"`
	MaxSlots  *int     `json:"maxSlots"`
}

type inventoryResponse struct {
	Name string `json:"name"`
}

type addItemRequest struct {
	ID       string         `json:"id"`
	Quantity int            `json:"quantity"`
	Metadata map[string]any `json:"metadata"`
	Force    bool           `json:"force"`
}

type addItemResponse struct {
	ID          string `json:"id"`
	Requested   int    `json:"requested"`
	Undelivered int    `json:"undelivered"`
}

type removeItemResponse struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	Complete bool   `json:"complete"`
}

type useItemRequest struct {
	Args []any `json:"args"`
}

type useItemResponse struct {
	Result any `json:"result"`
}

// statusFor maps domain sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, raffle.ErrNotFound),
		errors.Is(err, inventory.ErrNotFound),
		errors.Is(err, ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrOutOfSpace),
		errors.Is(err, inventory.ErrIllegalState):
		return http.StatusConflict
	case errors.Is(err, raffle.ErrInvalidArgument),
		errors.Is(err, inventory.ErrInvalidArgument),
		errors.Is(err, raffle.ErrSerialization),
		errors.Is(err, inventory.ErrSerialization):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response write failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeDomainError renders err with the status derived from its sentinel.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	s.writeError(w, statusFor(err), err)
}

// methodOnly enforces a single accepted method and reports whether the
// request may proceed.
func (s *Server) methodOnly(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	return false
}

// decodeBody decodes a JSON request body into dst. An empty body leaves
// dst at its zero value.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	if !s.methodOnly(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, tableListResponse{Tables: s.TableNames()})
}

func (s *Server) handleTableRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tables/")
	parts := strings.Split(path, "/")
	entry, err := s.table(parts[0])
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	switch {
	case len(parts) == 1:
		s.handleTableInfo(w, r, parts[0], entry)
	case len(parts) == 2 && parts[1] == "draw":
		s.handleDraw(w, r, parts[0], entry)
	case len(parts) == 2 && parts[1] == "weights":
		s.handleWeights(w, r, parts[0], entry)
	case len(parts) == 2 && parts[1] == "frequencies":
		s.handleFrequencies(w, r, parts[0], entry)
	case len(parts) == 2 && parts[1] == "export":
		s.handleTableExport(w, r, parts[0], entry)
	case len(parts) == 2 && parts[1] == "import":
		s.handleTableImport(w, r, parts[0], entry)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTableInfo(w http.ResponseWriter, r *http.Request, name string, entry *tableEntry) {
	if !s.methodOnly(w, r, http.MethodGet) {
		return
	}
	entry.mu.Lock()
	items := entry.engine.ListItems()
	norm := entry.engine.Normalization()
	entry.mu.Unlock()

	wire := make([]tableItem, 0, len(items))
	for _, it := range items {
		wire = append(wire, tableItem{
			ID:         it.ID,
			Label:      it.Label,
			BaseWeight: it.BaseWeight,
			Groups:     it.Groups,
			Locked:     it.Locked,
		})
	}
	sort.Slice(wire, func(i, j int) bool { return wire[i].ID < wire[j].ID })
	s.writeJSON(w, http.StatusOK, tableInfoResponse{
		Name:          name,
		Normalization: string(norm),
		Items:         wire,
	})
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request, name string, entry *tableEntry) {
	if !s.methodOnly(w, r, http.MethodPost) {
		return
	}
	var req drawRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	count := req.Count
	if count == 0 {
		count = 1
	}
	drawOpts := raffle.DrawOptions{
		PreviousDraws: req.PreviousDraws,
		Metadata:      req.Metadata,
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	results := []raffle.Result{}
	if count == 1 && !req.WithoutReplacement && !req.EnsureUnique {
		res, err := entry.engine.DrawOne(drawOpts)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		if res != nil {
			results = append(results, *res)
		}
	} else {
		many, err := entry.engine.DrawMany(count, raffle.ManyOptions{
			DrawOptions:        drawOpts,
			WithoutReplacement: req.WithoutReplacement,
			EnsureUnique:       req.EnsureUnique,
		})
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		results = append(results, many...)
	}
	s.logger.Debug("draw served",
		zap.String("table", name),
		zap.Int("requested", count),
		zap.Int("results", len(results)))
	s.writeJSON(w, http.StatusOK, drawResponse{Table: name, Results: results})
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request, name string, entry *tableEntry) {
	if !s.methodOnly(w, r, http.MethodGet) {
		return
	}
	entry.mu.Lock()
	weights, err := entry.engine.EffectiveWeights(&raffle.Context{})
	entry.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, weightsResponse{Table: name, Weights: weights})
}

func (s *Server) handleFrequencies(w http.ResponseWriter, r *http.Request, name string, entry *tableEntry) {
	if !s.methodOnly(w, r, http.MethodGet) {
		return
	}
	entry.mu.Lock()
	freq := entry.engine.Frequencies()
	entry.mu.Unlock()
	s.writeJSON(w, http.StatusOK, frequenciesResponse{Table: name, Frequencies: freq})
}

func (s *Server) handleTableExport(w http.ResponseWriter, r *http.Request, name string, entry *tableEntry) {
	if !s.methodOnly(w, r, http.MethodPost) {
		return
	}
	var req snapshotRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	snapName := req.Name
	if snapName == "" {
		snapName = name
	}

	entry.mu.Lock()
	data, err := entry.engine.ExportJSON()
	entry.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.store.Save(r.Context(), snapName, postgres.KindEngine, data); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Info("engine snapshot saved",
		zap.String("table", name),
		zap.String("snapshot", snapName))
	s.writeJSON(w, http.StatusOK, snapshotResponse{Name: snapName, Kind: postgres.KindEngine})
}

func (s *Server) handleTableImport(w http.ResponseWriter, r *http.Request, name string, entry *tableEntry) {
	if !s.methodOnly(w, r, http.MethodPost) {
		return
	}
	var req snapshotRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	snapName := req.Name
	if snapName == "" {
		snapName = name
	}

	data, err := s.store.Load(r.Context(), snapName, postgres.KindEngine)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	entry.mu.Lock()
	err = entry.engine.ImportJSON(data)
	entry.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Info("engine snapshot restored",
		zap.String("table", name),
		zap.String("snapshot", snapName))
	s.writeJSON(w, http.StatusOK, snapshotResponse{Name: snapName, Kind: postgres.KindEngine})
}

func (s *Server) handleSnapshotRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/snapshots/")
	parts := strings.Split(path, "/")
	kind := parts[0]
	if !postgres.ValidKind(kind) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown snapshot kind %q", kind))
		return
	}
	switch len(parts) {
	case 1:
		if !s.methodOnly(w, r, http.MethodGet) {
			return
		}
		names, err := s.store.List(r.Context(), kind)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		if names == nil {
			names = []string{}
		}
		s.writeJSON(w, http.StatusOK, snapshotListResponse{Kind: kind, Names: names})
	case 2:
		name := parts[1]
		switch r.Method {
		case http.MethodGet:
			data, err := s.store.Load(r.Context(), name, kind)
			if err != nil {
				s.writeDomainError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(data)
		case http.MethodDelete:
			if err := s.store.Delete(r.Context(), name, kind); err != nil {
				s.writeDomainError(w, err)
				return
			}
			s.logger.Info("snapshot deleted",
				zap.String("kind", kind),
				zap.String("snapshot", name))
			w.WriteHeader(http.StatusNoContent)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		}
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleInventories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.invMu.Lock()
		names := make([]string, 0, len(s.inventories))
		for name := range s.inventories {
			names = append(names, name)
		}
		s.invMu.Unlock()
		sort.Strings(names)
		s.writeJSON(w, http.StatusOK, inventoryListResponse{Inventories: names})
	case http.MethodPost:
		s.handleInventoryCreate(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

func (s *Server) handleInventoryCreate(w http.ResponseWriter, r *http.Request) {
	var req inventoryCreateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("inventory name is required"))
		return
	}
	inv, err := inventory.New(s.registry, inventory.Options{
		MaxWeight: req.MaxWeight,
		MaxSlots:  req.MaxSlots,
		Logger:    s.logger,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.invMu.Lock()
	if _, exists := s.inventories[req.Name]; exists {
		s.invMu.Unlock()
		s.writeError(w, http.StatusConflict, fmt.Errorf("inventory %q already exists", req.Name))
		return
	}
	s.inventories[req.Name] = &invEntry{inv: inv}
	s.invMu.Unlock()

	s.logger.Info("inventory created", zap.String("inventory", req.Name))
	s.writeJSON(w, http.StatusCreated, inventoryResponse{Name: req.Name})
}

func (s *Server) handleInventoryRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/inventories/")
	parts := strings.Split(path, "/")
	name := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			s.handleInventoryGet(w, r, name)
		case http.MethodDelete:
			s.handleInventoryDrop(w, r, name)
		default:
			s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		}
	case len(parts) == 2 && parts[1] == "items":
		s.handleInventoryAdd(w, r, name)
	case len(parts) == 3 && parts[1] == "items":
		s.handleInventoryRemove(w, r, name, parts[2])
	case len(parts) == 3 && parts[1] == "use":
		s.handleInventoryUse(w, r, name, parts[2])
	case len(parts) == 2 && parts[1] == "export":
		s.handleInventoryExport(w, r, name)
	case len(parts) == 2 && parts[1] == "import":
		s.handleInventoryImport(w, r, name)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleInventoryGet(w http.ResponseWriter, _ *http.Request, name string) {
	entry, err := s.inventoryEntry(name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	entry.mu.Lock()
	data, err := entry.inv.ToJSON()
	entry.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleInventoryDrop(w http.ResponseWriter, _ *http.Request, name string) {
	s.invMu.Lock()
	_, ok := s.inventories[name]
	if ok {
		delete(s.inventories, name)
	}
	s.invMu.Unlock()
	if !ok {
		s.writeDomainError(w, fmt.Errorf("drawserver: inventory %q: %w", name, inventory.ErrNotFound))
		return
	}
	s.logger.Info("inventory dropped", zap.String("inventory", name))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInventoryAdd(w http.ResponseWriter, r *http.Request, name string) {
	if !s.methodOnly(w, r, http.MethodPost) {
		return
	}
	entry, err := s.inventoryEntry(name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var req addItemRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var opts []inventory.AddOption
	if req.Metadata != nil {
		opts = append(opts, inventory.WithMetadata(req.Metadata))
	}
	if req.Force {
		opts = append(opts, inventory.WithForceSpace())
	}

	entry.mu.Lock()
	undelivered, err := entry.inv.AddItem(req.ID, req.Quantity, opts...)
	entry.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Debug("items added",
		zap.String("inventory", name),
		zap.String("item", req.ID),
		zap.Int("requested", req.Quantity),
		zap.Int("undelivered", undelivered))
	s.writeJSON(w, http.StatusOK, addItemResponse{
		ID:          req.ID,
		Requested:   req.Quantity,
		Undelivered: undelivered,
	})
}

func (s *Server) handleInventoryRemove(w http.ResponseWriter, r *http.Request, name, id string) {
	if !s.methodOnly(w, r, http.MethodDelete) {
		return
	}
	entry, err := s.inventoryEntry(name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	qty := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid quantity %q", raw))
			return
		}
		qty = n
	}

	entry.mu.Lock()
	complete, err := entry.inv.RemoveItem(id, qty)
	entry.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Debug("items removed",
		zap.String("inventory", name),
		zap.String("item", id),
		zap.Int("quantity", qty),
		zap.Bool("complete", complete))
	s.writeJSON(w, http.StatusOK, removeItemResponse{ID: id, Quantity: qty, Complete: complete})
}

func (s *Server) handleInventoryUse(w http.ResponseWriter, r *http.Request, name, id string) {
	if !s.methodOnly(w, r, http.MethodPost) {
		return
	}
	entry, err := s.inventoryEntry(name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var req useItemRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	entry.mu.Lock()
	result, err := entry.inv.UseItem(id, req.Args...)
	entry.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Debug("item used",
		zap.String("inventory", name),
		zap.String("item", id))
	s.writeJSON(w, http.StatusOK, useItemResponse{Result: result})
}

func (s *Server) handleInventoryExport(w http.ResponseWriter, r *http.Request, name string) {
	if !s.methodOnly(w, r, http.MethodPost) {
		return
	}
	entry, err := s.inventoryEntry(name)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	var req snapshotRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	snapName := req.Name
	if snapName == "" {
		snapName = name
	}

	entry.mu.Lock()
	data, err := entry.inv.ToJSON()
	entry.mu.Unlock()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if err := s.store.Save(r.Context(), snapName, postgres.KindInventory, data); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.logger.Info("inventory snapshot saved",
		zap.String("inventory", name),
		zap.String("snapshot", snapName))
	s.writeJSON(w, http.StatusOK, snapshotResponse{Name: snapName, Kind: postgres.KindInventory})
}

// handleInventoryImport restores a snapshot into the named inventory slot,
// creating the slot when it does not exist yet.
func (s *Server) handleInventoryImport(w http.ResponseWriter, r *http.Request, name string) {
	if !s.methodOnly(w, r, http.MethodPost) {
		return
	}
	var req snapshotRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	snapName := req.Name
	if snapName == "" {
		snapName = name
	}

	data, err := s.store.Load(r.Context(), snapName, postgres.KindInventory)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	restored, err := inventory.FromJSON(s.registry, data, inventory.LoadOptions{
		ValidateDefinitions: true,
		EnforceLimits:       true,
		Logger:              s.logger,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.invMu.Lock()
	entry, ok := s.inventories[name]
	if !ok {
		entry = &invEntry{}
		s.inventories[name] = entry
	}
	s.invMu.Unlock()
	entry.mu.Lock()
	entry.inv = restored
	entry.mu.Unlock()

	s.logger.Info("inventory snapshot restored",
		zap.String("inventory", name),
		zap.String("snapshot", snapName))
	s.writeJSON(w, http.StatusOK, snapshotResponse{Name: snapName, Kind: postgres.KindInventory})
}
