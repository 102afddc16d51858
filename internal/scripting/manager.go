package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/inventory"
)

// ErrHookNotFound reports an item hook name with no Lua global behind it.
var ErrHookNotFound = errors.New("hook not found")

// Options configures a Manager.
type Options struct {
	// InstructionLimit is the per-call Lua opcode budget. <= 0 uses
	// DefaultInstructionLimit.
	InstructionLimit int
	// Logger receives warn output for failed hooks. Nil disables logging.
	Logger *zap.Logger
}

// Manager owns one sandboxed LState holding the item hook functions. The
// mutex serializes all VM access, so hooks may be called from concurrent
// inventory owners.
type Manager struct {
	mu     sync.Mutex
	state  *lua.LState
	limit  int
	logger *zap.Logger
}

// NewManager creates a Manager with an empty sandboxed VM.
//
// Postcondition: the VM holds no hooks until LoadDir or LoadString runs.
func NewManager(opts Options) *Manager {
	limit := opts.InstructionLimit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		state:  NewSandboxedState(),
		limit:  limit,
		logger: logger,
	}
}

// Close releases the VM. The Manager must not be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Close()
}

// LoadDir executes every *.lua file in dir in lexicographic order, each
// under its own instruction budget, and returns the number of files run.
//
// Precondition: dir is a readable directory.
func (m *Manager) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scripting: Manager.LoadDir: reading %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range files {
		if err := m.runLocked(func() error { return m.state.DoFile(path) }); err != nil {
			return 0, fmt.Errorf("scripting: Manager.LoadDir: %q: %w", path, err)
		}
	}
	return len(files), nil
}

// LoadString executes src in the VM under one instruction budget. name
// labels the chunk in error messages.
func (m *Manager) LoadString(name, src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.runLocked(func() error { return m.state.DoString(src) }); err != nil {
		return fmt.Errorf("scripting: Manager.LoadString: %q: %w", name, err)
	}
	return nil
}

// HasHook reports whether the VM defines a global with the given name.
func (m *Manager) HasHook(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetGlobal(name) != lua.LNil
}

// ItemHook adapts the named Lua global to the inventory's use callback
// contract. The hook receives a context table with the item's id, quantity,
// metadata, and a remove() function, followed by the converted call
// arguments; its first return value converts back to Go.
//
// Hook lookup is deferred to call time, so definitions may bind hooks
// before the scripts are loaded. A call to a hook that is still undefined
// returns ErrHookNotFound; Lua runtime errors are logged at Warn and
// returned to the caller.
func (m *Manager) ItemHook(hook string) inventory.UseFunc {
	return func(ctx inventory.UseContext, args ...any) (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		L := m.state
		fn := L.GetGlobal(hook)
		if fn == lua.LNil {
			return nil, fmt.Errorf("scripting: item hook %q: %w", hook, ErrHookNotFound)
		}

		callArgs := make([]lua.LValue, 0, len(args)+1)
		callArgs = append(callArgs, useContextTable(L, ctx))
		for _, a := range args {
			callArgs = append(callArgs, ToLua(L, a))
		}

		var ret lua.LValue
		err := m.runLocked(func() error {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, callArgs...); err != nil {
				return err
			}
			ret = L.Get(-1)
			L.Pop(1)
			return nil
		})
		if err != nil {
			m.logger.Warn("item hook failed",
				zap.String("hook", hook),
				zap.String("item", ctx.Item.ID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("scripting: item hook %q: %w", hook, err)
		}
		return FromLua(ret), nil
	}
}

// BindHooks walks the registry and binds every definition carrying a use
// hook name to the matching Lua function via ItemHook. It returns the
// number of definitions bound.
func (m *Manager) BindHooks(reg *inventory.Registry) (int, error) {
	bound := 0
	for _, id := range reg.IDs() {
		def, ok := reg.Definition(id)
		if !ok || def.UseHook == "" {
			continue
		}
		if err := reg.BindUse(id, m.ItemHook(def.UseHook)); err != nil {
			return bound, fmt.Errorf("scripting: Manager.BindHooks: %q: %w", id, err)
		}
		bound++
	}
	return bound, nil
}

// runLocked executes fn with a fresh instruction budget armed on the VM.
//
// Precondition: m.mu is held.
func (m *Manager) runLocked(fn func() error) error {
	ctx, cancel := newCountingContext(m.limit)
	defer cancel()
	m.state.SetContext(ctx)
	return fn()
}
