package scripting_test

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/inventory"
	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/scripting"
)

func newTestManager(t testing.TB, opts scripting.Options) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	opts.Logger = zap.New(core)
	mgr := scripting.NewManager(opts)
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0o644))
	return dir
}

// newPotionInventory builds an inventory whose only definition, "potion",
// is bound to the named hook on mgr.
func newPotionInventory(t testing.TB, mgr *scripting.Manager, hook string, qty int) *inventory.Inventory {
	t.Helper()
	reg := inventory.NewRegistry()
	require.NoError(t, reg.Define(inventory.Definition{
		ID:       "potion",
		Weight:   0.5,
		CanStack: true,
		MaxStack: 8,
		UseHook:  hook,
	}))
	require.NoError(t, reg.BindUse("potion", mgr.ItemHook(hook)))
	inv, err := inventory.New(reg, inventory.Options{})
	require.NoError(t, err)
	if qty > 0 {
		_, err := inv.AddItem("potion", qty)
		require.NoError(t, err)
	}
	return inv
}

func TestNewManager_ZeroOptions(t *testing.T) {
	mgr := scripting.NewManager(scripting.Options{})
	defer mgr.Close()
	assert.False(t, mgr.HasHook("anything"))
	require.NoError(t, mgr.LoadString("inline", `function anything(ctx) end`))
	assert.True(t, mgr.HasHook("anything"))
}

func TestManager_LoadDir_RunsFilesInOrder(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`
		counter = 1
		function get_counter(ctx) return counter end
	`), 0o644))
	// Errors unless a.lua ran first.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`counter = counter + 1`), 0o644))

	n, err := mgr.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	inv := newPotionInventory(t, mgr, "get_counter", 1)
	ret, err := inv.UseItem("potion")
	require.NoError(t, err)
	assert.Equal(t, float64(2), ret)
}

func TestManager_LoadDir_SkipsNonLuaEntries(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hooks.lua"), []byte(`function noop(ctx) end`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not lua`), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drafts", "extra.lua"), []byte(`function extra(ctx) end`), 0o644))

	n, err := mgr.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, mgr.HasHook("noop"))
	assert.False(t, mgr.HasHook("extra"))
}

func TestManager_LoadDir_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	_, err := mgr.LoadDir(dir)
	assert.Error(t, err)
}

func TestManager_LoadDir_MissingDirectory(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	n, err := mgr.LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestManager_LoadString_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	assert.Error(t, mgr.LoadString("bad", `return return`))
}

func TestManager_ItemHook_PassesContextAndArgs(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	require.NoError(t, mgr.LoadString("hooks", `
		function drink(ctx, who, n)
			return ctx.item.id .. ":" .. ctx.item.quantity .. ":" .. ctx.item.metadata.school .. ":" .. who .. ":" .. n
		end
	`))

	inv := newPotionInventory(t, mgr, "drink", 0)
	_, err := inv.AddItem("potion", 3, inventory.WithMetadata(map[string]any{"school": "restoration"}))
	require.NoError(t, err)

	ret, err := inv.UseItem("potion", "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, "potion:3:restoration:alice:2", ret)
}

func TestManager_ItemHook_RemoveConsumesUnits(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	require.NoError(t, mgr.LoadString("hooks", `
		function drink(ctx)
			return ctx.remove()
		end
	`))

	inv := newPotionInventory(t, mgr, "drink", 3)
	for want := 2; want >= 0; want-- {
		ret, err := inv.UseItem("potion")
		require.NoError(t, err)
		assert.Equal(t, true, ret)
		assert.Equal(t, want, inv.CountOf("potion"))
	}

	_, err := inv.UseItem("potion")
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestManager_ItemHook_RemoveReportsSpentStack(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	require.NoError(t, mgr.LoadString("hooks", `
		function gulp(ctx)
			local first = ctx.remove()
			local second = ctx.remove()
			return {first, second}
		end
	`))

	inv := newPotionInventory(t, mgr, "gulp", 1)
	ret, err := inv.UseItem("potion")
	require.NoError(t, err)
	assert.Equal(t, []any{true, false}, ret)
	assert.Zero(t, inv.CountOf("potion"))
}

func TestManager_ItemHook_MissingHook(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	inv := newPotionInventory(t, mgr, "undefined_hook", 1)
	_, err := inv.UseItem("potion")
	assert.ErrorIs(t, err, scripting.ErrHookNotFound)
}

func TestManager_ItemHook_LateScriptLoad(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	inv := newPotionInventory(t, mgr, "sip", 1)

	_, err := inv.UseItem("potion")
	require.ErrorIs(t, err, scripting.ErrHookNotFound)

	// Hook lookup happens at call time, so loading after binding works.
	require.NoError(t, mgr.LoadString("late", `function sip(ctx) return "ahh" end`))
	ret, err := inv.UseItem("potion")
	require.NoError(t, err)
	assert.Equal(t, "ahh", ret)
}

func TestManager_ItemHook_RuntimeError_WarnsAndSurfaces(t *testing.T) {
	mgr, logs := newTestManager(t, scripting.Options{})
	require.NoError(t, mgr.LoadString("hooks", `
		function boom(ctx)
			error("potion exploded")
		end
	`))

	inv := newPotionInventory(t, mgr, "boom", 1)
	_, err := inv.UseItem("potion")
	require.Error(t, err)
	assert.ErrorContains(t, err, "potion exploded")

	warns := logs.FilterMessage("item hook failed")
	require.Equal(t, 1, warns.Len())
	entry := warns.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	assert.Equal(t, "boom", entry.ContextMap()["hook"])
	assert.Equal(t, "potion", entry.ContextMap()["item"])
}

func TestManager_ItemHook_InstructionLimitStopsRunawayHook(t *testing.T) {
	mgr, logs := newTestManager(t, scripting.Options{InstructionLimit: 200})
	require.NoError(t, mgr.LoadString("hooks", `
		function spin(ctx) while true do end end
		function quick(ctx) return "ok" end
	`))

	spinInv := newPotionInventory(t, mgr, "spin", 1)
	_, err := spinInv.UseItem("potion")
	require.Error(t, err)
	assert.GreaterOrEqual(t, logs.FilterMessage("item hook failed").Len(), 1)

	// A fresh budget is armed per call, so the VM stays usable.
	quickInv := newPotionInventory(t, mgr, "quick", 1)
	ret, err := quickInv.UseItem("potion")
	require.NoError(t, err)
	assert.Equal(t, "ok", ret)
}

func TestManager_BindHooks_BindsDefinitionsWithHooks(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	require.NoError(t, mgr.LoadString("hooks", `
		function drink(ctx) return "drank " .. ctx.item.id end
		function read_scroll(ctx) return "read" end
	`))

	reg := inventory.NewRegistry()
	require.NoError(t, reg.Define(inventory.Definition{ID: "potion", Weight: 0.5, CanStack: true, MaxStack: 8, UseHook: "drink"}))
	require.NoError(t, reg.Define(inventory.Definition{ID: "scroll", Weight: 0.1, CanStack: true, MaxStack: 4, UseHook: "read_scroll"}))
	require.NoError(t, reg.Define(inventory.Definition{ID: "rock", Weight: 2, CanStack: false, MaxStack: 1}))

	n, err := mgr.BindHooks(reg)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	inv, err := inventory.New(reg, inventory.Options{})
	require.NoError(t, err)
	_, err = inv.AddItem("potion", 1)
	require.NoError(t, err)

	ret, err := inv.UseItem("potion")
	require.NoError(t, err)
	assert.Equal(t, "drank potion", ret)
}

func TestManager_ConcurrentHookCalls(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	require.NoError(t, mgr.LoadString("hooks", `function ident(ctx) return ctx.item.id end`))

	const goroutines = 8
	const callsEach = 10
	invs := make([]*inventory.Inventory, goroutines)
	for i := range invs {
		invs[i] = newPotionInventory(t, mgr, "ident", 1)
	}

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		inv := invs[i]
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				ret, err := inv.UseItem("potion")
				assert.NoError(t, err)
				assert.Equal(t, "potion", ret)
			}
		}()
	}
	wg.Wait()
}

func TestProperty_HookEchoesMetadata(t *testing.T) {
	mgr, _ := newTestManager(t, scripting.Options{})
	require.NoError(t, mgr.LoadString("hooks", `function echo(ctx) return ctx.item.metadata end`))

	value := rapid.OneOf(
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		rapid.Map(rapid.Float64Range(-1e6, 1e6), func(f float64) any { return f }),
		rapid.Map(rapid.StringMatching(`[a-z]{0,8}`), func(s string) any { return s }),
	)

	rapid.Check(t, func(rt *rapid.T) {
		meta := rapid.MapOfN(rapid.StringMatching(`[a-z]{1,8}`), value, 1, 5).Draw(rt, "meta")

		inv := newPotionInventory(t, mgr, "echo", 0)
		if _, err := inv.AddItem("potion", 1, inventory.WithMetadata(meta)); err != nil {
			rt.Fatalf("add: %v", err)
		}
		ret, err := inv.UseItem("potion")
		if err != nil {
			rt.Fatalf("use: %v", err)
		}
		if !reflect.DeepEqual(ret, meta) {
			rt.Fatalf("metadata did not round trip: got %#v want %#v", ret, meta)
		}
	})
}
