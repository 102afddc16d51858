package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/inventory"
)

// useContextTable builds the table an item hook receives as its first
// argument:
//
//	ctx.item.id        string
//	ctx.item.quantity  number
//	ctx.item.metadata  table, empty when the stack carries none
//	ctx.remove()       takes one unit from the resolved stack, returns
//	                   false once the stack is spent
//
// Precondition: L must be from NewSandboxedState.
func useContextTable(L *lua.LState, ctx inventory.UseContext) *lua.LTable {
	item := L.NewTable()
	item.RawSetString("id", lua.LString(ctx.Item.ID))
	item.RawSetString("quantity", lua.LNumber(ctx.Item.Quantity))
	item.RawSetString("metadata", ToLua(L, ctx.Metadata))

	tbl := L.NewTable()
	tbl.RawSetString("item", item)
	tbl.RawSetString("remove", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(ctx.Remove()))
		return 1
	}))
	return tbl
}
