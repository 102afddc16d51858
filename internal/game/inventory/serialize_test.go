package inventory_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/JasminDreasond/Tiny-Essentials-sub002/internal/game/inventory"
)

func strPtr(s string) *string { return &s }

func stackSnap(id string, qty int) *inventory.StackSnapshot {
	return &inventory.StackSnapshot{ID: id, Quantity: qty}
}

func baseSnapshot() inventory.Snapshot {
	return inventory.Snapshot{
		Schema:       inventory.SchemaName,
		Version:      inventory.SchemaVersion,
		Items:        []*inventory.StackSnapshot{stackSnap("coin", 3)},
		SpecialSlots: map[string]inventory.SpecialSnapshot{},
	}
}

func TestToObject_FlatShape(t *testing.T) {
	reg := makeRegistry(t,
		stackableDef("coin", 0.5, 10),
		inventory.Definition{ID: "longsword", Type: "weapon", Weight: 3, MaxStack: 1},
	)
	inv := makeInventory(t, reg, inventory.Options{
		MaxWeight: floatPtr(20),
		MaxSlots:  intPtr(4),
		SpecialSlots: []inventory.SpecialSlotConfig{
			{ID: "hand", Type: "weapon"},
			{ID: "trinket"},
		},
	})
	inv.AddItem("coin", 3, inventory.WithMetadata(map[string]any{"mint": "north"}))
	inv.AddItem("longsword", 1)
	if err := inv.Equip("hand", "longsword"); err != nil {
		t.Fatalf("Equip: %v", err)
	}

	snap := inv.ToObject()
	if snap.Schema != "TinyInventory" || snap.Version != 1 {
		t.Errorf("got schema %q v%d", snap.Schema, snap.Version)
	}
	if snap.UseSections || snap.Sections != nil {
		t.Errorf("flat snapshot must not carry sections: %+v", snap.Sections)
	}
	if *snap.MaxWeight != 20 || *snap.MaxSlots != 4 {
		t.Errorf("got limits %v / %v", snap.MaxWeight, snap.MaxSlots)
	}
	if len(snap.Items) != 2 {
		t.Fatalf("got %d item slots, want 2", len(snap.Items))
	}
	if snap.Items[0].ID != "coin" || snap.Items[0].Quantity != 3 {
		t.Errorf("got items[0] %+v", snap.Items[0])
	}
	if snap.Items[0].Metadata["mint"] != "north" {
		t.Errorf("got metadata %v", snap.Items[0].Metadata)
	}
	if snap.Items[1] != nil {
		t.Errorf("equipping emptied the slot, want a hole, got %+v", snap.Items[1])
	}

	hand := snap.SpecialSlots["hand"]
	if hand.Type == nil || *hand.Type != "weapon" {
		t.Errorf("got hand type %v", hand.Type)
	}
	if hand.Item == nil || hand.Item.ID != "longsword" || hand.Item.Quantity != 1 {
		t.Errorf("got hand item %+v", hand.Item)
	}
	trinket := snap.SpecialSlots["trinket"]
	if trinket.Type != nil || trinket.Item != nil {
		t.Errorf("got trinket %+v, want untyped and empty", trinket)
	}
}

func TestToJSON_WireShape(t *testing.T) {
	reg := makeRegistry(t, stackableDef("coin", 0.5, 10))
	inv := makeInventory(t, reg, inventory.Options{})
	inv.AddItem("coin", 2)

	data, err := inv.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if wire["__schema"] != "TinyInventory" {
		t.Errorf("got __schema %v", wire["__schema"])
	}
	if wire["version"] != float64(1) {
		t.Errorf("got version %v", wire["version"])
	}
	if wire["sections"] != nil {
		t.Errorf("flat wire form must carry null sections, got %v", wire["sections"])
	}
	if wire["maxWeight"] != nil || wire["maxSlots"] != nil {
		t.Errorf("unset limits must be null, got %v / %v", wire["maxWeight"], wire["maxSlots"])
	}
	if _, ok := wire["items"].([]any); !ok {
		t.Errorf("got items %v", wire["items"])
	}
}

func TestRoundTrip_Flat(t *testing.T) {
	reg := makeRegistry(t,
		stackableDef("coin", 0.5, 10),
		inventory.Definition{ID: "helm", Type: "helmet", Weight: 2, MaxStack: 1},
	)
	inv := makeInventory(t, reg, inventory.Options{
		MaxWeight:    floatPtr(30),
		SpecialSlots: []inventory.SpecialSlotConfig{{ID: "head", Type: "helmet"}},
	})
	inv.AddItem("coin", 7, inventory.WithMetadata(map[string]any{"mint": "north", "year": float64(411)}))
	inv.AddItem("helm", 1)
	if err := inv.Equip("head", "helm"); err != nil {
		t.Fatalf("Equip: %v", err)
	}

	data, err := inv.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	loaded, err := inventory.FromJSON(reg, data, inventory.LoadOptions{ValidateDefinitions: true})
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if !reflect.DeepEqual(loaded.ToObject(), inv.ToObject()) {
		t.Errorf("round trip drifted:\n got %+v\nwant %+v", loaded.ToObject(), inv.ToObject())
	}
	if got := loaded.CountOf("coin"); got != 7 {
		t.Errorf("got %d coins, want 7", got)
	}
	if got := loaded.CalculateWeight(); got != 7*0.5+2 {
		t.Errorf("got weight %f", got)
	}
}

func TestRoundTrip_SectionedKeepsHoles(t *testing.T) {
	reg := makeRegistry(t, plainDef("gem", 1))
	inv := makeInventory(t, reg, inventory.Options{
		Sections: []inventory.SectionConfig{
			{ID: "belt", Slots: 3},
			{ID: "pack", Slots: 2},
		},
	})
	if err := inv.SetSlot("belt", 2, &inventory.Stack{ID: "gem", Quantity: 1}); err != nil {
		t.Fatalf("SetSlot: %v", err)
	}

	data, err := inv.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	loaded, err := inventory.FromJSON(reg, data, inventory.LoadOptions{})
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	stacks, err := loaded.Stacks("belt")
	if err != nil {
		t.Fatalf("Stacks: %v", err)
	}
	if len(stacks) != 3 || stacks[0] != nil || stacks[1] != nil {
		t.Errorf("holes lost: %+v", stacks)
	}
	if stacks[2] == nil || stacks[2].ID != "gem" {
		t.Errorf("got slot 2 %+v, want gem", stacks[2])
	}
	sections := loaded.Sections()
	if len(sections) != 2 || sections[0] != "belt" || sections[1] != "pack" {
		t.Errorf("got sections %v", sections)
	}
}

func TestFromObject_RejectsWrongSchema(t *testing.T) {
	reg := makeRegistry(t)

	snap := baseSnapshot()
	snap.Schema = "TinyRaffle"
	if _, err := inventory.FromObject(reg, snap, inventory.LoadOptions{}); !errors.Is(err, inventory.ErrSerialization) {
		t.Errorf("wrong schema: got %v, want ErrSerialization", err)
	}

	snap = baseSnapshot()
	snap.Version = 2
	if _, err := inventory.FromObject(reg, snap, inventory.LoadOptions{}); !errors.Is(err, inventory.ErrSerialization) {
		t.Errorf("wrong version: got %v, want ErrSerialization", err)
	}
}

func TestFromObject_RejectsMalformedSnapshots(t *testing.T) {
	reg := makeRegistry(t)
	cases := []struct {
		name   string
		mutate func(*inventory.Snapshot)
	}{
		{"empty stack id", func(s *inventory.Snapshot) {
			s.Items = []*inventory.StackSnapshot{stackSnap("", 1)}
		}},
		{"zero quantity", func(s *inventory.Snapshot) {
			s.Items = []*inventory.StackSnapshot{stackSnap("coin", 0)}
		}},
		{"negative max weight", func(s *inventory.Snapshot) {
			s.MaxWeight = floatPtr(-2)
		}},
		{"negative max slots", func(s *inventory.Snapshot) {
			s.MaxSlots = intPtr(-1)
		}},
		{"special slot stack size", func(s *inventory.Snapshot) {
			s.SpecialSlots["hand"] = inventory.SpecialSnapshot{Item: stackSnap("coin", 2)}
		}},
		{"empty special slot id", func(s *inventory.Snapshot) {
			s.SpecialSlots[""] = inventory.SpecialSnapshot{}
		}},
		{"section over capacity", func(s *inventory.Snapshot) {
			s.Items = nil
			s.UseSections = true
			s.Sections = []inventory.SectionSnapshot{
				{ID: "belt", Slots: 1, Items: []*inventory.StackSnapshot{stackSnap("coin", 1), stackSnap("coin", 1)}},
			}
		}},
		{"duplicate section", func(s *inventory.Snapshot) {
			s.Items = nil
			s.UseSections = true
			s.Sections = []inventory.SectionSnapshot{
				{ID: "belt", Slots: 1}, {ID: "belt", Slots: 1},
			}
		}},
		{"empty section id", func(s *inventory.Snapshot) {
			s.Items = nil
			s.UseSections = true
			s.Sections = []inventory.SectionSnapshot{{ID: "", Slots: 1}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := baseSnapshot()
			tc.mutate(&snap)
			if _, err := inventory.FromObject(reg, snap, inventory.LoadOptions{}); !errors.Is(err, inventory.ErrSerialization) {
				t.Errorf("got %v, want ErrSerialization", err)
			}
		})
	}
}

func TestFromObject_ValidateDefinitions(t *testing.T) {
	reg := makeRegistry(t)
	snap := baseSnapshot()

	if _, err := inventory.FromObject(reg, snap, inventory.LoadOptions{}); err != nil {
		t.Fatalf("unvalidated load: %v", err)
	}
	if _, err := inventory.FromObject(reg, snap, inventory.LoadOptions{ValidateDefinitions: true}); !errors.Is(err, inventory.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestFromObject_EnforceLimits(t *testing.T) {
	reg := makeRegistry(t, stackableDef("coin", 2, 10))

	overSlots := baseSnapshot()
	overSlots.MaxSlots = intPtr(1)
	overSlots.Items = []*inventory.StackSnapshot{stackSnap("coin", 1), stackSnap("coin", 1)}
	if _, err := inventory.FromObject(reg, overSlots, inventory.LoadOptions{}); err != nil {
		t.Fatalf("lenient load: %v", err)
	}
	if _, err := inventory.FromObject(reg, overSlots, inventory.LoadOptions{EnforceLimits: true}); !errors.Is(err, inventory.ErrOutOfSpace) {
		t.Errorf("slot overflow: got %v, want ErrOutOfSpace", err)
	}

	overWeight := baseSnapshot()
	overWeight.MaxWeight = floatPtr(4)
	if _, err := inventory.FromObject(reg, overWeight, inventory.LoadOptions{EnforceLimits: true}); !errors.Is(err, inventory.ErrOutOfSpace) {
		t.Errorf("weight overflow: got %v, want ErrOutOfSpace", err)
	}
}

func TestFromObject_SpecialSlotsSortByID(t *testing.T) {
	reg := makeRegistry(t)
	snap := inventory.Snapshot{
		Schema:  inventory.SchemaName,
		Version: inventory.SchemaVersion,
		Items:   []*inventory.StackSnapshot{},
		SpecialSlots: map[string]inventory.SpecialSnapshot{
			"zeta":  {Type: strPtr("weapon")},
			"alpha": {},
			"mid":   {},
		},
	}
	loaded, err := inventory.FromObject(reg, snap, inventory.LoadOptions{})
	if err != nil {
		t.Fatalf("FromObject: %v", err)
	}
	got := loaded.SpecialSlots()
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFromJSON_MalformedPayload(t *testing.T) {
	reg := makeRegistry(t)
	if _, err := inventory.FromJSON(reg, []byte(`{"items": [`), inventory.LoadOptions{}); !errors.Is(err, inventory.ErrSerialization) {
		t.Errorf("got %v, want ErrSerialization", err)
	}
}
