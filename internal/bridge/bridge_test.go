package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/engine/memory"
	"github.com/zeusync/modbridge/internal/core/events/bus"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/views"
)

func newBridge(t *testing.T) (*Bridge, *memory.Engine) {
	t.Helper()
	eng, err := memory.New()
	require.NoError(t, err)
	b, err := New(eng, bus.New(), log.Nop(), DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, eng
}

func spawn(t *testing.T, eng *memory.Engine, name string, x, y float32) models.UID {
	t.Helper()
	tag, ok := eng.TypeByName(name)
	require.True(t, ok, name)
	uid, err := eng.Spawn(tag, x, y, 0)
	require.NoError(t, err)
	return uid
}

func TestNewRejectsUnknownCodec(t *testing.T) {
	eng, err := memory.New()
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.UserDataCodec = "toml"
	_, err = New(eng, bus.New(), log.Nop(), cfg)
	assert.Error(t, err)
}

func TestMissingEntitiesAreNoops(t *testing.T) {
	b, _ := newBridge(t)
	s := b.NewSession("noop")
	const gone models.UID = 12345

	assert.Nil(t, s.GetEntity(gone))
	assert.Nil(t, s.GetEntityRaw(gone))
	assert.Zero(t, s.GetEntityType(gone))
	assert.Zero(t, s.GetEntityFlags(gone))
	s.SetEntityFlags(gone, models.FlagInvisible)
	s.MoveEntity(gone, 1, 1, 0, 0)
	s.AttachEntity(gone, gone+1)
	s.DetachEntity(gone)
	s.KillEntity(gone, false)
	s.PickUp(gone, gone+1)
	s.Drop(gone)
	s.ApplyEntityDB(gone)
	s.SetUserData(gone, "x")
	assert.Nil(t, s.GetUserData(gone))
	assert.Equal(t, float32(-1), s.Distance(gone, gone))
	assert.True(t, s.KillRecursive(gone, false, models.NoUID, 0, nil, models.ModeNone).Empty())
	assert.True(t, s.DestroyGrid(gone).Empty())
	assert.Nil(t, s.GetType(9999))
}

func TestGetEntityDispatches(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("cast")
	ana := spawn(t, eng, "CHAR_ANA_SPELUNKY", 0, 0)
	floor := spawn(t, eng, "FLOOR_GENERIC", 2, 0)

	_, isPlayer := s.GetEntity(ana).(*views.Player)
	assert.True(t, isPlayer)
	_, isBase := s.GetEntity(floor).(*views.Entity)
	assert.True(t, isBase)
	assert.Equal(t, "CHAR_ANA_SPELUNKY", s.EntityTypeName(s.GetEntityType(ana)))
	assert.Equal(t, "FLOOR_GENERIC", s.GetType(1).Name)
}

func TestFlagsPositionAndMovement(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("move")
	turkey := spawn(t, eng, "MOUNT_TURKEY", 4, 4)
	ana := spawn(t, eng, "CHAR_ANA_SPELUNKY", 4, 5)

	s.SetEntityFlags(ana, models.FlagInvisible|models.FlagSolid)
	assert.Equal(t, models.FlagInvisible|models.FlagSolid, s.GetEntityFlags(ana))
	s.SetEntityFlags2(ana, models.FlagOnFire)
	assert.Equal(t, models.FlagOnFire, s.GetEntityFlags2(ana))

	s.AttachEntity(turkey, ana)
	x, y, layer := s.GetPosition(ana)
	assert.Equal(t, float32(4), x)
	assert.Equal(t, float32(5), y)
	assert.Zero(t, layer)

	s.MoveEntity(ana, 10, 10, 0.5, 0)
	x, y, _ = s.GetPosition(ana)
	assert.Equal(t, float32(10), x)
	assert.Equal(t, float32(10), y)
	vx, _ := s.GetVelocity(ana)
	assert.Equal(t, float32(0.5), vx)
	assert.True(t, s.EntityHasItemUID(turkey, ana))

	assert.InDelta(t, 8.485, s.Distance(turkey, ana), 0.01)

	s.DetachEntity(ana)
	assert.False(t, s.EntityHasItemUID(turkey, ana))
}

func TestMoveGridEntity(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("grid")
	floor := spawn(t, eng, "FLOOR_GENERIC", 1, 1)

	s.MoveGridEntity(floor, 6.4, 2.6, 0)
	uid, ok := eng.GridEntityAt(6, 3, 0)
	require.True(t, ok)
	assert.Equal(t, floor, uid)
	_, ok = eng.GridEntityAt(1, 1, 0)
	assert.False(t, ok)

	assert.Len(t, s.DestroyGridAt(6, 3, 0).Affected, 1)
}

func TestInventoryHelpers(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("items")
	ana := spawn(t, eng, "CHAR_ANA_SPELUNKY", 0, 0)
	rock := spawn(t, eng, "ITEM_ROCK", 0, 0)
	flame := spawn(t, eng, "FX_SMALLFLAME", 0, 0)

	s.PickUp(ana, rock)
	s.AttachEntity(ana, flame)
	assert.True(t, s.EntityHasItemType(ana, 40))
	assert.False(t, s.EntityHasItemType(ana))
	assert.ElementsMatch(t, []models.UID{rock, flame}, s.EntityGetItemsBy(ana, nil, 0))
	assert.Equal(t, []models.UID{flame}, s.EntityGetItemsBy(ana, []models.TypeTag{0}, models.MaskFX))

	s.EntityRemoveItem(ana, flame)
	_, alive := eng.Entity(flame)
	assert.False(t, alive)

	s.Drop(ana)
	assert.False(t, s.EntityHasItemUID(ana, rock))
}

func TestEndToEndExclusiveKill(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("e2e")
	root := spawn(t, eng, "ACTIVEFLOOR_PUSHBLOCK", 0, 0)
	c1, err := eng.SpawnAttached(40, root, 0, 0)
	require.NoError(t, err)
	under, err := eng.SpawnAttached(42, c1, 0, 0)
	require.NoError(t, err)
	c2, err := eng.SpawnAttached(30, root, 0, 0)
	require.NoError(t, err)

	res := s.KillRecursive(root, false, models.NoUID, models.MaskItem, nil, models.ModeExclusive)
	assert.ElementsMatch(t, []models.UID{root, c2}, res.Affected)
	_, ok := eng.Entity(c1)
	assert.True(t, ok)
	_, ok = eng.Entity(under)
	assert.True(t, ok)
}

func TestInclusiveWithoutFilterAffectsNothing(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("inclusive")
	root := spawn(t, eng, "ACTIVEFLOOR_PUSHBLOCK", 0, 0)
	_, err := eng.SpawnAttached(40, root, 0, 0)
	require.NoError(t, err)

	res := s.DestroyRecursive(root, models.MaskAny, nil, models.ModeInclusive)
	assert.True(t, res.Empty())
	assert.True(t, res.Invalid)
	assert.Equal(t, 2, eng.Len())

	res = s.DestroyRecursive(root, models.MaskLava, nil, models.ModeInclusive)
	assert.True(t, res.Empty())
	assert.False(t, res.Invalid)
}

func TestSessionsKeepSeparateUserData(t *testing.T) {
	b, eng := newBridge(t)
	a := b.NewSession("a")
	c := b.NewSession("c")
	snake := spawn(t, eng, "MONS_SNAKE", 0, 0)

	a.SetUserData(snake, "a's")
	c.SetUserData(snake, "c's")
	assert.Len(t, b.Sessions(), 2)

	a.Close()
	a.Close()
	assert.Nil(t, a.GetUserData(snake))
	assert.Equal(t, "c's", c.GetUserData(snake))
	assert.Len(t, b.Sessions(), 1)
}

func TestTransitionCarriesUserData(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("carry")
	ana := spawn(t, eng, "CHAR_ANA_SPELUNKY", 0, 0)
	snake := spawn(t, eng, "MONS_SNAKE", 0, 0)
	s.SetUserData(ana, map[string]any{"deaths": 2})
	s.SetUserData(snake, "left behind")

	var remap map[models.UID]models.UID
	require.NoError(t, b.Transition(func() { remap = eng.NextLevel() }))

	assert.Equal(t, map[string]any{"deaths": 2}, s.GetUserData(remap[ana]))
	assert.Equal(t, 1, b.UserData().Len())
}

func TestRegisterCustomType(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("mod")

	tag, err := s.RegisterCustomType("MOUNT_GIANT_TURKEY", models.KindMount, 20)
	require.NoError(t, err)
	assert.True(t, tag.IsCustom())

	uid, err := eng.Spawn(tag, 0, 0, 0)
	require.NoError(t, err)
	_, isMount := s.GetEntity(uid).(*views.Mount)
	assert.True(t, isMount)
	assert.Equal(t, "MOUNT_GIANT_TURKEY", s.EntityTypeName(tag))

	_, err = s.RegisterCustomType("MOUNT_GIANT_TURKEY", models.KindMount, 20)
	assert.ErrorIs(t, err, models.ErrTypeExists)
}

func TestRegisterCustomTypeRollsBack(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("mod")

	_, err := s.RegisterCustomType("MONS_NOWHERE", models.KindEntity, 65000)
	assert.ErrorIs(t, err, models.ErrUnknownType)
	_, ok := s.Registry().Lookup("MONS_NOWHERE")
	assert.False(t, ok)

	require.NoError(t, eng.AddType(&engine.EntityDB{ID: models.CustomTypeBase, Name: "TAKEN", Kind: models.KindEntity}))
	_, err = s.RegisterCustomType("MONS_CLASH", models.KindEntity, 20)
	assert.ErrorIs(t, err, models.ErrTypeExists)
	_, ok = s.Registry().Lookup("MONS_CLASH")
	assert.False(t, ok)
	assert.Empty(t, s.EntityTypeName(models.CustomTypeBase))
}

func TestRemoveItemAutokillNotifiesRemoval(t *testing.T) {
	b, eng := newBridge(t)
	s := b.NewSession("fx")
	ana := spawn(t, eng, "CHAR_ANA_SPELUNKY", 0, 0)
	flame := spawn(t, eng, "FX_SMALLFLAME", 0, 0)
	s.AttachEntity(ana, flame)
	s.SetUserData(flame, "lit")
	require.Equal(t, 1, b.UserData().Len())

	var removed []uint32
	sub, err := b.Events().Subscribe(bus.EventEntityRemoved, func(ev bus.Event) error {
		removed = append(removed, ev.Data().(bus.EntityRemovedEvent).UID)
		return nil
	})
	require.NoError(t, err)
	defer sub.Cancel()

	s.EntityRemoveItem(ana, flame)
	_, alive := eng.Entity(flame)
	assert.False(t, alive)
	assert.Equal(t, []uint32{uint32(flame)}, removed)
	assert.Zero(t, b.UserData().Len())
}
