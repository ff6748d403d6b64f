package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/models"
)

const (
	tagFloor     models.TypeTag = 1
	tagPushblock models.TypeTag = 3
	tagPlayer    models.TypeTag = 10
	tagTurkey    models.TypeTag = 20
	tagSnake     models.TypeTag = 30
	tagCaveman   models.TypeTag = 31
	tagRock      models.TypeTag = 40
	tagCoin      models.TypeTag = 43
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New()
	require.NoError(t, err)
	return e
}

func TestCatalog(t *testing.T) {
	e := newEngine(t)
	assert.NotEmpty(t, e.Types())

	tag, ok := e.TypeByName("MONS_SNAKE")
	require.True(t, ok)
	assert.Equal(t, tagSnake, tag)

	tag, ok = e.ParseTag("ENT_TYPE_ITEM_ROCK")
	assert.True(t, ok)
	assert.Equal(t, tagRock, tag)
	tag, ok = e.ParseTag("31")
	assert.True(t, ok)
	assert.Equal(t, tagCaveman, tag)
	_, ok = e.ParseTag("999")
	assert.False(t, ok)

	db, ok := e.EntityDB(tagPlayer)
	require.True(t, ok)
	assert.Equal(t, models.KindPlayer, db.Kind)
	assert.True(t, db.LeavesCorpse)
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewWithCatalog(strings.NewReader("types:\n  - {id: 5, name: A}\n  - {id: 5, name: B}\n"))
	assert.Error(t, err)
}

func TestAddType(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.AddType(&engine.EntityDB{ID: 0x10000, Name: "MOD_THING", Kind: models.KindEntity}))
	err := e.AddType(&engine.EntityDB{ID: tagRock})
	assert.ErrorIs(t, err, models.ErrTypeExists)

	uid, err := e.Spawn(0x10000, 1, 1, 0)
	require.NoError(t, err)
	rec, ok := e.Entity(uid)
	require.True(t, ok)
	assert.Equal(t, "MOD_THING", rec.Base().Type.Name)
}

func TestSpawnShapes(t *testing.T) {
	e := newEngine(t)
	_, err := e.Spawn(999, 0, 0, 0)
	assert.ErrorIs(t, err, models.ErrUnknownType)

	p1, err := e.Spawn(tagPlayer, 0, 0, 0)
	require.NoError(t, err)
	p2, err := e.Spawn(tagPlayer, 0, 0, 0)
	require.NoError(t, err)
	mount, err := e.Spawn(tagTurkey, 0, 0, 0)
	require.NoError(t, err)
	floor, err := e.Spawn(tagFloor, 0, 0, 0)
	require.NoError(t, err)

	rec, _ := e.Entity(p1)
	require.Implements(t, (*engine.PlayerRecord)(nil), rec)
	assert.Equal(t, int8(1), rec.(engine.PlayerRecord).PlayerData().Slot)
	rec, _ = e.Entity(p2)
	assert.Equal(t, int8(2), rec.(engine.PlayerRecord).PlayerData().Slot)

	rec, _ = e.Entity(mount)
	assert.Implements(t, (*engine.MountRecord)(nil), rec)
	rec, _ = e.Entity(floor)
	_, movable := rec.(engine.MovableRecord)
	assert.False(t, movable)
}

func TestKillCorpseAndRemoval(t *testing.T) {
	e := newEngine(t)
	snake, _ := e.Spawn(tagSnake, 0, 0, 0)
	rock, _ := e.Spawn(tagRock, 0, 0, 0)
	culprit, _ := e.Spawn(tagPlayer, 0, 0, 0)

	e.Kill(snake, false, culprit)
	rec, ok := e.Entity(snake)
	require.True(t, ok)
	assert.True(t, rec.Base().Flags.Has(models.FlagDead))
	assert.Zero(t, rec.(engine.MovableRecord).MovableData().Health)

	e.Kill(rock, false, models.NoUID)
	_, ok = e.Entity(rock)
	assert.False(t, ok)

	e.Kill(snake, true, models.NoUID)
	_, ok = e.Entity(snake)
	assert.False(t, ok)

	assert.Equal(t, []Removal{
		{UID: snake, Type: tagSnake, Killed: true, Corpse: true, Blamed: culprit},
		{UID: rock, Type: tagRock, Killed: true},
		{UID: snake, Type: tagSnake, Killed: true},
	}, e.Removals())
}

func TestRemovalReleasesAttachments(t *testing.T) {
	e := newEngine(t)
	block, _ := e.Spawn(tagPushblock, 3, 4, 0)
	coin, err := e.SpawnAttached(tagCoin, block, 0.5, 0.25)
	require.NoError(t, err)

	e.Destroy(block)
	rec, ok := e.Entity(coin)
	require.True(t, ok)
	assert.Equal(t, models.NoUID, rec.Base().Overlay)
	assert.InDelta(t, 3.5, rec.Base().X, 1e-6)
	assert.InDelta(t, 4.25, rec.Base().Y, 1e-6)

	_, err = e.SpawnAttached(tagCoin, block, 0, 0)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDamage(t *testing.T) {
	e := newEngine(t)
	caveman, _ := e.Spawn(tagCaveman, 0, 0, 0)
	floor, _ := e.Spawn(tagFloor, 0, 0, 0)

	assert.True(t, e.Damage(caveman, models.NoUID, 1, models.DamageGeneric))
	rec, _ := e.Entity(caveman)
	assert.Equal(t, int8(2), rec.(engine.MovableRecord).MovableData().Health)

	assert.True(t, e.Damage(caveman, models.NoUID, 5, models.DamageGeneric))
	assert.True(t, rec.Base().Flags.Has(models.FlagDead))
	assert.False(t, e.Damage(caveman, models.NoUID, 1, models.DamageGeneric))
	assert.False(t, e.Damage(floor, models.NoUID, 1, models.DamageGeneric))
}

func TestGridIndex(t *testing.T) {
	e := newEngine(t)
	floor, _ := e.Spawn(tagFloor, 5, 5, 0)
	snake, _ := e.Spawn(tagSnake, 5, 6, 0)
	e.SetStandingOn(snake, floor)

	got, ok := e.GridEntityAt(5.2, 4.9, 0)
	require.True(t, ok)
	assert.Equal(t, floor, got)
	_, ok = e.GridEntityAt(5, 5, 1)
	assert.False(t, ok)
	assert.Equal(t, []models.UID{snake}, e.StandingOn(floor))

	assert.True(t, e.MoveGrid(floor, 6, 5, 0))
	_, ok = e.GridEntityAt(5, 5, 0)
	assert.False(t, ok)
	got, ok = e.GridEntityAt(6, 5, 0)
	assert.True(t, ok)
	assert.Equal(t, floor, got)
	assert.False(t, e.MoveGrid(snake, 1, 1, 0))

	e.Destroy(floor)
	_, ok = e.GridEntityAt(6, 5, 0)
	assert.False(t, ok)
}

func TestNextLevelCarriesPlayers(t *testing.T) {
	e := newEngine(t)
	turkey, _ := e.Spawn(tagTurkey, 2, 1, 0)
	player, err := e.SpawnAttached(tagPlayer, turkey, 0, 0.5)
	require.NoError(t, err)
	rock, err := e.SpawnAttached(tagRock, player, 0.3, 0)
	require.NoError(t, err)
	snake, _ := e.Spawn(tagSnake, 0, 0, 0)

	key, ok := e.CarryKey(player)
	require.True(t, ok)
	assert.Equal(t, "player1", key)
	key, ok = e.CarryKey(rock)
	require.True(t, ok)
	assert.Equal(t, "player1/item0", key)
	key, ok = e.CarryKey(turkey)
	require.True(t, ok)
	assert.Equal(t, "player1/mount", key)
	_, ok = e.CarryKey(snake)
	assert.False(t, ok)

	remap := e.NextLevel()
	assert.Len(t, remap, 3)
	assert.Equal(t, 3, e.Len())
	_, ok = e.Entity(snake)
	assert.False(t, ok)

	newPlayer, ok := e.ResolveCarryKey("player1")
	require.True(t, ok)
	assert.Equal(t, remap[player], newPlayer)
	newTurkey, ok := e.ResolveCarryKey("player1/mount")
	require.True(t, ok)
	newRock, ok := e.ResolveCarryKey("player1/item0")
	require.True(t, ok)

	rec, _ := e.Entity(newPlayer)
	assert.Equal(t, newTurkey, rec.Base().Overlay)
	assert.Equal(t, []models.UID{newRock}, rec.Base().Items)
	_, ok = e.ResolveCarryKey("player2")
	assert.False(t, ok)
}
