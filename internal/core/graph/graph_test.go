package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/modbridge/internal/core/engine/memory"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/store"
)

const (
	tagPlayer models.TypeTag = 10
	tagTurkey models.TypeTag = 20
	tagSnake  models.TypeTag = 30
	tagRock   models.TypeTag = 40
	tagFlame  models.TypeTag = 60
)

func newManager(t *testing.T) (*Manager, *memory.Engine, *store.Accessor) {
	t.Helper()
	eng, err := memory.New()
	require.NoError(t, err)
	acc := store.New(eng)
	return New(acc, log.Nop(), 0), eng, acc
}

func spawn(t *testing.T, eng *memory.Engine, tag models.TypeTag, x, y float32) models.UID {
	t.Helper()
	uid, err := eng.Spawn(tag, x, y, 0)
	require.NoError(t, err)
	return uid
}

func TestAttachDetachRoundTrip(t *testing.T) {
	m, eng, acc := newManager(t)
	player := spawn(t, eng, tagPlayer, 10, 5)
	rock := spawn(t, eng, tagRock, 12, 7)

	require.NoError(t, m.Attach(rock, player))

	rec, err := acc.Resolve(rock)
	require.NoError(t, err)
	assert.Equal(t, player, rec.Base().Overlay)
	assert.Equal(t, float32(2), rec.Base().X)
	assert.Equal(t, float32(2), rec.Base().Y)
	assert.True(t, m.HasItem(player, rock))

	x, y, err := m.AbsolutePosition(rock)
	require.NoError(t, err)
	assert.Equal(t, float32(12), x)
	assert.Equal(t, float32(7), y)

	require.NoError(t, m.Detach(rock))
	rec, err = acc.Resolve(rock)
	require.NoError(t, err)
	assert.Equal(t, models.NoUID, rec.Base().Overlay)
	assert.False(t, m.HasItem(player, rock))
	assert.Equal(t, float32(12), rec.Base().X)
	assert.Equal(t, float32(7), rec.Base().Y)
}

func TestAttachReplacesPriorEdge(t *testing.T) {
	m, eng, _ := newManager(t)
	first := spawn(t, eng, tagSnake, 0, 0)
	second := spawn(t, eng, tagSnake, 5, 0)
	rock := spawn(t, eng, tagRock, 1, 1)

	require.NoError(t, m.Attach(rock, first))
	require.NoError(t, m.Attach(rock, second))

	assert.False(t, m.HasItem(first, rock))
	assert.True(t, m.HasItem(second, rock))
	items, err := m.Items(second)
	require.NoError(t, err)
	assert.Equal(t, []models.UID{rock}, items)
}

func TestAttachRefusesCycles(t *testing.T) {
	m, eng, acc := newManager(t)
	a := spawn(t, eng, tagSnake, 0, 0)
	b := spawn(t, eng, tagRock, 0, 0)
	c := spawn(t, eng, tagRock, 0, 0)
	require.NoError(t, m.Attach(b, a))
	require.NoError(t, m.Attach(c, b))

	assert.ErrorIs(t, m.Attach(a, c), models.ErrCycle)
	assert.ErrorIs(t, m.Attach(a, a), models.ErrCycle)

	// nothing moved
	rec, err := acc.Resolve(a)
	require.NoError(t, err)
	assert.Equal(t, models.NoUID, rec.Base().Overlay)
	assert.True(t, m.HasItem(b, c))
}

func TestAttachStaleReferenceLeavesGraphAlone(t *testing.T) {
	m, eng, acc := newManager(t)
	holder := spawn(t, eng, tagSnake, 0, 0)
	rock := spawn(t, eng, tagRock, 1, 0)
	gone := spawn(t, eng, tagSnake, 3, 0)
	require.NoError(t, m.Attach(rock, holder))
	eng.Destroy(gone)

	assert.ErrorIs(t, m.Attach(rock, gone), models.ErrNotFound)
	assert.ErrorIs(t, m.Attach(gone, holder), models.ErrNotFound)

	rec, err := acc.Resolve(rock)
	require.NoError(t, err)
	assert.Equal(t, holder, rec.Base().Overlay)
}

func TestDetachWithoutOverlayIsNoop(t *testing.T) {
	m, eng, _ := newManager(t)
	rock := spawn(t, eng, tagRock, 4, 4)
	assert.NoError(t, m.Detach(rock))
	assert.ErrorIs(t, m.Detach(9999), models.ErrNotFound)
}

func TestTopmost(t *testing.T) {
	m, eng, _ := newManager(t)
	turkey := spawn(t, eng, tagTurkey, 0, 0)
	player := spawn(t, eng, tagPlayer, 0, 0)
	rock := spawn(t, eng, tagRock, 0, 0)
	require.NoError(t, m.Attach(player, turkey))
	require.NoError(t, m.Attach(rock, player))

	top, err := m.Topmost(rock)
	require.NoError(t, err)
	assert.Equal(t, turkey, top)

	again, err := m.Topmost(top)
	require.NoError(t, err)
	assert.Equal(t, top, again)

	lone := spawn(t, eng, tagSnake, 0, 0)
	top, err = m.Topmost(lone)
	require.NoError(t, err)
	assert.Equal(t, lone, top)
}

func TestTopmostTerminatesOnMalformedGraph(t *testing.T) {
	m, eng, acc := newManager(t)
	a := spawn(t, eng, tagSnake, 0, 0)
	b := spawn(t, eng, tagSnake, 0, 0)
	// corrupt the engine graph directly
	ra, _ := acc.Resolve(a)
	rb, _ := acc.Resolve(b)
	ra.Base().Overlay = b
	rb.Base().Overlay = a

	top, err := m.Topmost(a)
	require.NoError(t, err)
	assert.Equal(t, b, top)
	_, _, err = m.AbsolutePosition(a)
	assert.NoError(t, err)
}

func TestTopmostMount(t *testing.T) {
	m, eng, _ := newManager(t)
	turkey := spawn(t, eng, tagTurkey, 0, 0)
	player := spawn(t, eng, tagPlayer, 0, 0)
	snake := spawn(t, eng, tagSnake, 0, 0)
	require.NoError(t, m.Attach(player, turkey))
	require.NoError(t, m.Attach(turkey, snake))

	top, err := m.TopmostMount(player)
	require.NoError(t, err)
	assert.Equal(t, turkey, top)

	top, err = m.Topmost(player)
	require.NoError(t, err)
	assert.Equal(t, snake, top)
}

func TestItemQueries(t *testing.T) {
	m, eng, _ := newManager(t)
	player := spawn(t, eng, tagPlayer, 0, 0)
	rock, err := eng.SpawnAttached(tagRock, player, 0, 0)
	require.NoError(t, err)
	flame, err := eng.SpawnAttached(tagFlame, player, 0, 0)
	require.NoError(t, err)

	all, err := m.ItemsBy(player, nil, models.MaskAny)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.UID{rock, flame}, all)

	items, err := m.ItemsBy(player, nil, models.MaskItem)
	require.NoError(t, err)
	assert.Equal(t, []models.UID{rock}, items)

	assert.True(t, m.HasItemType(player, tagRock))
	assert.False(t, m.HasItemType(player, tagSnake))

	require.NoError(t, m.RemoveItem(player, flame, true))
	_, ok := eng.Entity(flame)
	assert.False(t, ok, "effects do not survive without an overlay")

	require.NoError(t, m.RemoveItem(player, rock, true))
	_, ok = eng.Entity(rock)
	assert.True(t, ok)
	assert.False(t, m.HasItem(player, rock))
}

type recordingDestroyer struct {
	eng       *memory.Engine
	destroyed []models.UID
}

func (d *recordingDestroyer) Destroy(uid models.UID) error {
	d.destroyed = append(d.destroyed, uid)
	d.eng.Destroy(uid)
	return nil
}

func TestRemoveItemAutokillUsesDestroyer(t *testing.T) {
	m, eng, _ := newManager(t)
	d := &recordingDestroyer{eng: eng}
	m.SetDestroyer(d)

	player := spawn(t, eng, tagPlayer, 0, 0)
	rock, err := eng.SpawnAttached(tagRock, player, 0, 0)
	require.NoError(t, err)
	flame, err := eng.SpawnAttached(tagFlame, player, 0, 0)
	require.NoError(t, err)

	require.NoError(t, m.RemoveItem(player, flame, true))
	require.NoError(t, m.RemoveItem(player, rock, true))
	assert.Equal(t, []models.UID{flame}, d.destroyed)
	_, ok := eng.Entity(flame)
	assert.False(t, ok)
}

func TestUnlinkClearsRider(t *testing.T) {
	m, eng, acc := newManager(t)
	turkey := spawn(t, eng, tagTurkey, 0, 0)
	other := spawn(t, eng, tagTurkey, 4, 0)
	player := spawn(t, eng, tagPlayer, 0, 0)

	mount, err := acc.ResolveMount(turkey)
	require.NoError(t, err)
	require.NoError(t, m.Attach(player, turkey))
	mount.Rider = player

	require.NoError(t, m.Detach(player))
	assert.Equal(t, models.NoUID, mount.Rider)

	require.NoError(t, m.Attach(player, turkey))
	mount.Rider = player
	require.NoError(t, m.Attach(player, other))
	assert.Equal(t, models.NoUID, mount.Rider)
	assert.True(t, m.HasItem(other, player))
}

func TestAbsoluteVelocity(t *testing.T) {
	m, eng, acc := newManager(t)
	turkey := spawn(t, eng, tagTurkey, 0, 0)
	player := spawn(t, eng, tagPlayer, 0, 0)
	require.NoError(t, m.Attach(player, turkey))

	mt, err := acc.ResolveMovable(turkey)
	require.NoError(t, err)
	mt.VelocityX = 0.5
	mp, err := acc.ResolveMovable(player)
	require.NoError(t, err)
	mp.VelocityY = 0.25

	vx, vy, err := m.AbsoluteVelocity(player)
	require.NoError(t, err)
	assert.Equal(t, float32(0.5), vx)
	assert.Equal(t, float32(0.25), vy)

	floor := spawn(t, eng, 1, 9, 9)
	_, _, err = m.AbsoluteVelocity(floor)
	assert.ErrorIs(t, err, models.ErrInvalidReference)
}
