// Package graph manages the attachment graph: each entity has at most one
// overlay (what it rides on or sits in) and every overlay keeps the inverse
// inventory set. The engine owns the edges; this package edits them through
// the store so that an edit either fully applies or does not start.
package graph

import (
	"fmt"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/filter"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/store"
)

// DefaultMaxDepth bounds every overlay walk.
const DefaultMaxDepth = 1024

// Destroyer removes an entity through the full removal path (hooks and
// removal events). The traversal engine is one.
type Destroyer interface {
	Destroy(uid models.UID) error
}

type Manager struct {
	store     *store.Accessor
	logger    log.Log
	maxDepth  int
	destroyer Destroyer
}

func New(acc *store.Accessor, logger log.Log, maxDepth int) *Manager {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Manager{
		store:    acc,
		logger:   logger.With(log.String("component", "graph")),
		maxDepth: maxDepth,
	}
}

// SetDestroyer routes autokilled items through d. Without one they go
// straight to the engine.
func (m *Manager) SetDestroyer(d Destroyer) { m.destroyer = d }

// Attach makes overlay the new overlay of attachee. The attachee keeps its
// world position and lands in overlay's inventory. Any prior edge goes first.
func (m *Manager) Attach(attachee, overlay models.UID) error {
	a, err := m.store.Resolve(attachee)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	o, err := m.store.Resolve(overlay)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	if attachee == overlay || m.IsAncestor(attachee, overlay) {
		return fmt.Errorf("attach %d to %d: %w", attachee, overlay, models.ErrCycle)
	}

	ab, ob := a.Base(), o.Base()
	ax, ay := m.absolute(ab)
	ox, oy := m.absolute(ob)

	// validation is done, edits start here
	m.unlink(ab)
	ab.X = ax - ox
	ab.Y = ay - oy
	ab.Overlay = overlay
	if !containsUID(ob.Items, attachee) {
		ob.Items = append(ob.Items, attachee)
	}

	m.logger.Debug("attached", log.UID(uint32(attachee)), log.Uint32("overlay", uint32(overlay)))
	return nil
}

// Detach drops attachee from its overlay, keeping its world position. It is a
// no-op when there is no overlay.
func (m *Manager) Detach(attachee models.UID) error {
	a, err := m.store.Resolve(attachee)
	if err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	ab := a.Base()
	if !ab.Overlay.Valid() {
		return nil
	}
	ax, ay := m.absolute(ab)
	prev := ab.Overlay
	m.unlink(ab)
	ab.X, ab.Y = ax, ay

	m.logger.Debug("detached", log.UID(uint32(attachee)), log.Uint32("overlay", uint32(prev)))
	return nil
}

// unlink removes the outgoing edge of base, its inventory membership and
// any holding or riding reference the old overlay kept to it.
func (m *Manager) unlink(base *engine.Entity) {
	if !base.Overlay.Valid() {
		return
	}
	if prev, err := m.store.Resolve(base.Overlay); err == nil {
		prev.Base().RemoveItem(base.UID)
		if mov, ok := prev.(engine.MovableRecord); ok && mov.MovableData().HoldingUID == base.UID {
			mov.MovableData().HoldingUID = models.NoUID
		}
		if mt, ok := prev.(engine.MountRecord); ok && mt.MountData().Rider == base.UID {
			mt.MountData().Rider = models.NoUID
		}
	}
	base.Overlay = models.NoUID
}

// IsAncestor reports whether ancestor is on the overlay chain above uid.
func (m *Manager) IsAncestor(ancestor, uid models.UID) bool {
	found := false
	m.walkUp(uid, func(cur models.UID, _ engine.Record) bool {
		if cur == ancestor {
			found = true
			return false
		}
		return true
	})
	return found
}

// Topmost follows overlays until there are none. A revisit ends the walk with
// the last entity reached.
func (m *Manager) Topmost(uid models.UID) (models.UID, error) {
	if _, err := m.store.Resolve(uid); err != nil {
		return models.NoUID, err
	}
	top := uid
	m.walkUp(uid, func(cur models.UID, _ engine.Record) bool {
		top = cur
		return true
	})
	return top, nil
}

// TopmostMount follows overlays only while the overlay is something that can
// be ridden (a mount, or a player carrying another).
func (m *Manager) TopmostMount(uid models.UID) (models.UID, error) {
	if _, err := m.store.Resolve(uid); err != nil {
		return models.NoUID, err
	}
	top := uid
	m.walkUp(uid, func(cur models.UID, rec engine.Record) bool {
		if cur == uid {
			return true
		}
		if !rec.Base().Category().Intersects(models.MaskMount | models.MaskPlayer) {
			return false
		}
		top = cur
		return true
	})
	return top, nil
}

// walkUp visits uid and then each overlay above it until fn returns false,
// the chain ends, an overlay no longer resolves or an entity repeats.
func (m *Manager) walkUp(uid models.UID, fn func(models.UID, engine.Record) bool) {
	seen := make(map[models.UID]struct{}, 4)
	cur := uid
	for depth := 0; cur.Valid() && depth < m.maxDepth; depth++ {
		if _, dup := seen[cur]; dup {
			m.logger.Warn("overlay cycle", log.UID(uint32(uid)), log.Uint32("revisit", uint32(cur)))
			return
		}
		seen[cur] = struct{}{}
		rec, err := m.store.Resolve(cur)
		if err != nil {
			return
		}
		if !fn(cur, rec) {
			return
		}
		cur = rec.Base().Overlay
	}
}

// AbsolutePosition sums relative positions along the overlay chain.
func (m *Manager) AbsolutePosition(uid models.UID) (x, y float32, err error) {
	rec, err := m.store.Resolve(uid)
	if err != nil {
		return 0, 0, err
	}
	x, y = m.absolute(rec.Base())
	return x, y, nil
}

func (m *Manager) absolute(base *engine.Entity) (x, y float32) {
	m.walkUp(base.UID, func(_ models.UID, rec engine.Record) bool {
		x += rec.Base().X
		y += rec.Base().Y
		return true
	})
	return x, y
}

// AbsoluteVelocity sums movable velocities along the overlay chain. Only
// movables answer it.
func (m *Manager) AbsoluteVelocity(uid models.UID) (vx, vy float32, err error) {
	if _, err = m.store.ResolveMovable(uid); err != nil {
		return 0, 0, err
	}
	m.walkUp(uid, func(_ models.UID, rec engine.Record) bool {
		if mov, ok := rec.(engine.MovableRecord); ok {
			vx += mov.MovableData().VelocityX
			vy += mov.MovableData().VelocityY
		}
		return true
	})
	return vx, vy, nil
}

// Items returns a copy of the inventory set of uid.
func (m *Manager) Items(uid models.UID) ([]models.UID, error) {
	rec, err := m.store.Resolve(uid)
	if err != nil {
		return nil, err
	}
	return append([]models.UID(nil), rec.Base().Items...), nil
}

func (m *Manager) HasItem(owner, item models.UID) bool {
	rec, err := m.store.Resolve(owner)
	if err != nil {
		return false
	}
	return containsUID(rec.Base().Items, item)
}

// HasItemType reports whether any attached entity has one of the types.
func (m *Manager) HasItemType(owner models.UID, types ...models.TypeTag) bool {
	items, err := m.ItemsBy(owner, types, models.MaskAny)
	return err == nil && len(items) > 0 && len(types) > 0
}

// ItemsBy lists attached entities accepted by mask and types; zero values mean any.
func (m *Manager) ItemsBy(owner models.UID, types []models.TypeTag, mask models.Mask) ([]models.UID, error) {
	rec, err := m.store.Resolve(owner)
	if err != nil {
		return nil, err
	}
	var out []models.UID
	for _, it := range rec.Base().Items {
		item, err := m.store.Resolve(it)
		if err != nil {
			continue
		}
		ib := item.Base()
		if filter.Selects(ib.Category(), ib.TypeID(), mask, types) {
			out = append(out, it)
		}
	}
	return out, nil
}

// RemoveItem detaches item from owner. With checkAutokill, entities that
// cannot exist on their own (effects, logical helpers) are destroyed.
func (m *Manager) RemoveItem(owner, item models.UID, checkAutokill bool) error {
	it, err := m.store.Resolve(item)
	if err != nil {
		return fmt.Errorf("remove item: %w", err)
	}
	if it.Base().Overlay != owner {
		return nil
	}
	if err = m.Detach(item); err != nil {
		return err
	}
	if checkAutokill && it.Base().Category().Intersects(models.MaskFX|models.MaskLogical) {
		m.logger.Debug("autokill detached item", log.UID(uint32(item)))
		if m.destroyer != nil {
			return m.destroyer.Destroy(item)
		}
		m.store.Engine().Destroy(item)
	}
	return nil
}

func containsUID(list []models.UID, uid models.UID) bool {
	for _, it := range list {
		if it == uid {
			return true
		}
	}
	return false
}
