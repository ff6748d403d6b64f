package bridge

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/events/bus"
	"github.com/zeusync/modbridge/internal/core/filter"
	"github.com/zeusync/modbridge/internal/core/graph"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/store"
	"github.com/zeusync/modbridge/internal/core/traverse"
	"github.com/zeusync/modbridge/internal/core/userdata"
	"github.com/zeusync/modbridge/internal/core/views"
)

var _ views.Host = (*Session)(nil)

// Session is one script instance. Its methods are the global functions
// scripts call with raw identifiers; a missing entity is logged and
// treated as a no-op.
type Session struct {
	id     models.ScriptID
	name   string
	bridge *Bridge
	logger log.Log
	closed atomic.Bool
}

func (s *Session) ID() models.ScriptID { return s.id }
func (s *Session) Name() string { return s.name }
func (s *Session) Logger() log.Log { return s.logger }

func (s *Session) Store() *store.Accessor { return s.bridge.store }
func (s *Session) Graph() *graph.Manager { return s.bridge.graph }
func (s *Session) Traversal() *traverse.Engine { return s.bridge.trav }
func (s *Session) UserData() *userdata.Channel { return s.bridge.data }
func (s *Session) Registry() *views.Registry { return s.bridge.registry }
func (s *Session) ScriptID() models.ScriptID { return s.id }

// Close tears down the script's side-channel table. Closing twice is a no-op.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.bridge.dropSession(s.id)
	if err := s.bridge.events.Publish(bus.NewEvent(bus.EventScriptTeardown, s.name, s.id)); err != nil {
		s.logger.Warn("teardown handlers failed", log.Error(err))
	}
	s.logger.Info("session closed")
}

// ok logs err and reports whether the call went through. Benign errors only
// make it to debug output.
func (s *Session) ok(op string, uid models.UID, err error) bool {
	if err == nil {
		return true
	}
	if models.IsBenign(err) {
		s.logger.Debug(op+" skipped", log.UID(uint32(uid)), log.Error(err))
	} else {
		s.logger.Warn(op+" failed", log.UID(uint32(uid)), log.Error(err))
	}
	return false
}

// GetEntity returns the narrowest view for uid, nil when it does not resolve.
func (s *Session) GetEntity(uid models.UID) views.View {
	v, err := s.Registry().Cast(s, uid)
	if !s.ok("get_entity", uid, err) {
		return nil
	}
	return v
}

// GetEntityRaw returns the base view without dispatching on the type.
func (s *Session) GetEntityRaw(uid models.UID) *views.Entity {
	v := s.GetEntity(uid)
	if v == nil {
		return nil
	}
	return v.AsEntity()
}

// GetType returns the EntityDB of a type.
func (s *Session) GetType(tag models.TypeTag) *engine.EntityDB {
	db, ok := s.bridge.eng.EntityDB(tag)
	if !ok {
		s.logger.Debug("get_type: unknown type", log.Type(uint32(tag)))
		return nil
	}
	return db
}

func (s *Session) GetEntityType(uid models.UID) models.TypeTag {
	tag, err := s.Store().TypeOf(uid)
	if !s.ok("get_entity_type", uid, err) {
		return 0
	}
	return tag
}

// EntityTypeName returns the ENT_TYPE name registered for a tag.
func (s *Session) EntityTypeName(tag models.TypeTag) string {
	return s.Registry().Name(tag)
}

func (s *Session) GetEntityFlags(uid models.UID) models.EntityFlags {
	rec, err := s.Store().Resolve(uid)
	if !s.ok("get_entity_flags", uid, err) {
		return 0
	}
	return rec.Base().Flags
}

func (s *Session) SetEntityFlags(uid models.UID, flags models.EntityFlags) {
	rec, err := s.Store().Resolve(uid)
	if s.ok("set_entity_flags", uid, err) {
		rec.Base().Flags = flags
	}
}

func (s *Session) GetEntityFlags2(uid models.UID) models.EntityFlags {
	rec, err := s.Store().Resolve(uid)
	if !s.ok("get_entity_flags2", uid, err) {
		return 0
	}
	return rec.Base().MoreFlags
}

func (s *Session) SetEntityFlags2(uid models.UID, flags models.EntityFlags) {
	rec, err := s.Store().Resolve(uid)
	if s.ok("set_entity_flags2", uid, err) {
		rec.Base().MoreFlags = flags
	}
}

// GetPosition returns the absolute position and layer. Entity.Position is
// relative to the overlay.
func (s *Session) GetPosition(uid models.UID) (x, y float32, layer uint8) {
	rec, err := s.Store().Resolve(uid)
	if !s.ok("get_position", uid, err) {
		return 0, 0, 0
	}
	x, y, _ = s.Graph().AbsolutePosition(uid)
	return x, y, rec.Base().Layer
}

// GetVelocity returns the absolute velocity; non-movables read as zero.
func (s *Session) GetVelocity(uid models.UID) (vx, vy float32) {
	vx, vy, err := s.Graph().AbsoluteVelocity(uid)
	if !s.ok("get_velocity", uid, err) {
		return 0, 0
	}
	return vx, vy
}

// MoveEntity teleports uid to an absolute position and, for movables, sets
// its velocity.
func (s *Session) MoveEntity(uid models.UID, x, y, vx, vy float32) {
	rec, err := s.Store().Resolve(uid)
	if !s.ok("move_entity", uid, err) {
		return
	}
	base := rec.Base()
	if base.Overlay.Valid() {
		if ox, oy, err := s.Graph().AbsolutePosition(base.Overlay); err == nil {
			x, y = x-ox, y-oy
		}
	}
	base.X, base.Y = x, y
	if m, ok := rec.(engine.MovableRecord); ok {
		m.MovableData().VelocityX = vx
		m.MovableData().VelocityY = vy
	}
}

// MoveGridEntity teleports a grid entity to a whole tile.
func (s *Session) MoveGridEntity(uid models.UID, x, y float32, layer uint8) {
	rec, err := s.Store().Resolve(uid)
	if !s.ok("move_grid_entity", uid, err) {
		return
	}
	x, y = float32(math.Round(float64(x))), float32(math.Round(float64(y)))
	if gm, ok := s.bridge.eng.(engine.GridMover); ok && gm.MoveGrid(uid, x, y, layer) {
		return
	}
	base := rec.Base()
	base.X, base.Y, base.Layer = x, y, layer
}

// AttachEntity attaches attachee to overlay, keeping its world position.
func (s *Session) AttachEntity(overlay, attachee models.UID) {
	s.ok("attach_entity", attachee, s.Graph().Attach(attachee, overlay))
}

func (s *Session) DetachEntity(uid models.UID) {
	s.ok("detach_entity", uid, s.Graph().Detach(uid))
}

// EntityRemoveItem takes item out of owner's inventory. Items that cannot
// exist on their own are destroyed.
func (s *Session) EntityRemoveItem(owner, item models.UID) {
	s.ok("entity_remove_item", item, s.Graph().RemoveItem(owner, item, true))
}

func (s *Session) EntityHasItemUID(owner, item models.UID) bool {
	return s.Graph().HasItem(owner, item)
}

func (s *Session) EntityHasItemType(owner models.UID, types ...models.TypeTag) bool {
	return s.Graph().HasItemType(owner, types...)
}

// EntityGetItemsBy lists owner's items by type and mask; 0 means any for both.
func (s *Session) EntityGetItemsBy(owner models.UID, types []models.TypeTag, mask models.Mask) []models.UID {
	items, err := s.Graph().ItemsBy(owner, types, mask)
	if !s.ok("entity_get_items_by", owner, err) {
		return nil
	}
	return items
}

func (s *Session) KillEntity(uid models.UID, destroyCorpse bool) {
	s.ok("kill_entity", uid, s.Traversal().Kill(uid, destroyCorpse, models.NoUID))
}

func (s *Session) DestroyEntity(uid models.UID) {
	s.ok("destroy_entity", uid, s.Traversal().Destroy(uid))
}

// KillRecursive kills uid and its attachees under the filter and mode.
func (s *Session) KillRecursive(uid models.UID, destroyCorpse bool, responsible models.UID, mask models.Mask, types []models.TypeTag, mode models.RecursiveMode) traverse.Result {
	res, err := s.Traversal().KillRecursive(uid, destroyCorpse, responsible, filter.Criteria{Mask: mask, Types: types}, mode)
	s.ok("kill_recursive", uid, err)
	return res
}

func (s *Session) DestroyRecursive(uid models.UID, mask models.Mask, types []models.TypeTag, mode models.RecursiveMode) traverse.Result {
	res, err := s.Traversal().DestroyRecursive(uid, filter.Criteria{Mask: mask, Types: types}, mode)
	s.ok("destroy_recursive", uid, err)
	return res
}

func (s *Session) DestroyGrid(uid models.UID) traverse.Result {
	res, err := s.Traversal().DestroyGrid(uid)
	s.ok("destroy_grid", uid, err)
	return res
}

func (s *Session) DestroyGridAt(x, y float32, layer uint8) traverse.Result {
	res, err := s.Traversal().DestroyGridAt(x, y, layer)
	s.ok("destroy_grid", models.NoUID, err)
	return res
}

// PickUp makes who hold what.
func (s *Session) PickUp(who, what models.UID) {
	m, ok := s.movable("pick_up", who)
	if ok {
		s.ok("pick_up", what, m.PickUp(what))
	}
}

// Drop makes who let go of what it holds.
func (s *Session) Drop(who models.UID) {
	m, ok := s.movable("drop", who)
	if ok {
		s.ok("drop", who, m.Drop())
	}
}

func (s *Session) movable(op string, uid models.UID) (*views.Movable, bool) {
	e := s.GetEntityRaw(uid)
	if e == nil {
		return nil, false
	}
	m, err := e.AsMovable()
	if !s.ok(op, uid, err) {
		return nil, false
	}
	return m, true
}

// ApplyEntityDB resets the per-type fields of uid from its EntityDB.
func (s *Session) ApplyEntityDB(uid models.UID) {
	e := s.GetEntityRaw(uid)
	if e != nil {
		s.ok("apply_entity_db", uid, e.ApplyDB())
	}
}

// Distance between the absolute positions of two entities, -1 when either
// does not resolve.
func (s *Session) Distance(a, b models.UID) float32 {
	ax, ay, err := s.Graph().AbsolutePosition(a)
	if !s.ok("distance", a, err) {
		return -1
	}
	bx, by, err := s.Graph().AbsolutePosition(b)
	if !s.ok("distance", b, err) {
		return -1
	}
	return float32(math.Hypot(float64(ax-bx), float64(ay-by)))
}

// GetUserData returns the payload this script stored on uid, nil when none.
func (s *Session) GetUserData(uid models.UID) any {
	v, _ := s.UserData().Get(uid, s.id)
	return v
}

func (s *Session) SetUserData(uid models.UID, v any) {
	s.ok("set_user_data", uid, s.UserData().Set(uid, s.id, v))
}

// RegisterCustomType adds a type for mod content. When base is set and the
// engine accepts new types, the new type starts as a copy of base's EntityDB.
// A failed engine install leaves no registration behind.
func (s *Session) RegisterCustomType(name string, kind models.ViewKind, base models.TypeTag) (models.TypeTag, error) {
	tag, err := s.Registry().RegisterCustom(name, kind)
	if err != nil {
		return 0, err
	}
	if inst, ok := s.bridge.eng.(engine.TypeInstaller); ok && base != 0 {
		src, ok := s.bridge.eng.EntityDB(base)
		if !ok {
			s.Registry().Unregister(tag)
			return 0, fmt.Errorf("custom type %s: base %d: %w", name, base, models.ErrUnknownType)
		}
		db := *src
		db.ID, db.Name, db.Kind = tag, s.Registry().Name(tag), kind
		if err = inst.AddType(&db); err != nil {
			s.Registry().Unregister(tag)
			return 0, fmt.Errorf("custom type %s: %w", name, err)
		}
	}
	s.logger.Info("custom type registered", log.Type(uint32(tag)), log.String("name", name))
	return tag, nil
}
