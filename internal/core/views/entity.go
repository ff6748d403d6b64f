package views

import (
	"fmt"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/filter"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/traverse"
)

// Entity is the base view every type supports.
type Entity struct {
	uid  models.UID
	host Host
}

func newEntity(h Host, uid models.UID) *Entity {
	return &Entity{uid: uid, host: h}
}

func (e *Entity) UID() models.UID { return e.uid }

func (e *Entity) Capabilities() models.Capability { return models.CapEntity }

func (e *Entity) Valid() bool { return e.host.Store().Exists(e.uid) }

func (e *Entity) AsEntity() *Entity { return e }

func (e *Entity) base() (*engine.Entity, error) {
	rec, err := e.host.Store().Resolve(e.uid)
	if err != nil {
		return nil, err
	}
	return rec.Base(), nil
}

// read runs fn on the live record and reports whether the entity resolved.
func (e *Entity) read(fn func(b *engine.Entity)) bool {
	b, err := e.base()
	if err != nil {
		return false
	}
	fn(b)
	return true
}

func (e *Entity) cast(uid models.UID) View {
	if !uid.Valid() {
		return nil
	}
	v, err := e.host.Registry().Cast(e.host, uid)
	if err != nil {
		return nil
	}
	return v
}

func (e *Entity) Type() (tag models.TypeTag) {
	e.read(func(b *engine.Entity) { tag = b.TypeID() })
	return tag
}

// TypeName is the registered name of the entity's type.
func (e *Entity) TypeName() string {
	return e.host.Registry().Name(e.Type())
}

// DB returns the static properties of the entity's type.
func (e *Entity) DB() (db *engine.EntityDB) {
	e.read(func(b *engine.Entity) { db = b.Type })
	return db
}

func (e *Entity) Flags() (f models.EntityFlags) {
	e.read(func(b *engine.Entity) { f = b.Flags })
	return f
}

func (e *Entity) SetFlags(f models.EntityFlags) error {
	b, err := e.base()
	if err != nil {
		return err
	}
	b.Flags = f
	return nil
}

func (e *Entity) MoreFlags() (f models.EntityFlags) {
	e.read(func(b *engine.Entity) { f = b.MoreFlags })
	return f
}

func (e *Entity) SetMoreFlags(f models.EntityFlags) error {
	b, err := e.base()
	if err != nil {
		return err
	}
	b.MoreFlags = f
	return nil
}

// Position is relative to the overlay, if any.
func (e *Entity) Position() (x, y float32) {
	e.read(func(b *engine.Entity) { x, y = b.X, b.Y })
	return x, y
}

func (e *Entity) AbsolutePosition() (x, y float32) {
	x, y, _ = e.host.Graph().AbsolutePosition(e.uid)
	return x, y
}

func (e *Entity) Layer() (l uint8) {
	e.read(func(b *engine.Entity) { l = b.Layer })
	return l
}

func (e *Entity) Size() (w, h float32) {
	e.read(func(b *engine.Entity) { w, h = b.Width, b.Height })
	return w, h
}

func (e *Entity) SetSize(w, h float32) error {
	b, err := e.base()
	if err != nil {
		return err
	}
	b.Width, b.Height = w, h
	return nil
}

func (e *Entity) Hitbox() (x, y float32) {
	e.read(func(b *engine.Entity) { x, y = b.HitboxX, b.HitboxY })
	return x, y
}

func (e *Entity) Angle() (a float32) {
	e.read(func(b *engine.Entity) { a = b.Angle })
	return a
}

func (e *Entity) SetAngle(a float32) error {
	b, err := e.base()
	if err != nil {
		return err
	}
	b.Angle = a
	return nil
}

// Overlay is the view of what this entity rides on or sits in, nil when none.
func (e *Entity) Overlay() View {
	var o models.UID
	e.read(func(b *engine.Entity) { o = b.Overlay })
	return e.cast(o)
}

func (e *Entity) Topmost() View {
	uid, err := e.host.Graph().Topmost(e.uid)
	if err != nil {
		return nil
	}
	return e.cast(uid)
}

func (e *Entity) TopmostMount() View {
	uid, err := e.host.Graph().TopmostMount(e.uid)
	if err != nil {
		return nil
	}
	return e.cast(uid)
}

func (e *Entity) Items() []models.UID {
	items, _ := e.host.Graph().Items(e.uid)
	return items
}

func (e *Entity) IsMovable() bool {
	rec, err := e.host.Store().Resolve(e.uid)
	if err != nil {
		return false
	}
	_, ok := rec.(engine.MovableRecord)
	return ok
}

// OverlapsWith tests the two hitboxes at their absolute positions.
func (e *Entity) OverlapsWith(other View) bool {
	if other == nil {
		return false
	}
	a, err := e.base()
	if err != nil {
		return false
	}
	b, err := other.AsEntity().base()
	if err != nil {
		return false
	}
	ax, ay := e.AbsolutePosition()
	bx, by := other.AsEntity().AbsolutePosition()
	ax, ay = ax+a.OffsetX, ay+a.OffsetY
	bx, by = bx+b.OffsetX, by+b.OffsetY
	return ax-a.HitboxX < bx+b.HitboxX && ax+a.HitboxX > bx-b.HitboxX &&
		ay-a.HitboxY < by+b.HitboxY && ay+a.HitboxY > by-b.HitboxY
}

func (e *Entity) UserData() (any, bool) {
	return e.host.UserData().Get(e.uid, e.host.ScriptID())
}

func (e *Entity) SetUserData(v any) error {
	return e.host.UserData().Set(e.uid, e.host.ScriptID(), v)
}

func (e *Entity) Kill(destroyCorpse bool, responsible models.UID) error {
	return e.host.Traversal().Kill(e.uid, destroyCorpse, responsible)
}

func (e *Entity) Destroy() error {
	return e.host.Traversal().Destroy(e.uid)
}

// KillRecursive kills this entity and what is attached to it, see traverse.
func (e *Entity) KillRecursive(destroyCorpse bool, responsible models.UID, mask models.Mask, types []models.TypeTag, mode models.RecursiveMode) (traverse.Result, error) {
	return e.host.Traversal().KillRecursive(e.uid, destroyCorpse, responsible, filter.Criteria{Mask: mask, Types: types}, mode)
}

func (e *Entity) DestroyRecursive(mask models.Mask, types []models.TypeTag, mode models.RecursiveMode) (traverse.Result, error) {
	return e.host.Traversal().DestroyRecursive(e.uid, filter.Criteria{Mask: mask, Types: types}, mode)
}

// Attach puts this entity on overlay.
func (e *Entity) Attach(overlay models.UID) error {
	return e.host.Graph().Attach(e.uid, overlay)
}

func (e *Entity) Detach() error {
	return e.host.Graph().Detach(e.uid)
}

// RemoveItem drops item from this entity's inventory. Effects and logical
// helpers that cannot exist on their own are destroyed.
func (e *Entity) RemoveItem(item models.UID) error {
	if _, err := e.base(); err != nil {
		return err
	}
	return e.host.Graph().RemoveItem(e.uid, item, true)
}

// ApplyDB resets the per-type fields from the entity's EntityDB.
func (e *Entity) ApplyDB() error {
	b, err := e.base()
	if err != nil {
		return err
	}
	if b.Type == nil {
		return fmt.Errorf("apply db %d: %w", e.uid, models.ErrInvalidReference)
	}
	b.Width, b.Height = b.Type.Width, b.Type.Height
	b.HitboxX, b.HitboxY = b.Type.HitboxX, b.Type.HitboxY
	b.Flags = b.Type.DefaultFlags
	b.MoreFlags = b.Type.DefaultMoreFlags
	return nil
}

// AsMovable narrows the view; it fails for types without the movable set.
func (e *Entity) AsMovable() (*Movable, error) {
	b, err := e.base()
	if err != nil {
		return nil, err
	}
	if !e.host.Registry().Capabilities(b.TypeID()).Has(models.CapMovable) {
		return nil, fmt.Errorf("uid %d: %w", e.uid, models.ErrInvalidReference)
	}
	if _, err = e.host.Store().ResolveMovable(e.uid); err != nil {
		return nil, err
	}
	return newMovable(e.host, e.uid), nil
}
