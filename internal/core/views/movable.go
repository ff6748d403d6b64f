package views

import (
	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/models"
)

// Movable adds physics, health and holding to the base view.
type Movable struct {
	*Entity
}

func newMovable(h Host, uid models.UID) *Movable {
	return &Movable{Entity: newEntity(h, uid)}
}

func (m *Movable) Capabilities() models.Capability { return models.CapEntity | models.CapMovable }

func (m *Movable) data() (*engine.Movable, error) {
	return m.host.Store().ResolveMovable(m.uid)
}

func (m *Movable) readMov(fn func(d *engine.Movable)) bool {
	d, err := m.data()
	if err != nil {
		return false
	}
	fn(d)
	return true
}

func (m *Movable) Velocity() (vx, vy float32) {
	m.readMov(func(d *engine.Movable) { vx, vy = d.VelocityX, d.VelocityY })
	return vx, vy
}

func (m *Movable) SetVelocity(vx, vy float32) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	d.VelocityX, d.VelocityY = vx, vy
	return nil
}

// AbsoluteVelocity adds up the velocities along the overlay chain.
func (m *Movable) AbsoluteVelocity() (vx, vy float32) {
	vx, vy, _ = m.host.Graph().AbsoluteVelocity(m.uid)
	return vx, vy
}

func (m *Movable) Health() (hp int8) {
	m.readMov(func(d *engine.Movable) { hp = d.Health })
	return hp
}

func (m *Movable) SetHealth(hp int8) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	d.Health = hp
	return nil
}

func (m *Movable) HoldingUID() (uid models.UID) {
	m.readMov(func(d *engine.Movable) { uid = d.HoldingUID })
	return uid
}

// Holding is the view of the held entity, nil when nothing is held.
func (m *Movable) Holding() View { return m.cast(m.HoldingUID()) }

func (m *Movable) StandingOnUID() (uid models.UID) {
	m.readMov(func(d *engine.Movable) { uid = d.StandingOnUID })
	return uid
}

func (m *Movable) OwnerUID() (uid models.UID) {
	m.readMov(func(d *engine.Movable) { uid = d.OwnerUID })
	return uid
}

func (m *Movable) LastOwnerUID() (uid models.UID) {
	m.readMov(func(d *engine.Movable) { uid = d.LastOwnerUID })
	return uid
}

func (m *Movable) State() (state, last uint8) {
	m.readMov(func(d *engine.Movable) { state, last = d.State, d.LastState })
	return state, last
}

func (m *Movable) MoveState() (s uint8) {
	m.readMov(func(d *engine.Movable) { s = d.MoveState })
	return s
}

func (m *Movable) Buttons() (b models.Button) {
	m.readMov(func(d *engine.Movable) { b = d.Buttons })
	return b
}

func (m *Movable) StunTimer() (frames uint16) {
	m.readMov(func(d *engine.Movable) { frames = d.StunTimer })
	return frames
}

func (m *Movable) Stun(frames uint16) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	d.StunTimer = frames
	return nil
}

func (m *Movable) FrozenTimer() (frames uint8) {
	m.readMov(func(d *engine.Movable) { frames = d.FrozenTimer })
	return frames
}

func (m *Movable) Freeze(frames uint8) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	d.FrozenTimer = frames
	return nil
}

func (m *Movable) Price() (p int32) {
	m.readMov(func(d *engine.Movable) { p = d.Price })
	return p
}

func (m *Movable) SetPrice(p int32) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	d.Price = p
	return nil
}

func (m *Movable) IsOnFire() bool {
	return m.MoreFlags().Has(models.FlagOnFire)
}

// Damage goes through the engine; false means it had no effect.
func (m *Movable) Damage(dealer models.UID, amount int8, kind models.DamageType) (bool, error) {
	if _, err := m.data(); err != nil {
		return false, err
	}
	return m.host.Store().Engine().Damage(m.uid, dealer, amount, kind), nil
}

// SetPosition moves the entity to an absolute position, keeping its overlay.
func (m *Movable) SetPosition(x, y float32) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	if d.Overlay.Valid() {
		ox, oy, err := m.host.Graph().AbsolutePosition(d.Overlay)
		if err == nil {
			x, y = x-ox, y-oy
		}
	}
	d.X, d.Y = x, y
	return nil
}

// PickUp attaches item to this entity and holds it. Whatever was held
// before is dropped once the new item is attached.
func (m *Movable) PickUp(item models.UID) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	it, err := m.host.Store().ResolveMovable(item)
	if err != nil {
		return err
	}
	prev := d.HoldingUID
	if err = m.host.Graph().Attach(item, m.uid); err != nil {
		return err
	}
	if prev.Valid() && prev != item {
		_ = m.host.Graph().Detach(prev)
	}
	d.HoldingUID = item
	it.OwnerUID = m.uid
	it.LastOwnerUID = m.uid
	return nil
}

// Drop lets go of the held entity, which keeps its world position.
func (m *Movable) Drop() error {
	d, err := m.data()
	if err != nil {
		return err
	}
	held := d.HoldingUID
	if !held.Valid() {
		return nil
	}
	d.HoldingUID = models.NoUID
	if it, err := m.host.Store().ResolveMovable(held); err == nil {
		it.OwnerUID = models.NoUID
		it.LastOwnerUID = m.uid
		return m.host.Graph().Detach(held)
	}
	return nil
}
