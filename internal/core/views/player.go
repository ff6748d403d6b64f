package views

import (
	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/models"
)

// Player adds the inventory block and the player slot.
type Player struct {
	*Movable
}

func (p *Player) Capabilities() models.Capability {
	return models.CapEntity | models.CapMovable | models.CapPlayer
}

func (p *Player) data() (*engine.Player, error) {
	return p.host.Store().ResolvePlayer(p.uid)
}

func (p *Player) Slot() int8 {
	d, err := p.data()
	if err != nil {
		return 0
	}
	return d.Slot
}

func (p *Player) Inventory() engine.Inventory {
	d, err := p.data()
	if err != nil {
		return engine.Inventory{}
	}
	return d.Inventory
}

func (p *Player) SetMoney(v int32) error {
	d, err := p.data()
	if err != nil {
		return err
	}
	d.Inventory.Money = v
	return nil
}

func (p *Player) SetBombs(v uint8) error {
	d, err := p.data()
	if err != nil {
		return err
	}
	d.Inventory.Bombs = v
	return nil
}

func (p *Player) SetRopes(v uint8) error {
	d, err := p.data()
	if err != nil {
		return err
	}
	d.Inventory.Ropes = v
	return nil
}

// Mount adds taming and riding.
type Mount struct {
	*Movable
}

func (m *Mount) Capabilities() models.Capability {
	return models.CapEntity | models.CapMovable | models.CapMount
}

func (m *Mount) data() (*engine.Mount, error) {
	return m.host.Store().ResolveMount(m.uid)
}

func (m *Mount) Tamed() bool {
	d, err := m.data()
	return err == nil && d.Tamed
}

func (m *Mount) Tame(v bool) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	d.Tamed = v
	return nil
}

func (m *Mount) RiderUID() models.UID {
	d, err := m.data()
	if err != nil {
		return models.NoUID
	}
	return d.Rider
}

func (m *Mount) Rider() View { return m.cast(m.RiderUID()) }

// Carry seats rider on the mount.
func (m *Mount) Carry(rider models.UID) error {
	d, err := m.data()
	if err != nil {
		return err
	}
	if _, err = m.host.Store().ResolveMovable(rider); err != nil {
		return err
	}
	if err = m.host.Graph().Attach(rider, m.uid); err != nil {
		return err
	}
	d.Rider = rider
	return nil
}
