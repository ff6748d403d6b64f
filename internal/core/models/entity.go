package models

import (
	"fmt"

	"github.com/google/uuid"
)

// UID is the engine's store identifier for a live entity. It never owns the
// entity: the engine may invalidate it at any time and every use must go
// back through the store.
type UID uint32

// NoUID marks "no entity" (an empty overlay, nothing held, ...).
const NoUID UID = 0

func (u UID) Valid() bool { return u != NoUID }

func (u UID) String() string { return fmt.Sprintf("uid(%d)", uint32(u)) }

// TypeTag is the dynamic type discriminator of an entity (ENT_TYPE).
type TypeTag uint32

// CustomTypeBase is the first tag handed out to types registered after startup.
const CustomTypeBase TypeTag = 0x10000

func (t TypeTag) IsCustom() bool { return t >= CustomTypeBase }

// EntityFlags mirror the engine's flags / more_flags words.
type EntityFlags uint32

// Flag bits the bridge itself reads.
const (
	FlagInvisible   EntityFlags = 1 << 0
	FlagSolid       EntityFlags = 1 << 2
	FlagPassesLiq   EntityFlags = 1 << 10
	FlagDead        EntityFlags = 1 << 28
	FlagShopItem    EntityFlags = 1 << 23
	FlagOnFire      EntityFlags = 1 << 29
	FlagCanBePushed EntityFlags = 1 << 17
)

func (f EntityFlags) Has(bit EntityFlags) bool { return f&bit == bit }

// Capability describes which view a type tag dispatches to. Sets are nested:
// every movable is an entity, every player or mount is a movable.
type Capability uint8

const (
	CapEntity Capability = 1 << iota
	CapMovable
	CapPlayer
	CapMount
)

func (c Capability) Has(o Capability) bool { return c&o == o }

func (c Capability) String() string {
	switch {
	case c.Has(CapPlayer):
		return "Player"
	case c.Has(CapMount):
		return "Mount"
	case c.Has(CapMovable):
		return "Movable"
	case c.Has(CapEntity):
		return "Entity"
	default:
		return "None"
	}
}

// ViewKind names the capability sets the registry can hand out.
type ViewKind string

const (
	KindEntity  ViewKind = "entity"
	KindMovable ViewKind = "movable"
	KindPlayer  ViewKind = "player"
	KindMount   ViewKind = "mount"
)

// Capabilities returns the full nested set for a kind. Unknown kinds are base entities.
func (k ViewKind) Capabilities() Capability {
	switch k {
	case KindMovable:
		return CapEntity | CapMovable
	case KindPlayer:
		return CapEntity | CapMovable | CapPlayer
	case KindMount:
		return CapEntity | CapMovable | CapMount
	default:
		return CapEntity
	}
}

// ScriptID identifies one running script instance.
type ScriptID uuid.UUID

func NewScriptID() ScriptID { return ScriptID(uuid.New()) }

func (id ScriptID) String() string { return uuid.UUID(id).String() }
