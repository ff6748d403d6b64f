// Package engine describes the boundary between the bridge and the game engine
// that owns every entity. The bridge never holds on to a Record beyond the
// operation that resolved it.
package engine

import "github.com/zeusync/modbridge/internal/core/models"

// Engine is everything the bridge consumes from the host engine.
type Engine interface {
	// Entity resolves a UID to its live record.
	Entity(uid models.UID) (Record, bool)

	// EntityDB returns the static per-type properties for a tag.
	EntityDB(tag models.TypeTag) (*EntityDB, bool)
	// Types lists the engine's type catalog.
	Types() []*EntityDB

	// Kill runs the engine death routine: drops, sounds and corpse logic.
	Kill(uid models.UID, destroyCorpse bool, responsible models.UID)
	// Destroy removes an entity without drops or corpse.
	Destroy(uid models.UID)
	// Damage applies damage through the engine; false means it had no effect.
	Damage(uid, dealer models.UID, amount int8, kind models.DamageType) bool

	// GridEntityAt returns the grid (floor) entity occupying a tile.
	GridEntityAt(x, y float32, layer uint8) (models.UID, bool)
	// StandingOn lists entities whose standing_on_uid is uid.
	StandingOn(uid models.UID) []models.UID

	// CarryKey returns a stable key for entities that survive a level
	// transition (players, what they hold, what they ride).
	CarryKey(uid models.UID) (string, bool)
	// ResolveCarryKey maps a carry key back to the UID it got on the new level.
	ResolveCarryKey(key string) (models.UID, bool)
}

// TypeInstaller is implemented by engines that accept new entity types after
// startup (cloned EntityDB entries for mod content).
type TypeInstaller interface {
	AddType(db *EntityDB) error
}

// GridMover is implemented by engines that index grid entities by tile.
type GridMover interface {
	MoveGrid(uid models.UID, x, y float32, layer uint8) bool
}

// EntityDB is the static property block shared by every entity of one type.
type EntityDB struct {
	ID               models.TypeTag     `yaml:"id"`
	Name             string             `yaml:"name"`
	SearchFlags      models.Mask        `yaml:"search_flags"`
	Kind             models.ViewKind    `yaml:"kind"`
	Width            float32            `yaml:"width"`
	Height           float32            `yaml:"height"`
	HitboxX          float32            `yaml:"hitboxx"`
	HitboxY          float32            `yaml:"hitboxy"`
	DefaultFlags     models.EntityFlags `yaml:"default_flags"`
	DefaultMoreFlags models.EntityFlags `yaml:"default_more_flags"`
	Life             int8               `yaml:"life"`
	Friction         float32            `yaml:"friction"`
	Elasticity       float32            `yaml:"elasticity"`
	Weight           float32            `yaml:"weight"`
	MaxSpeed         float32            `yaml:"max_speed"`
	LeavesCorpse     bool               `yaml:"leaves_corpse_behind"`
	Grid             bool               `yaml:"grid"`
}

// Record is a live engine object. Narrower shapes are reached through the
// optional accessor interfaces below.
type Record interface {
	Base() *Entity
}

type MovableRecord interface {
	Record
	MovableData() *Movable
}

type PlayerRecord interface {
	MovableRecord
	PlayerData() *Player
}

type MountRecord interface {
	MovableRecord
	MountData() *Mount
}

// Entity carries the fields every entity has. X and Y are relative to the
// overlay when one is set.
type Entity struct {
	UID       models.UID
	Type      *EntityDB
	Overlay   models.UID
	Items     []models.UID
	Flags     models.EntityFlags
	MoreFlags models.EntityFlags
	X, Y      float32
	Layer     uint8
	Width     float32
	Height    float32
	Angle     float32
	HitboxX   float32
	HitboxY   float32
	OffsetX   float32
	OffsetY   float32
	DrawDepth uint8
}

func (e *Entity) Base() *Entity { return e }

// Movable is an entity with physics and health.
type Movable struct {
	Entity
	VelocityX     float32
	VelocityY     float32
	Health        int8
	HoldingUID    models.UID
	StandingOnUID models.UID
	OwnerUID      models.UID
	LastOwnerUID  models.UID
	State         uint8
	LastState     uint8
	MoveState     uint8
	StunTimer     uint16
	FrozenTimer   uint8
	Price         int32
	Buttons       models.Button
}

func (m *Movable) MovableData() *Movable { return m }

// Inventory is the per-player resource block.
type Inventory struct {
	Money int32
	Bombs uint8
	Ropes uint8
}

type Player struct {
	Movable
	Slot      int8
	Inventory Inventory
}

func (p *Player) PlayerData() *Player { return p }

type Mount struct {
	Movable
	Tamed bool
	Rider models.UID
}

func (m *Mount) MountData() *Mount { return m }

// Category returns the type's search flags, or MaskAny when the record has no type.
func (e *Entity) Category() models.Mask {
	if e.Type == nil {
		return models.MaskAny
	}
	return e.Type.SearchFlags
}

// TypeID returns the record's type tag.
func (e *Entity) TypeID() models.TypeTag {
	if e.Type == nil {
		return 0
	}
	return e.Type.ID
}

// RemoveItem drops uid from the inventory set. It reports whether it was present.
func (e *Entity) RemoveItem(uid models.UID) bool {
	for i, it := range e.Items {
		if it == uid {
			e.Items = append(e.Items[:i], e.Items[i+1:]...)
			return true
		}
	}
	return false
}
