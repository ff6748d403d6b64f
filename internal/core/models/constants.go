package models

// RecursiveMode selects how the mask/type filter applies during a recursive
// kill or destroy (RECURSIVE_MODE).
type RecursiveMode uint8

const (
	// ModeExclusive protects matching entities and everything attached to them.
	ModeExclusive RecursiveMode = 0
	// ModeInclusive affects matching entities only; needs a non-empty filter.
	ModeInclusive RecursiveMode = 1
	// ModeNone ignores the filter.
	ModeNone RecursiveMode = 2
)

var RecursiveModeNames = map[string]RecursiveMode{
	"EXCLUSIVE": ModeExclusive,
	"INCLUSIVE": ModeInclusive,
	"NONE":      ModeNone,
}

func (m RecursiveMode) String() string {
	switch m {
	case ModeExclusive:
		return "EXCLUSIVE"
	case ModeInclusive:
		return "INCLUSIVE"
	case ModeNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// DamageType is the 16 bit mask passed to Movable damage (DAMAGE_TYPE).
type DamageType uint16

const (
	DamageGeneric    DamageType = 0x1
	DamageWhip       DamageType = 0x2
	DamageThrow      DamageType = 0x4
	DamageArrow      DamageType = 0x8
	DamageSword      DamageType = 0x10
	DamageFire       DamageType = 0x20
	DamagePoison     DamageType = 0x40
	DamagePoisonTick DamageType = 0x80
	DamageCurse      DamageType = 0x100
	DamageFall       DamageType = 0x200
	DamageLaser      DamageType = 0x400
	DamageIceBreak   DamageType = 0x800
	DamageStomp      DamageType = 0x1000
	DamageExplosion  DamageType = 0x2000
	DamageVoodoo     DamageType = 0x4000
)

var DamageTypeNames = map[string]DamageType{
	"GENERIC":     DamageGeneric,
	"WHIP":        DamageWhip,
	"THROW":       DamageThrow,
	"ARROW":       DamageArrow,
	"SWORD":       DamageSword,
	"FIRE":        DamageFire,
	"POISON":      DamagePoison,
	"POISON_TICK": DamagePoisonTick,
	"CURSE":       DamageCurse,
	"FALL":        DamageFall,
	"LASER":       DamageLaser,
	"ICE_BREAK":   DamageIceBreak,
	"STOMP":       DamageStomp,
	"EXPLOSION":   DamageExplosion,
	"VOODOO":      DamageVoodoo,
}

// Button bits used by movable input state (BUTTON).
type Button uint8

const (
	ButtonJump Button = 1
	ButtonWhip Button = 2
	ButtonBomb Button = 4
	ButtonRope Button = 8
	ButtonRun  Button = 16
	ButtonDoor Button = 32
)

var ButtonNames = map[string]Button{
	"JUMP": ButtonJump,
	"WHIP": ButtonWhip,
	"BOMB": ButtonBomb,
	"ROPE": ButtonRope,
	"RUN":  ButtonRun,
	"DOOR": ButtonDoor,
}

// Shape of an entity hitbox (SHAPE).
type Shape uint8

const (
	ShapeRectangle Shape = 1
	ShapeCircle    Shape = 2
)

// RepeatType of an animation (REPEAT_TYPE).
type RepeatType uint8

const (
	RepeatNone         RepeatType = 0
	RepeatLinear       RepeatType = 1
	RepeatBackAndForth RepeatType = 2
)
