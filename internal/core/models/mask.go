package models

import (
	"sort"
	"strings"
)

// Mask is the coarse entity category bitset (MASK). The numeric values are
// part of the scripting contract.
type Mask uint32

const (
	MaskAny         Mask = 0x0
	MaskPlayer      Mask = 0x1
	MaskMount       Mask = 0x2
	MaskMonster     Mask = 0x4
	MaskItem        Mask = 0x8
	MaskExplosion   Mask = 0x10
	MaskRope        Mask = 0x20
	MaskFX          Mask = 0x40
	MaskActiveFloor Mask = 0x80
	MaskFloor       Mask = 0x100
	MaskDecoration  Mask = 0x200
	MaskBG          Mask = 0x400
	MaskShadow      Mask = 0x800
	MaskLogical     Mask = 0x1000
	MaskWater       Mask = 0x2000
	MaskLava        Mask = 0x4000
	MaskLiquid      Mask = MaskWater | MaskLava
)

// MaskNames is the MASK constant table as exposed to scripts.
var MaskNames = map[string]Mask{
	"PLAYER":      MaskPlayer,
	"MOUNT":       MaskMount,
	"MONSTER":     MaskMonster,
	"ITEM":        MaskItem,
	"EXPLOSION":   MaskExplosion,
	"ROPE":        MaskRope,
	"FX":          MaskFX,
	"ACTIVEFLOOR": MaskActiveFloor,
	"FLOOR":       MaskFloor,
	"DECORATION":  MaskDecoration,
	"BG":          MaskBG,
	"SHADOW":      MaskShadow,
	"LOGICAL":     MaskLogical,
	"WATER":       MaskWater,
	"LAVA":        MaskLava,
	"LIQUID":      MaskLiquid,
	"ANY":         MaskAny,
}

// ParseMask accepts a single name or names joined with '|', case-insensitive.
func ParseMask(s string) (Mask, bool) {
	var m Mask
	for _, part := range strings.Split(s, "|") {
		v, ok := MaskNames[strings.ToUpper(strings.TrimSpace(part))]
		if !ok {
			return 0, false
		}
		m |= v
	}
	return m, true
}

// Intersects reports whether any bit of o is set in m.
func (m Mask) Intersects(o Mask) bool { return m&o != 0 }

func (m Mask) String() string {
	if m == MaskAny {
		return "ANY"
	}
	var parts []string
	for name, bit := range MaskNames {
		if bit == MaskAny || bit == MaskLiquid {
			continue
		}
		if m&bit != 0 {
			parts = append(parts, name)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
