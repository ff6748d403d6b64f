package script

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/zeusync/modbridge/internal/bridge"
	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/traverse"
	"github.com/zeusync/modbridge/internal/core/views"
)

// ImportPath is what scripts import: import "modbridge".
const ImportPath = "modbridge"

// Standard packages scripts may import.
var allowedPkgs = []string{
	"fmt/fmt",
	"math/math",
	"sort/sort",
	"strconv/strconv",
	"strings/strings",
}

func restrictedStdlib() interp.Exports {
	restricted := interp.Exports{}
	for _, key := range allowedPkgs {
		if syms, ok := stdlib.Symbols[key]; ok {
			restricted[key] = syms
		}
	}
	return restricted
}

// baseSymbols are the types and constant tables shared by every session.
func baseSymbols() map[string]reflect.Value {
	m := map[string]reflect.Value{
		"UID":           reflect.ValueOf((*models.UID)(nil)),
		"TypeTag":       reflect.ValueOf((*models.TypeTag)(nil)),
		"Mask":          reflect.ValueOf((*models.Mask)(nil)),
		"RecursiveMode": reflect.ValueOf((*models.RecursiveMode)(nil)),
		"DamageType":    reflect.ValueOf((*models.DamageType)(nil)),
		"EntityFlags":   reflect.ValueOf((*models.EntityFlags)(nil)),
		"Button":        reflect.ValueOf((*models.Button)(nil)),
		"ViewKind":      reflect.ValueOf((*models.ViewKind)(nil)),
		"View":          reflect.ValueOf((*views.View)(nil)),
		"Entity":        reflect.ValueOf((*views.Entity)(nil)),
		"Movable":       reflect.ValueOf((*views.Movable)(nil)),
		"Player":        reflect.ValueOf((*views.Player)(nil)),
		"Mount":         reflect.ValueOf((*views.Mount)(nil)),
		"EntityDB":      reflect.ValueOf((*engine.EntityDB)(nil)),
		"Inventory":     reflect.ValueOf((*engine.Inventory)(nil)),
		"Result":        reflect.ValueOf((*traverse.Result)(nil)),

		"NO_UID":             reflect.ValueOf(models.NoUID),
		"KIND_ENTITY":        reflect.ValueOf(models.KindEntity),
		"KIND_MOVABLE":       reflect.ValueOf(models.KindMovable),
		"KIND_PLAYER":        reflect.ValueOf(models.KindPlayer),
		"KIND_MOUNT":         reflect.ValueOf(models.KindMount),
		"SHAPE_RECTANGLE":    reflect.ValueOf(models.ShapeRectangle),
		"SHAPE_CIRCLE":       reflect.ValueOf(models.ShapeCircle),
		"ENT_FLAG_DEAD":      reflect.ValueOf(models.FlagDead),
		"ENT_FLAG_INVISIBLE": reflect.ValueOf(models.FlagInvisible),
	}
	for name, v := range models.MaskNames {
		m["MASK_"+name] = reflect.ValueOf(v)
	}
	for name, v := range models.RecursiveModeNames {
		m["RECURSIVE_MODE_"+name] = reflect.ValueOf(v)
	}
	for name, v := range models.DamageTypeNames {
		m["DAMAGE_TYPE_"+name] = reflect.ValueOf(v)
	}
	for name, v := range models.ButtonNames {
		m["BUTTON_"+name] = reflect.ValueOf(v)
	}
	return m
}

// exportsFor binds the global functions to one session.
func exportsFor(s *bridge.Session, print func(string)) interp.Exports {
	m := baseSymbols()
	for _, name := range s.Registry().Names() {
		if tag, ok := s.Registry().Lookup(name); ok {
			m["ENT_TYPE_"+name] = reflect.ValueOf(tag)
		}
	}

	m["Print"] = reflect.ValueOf(func(args ...any) { print(fmt.Sprint(args...)) })
	m["Printf"] = reflect.ValueOf(func(format string, args ...any) { print(fmt.Sprintf(format, args...)) })
	m["ScriptID"] = reflect.ValueOf(func() string { return s.ID().String() })

	m["GetEntity"] = reflect.ValueOf(s.GetEntity)
	m["GetEntityRaw"] = reflect.ValueOf(s.GetEntityRaw)
	m["GetType"] = reflect.ValueOf(s.GetType)
	m["GetEntityType"] = reflect.ValueOf(s.GetEntityType)
	m["EntityTypeName"] = reflect.ValueOf(s.EntityTypeName)
	m["GetEntityFlags"] = reflect.ValueOf(s.GetEntityFlags)
	m["SetEntityFlags"] = reflect.ValueOf(s.SetEntityFlags)
	m["GetEntityFlags2"] = reflect.ValueOf(s.GetEntityFlags2)
	m["SetEntityFlags2"] = reflect.ValueOf(s.SetEntityFlags2)
	m["GetPosition"] = reflect.ValueOf(s.GetPosition)
	m["GetVelocity"] = reflect.ValueOf(s.GetVelocity)
	m["MoveEntity"] = reflect.ValueOf(s.MoveEntity)
	m["MoveGridEntity"] = reflect.ValueOf(s.MoveGridEntity)
	m["AttachEntity"] = reflect.ValueOf(s.AttachEntity)
	m["DetachEntity"] = reflect.ValueOf(s.DetachEntity)
	m["EntityRemoveItem"] = reflect.ValueOf(s.EntityRemoveItem)
	m["EntityHasItemUID"] = reflect.ValueOf(s.EntityHasItemUID)
	m["EntityHasItemType"] = reflect.ValueOf(s.EntityHasItemType)
	m["EntityGetItemsBy"] = reflect.ValueOf(s.EntityGetItemsBy)
	m["KillEntity"] = reflect.ValueOf(s.KillEntity)
	m["DestroyEntity"] = reflect.ValueOf(s.DestroyEntity)
	m["KillRecursive"] = reflect.ValueOf(s.KillRecursive)
	m["DestroyRecursive"] = reflect.ValueOf(s.DestroyRecursive)
	m["DestroyGrid"] = reflect.ValueOf(s.DestroyGrid)
	m["DestroyGridAt"] = reflect.ValueOf(s.DestroyGridAt)
	m["PickUp"] = reflect.ValueOf(s.PickUp)
	m["Drop"] = reflect.ValueOf(s.Drop)
	m["ApplyEntityDB"] = reflect.ValueOf(s.ApplyEntityDB)
	m["Distance"] = reflect.ValueOf(s.Distance)
	m["GetUserData"] = reflect.ValueOf(s.GetUserData)
	m["SetUserData"] = reflect.ValueOf(s.SetUserData)
	m["RegisterCustomType"] = reflect.ValueOf(s.RegisterCustomType)

	return interp.Exports{ImportPath + "/" + ImportPath: m}
}

// stripBuildDirectives drops leading build constraints, which only the Go
// toolchain understands.
func stripBuildDirectives(src string) string {
	lines := strings.Split(src, "\n")
	i := 0
	for i < len(lines) {
		l := strings.TrimSpace(lines[i])
		if strings.HasPrefix(l, "//go:build") || strings.HasPrefix(l, "// +build") || l == "" {
			i++
			continue
		}
		break
	}
	return strings.Join(lines[i:], "\n")
}

func printer(logger log.Log) func(string) {
	return func(msg string) { logger.Info(msg) }
}
