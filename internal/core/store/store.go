// Package store resolves engine identifiers to live records. Every operation
// that takes a raw UID calls Resolve first and drops the record when it returns.
package store

import (
	"fmt"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/models"
)

// Accessor is the only path from a UID to engine memory.
type Accessor struct {
	eng engine.Engine
}

func New(eng engine.Engine) *Accessor {
	return &Accessor{eng: eng}
}

// Engine exposes the collaborator for the engine routines (kill, destroy, ...).
func (a *Accessor) Engine() engine.Engine { return a.eng }

// Resolve returns the live record behind uid or ErrNotFound. Identifier reuse
// follows whatever the engine does; nothing stronger is promised here.
func (a *Accessor) Resolve(uid models.UID) (engine.Record, error) {
	if !uid.Valid() {
		return nil, fmt.Errorf("resolve %d: %w", uid, models.ErrNotFound)
	}
	rec, ok := a.eng.Entity(uid)
	if !ok || rec == nil {
		return nil, fmt.Errorf("resolve %d: %w", uid, models.ErrNotFound)
	}
	return rec, nil
}

func (a *Accessor) Exists(uid models.UID) bool {
	_, err := a.Resolve(uid)
	return err == nil
}

// ResolveMovable resolves uid and requires the movable shape.
func (a *Accessor) ResolveMovable(uid models.UID) (*engine.Movable, error) {
	rec, err := a.Resolve(uid)
	if err != nil {
		return nil, err
	}
	m, ok := rec.(engine.MovableRecord)
	if !ok {
		return nil, fmt.Errorf("uid %d is not movable: %w", uid, models.ErrInvalidReference)
	}
	return m.MovableData(), nil
}

func (a *Accessor) ResolvePlayer(uid models.UID) (*engine.Player, error) {
	rec, err := a.Resolve(uid)
	if err != nil {
		return nil, err
	}
	p, ok := rec.(engine.PlayerRecord)
	if !ok {
		return nil, fmt.Errorf("uid %d is not a player: %w", uid, models.ErrInvalidReference)
	}
	return p.PlayerData(), nil
}

func (a *Accessor) ResolveMount(uid models.UID) (*engine.Mount, error) {
	rec, err := a.Resolve(uid)
	if err != nil {
		return nil, err
	}
	m, ok := rec.(engine.MountRecord)
	if !ok {
		return nil, fmt.Errorf("uid %d is not a mount: %w", uid, models.ErrInvalidReference)
	}
	return m.MountData(), nil
}

// TypeOf returns the dynamic type tag of a live entity.
func (a *Accessor) TypeOf(uid models.UID) (models.TypeTag, error) {
	rec, err := a.Resolve(uid)
	if err != nil {
		return 0, err
	}
	return rec.Base().TypeID(), nil
}
