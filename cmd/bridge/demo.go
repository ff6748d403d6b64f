package main

import (
	"fmt"

	"github.com/zeusync/modbridge/internal/core/engine/memory"
	"github.com/zeusync/modbridge/internal/core/models"
)

// spawnDemoLevel lays out a small room: a floor row, a player holding a
// rock, a turkey, a couple of snakes and a pushblock carrying gold.
func spawnDemoLevel(eng *memory.Engine) error {
	tag := func(name string) (models.TypeTag, error) {
		t, ok := eng.TypeByName(name)
		if !ok {
			return 0, fmt.Errorf("type %s: %w", name, models.ErrUnknownType)
		}
		return t, nil
	}
	names := []string{"FLOOR_GENERIC", "CHAR_ANA_SPELUNKY", "ITEM_ROCK", "MOUNT_TURKEY", "MONS_SNAKE", "ACTIVEFLOOR_PUSHBLOCK", "ITEM_GOLDCOIN"}
	tags := make(map[string]models.TypeTag, len(names))
	for _, n := range names {
		t, err := tag(n)
		if err != nil {
			return err
		}
		tags[n] = t
	}

	floors := make([]models.UID, 0, 10)
	for x := 0; x < 10; x++ {
		uid, err := eng.Spawn(tags["FLOOR_GENERIC"], float32(x), 0, 0)
		if err != nil {
			return err
		}
		floors = append(floors, uid)
	}

	player, err := eng.Spawn(tags["CHAR_ANA_SPELUNKY"], 2, 1, 0)
	if err != nil {
		return err
	}
	eng.SetStandingOn(player, floors[2])
	if _, err = eng.SpawnAttached(tags["ITEM_ROCK"], player, 0.3, 0); err != nil {
		return err
	}

	turkey, err := eng.Spawn(tags["MOUNT_TURKEY"], 4, 1, 0)
	if err != nil {
		return err
	}
	eng.SetStandingOn(turkey, floors[4])

	for _, x := range []float32{6, 8} {
		snake, err := eng.Spawn(tags["MONS_SNAKE"], x, 1, 0)
		if err != nil {
			return err
		}
		eng.SetStandingOn(snake, floors[int(x)])
	}

	block, err := eng.Spawn(tags["ACTIVEFLOOR_PUSHBLOCK"], 7, 1, 0)
	if err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if _, err = eng.SpawnAttached(tags["ITEM_GOLDCOIN"], block, float32(i)*0.3-0.3, 0.5); err != nil {
			return err
		}
	}
	return nil
}
