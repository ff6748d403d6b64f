//go:build ignore

// gold_rush destroys every pushblock in the level while keeping the gold
// they carry, and tags each freed coin for the rest of the run.
package main

import "modbridge"

func Init() {
	for uid := modbridge.UID(1); uid < 64; uid++ {
		if modbridge.GetEntityType(uid) != modbridge.ENT_TYPE_ACTIVEFLOOR_PUSHBLOCK {
			continue
		}
		coins := modbridge.EntityGetItemsBy(uid, []modbridge.TypeTag{modbridge.ENT_TYPE_ITEM_GOLDCOIN}, 0)
		res := modbridge.DestroyRecursive(uid, 0, []modbridge.TypeTag{modbridge.ENT_TYPE_ITEM_GOLDCOIN}, modbridge.RECURSIVE_MODE_EXCLUSIVE)
		for _, c := range coins {
			modbridge.SetUserData(c, "freed")
		}
		modbridge.Printf("pushblock %d: %d destroyed, %d coins freed", uid, len(res.Affected), len(coins))
	}
}

func Terminate() {
	modbridge.Print("gold_rush unloaded")
}
