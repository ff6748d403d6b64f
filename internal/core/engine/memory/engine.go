// Package memory is a reference Engine that keeps every entity in a map. The
// demo host and the package tests run against it.
package memory

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/models"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var (
	_ engine.Engine        = (*Engine)(nil)
	_ engine.TypeInstaller = (*Engine)(nil)
	_ engine.GridMover     = (*Engine)(nil)
)

type catalog struct {
	Types []*engine.EntityDB `yaml:"types"`
}

type gridKey struct {
	x, y  int
	layer uint8
}

// Removal records one call into the engine's death or removal routine.
type Removal struct {
	UID    models.UID
	Type   models.TypeTag
	Killed bool
	Corpse bool
	Blamed models.UID
}

// Engine is a single-threaded in-memory entity store.
type Engine struct {
	nextUID  models.UID
	entities map[models.UID]engine.Record
	types    map[models.TypeTag]*engine.EntityDB
	grid     map[gridKey]models.UID
	carried  map[string]models.UID
	removals []Removal
}

// New builds an engine over the embedded reference catalog.
func New() (*Engine, error) {
	return NewWithCatalog(bytes.NewReader(defaultCatalog))
}

// NewWithCatalog builds an engine over a YAML type catalog.
func NewWithCatalog(r io.Reader) (*Engine, error) {
	var c catalog
	if err := yaml.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	e := &Engine{
		nextUID:  1,
		entities: make(map[models.UID]engine.Record),
		types:    make(map[models.TypeTag]*engine.EntityDB, len(c.Types)),
		grid:     make(map[gridKey]models.UID),
		carried:  make(map[string]models.UID),
	}
	for _, t := range c.Types {
		if _, dup := e.types[t.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate type id %d", t.ID)
		}
		e.types[t.ID] = t
	}
	return e, nil
}

// AddType installs a type at runtime, the way mods clone EntityDB entries.
func (e *Engine) AddType(db *engine.EntityDB) error {
	if _, dup := e.types[db.ID]; dup {
		return fmt.Errorf("type %d: %w", db.ID, models.ErrTypeExists)
	}
	e.types[db.ID] = db
	return nil
}

// TypeByName looks a catalog entry up by its ENT_TYPE name.
func (e *Engine) TypeByName(name string) (models.TypeTag, bool) {
	for id, t := range e.types {
		if t.Name == name {
			return id, true
		}
	}
	return 0, false
}

// Spawn creates an entity of the given type at a position.
func (e *Engine) Spawn(tag models.TypeTag, x, y float32, layer uint8) (models.UID, error) {
	db, ok := e.types[tag]
	if !ok {
		return models.NoUID, fmt.Errorf("spawn type %d: %w", tag, models.ErrUnknownType)
	}
	uid := e.nextUID
	e.nextUID++

	base := engine.Entity{
		UID:       uid,
		Type:      db,
		Flags:     db.DefaultFlags,
		MoreFlags: db.DefaultMoreFlags,
		X:         x,
		Y:         y,
		Layer:     layer,
		Width:     db.Width,
		Height:    db.Height,
		HitboxX:   db.HitboxX,
		HitboxY:   db.HitboxY,
	}
	mov := engine.Movable{Entity: base, Health: db.Life}

	var rec engine.Record
	switch db.Kind {
	case models.KindPlayer:
		rec = &engine.Player{Movable: mov, Slot: e.nextPlayerSlot(), Inventory: engine.Inventory{Bombs: 4, Ropes: 4}}
	case models.KindMount:
		rec = &engine.Mount{Movable: mov}
	case models.KindMovable:
		rec = &mov
	default:
		rec = &base
	}
	e.entities[uid] = rec
	if db.Grid {
		e.grid[keyFor(x, y, layer)] = uid
	}
	return uid, nil
}

// SpawnAttached spawns an entity and links it under overlay with a relative offset.
func (e *Engine) SpawnAttached(tag models.TypeTag, overlay models.UID, dx, dy float32) (models.UID, error) {
	parent, ok := e.entities[overlay]
	if !ok {
		return models.NoUID, fmt.Errorf("spawn on %d: %w", overlay, models.ErrNotFound)
	}
	uid, err := e.Spawn(tag, dx, dy, parent.Base().Layer)
	if err != nil {
		return models.NoUID, err
	}
	e.entities[uid].Base().Overlay = overlay
	parent.Base().Items = append(parent.Base().Items, uid)
	return uid, nil
}

// SetStandingOn marks a movable as standing on another entity.
func (e *Engine) SetStandingOn(uid, floor models.UID) {
	if m, ok := e.entities[uid].(engine.MovableRecord); ok {
		m.MovableData().StandingOnUID = floor
	}
}

func (e *Engine) Entity(uid models.UID) (engine.Record, bool) {
	rec, ok := e.entities[uid]
	return rec, ok
}

func (e *Engine) EntityDB(tag models.TypeTag) (*engine.EntityDB, bool) {
	db, ok := e.types[tag]
	return db, ok
}

func (e *Engine) Types() []*engine.EntityDB {
	out := make([]*engine.EntityDB, 0, len(e.types))
	for _, t := range e.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len is the number of live entities, corpses included.
func (e *Engine) Len() int { return len(e.entities) }

// Removals returns every death or removal routine call so far.
func (e *Engine) Removals() []Removal { return e.removals }

func (e *Engine) Kill(uid models.UID, destroyCorpse bool, responsible models.UID) {
	rec, ok := e.entities[uid]
	if !ok {
		return
	}
	base := rec.Base()
	corpse := !destroyCorpse && base.Type != nil && base.Type.LeavesCorpse
	e.removals = append(e.removals, Removal{UID: uid, Type: base.TypeID(), Killed: true, Corpse: corpse, Blamed: responsible})
	if corpse {
		// corpses keep their slot but drop what they carry
		e.release(base)
		base.Flags |= models.FlagDead
		if m, ok := rec.(engine.MovableRecord); ok {
			m.MovableData().Health = 0
			m.MovableData().HoldingUID = models.NoUID
		}
		return
	}
	e.remove(base)
}

func (e *Engine) Destroy(uid models.UID) {
	rec, ok := e.entities[uid]
	if !ok {
		return
	}
	e.removals = append(e.removals, Removal{UID: uid, Type: rec.Base().TypeID()})
	e.remove(rec.Base())
}

func (e *Engine) Damage(uid, dealer models.UID, amount int8, kind models.DamageType) bool {
	m, ok := e.entities[uid].(engine.MovableRecord)
	if !ok || m.Base().Flags.Has(models.FlagDead) {
		return false
	}
	mov := m.MovableData()
	if kind&(models.DamagePoison|models.DamageCurse) != 0 && amount == 0 {
		// status effects without health loss
		return true
	}
	mov.Health -= amount
	if mov.Health <= 0 {
		e.Kill(uid, false, dealer)
	}
	return true
}

func (e *Engine) GridEntityAt(x, y float32, layer uint8) (models.UID, bool) {
	uid, ok := e.grid[keyFor(x, y, layer)]
	if !ok {
		return models.NoUID, false
	}
	if _, alive := e.entities[uid]; !alive {
		return models.NoUID, false
	}
	return uid, true
}

// MoveGrid relocates a grid entity and its tile index entry.
func (e *Engine) MoveGrid(uid models.UID, x, y float32, layer uint8) bool {
	rec, ok := e.entities[uid]
	if !ok || rec.Base().Type == nil || !rec.Base().Type.Grid {
		return false
	}
	base := rec.Base()
	delete(e.grid, keyFor(base.X, base.Y, base.Layer))
	base.X, base.Y, base.Layer = x, y, layer
	e.grid[keyFor(x, y, layer)] = uid
	return true
}

func (e *Engine) StandingOn(uid models.UID) []models.UID {
	var out []models.UID
	for id, rec := range e.entities {
		if m, ok := rec.(engine.MovableRecord); ok && m.MovableData().StandingOnUID == uid {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// CarryKey names players by slot, the mount a player rides and the items on a player.
func (e *Engine) CarryKey(uid models.UID) (string, bool) {
	rec, ok := e.entities[uid]
	if !ok || rec.Base().Flags.Has(models.FlagDead) {
		return "", false
	}
	if p, ok := rec.(engine.PlayerRecord); ok {
		return playerKey(p.PlayerData()), true
	}
	base := rec.Base()
	// an item sitting on a player
	if owner, ok := e.entities[base.Overlay].(engine.PlayerRecord); ok {
		for i, it := range owner.Base().Items {
			if it == uid {
				return playerKey(owner.PlayerData()) + "/item" + strconv.Itoa(i), true
			}
		}
	}
	// a mount with a player on it
	if _, ok := rec.(engine.MountRecord); ok {
		for _, it := range base.Items {
			if p, ok := e.entities[it].(engine.PlayerRecord); ok {
				return playerKey(p.PlayerData()) + "/mount", true
			}
		}
	}
	return "", false
}

func (e *Engine) ResolveCarryKey(key string) (models.UID, bool) {
	uid, ok := e.carried[key]
	if !ok {
		return models.NoUID, false
	}
	if _, alive := e.entities[uid]; !alive {
		return models.NoUID, false
	}
	return uid, true
}

// NextLevel unloads the level and respawns every carry-over entity under a
// fresh UID, keeping their links. It returns the old to new mapping.
func (e *Engine) NextLevel() map[models.UID]models.UID {
	keys := make(map[models.UID]string)
	for uid := range e.entities {
		if k, ok := e.CarryKey(uid); ok {
			keys[uid] = k
		}
	}
	old := make([]models.UID, 0, len(keys))
	for uid := range keys {
		old = append(old, uid)
	}
	sort.Slice(old, func(i, j int) bool { return old[i] < old[j] })

	remap := make(map[models.UID]models.UID, len(old))
	for _, uid := range old {
		remap[uid] = e.nextUID
		e.nextUID++
	}

	next := make(map[models.UID]engine.Record, len(old))
	for _, uid := range old {
		rec := cloneRecord(e.entities[uid])
		base := rec.Base()
		base.UID = remap[uid]
		base.Overlay = remap[base.Overlay]
		items := base.Items[:0:0]
		for _, it := range base.Items {
			if n, ok := remap[it]; ok {
				items = append(items, n)
			}
		}
		base.Items = items
		if m, ok := rec.(engine.MovableRecord); ok {
			mov := m.MovableData()
			mov.HoldingUID = remap[mov.HoldingUID]
			mov.StandingOnUID = models.NoUID
			mov.OwnerUID = remap[mov.OwnerUID]
			mov.LastOwnerUID = remap[mov.LastOwnerUID]
		}
		if mt, ok := rec.(engine.MountRecord); ok {
			mt.MountData().Rider = remap[mt.MountData().Rider]
		}
		next[base.UID] = rec
	}

	e.entities = next
	e.grid = make(map[gridKey]models.UID)
	e.carried = make(map[string]models.UID, len(keys))
	for uid, k := range keys {
		e.carried[k] = remap[uid]
	}
	return remap
}

// remove unlinks an entity from the graph and deletes it.
func (e *Engine) remove(base *engine.Entity) {
	e.release(base)
	if parent, ok := e.entities[base.Overlay]; ok {
		parent.Base().RemoveItem(base.UID)
		if m, ok := parent.(engine.MovableRecord); ok && m.MovableData().HoldingUID == base.UID {
			m.MovableData().HoldingUID = models.NoUID
		}
	}
	base.Overlay = models.NoUID
	if base.Type != nil && base.Type.Grid {
		for k, uid := range e.grid {
			if uid == base.UID {
				delete(e.grid, k)
			}
		}
	}
	delete(e.entities, base.UID)
}

// release drops everything attached to base, keeping their world position.
func (e *Engine) release(base *engine.Entity) {
	ax, ay := e.absolute(base)
	for _, it := range base.Items {
		child, ok := e.entities[it]
		if !ok {
			continue
		}
		cb := child.Base()
		cb.X += ax
		cb.Y += ay
		cb.Overlay = models.NoUID
	}
	base.Items = nil
}

func (e *Engine) absolute(base *engine.Entity) (float32, float32) {
	x, y := base.X, base.Y
	seen := map[models.UID]bool{base.UID: true}
	for cur := base.Overlay; cur.Valid() && !seen[cur]; {
		seen[cur] = true
		rec, ok := e.entities[cur]
		if !ok {
			break
		}
		x += rec.Base().X
		y += rec.Base().Y
		cur = rec.Base().Overlay
	}
	return x, y
}

func (e *Engine) nextPlayerSlot() int8 {
	used := make(map[int8]bool)
	for _, rec := range e.entities {
		if p, ok := rec.(engine.PlayerRecord); ok {
			used[p.PlayerData().Slot] = true
		}
	}
	var slot int8 = 1
	for used[slot] {
		slot++
	}
	return slot
}

func playerKey(p *engine.Player) string {
	return "player" + strconv.Itoa(int(p.Slot))
}

func keyFor(x, y float32, layer uint8) gridKey {
	return gridKey{
		x:     int(math.Round(float64(x))),
		y:     int(math.Round(float64(y))),
		layer: layer,
	}
}

func cloneRecord(rec engine.Record) engine.Record {
	switch r := rec.(type) {
	case *engine.Player:
		c := *r
		c.Items = append([]models.UID(nil), r.Items...)
		return &c
	case *engine.Mount:
		c := *r
		c.Items = append([]models.UID(nil), r.Items...)
		return &c
	case *engine.Movable:
		c := *r
		c.Items = append([]models.UID(nil), r.Items...)
		return &c
	case *engine.Entity:
		c := *r
		c.Items = append([]models.UID(nil), r.Items...)
		return &c
	default:
		panic(fmt.Sprintf("memory: unknown record %T", rec))
	}
}

// ParseTag accepts a catalog name (with or without the ENT_TYPE_ prefix) or a number.
func (e *Engine) ParseTag(s string) (models.TypeTag, bool) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		_, ok := e.types[models.TypeTag(n)]
		return models.TypeTag(n), ok
	}
	return e.TypeByName(strings.TrimPrefix(s, "ENT_TYPE_"))
}
