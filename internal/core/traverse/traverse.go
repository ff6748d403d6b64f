// Package traverse implements the filtered recursive kill and destroy over the
// attachment graph. Both walk the graph once to collect the nodes to act on
// (children before their overlay) and then act on that list, resolving every
// node again right before touching it.
package traverse

import (
	"fmt"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/events/bus"
	"github.com/zeusync/modbridge/internal/core/filter"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/store"
)

// DefaultMaxNodes caps a single collection pass.
const DefaultMaxNodes = 1 << 14

// RemovalHook is told about every node right before the engine routine runs
// on it. corpse is true when the entity is expected to stay behind as a corpse.
type RemovalHook interface {
	BeforeRemoval(uid models.UID, corpse bool)
}

// Result lists what a call acted on and what it had to skip because the
// entity was gone by the time its turn came. Invalid marks a call that was
// refused as a whole, such as an inclusive pass without a filter.
type Result struct {
	Affected []models.UID
	Skipped  []models.UID
	Invalid  bool
}

// Empty reports that nothing was affected.
func (r Result) Empty() bool { return len(r.Affected) == 0 }

type action struct {
	kill          bool
	destroyCorpse bool
	responsible   models.UID
}

func (a action) String() string {
	if a.kill {
		return "kill"
	}
	return "destroy"
}

// pick decides for one resolved node whether to act on it and whether to walk
// into its attachees.
type pick func(base *engine.Entity) (take, descend bool)

type Engine struct {
	store    *store.Accessor
	events   bus.EventBus
	hook     RemovalHook
	logger   log.Log
	maxNodes int
}

// New builds a traversal engine. events and hook may be nil.
func New(acc *store.Accessor, events bus.EventBus, hook RemovalHook, logger log.Log, maxNodes int) *Engine {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Engine{
		store:    acc,
		events:   events,
		hook:     hook,
		logger:   logger.With(log.String("component", "traverse")),
		maxNodes: maxNodes,
	}
}

// KillRecursive runs the engine death routine on root and everything attached
// to it that the criteria and mode select.
func (e *Engine) KillRecursive(root models.UID, destroyCorpse bool, responsible models.UID, c filter.Criteria, mode models.RecursiveMode) (Result, error) {
	return e.run(root, c, mode, action{kill: true, destroyCorpse: destroyCorpse, responsible: responsible})
}

// DestroyRecursive removes root and the selected attachees without drops or corpses.
func (e *Engine) DestroyRecursive(root models.UID, c filter.Criteria, mode models.RecursiveMode) (Result, error) {
	return e.run(root, c, mode, action{})
}

func (e *Engine) run(root models.UID, c filter.Criteria, mode models.RecursiveMode, act action) (Result, error) {
	var sel pick
	switch mode {
	case models.ModeNone:
		sel = func(*engine.Entity) (bool, bool) { return true, true }
	case models.ModeExclusive:
		sel = func(b *engine.Entity) (bool, bool) {
			if !c.Empty() && c.Match(b.Category(), b.TypeID()) {
				return false, false
			}
			return true, true
		}
	case models.ModeInclusive:
		if c.Empty() {
			return Result{Invalid: true}, fmt.Errorf("%s recursive %d: inclusive mode without a filter: %w", act, root, models.ErrInvalidOperation)
		}
		sel = func(b *engine.Entity) (bool, bool) {
			return c.Match(b.Category(), b.TypeID()), true
		}
	default:
		return Result{Invalid: true}, fmt.Errorf("%s recursive %d: mode %d: %w", act, root, mode, models.ErrInvalidOperation)
	}

	if !e.store.Exists(root) {
		return Result{}, nil
	}
	order := e.collect(sel, root)
	res := e.apply(order, act)
	e.logger.Debug("recursive "+act.String(),
		log.UID(uint32(root)),
		log.String("mode", mode.String()),
		log.Int("affected", len(res.Affected)),
		log.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// Kill runs the death routine on a single entity through the same path a
// traversal node takes.
func (e *Engine) Kill(uid models.UID, destroyCorpse bool, responsible models.UID) error {
	rec, err := e.store.Resolve(uid)
	if err != nil {
		return fmt.Errorf("kill: %w", err)
	}
	e.act(rec.Base(), action{kill: true, destroyCorpse: destroyCorpse, responsible: responsible})
	return nil
}

func (e *Engine) Destroy(uid models.UID) error {
	rec, err := e.store.Resolve(uid)
	if err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	e.act(rec.Base(), action{})
	return nil
}

// DestroyGrid removes a grid entity, everything attached to it and whatever
// stands on it. Players and whatever they carry are never part of it; a
// player standing on the tile only loses its standing reference.
func (e *Engine) DestroyGrid(uid models.UID) (Result, error) {
	rec, err := e.store.Resolve(uid)
	if err != nil {
		return Result{}, nil
	}
	base := rec.Base()
	if base.Type == nil || !base.Type.Grid {
		return Result{Invalid: true}, fmt.Errorf("destroy grid %d: not a grid entity: %w", uid, models.ErrInvalidOperation)
	}

	sel := func(b *engine.Entity) (bool, bool) {
		if b.Category().Intersects(models.MaskPlayer) {
			return false, false
		}
		return true, true
	}
	standing := e.store.Engine().StandingOn(uid)
	order := e.collect(sel, append(standing, uid)...)
	for _, on := range standing {
		if m, err := e.store.ResolveMovable(on); err == nil && m.StandingOnUID == uid {
			m.StandingOnUID = models.NoUID
		}
	}
	res := e.apply(order, action{})
	e.logger.Debug("grid destroyed", log.UID(uint32(uid)), log.Int("affected", len(res.Affected)))
	return res, nil
}

// DestroyGridAt runs DestroyGrid on the grid entity occupying a tile, if any.
func (e *Engine) DestroyGridAt(x, y float32, layer uint8) (Result, error) {
	uid, ok := e.store.Engine().GridEntityAt(x, y, layer)
	if !ok {
		return Result{}, nil
	}
	return e.DestroyGrid(uid)
}

// collect walks the inventory edges below each root depth first and returns
// the selected nodes in post-order. Every node is visited at most once.
func (e *Engine) collect(sel pick, roots ...models.UID) []models.UID {
	var (
		order     []models.UID
		truncated bool
	)
	seen := make(map[models.UID]struct{})

	var visit func(uid models.UID)
	visit = func(uid models.UID) {
		if _, dup := seen[uid]; dup {
			return
		}
		if len(seen) >= e.maxNodes {
			truncated = true
			return
		}
		seen[uid] = struct{}{}
		rec, err := e.store.Resolve(uid)
		if err != nil {
			return
		}
		take, descend := sel(rec.Base())
		if descend {
			// copy, the engine owns the slice
			items := append([]models.UID(nil), rec.Base().Items...)
			for _, child := range items {
				visit(child)
			}
		}
		if take {
			order = append(order, uid)
		}
	}
	for _, root := range roots {
		visit(root)
	}

	if truncated {
		e.logger.Warn("traversal truncated", log.Int("roots", len(roots)), log.Int("max_nodes", e.maxNodes))
	}
	return order
}

func (e *Engine) apply(order []models.UID, act action) Result {
	var res Result
	for _, uid := range order {
		rec, err := e.store.Resolve(uid)
		if err != nil {
			res.Skipped = append(res.Skipped, uid)
			continue
		}
		e.act(rec.Base(), act)
		res.Affected = append(res.Affected, uid)
	}
	return res
}

func (e *Engine) act(base *engine.Entity, act action) {
	uid := base.UID
	corpse := act.kill && !act.destroyCorpse && base.Type != nil && base.Type.LeavesCorpse
	if e.hook != nil {
		e.hook.BeforeRemoval(uid, corpse)
	}

	eng := e.store.Engine()
	if act.kill {
		eng.Kill(uid, act.destroyCorpse, act.responsible)
	} else {
		eng.Destroy(uid)
	}

	if e.events == nil || e.store.Exists(uid) {
		return
	}
	ev := bus.NewEvent(bus.EventEntityRemoved, "traverse", bus.EntityRemovedEvent{UID: uint32(uid), Killed: act.kill})
	if err := e.events.Publish(ev); err != nil {
		e.logger.Warn("entity.removed handler failed", log.UID(uint32(uid)), log.Error(err))
	}
}
