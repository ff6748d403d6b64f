package views

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/models"
)

// Constructor builds the view for one entity.
type Constructor func(h Host, uid models.UID) View

type entry struct {
	name string
	kind models.ViewKind
	ctor Constructor
}

// Registry maps type tags to names, capability sets and view constructors.
// Custom tags can be added at any time.
type Registry struct {
	mu         sync.RWMutex
	entries    map[models.TypeTag]entry
	byName     map[string]models.TypeTag
	kinds      map[models.ViewKind]Constructor
	nextCustom models.TypeTag
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[models.TypeTag]entry),
		byName:  make(map[string]models.TypeTag),
		kinds: map[models.ViewKind]Constructor{
			models.KindEntity:  func(h Host, uid models.UID) View { return newEntity(h, uid) },
			models.KindMovable: func(h Host, uid models.UID) View { return newMovable(h, uid) },
			models.KindPlayer:  func(h Host, uid models.UID) View { return &Player{Movable: newMovable(h, uid)} },
			models.KindMount:   func(h Host, uid models.UID) View { return &Mount{Movable: newMovable(h, uid)} },
		},
		nextCustom: models.CustomTypeBase,
	}
}

// FromEngine registers every type of the engine catalog.
func FromEngine(eng engine.Engine) (*Registry, error) {
	r := NewRegistry()
	for _, db := range eng.Types() {
		if err := r.Register(db.ID, db.Name, db.Kind); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func normalize(name string) string {
	return strings.TrimPrefix(strings.ToUpper(name), "ENT_TYPE_")
}

// Register binds tag to name and to the constructor of kind.
func (r *Registry) Register(tag models.TypeTag, name string, kind models.ViewKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(tag, name, kind)
}

func (r *Registry) register(tag models.TypeTag, name string, kind models.ViewKind) error {
	n := normalize(name)
	if _, dup := r.entries[tag]; dup {
		return fmt.Errorf("type %d: %w", tag, models.ErrTypeExists)
	}
	if _, dup := r.byName[n]; dup {
		return fmt.Errorf("type %s: %w", n, models.ErrTypeExists)
	}
	ctor, ok := r.kinds[kind]
	if !ok {
		return fmt.Errorf("type %s: view kind %q: %w", n, kind, models.ErrUnknownType)
	}
	r.entries[tag] = entry{name: n, kind: kind, ctor: ctor}
	r.byName[n] = tag
	if tag >= r.nextCustom {
		r.nextCustom = tag + 1
	}
	return nil
}

// RegisterCustom allocates the next custom tag for name.
func (r *Registry) RegisterCustom(name string, kind models.ViewKind) (models.TypeTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tag := r.nextCustom
	if err := r.register(tag, name, kind); err != nil {
		return 0, err
	}
	return tag, nil
}

// Unregister removes tag. A custom tag that was the last one handed out is
// handed out again by the next RegisterCustom.
func (r *Registry) Unregister(tag models.TypeTag) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[tag]
	if !ok {
		return false
	}
	delete(r.entries, tag)
	delete(r.byName, e.name)
	if tag.IsCustom() && tag+1 == r.nextCustom {
		r.nextCustom = tag
	}
	return true
}

// SetConstructor replaces the constructor of a registered tag.
func (r *Registry) SetConstructor(tag models.TypeTag, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[tag]
	if !ok {
		return fmt.Errorf("type %d: %w", tag, models.ErrUnknownType)
	}
	e.ctor = ctor
	r.entries[tag] = e
	return nil
}

// Lookup finds a tag by name, with or without the ENT_TYPE_ prefix.
func (r *Registry) Lookup(name string) (models.TypeTag, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.byName[normalize(name)]
	return tag, ok
}

func (r *Registry) Name(tag models.TypeTag) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[tag]; ok {
		return e.name
	}
	return ""
}

// Names lists every registered name in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Capabilities returns the capability set registered for tag. Unknown tags
// are base entities.
func (r *Registry) Capabilities(tag models.TypeTag) models.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[tag]; ok {
		return e.kind.Capabilities()
	}
	return models.CapEntity
}

// Cast resolves uid and builds the narrowest view registered for its type.
// It never touches the entity.
func (r *Registry) Cast(h Host, uid models.UID) (View, error) {
	rec, err := h.Store().Resolve(uid)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	e, ok := r.entries[rec.Base().TypeID()]
	r.mu.RUnlock()
	if !ok || e.ctor == nil {
		return newEntity(h, uid), nil
	}
	return e.ctor(h, uid), nil
}
