// Package bridge wires the entity components together and hands out script
// sessions. A session is the explicit context every script-facing call runs
// in, so two scripts never share a side-channel table.
package bridge

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zeusync/modbridge/internal/core/engine"
	"github.com/zeusync/modbridge/internal/core/events/bus"
	"github.com/zeusync/modbridge/internal/core/graph"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/store"
	"github.com/zeusync/modbridge/internal/core/traverse"
	"github.com/zeusync/modbridge/internal/core/userdata"
	"github.com/zeusync/modbridge/internal/core/views"
)

// Config holds the bridge tunables.
type Config struct {
	MaxTraversalNodes int    `yaml:"max_traversal_nodes"`
	MaxOverlayDepth   int    `yaml:"max_overlay_depth"`
	UserDataCodec     string `yaml:"userdata_codec"`
}

// DefaultConfig returns the bridge defaults.
func DefaultConfig() Config {
	return Config{
		MaxTraversalNodes: traverse.DefaultMaxNodes,
		MaxOverlayDepth:   graph.DefaultMaxDepth,
		UserDataCodec:     userdata.CodecYAML,
	}
}

type Bridge struct {
	cfg      Config
	eng      engine.Engine
	store    *store.Accessor
	registry *views.Registry
	graph    *graph.Manager
	trav     *traverse.Engine
	data     *userdata.Channel
	events   bus.EventBus
	logger   log.Log

	mu          sync.Mutex
	sessions    map[models.ScriptID]*Session
	transitions int
}

// New builds a bridge over eng. The type registry starts from the engine catalog.
func New(eng engine.Engine, events bus.EventBus, logger log.Log, cfg Config) (*Bridge, error) {
	codec, err := userdata.NewCodec(cfg.UserDataCodec)
	if err != nil {
		return nil, err
	}
	registry, err := views.FromEngine(eng)
	if err != nil {
		return nil, fmt.Errorf("bridge: registry: %w", err)
	}

	acc := store.New(eng)
	data := userdata.New(acc, codec, logger)
	if err = data.Subscribe(events); err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:      cfg,
		eng:      eng,
		store:    acc,
		registry: registry,
		graph:    graph.New(acc, logger, cfg.MaxOverlayDepth),
		trav:     traverse.New(acc, events, data, logger, cfg.MaxTraversalNodes),
		data:     data,
		events:   events,
		logger:   logger.With(log.String("component", "bridge")),
		sessions: make(map[models.ScriptID]*Session),
	}
	b.graph.SetDestroyer(b.trav)
	b.logger.Info("bridge ready", log.Int("types", len(registry.Names())), log.String("codec", codec.Name()))
	return b, nil
}

func (b *Bridge) Engine() engine.Engine { return b.eng }
func (b *Bridge) Registry() *views.Registry { return b.registry }
func (b *Bridge) Events() bus.EventBus { return b.events }
func (b *Bridge) UserData() *userdata.Channel { return b.data }

// NewSession starts a script instance.
func (b *Bridge) NewSession(name string) *Session {
	s := &Session{
		id:     models.NewScriptID(),
		name:   name,
		bridge: b,
	}
	s.logger = b.logger.With(log.String("script", name), log.Script(s.id))

	b.mu.Lock()
	b.sessions[s.id] = s
	b.mu.Unlock()

	s.logger.Info("session opened")
	return s
}

// Sessions lists the open sessions by name.
func (b *Bridge) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (b *Bridge) dropSession(id models.ScriptID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, id)
}

// UnloadLevel delivers the level unload boundary. Side-channel payloads are
// captured when it returns.
func (b *Bridge) UnloadLevel() error {
	b.mu.Lock()
	n := b.transitions
	b.mu.Unlock()
	return b.events.Publish(bus.NewEvent(bus.EventLevelUnload, "bridge", bus.LevelEvent{Transition: n}))
}

// LoadLevel delivers the level load boundary, before scripts resume.
func (b *Bridge) LoadLevel() error {
	b.mu.Lock()
	b.transitions++
	n := b.transitions
	b.mu.Unlock()
	return b.events.Publish(bus.NewEvent(bus.EventLevelLoad, "bridge", bus.LevelEvent{Transition: n}))
}

// Transition runs next between the unload and load boundaries.
func (b *Bridge) Transition(next func()) error {
	if err := b.UnloadLevel(); err != nil {
		return fmt.Errorf("level unload: %w", err)
	}
	next()
	if err := b.LoadLevel(); err != nil {
		return fmt.Errorf("level load: %w", err)
	}
	return nil
}

// Close tears every session down and detaches from the bus.
func (b *Bridge) Close() {
	for _, s := range b.Sessions() {
		s.Close()
	}
	b.data.Close()
}
