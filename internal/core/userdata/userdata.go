// Package userdata keeps script-owned payloads attached to entities, one
// table per script instance, and carries the payloads of carry-over entities
// across a level transition.
package userdata

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/modbridge/internal/core/events/bus"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/observability/log"
	"github.com/zeusync/modbridge/internal/core/store"
)

// record is one payload parked in the transition buffer. value is the
// payload as the script stored it; data and sum are its encoded form.
type record struct {
	key    string
	script models.ScriptID
	value  any
	data   []byte
	sum    uint64
}

// Channel is the side table keyed by (entity, script).
type Channel struct {
	mu     sync.Mutex
	store  *store.Accessor
	codec  Codec
	logger log.Log

	tables  map[models.ScriptID]map[models.UID]any
	pending []record
	subs    []bus.Subscription
}

func New(acc *store.Accessor, codec Codec, logger log.Log) *Channel {
	if codec == nil {
		codec = yamlCodec{}
	}
	return &Channel{
		store:  acc,
		codec:  codec,
		logger: logger.With(log.String("component", "userdata"), log.String("codec", codec.Name())),
		tables: make(map[models.ScriptID]map[models.UID]any),
	}
}

// Get returns the payload script stored on uid. An entity that no longer
// resolves has no payload.
func (c *Channel) Get(uid models.UID, script models.ScriptID) (any, bool) {
	if !c.store.Exists(uid) {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.tables[script][uid]
	return v, ok
}

// Set stores payload for (uid, script), replacing any previous one. A nil
// payload deletes the entry.
func (c *Channel) Set(uid models.UID, script models.ScriptID, payload any) error {
	if _, err := c.store.Resolve(uid); err != nil {
		return fmt.Errorf("set user data: %w", err)
	}
	if payload == nil {
		c.Delete(uid, script)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[script]
	if !ok {
		t = make(map[models.UID]any)
		c.tables[script] = t
	}
	t[uid] = payload
	return nil
}

func (c *Channel) Delete(uid models.UID, script models.ScriptID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables[script], uid)
}

// Teardown drops everything one script instance stored, including what is
// waiting in the transition buffer. Other scripts are untouched.
func (c *Channel) Teardown(script models.ScriptID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.tables[script])
	delete(c.tables, script)
	kept := c.pending[:0]
	for _, r := range c.pending {
		if r.script != script {
			kept = append(kept, r)
		}
	}
	c.pending = kept
	c.logger.Debug("script data torn down", log.Script(script), log.Int("entries", n))
}

// Forget drops every script's payload for an entity that is gone for good.
func (c *Channel) Forget(uid models.UID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tables {
		delete(t, uid)
	}
}

// BeforeRemoval lets traversal clean up ahead of the engine routine. Corpses
// keep their payloads.
func (c *Channel) BeforeRemoval(uid models.UID, corpse bool) {
	if !corpse {
		c.Forget(uid)
	}
}

// Len counts payloads across every script.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tables {
		n += len(t)
	}
	return n
}

// Unload parks the payloads of carry-over entities in the transition buffer
// and drops everything else.
func (c *Channel) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	eng := c.store.Engine()
	dropped := 0
	for script, t := range c.tables {
		for uid, payload := range t {
			key, ok := eng.CarryKey(uid)
			if !ok {
				dropped++
				continue
			}
			data, err := encode(c.codec, payload)
			if err != nil {
				c.logger.Warn("payload not encodable, dropped", log.UID(uint32(uid)), log.Script(script), log.Error(err))
				dropped++
				continue
			}
			c.pending = append(c.pending, record{key: key, script: script, value: payload, data: data, sum: xxhash.Sum64(data)})
		}
		c.tables[script] = make(map[models.UID]any)
	}
	c.logger.Info("level unload", log.Int("carried", len(c.pending)), log.Int("dropped", dropped))
}

// Load restores the transition buffer onto the identifiers the carry-over
// entities got on the new level. A verified record hands back the payload
// the script stored; records without one are decoded.
func (c *Channel) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()
	eng := c.store.Engine()
	restored := 0
	for _, r := range c.pending {
		if xxhash.Sum64(r.data) != r.sum {
			c.logger.Warn("transition record corrupt, dropped", log.String("key", r.key), log.Script(r.script))
			continue
		}
		uid, ok := eng.ResolveCarryKey(r.key)
		if !ok {
			c.logger.Debug("carry-over entity missing", log.String("key", r.key))
			continue
		}
		v := r.value
		if v == nil {
			var err error
			if v, err = c.codec.Unmarshal(r.data); err != nil {
				c.logger.Warn("transition record not decodable", log.String("key", r.key), log.Error(err))
				continue
			}
		}
		t, ok := c.tables[r.script]
		if !ok {
			t = make(map[models.UID]any)
			c.tables[r.script] = t
		}
		t[uid] = v
		restored++
	}
	c.pending = nil
	c.logger.Info("level load", log.Int("restored", restored))
}

// Subscribe hooks the channel to the lifecycle events on b.
func (c *Channel) Subscribe(b bus.EventBus) error {
	handlers := map[string]bus.EventHandler{
		bus.EventLevelUnload: func(bus.Event) error { c.Unload(); return nil },
		bus.EventLevelLoad:   func(bus.Event) error { c.Load(); return nil },
		bus.EventEntityRemoved: func(ev bus.Event) error {
			if p, ok := ev.Data().(bus.EntityRemovedEvent); ok {
				c.Forget(models.UID(p.UID))
			}
			return nil
		},
		bus.EventScriptTeardown: func(ev bus.Event) error {
			id, ok := ev.Data().(models.ScriptID)
			if !ok {
				return fmt.Errorf("userdata: script.teardown payload %T", ev.Data())
			}
			c.Teardown(id)
			return nil
		},
	}
	for typ, h := range handlers {
		sub, err := b.Subscribe(typ, h)
		if err != nil {
			c.Close()
			return fmt.Errorf("userdata: subscribe %s: %w", typ, err)
		}
		c.subs = append(c.subs, sub)
	}
	return nil
}

// Close cancels the bus subscriptions.
func (c *Channel) Close() {
	for _, s := range c.subs {
		_ = s.Cancel()
	}
	c.subs = nil
}
