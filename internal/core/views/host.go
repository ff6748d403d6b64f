// Package views hands out typed projections over engine entities. A view
// holds an identifier and its host, nothing else: every call goes back
// through the store, so a view of a removed entity reads as zero values and
// refuses mutation.
package views

import (
	"github.com/zeusync/modbridge/internal/core/graph"
	"github.com/zeusync/modbridge/internal/core/models"
	"github.com/zeusync/modbridge/internal/core/store"
	"github.com/zeusync/modbridge/internal/core/traverse"
	"github.com/zeusync/modbridge/internal/core/userdata"
)

// Host is the script session a view acts on behalf of.
type Host interface {
	Store() *store.Accessor
	Graph() *graph.Manager
	Traversal() *traverse.Engine
	UserData() *userdata.Channel
	Registry() *Registry
	ScriptID() models.ScriptID
}

// View is the common surface of every typed projection.
type View interface {
	UID() models.UID
	Capabilities() models.Capability
	// Valid reports whether the entity still resolves.
	Valid() bool
	AsEntity() *Entity
}
