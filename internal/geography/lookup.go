// Package geography resolves location references against the party's
// territorial hierarchy. The hierarchy itself is owned by an external
// service; this package defines the consuming port plus adapters for tests,
// HTTP, and a Redis read-through cache.
package geography

import (
	"context"

	id "quorum/pkg/domain"
)

// Node is a resolved position in the hierarchy. Path is the slash-joined
// chain of ancestor names down to the node.
type Node struct {
	ID    string      `json:"id"`
	Path  string      `json:"path"`
	Level id.GeoLevel `json:"level"`
}

// Lookup resolves a raw reference (free text like "text:Ward5" or a node
// id) to a Node. Unknown references return sentinel.ErrNotFound; transport
// problems and deadline expiries return the underlying error so callers can
// distinguish "definitively unknown" from "try again".
type Lookup interface {
	Resolve(ctx context.Context, ref string) (Node, error)
}
