package geography

import (
	"context"
	"strings"
	"sync"

	"quorum/pkg/platform/sentinel"
)

// Directory is an in-memory Lookup backed by a fixture hierarchy. It serves
// tests and development; production wires the HTTP adapter behind the cache.
type Directory struct {
	mu     sync.RWMutex
	byID   map[string]Node
	byName map[string]Node
}

func NewDirectory() *Directory {
	return &Directory{
		byID:   make(map[string]Node),
		byName: make(map[string]Node),
	}
}

// Add registers a node under its id and, for text-tier references, under
// the lowercased last path segment.
func (d *Directory) Add(node Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[node.ID] = node
	segments := strings.Split(node.Path, "/")
	if len(segments) > 0 {
		d.byName[strings.ToLower(segments[len(segments)-1])] = node
	}
}

// Resolve accepts either a node id or a "text:<name>" reference.
func (d *Directory) Resolve(_ context.Context, ref string) (Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if name, ok := strings.CutPrefix(ref, "text:"); ok {
		if node, found := d.byName[strings.ToLower(name)]; found {
			return node, nil
		}
		return Node{}, sentinel.ErrNotFound
	}
	if node, ok := d.byID[ref]; ok {
		return node, nil
	}
	return Node{}, sentinel.ErrNotFound
}
