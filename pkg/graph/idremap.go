package graph

import "sync"

// IDRemap is the central translation table compilers update whenever they
// replace a node. External callers that hold an old node id must resolve
// it through this table before use (design notes: "cyclic references
// between graph and tensors").
type IDRemap struct {
	mu sync.Mutex
	m  map[int64]int64
}

// NewIDRemap constructs an empty remap table.
func NewIDRemap() *IDRemap {
	return &IDRemap{m: make(map[int64]int64)}
}

// Set records that old has been replaced by new.
func (r *IDRemap) Set(old, new int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[old] = new
}

// Resolve follows the remap chain for id until it reaches a node with no
// further remap entry, returning the final id.
func (r *IDRemap) Resolve(id int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]bool{}
	cur := id
	for {
		next, ok := r.m[cur]
		if !ok || seen[cur] {
			return cur
		}
		seen[cur] = true
		cur = next
	}
}
