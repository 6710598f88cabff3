package sharedstore

// Checkpoint is the `__execution__` sub-tree of the shared store (spec §3,
// glossary "Checkpoint"): the in-run record of which nodes have completed,
// under what param hash, with what returned action, and which node (if
// any) is currently failed. It enables resume.
type Checkpoint struct {
	CompletedNodes []string
	NodeActions    map[string]string
	NodeHashes     map[string]string
	FailedNode     string
}

// NewCheckpoint returns an empty checkpoint (a fresh run's starting state).
func NewCheckpoint() Checkpoint {
	return Checkpoint{
		NodeActions: map[string]string{},
		NodeHashes:  map[string]string{},
	}
}

// IsCompleted reports whether id is in CompletedNodes.
func (c *Checkpoint) IsCompleted(id string) bool {
	for _, n := range c.CompletedNodes {
		if n == id {
			return true
		}
	}
	return false
}

// MarkCompleted appends id to CompletedNodes (if not already present) and
// records its hash/action (spec §4.E step 6). If action is an error action,
// FailedNode is set to id as well, so a failed node appears both in
// CompletedNodes and as FailedNode; its recorded error action keeps the
// wrapper's cache check from treating it as done.
func (c *Checkpoint) MarkCompleted(id, hash, action string, isError bool) {
	if !c.IsCompleted(id) {
		c.CompletedNodes = append(c.CompletedNodes, id)
	}
	if c.NodeHashes == nil {
		c.NodeHashes = map[string]string{}
	}
	if c.NodeActions == nil {
		c.NodeActions = map[string]string{}
	}
	c.NodeHashes[id] = hash
	c.NodeActions[id] = action
	if isError {
		c.FailedNode = id
	}
}

// Invalidate removes id from the checkpoint entirely: CompletedNodes,
// NodeHashes, NodeActions (spec §4.G descendant invalidation).
func (c *Checkpoint) Invalidate(id string) {
	for i, n := range c.CompletedNodes {
		if n == id {
			c.CompletedNodes = append(c.CompletedNodes[:i], c.CompletedNodes[i+1:]...)
			break
		}
	}
	delete(c.NodeHashes, id)
	delete(c.NodeActions, id)
}

// Clone returns a deep copy so repair attempts never alias a previous
// checkpoint's slices/maps.
func (c Checkpoint) Clone() Checkpoint {
	out := Checkpoint{
		CompletedNodes: append([]string(nil), c.CompletedNodes...),
		NodeActions:    make(map[string]string, len(c.NodeActions)),
		NodeHashes:     make(map[string]string, len(c.NodeHashes)),
		FailedNode:     c.FailedNode,
	}
	for k, v := range c.NodeActions {
		out.NodeActions[k] = v
	}
	for k, v := range c.NodeHashes {
		out.NodeHashes[k] = v
	}
	return out
}
