// Package annotator implements the Annotator: it consumes raw and stored
// BGP updates (plus ongoing-hijack rescans and mitigation requests),
// resolves each against a locally cached copy of the Prefix Index, attaches
// the matching rule-node, and republishes.
package annotator

import (
	"net/netip"
	"sync"

	"artemis-core/internal/logging"
	"artemis-core/internal/prefixtree"
	"artemis-core/internal/registry"
	"artemis-core/internal/types"
)

// Annotator holds one worker's local, lazily-refreshed copy of the Prefix
// Index plus the registry it refreshes from.
type Annotator struct {
	reg *registry.Registry
	log logging.Logger

	mu    sync.RWMutex
	local *prefixtree.Index
}

// New creates an Annotator bound to the given Shared Registry.
func New(reg *registry.Registry, log logging.Logger) *Annotator {
	local, _ := reg.PrefixTreeSnapshot()
	return &Annotator{reg: reg, log: log, local: local}
}

// refreshIfNeeded rebuilds the local LPM copy from the Shared Registry when
// the prefix_tree_recalculate flag is raised. The flag is cleared by the
// registry inside the same critical section as the snapshot read (spec §9),
// so a concurrent Configure cannot be missed between the check and clear.
func (a *Annotator) refreshIfNeeded() {
	if !a.reg.RecalculateNeeded() {
		return
	}
	local, _ := a.reg.PrefixTreeSnapshot()
	a.mu.Lock()
	a.local = local
	a.mu.Unlock()
	a.log.Debug("annotator: local prefix tree copy rebuilt")
}

// Annotate resolves update.Prefix against the local Prefix Index and, on a
// match, returns an AnnotatedUpdate carrying a copy of the matching node.
// The second return value is false when no configured prefix encloses the
// update, in which case the caller must silently drop it (spec §4.3 step 4).
func (a *Annotator) Annotate(update types.BGPUpdate) (types.AnnotatedUpdate, bool) {
	node, ok := a.match(update.Prefix)
	if !ok {
		return types.AnnotatedUpdate{}, false
	}
	return types.AnnotatedUpdate{BGPUpdate: update, PrefixNode: node}, true
}

// PrefixCarrier is any message whose routing prefix can be extracted for
// matching against the Prefix Index: BGPUpdate, HijackEvent (for ongoing
// rescans), and MitigationRequest all implement it.
type PrefixCarrier interface {
	GetPrefix() string
}

// Annotated wraps any PrefixCarrier message together with its resolved
// rule-node, generalizing AnnotatedUpdate to the other three input streams
// named in spec §4.3 (stored replays, ongoing-hijack rescans, mitigation
// requests) which are annotated the same way as live updates.
type Annotated[T PrefixCarrier] struct {
	Message    T                 `json:"message"`
	PrefixNode *types.PrefixNode `json:"prefix_node"`
}

// AnnotateMessage resolves msg's prefix against the local Prefix Index.
// Returns false when no configured prefix encloses it, per spec §4.3 step 4
// ("If no match is found, silently drop").
func AnnotateMessage[T PrefixCarrier](a *Annotator, msg T) (Annotated[T], bool) {
	node, ok := a.match(msg.GetPrefix())
	if !ok {
		return Annotated[T]{}, false
	}
	return Annotated[T]{Message: msg, PrefixNode: node}, true
}

func (a *Annotator) match(rawPrefix string) (*types.PrefixNode, bool) {
	a.refreshIfNeeded()

	prefix, err := netip.ParsePrefix(rawPrefix)
	if err != nil {
		a.log.Warn("annotator: dropping message with unparseable prefix %q: %v", rawPrefix, err)
		return nil, false
	}

	a.mu.RLock()
	local := a.local
	a.mu.RUnlock()

	node, ok := local.LookupPrefix(prefix)
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}
