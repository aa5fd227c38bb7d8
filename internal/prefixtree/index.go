// Package prefixtree implements the Prefix Index (a longest-prefix-match
// structure per IP version) and the Configuration Compiler that builds one
// from a validated configuration document.
package prefixtree

import (
	"net/netip"

	"github.com/gaissmai/bart"

	"artemis-core/internal/types"
)

// Index holds the two per-address-family longest-prefix-match tables that
// back the Prefix Index of spec §4.1.
type Index struct {
	v4 bart.Table[*types.PrefixNode]
	v6 bart.Table[*types.PrefixNode]
}

// New returns an empty Index.
func New() *Index {
	return &Index{}
}

func (idx *Index) tableFor(addr netip.Addr) *bart.Table[*types.PrefixNode] {
	if addr.Is4() {
		return &idx.v4
	}
	return &idx.v6
}

// Insert associates node with the canonicalized prefix, replacing any node
// already stored at that exact prefix; it does not merge rule chains, so
// node.Confs must already hold the full rule list for the prefix.
func (idx *Index) Insert(prefix netip.Prefix, node *types.PrefixNode) {
	prefix = prefix.Masked()
	idx.tableFor(prefix.Addr()).Insert(prefix, node)
}

// Lookup performs an exact-key lookup, required for post-compile iteration
// and rule merging.
func (idx *Index) Lookup(prefix netip.Prefix) (*types.PrefixNode, bool) {
	prefix = prefix.Masked()
	return idx.tableFor(prefix.Addr()).Get(prefix)
}

// LookupAddress performs a longest-prefix-match for a bare address,
// returning the tightest-enclosing configured prefix's node.
func (idx *Index) LookupAddress(addr netip.Addr) (*types.PrefixNode, bool) {
	return idx.tableFor(addr).Lookup(addr)
}

// LookupPrefix performs a longest-prefix-match for an update's announced
// prefix: the correct rule is the one for the tightest-enclosing configured
// prefix under which update.Prefix falls, even if update.Prefix is itself
// more specific than anything configured.
func (idx *Index) LookupPrefix(prefix netip.Prefix) (*types.PrefixNode, bool) {
	prefix = prefix.Masked()
	node, _, ok := idx.tableFor(prefix.Addr()).LookupPrefixLPM(prefix)
	return node, ok
}

// Iterate calls fn for every (prefix, node) pair in the index, in no
// particular order, across both address families.
func (idx *Index) Iterate(fn func(netip.Prefix, *types.PrefixNode)) {
	for p, n := range idx.v4.All() {
		fn(p, n)
	}
	for p, n := range idx.v6.All() {
		fn(p, n)
	}
}

// Size returns the total number of distinct configured prefixes across
// both address families.
func (idx *Index) Size() int {
	return idx.v4.Size() + idx.v6.Size()
}

// WorstPrefix walks the supernets of p (including p itself, if configured)
// and returns the highest (shortest-mask) enclosing configured prefix: the
// canonical "monitored prefix" for p. Returns the zero prefix and false if
// p has no configured supernet.
func WorstPrefix(idx *Index, p netip.Prefix) (netip.Prefix, bool) {
	p = p.Masked()
	table := idx.tableFor(p.Addr())

	var worst netip.Prefix
	found := false
	for pfx := range table.Supernets(p) {
		worst = pfx
		found = true
	}
	return worst, found
}
