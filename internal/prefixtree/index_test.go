package prefixtree

import (
	"net/netip"
	"testing"

	"artemis-core/internal/types"
)

func TestIndexInsertLookup(t *testing.T) {
	idx := New()
	prefix := netip.MustParsePrefix("10.0.0.0/24")
	node := &types.PrefixNode{Prefix: "10.0.0.0/24"}
	idx.Insert(prefix, node)

	got, ok := idx.Lookup(prefix)
	if !ok {
		t.Fatal("Lookup did not find inserted prefix")
	}
	if got != node {
		t.Errorf("Lookup returned a different node than inserted")
	}
}

func TestIndexLookupPrefixLPM(t *testing.T) {
	idx := New()
	outer := netip.MustParsePrefix("10.0.0.0/16")
	idx.Insert(outer, &types.PrefixNode{Prefix: "10.0.0.0/16"})

	sub := netip.MustParsePrefix("10.0.5.0/24")
	node, ok := idx.LookupPrefix(sub)
	if !ok {
		t.Fatal("LookupPrefix did not find enclosing supernet")
	}
	if node.Prefix != "10.0.0.0/16" {
		t.Errorf("LookupPrefix returned %q, want 10.0.0.0/16", node.Prefix)
	}
}

func TestIndexLookupPrefixNoMatch(t *testing.T) {
	idx := New()
	idx.Insert(netip.MustParsePrefix("10.0.0.0/24"), &types.PrefixNode{Prefix: "10.0.0.0/24"})

	if _, ok := idx.LookupPrefix(netip.MustParsePrefix("192.168.0.0/24")); ok {
		t.Error("LookupPrefix unexpectedly matched an unrelated prefix")
	}
}

// TestWorstPrefixInvariant covers spec §8 invariant 2: worst_prefix(p) ≠ ∅
// and worst_prefix(worst_prefix(p)) = worst_prefix(p).
func TestWorstPrefixInvariant(t *testing.T) {
	idx := New()
	outer := netip.MustParsePrefix("10.0.0.0/16")
	idx.Insert(outer, &types.PrefixNode{Prefix: "10.0.0.0/16"})
	inner := netip.MustParsePrefix("10.0.1.0/24")
	idx.Insert(inner, &types.PrefixNode{Prefix: "10.0.1.0/24"})

	worst, ok := WorstPrefix(idx, inner)
	if !ok {
		t.Fatal("WorstPrefix(inner) found nothing, want the /16")
	}
	if worst != outer {
		t.Errorf("WorstPrefix(inner) = %v, want %v", worst, outer)
	}

	worst2, ok := WorstPrefix(idx, worst)
	if !ok || worst2 != worst {
		t.Errorf("WorstPrefix(WorstPrefix(p)) = %v, want %v (idempotent)", worst2, worst)
	}
}

func TestIndexIterateAndSize(t *testing.T) {
	idx := New()
	idx.Insert(netip.MustParsePrefix("10.0.0.0/24"), &types.PrefixNode{Prefix: "10.0.0.0/24"})
	idx.Insert(netip.MustParsePrefix("2001:db8::/32"), &types.PrefixNode{Prefix: "2001:db8::/32"})

	if idx.Size() != 2 {
		t.Errorf("Size() = %d, want 2", idx.Size())
	}

	seen := map[string]bool{}
	idx.Iterate(func(p netip.Prefix, n *types.PrefixNode) {
		seen[n.Prefix] = true
	})
	if !seen["10.0.0.0/24"] || !seen["2001:db8::/32"] {
		t.Errorf("Iterate missed entries: %v", seen)
	}
}
