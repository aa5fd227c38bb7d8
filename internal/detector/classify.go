package detector

import (
	"net/netip"

	"artemis-core/internal/types"
)

// classify evaluates the four independent dimensions of spec §4.4 against
// one annotated update and its resolved rule-node, returning the hijack type
// tuple and, where determinable, the offending ASN.
func classify(node *types.PrefixNode, update types.BGPUpdate) (types.HijackType, *uint32) {
	t := types.HijackType{Prefix: "-", Path: "-", Dataplane: "-", Policy: "-"}

	legitOrigins, legitNeighbors := combinedOriginsAndNeighbors(node)

	t.Prefix = classifyPrefix(node, update, legitOrigins)

	var hijacker *uint32
	t.Path, hijacker = classifyPath(node, update, legitOrigins, legitNeighbors)

	t.Policy = classifyPolicy(node, update)

	// An exact match is reported only alongside a path finding; with a clean
	// path the prefix dimension stays "-" (a policy leak alone is -,-,-,L).
	if t.Prefix == "E" && t.Path == "-" {
		t.Prefix = "-"
	}

	return t, hijacker
}

func combinedOriginsAndNeighbors(node *types.PrefixNode) (map[uint32]struct{}, map[uint32]struct{}) {
	origins := map[uint32]struct{}{}
	neighbors := map[uint32]struct{}{}
	for _, rule := range node.Confs {
		for asn := range rule.OriginASNs {
			origins[asn] = struct{}{}
		}
		for asn := range rule.Neighbors {
			neighbors[asn] = struct{}{}
		}
	}
	return origins, neighbors
}

// classifyPrefix implements dimension 1. Squatting takes priority over the
// exact/sub-prefix distinction: a prefix declared with zero legitimate
// origins is squatting whether or not the announced prefix matches exactly.
func classifyPrefix(node *types.PrefixNode, update types.BGPUpdate, legitOrigins map[uint32]struct{}) string {
	if len(legitOrigins) == 0 && update.Type == types.UpdateAnnouncement {
		return "Q"
	}

	configured, err := netip.ParsePrefix(node.Prefix)
	if err != nil {
		return "-"
	}
	announced, err := netip.ParsePrefix(update.Prefix)
	if err != nil {
		return "-"
	}
	switch {
	case announced == configured:
		return "E"
	case announced.Bits() > configured.Bits() && configured.Contains(announced.Addr()):
		return "S"
	default:
		return "-"
	}
}

// classifyPath implements dimension 2. Returns the hijacker ASN for type-0
// (the announced origin) and type-1 (the unexpected upstream); nil for "P",
// "U", and "-".
func classifyPath(node *types.PrefixNode, update types.BGPUpdate, legitOrigins, legitNeighbors map[uint32]struct{}) (string, *uint32) {
	if len(node.Confs) == 0 {
		return "U", nil
	}
	if len(update.ASPath) == 0 {
		return "-", nil
	}

	origin := update.ASPath[len(update.ASPath)-1]
	if _, ok := legitOrigins[origin]; !ok {
		o := origin
		return "0", &o
	}

	// A single-ASN as_path carries no upstream: neighbor and prepend checks
	// need at least two hops, so a legitimate origin alone is sufficient.
	if len(update.ASPath) < 2 {
		return "-", nil
	}

	upstream := update.ASPath[len(update.ASPath)-2]
	if _, ok := legitNeighbors[upstream]; !ok {
		u := upstream
		return "1", &u
	}
	if prependSeq := firstNonEmptyPrependSeq(node); len(prependSeq) > 0 && !matchesPrependPattern(update.ASPath, prependSeq) {
		return "P", nil
	}
	return "-", nil
}

func firstNonEmptyPrependSeq(node *types.PrefixNode) []uint32 {
	for _, rule := range node.Confs {
		if len(rule.PrependSeq) > 0 {
			return rule.PrependSeq
		}
	}
	return nil
}

// matchesPrependPattern reports whether the trailing segment of as_path
// (excluding the origin itself) equals the configured prepend sequence.
func matchesPrependPattern(asPath []uint32, prependSeq []uint32) bool {
	pathBeforeOrigin := asPath[:len(asPath)-1]
	if len(pathBeforeOrigin) < len(prependSeq) {
		return false
	}
	tail := pathBeforeOrigin[len(pathBeforeOrigin)-len(prependSeq):]
	for i, asn := range prependSeq {
		if tail[i] != asn {
			return false
		}
	}
	return true
}

// classifyPolicy implements dimension 4, using the first rule in the node's
// ordered Confs list (first-match-wins, spec §9 "community-annotation
// matching order").
func classifyPolicy(node *types.PrefixNode, update types.BGPUpdate) string {
	if len(node.Confs) == 0 {
		return "-"
	}
	rule := node.Confs[0]
	if !rule.HasPolicy(types.PolicyNoExport) {
		return "-"
	}
	if scopeCompliant(rule.Community, update.Communities) {
		return "-"
	}
	return "L"
}

func scopeCompliant(annotations []types.CommunityAnnotation, communities []types.CommunityValue) bool {
	present := make(map[types.CommunityValue]struct{}, len(communities))
	for _, c := range communities {
		present[c] = struct{}{}
	}
	for _, ann := range annotations {
		if allPresent(ann.Include, present) && noneExcludedPresent(ann.Exclude, present) {
			return true
		}
	}
	return false
}

func allPresent(values []types.CommunityValue, present map[types.CommunityValue]struct{}) bool {
	for _, v := range values {
		if _, ok := present[v]; !ok {
			return false
		}
	}
	return true
}

func noneExcludedPresent(values []types.CommunityValue, present map[types.CommunityValue]struct{}) bool {
	for _, v := range values {
		if _, ok := present[v]; ok {
			return false
		}
	}
	return true
}
