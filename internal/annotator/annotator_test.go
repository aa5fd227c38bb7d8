package annotator

import (
	"net/netip"
	"testing"

	"artemis-core/internal/logging"
	"artemis-core/internal/prefixtree"
	"artemis-core/internal/registry"
	"artemis-core/internal/types"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	idx := prefixtree.New()
	idx.Insert(netip.MustParsePrefix("10.0.0.0/24"), &types.PrefixNode{
		Prefix: "10.0.0.0/24",
		Confs:  []*types.Rule{{OriginASNs: map[uint32]struct{}{65001: {}}, Mitigation: types.DefaultMitigation}},
	})
	compiled := &prefixtree.Compiled{Index: idx, Timestamp: 1}
	if err := reg.Configure(compiled); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	return reg
}

func TestAnnotateMatch(t *testing.T) {
	reg := newTestRegistry(t)
	ann := New(reg, logging.New(false))

	update := types.BGPUpdate{Prefix: "10.0.0.0/24", ASPath: []uint32{65002, 65001}, Type: types.UpdateAnnouncement}
	annotated, ok := ann.Annotate(update)
	if !ok {
		t.Fatal("Annotate did not match a configured prefix")
	}
	if annotated.PrefixNode == nil || annotated.PrefixNode.Prefix != "10.0.0.0/24" {
		t.Errorf("Annotate attached wrong node: %+v", annotated.PrefixNode)
	}
}

func TestAnnotateNoMatchDrops(t *testing.T) {
	reg := newTestRegistry(t)
	ann := New(reg, logging.New(false))

	update := types.BGPUpdate{Prefix: "192.168.0.0/24", Type: types.UpdateAnnouncement}
	_, ok := ann.Annotate(update)
	if ok {
		t.Error("Annotate matched an unconfigured prefix")
	}
}

func TestAnnotateMalformedPrefixDrops(t *testing.T) {
	reg := newTestRegistry(t)
	ann := New(reg, logging.New(false))

	_, ok := ann.Annotate(types.BGPUpdate{Prefix: "not-a-prefix"})
	if ok {
		t.Error("Annotate matched a malformed prefix")
	}
}

func TestAnnotateMessageGeneric(t *testing.T) {
	reg := newTestRegistry(t)
	ann := New(reg, logging.New(false))

	event := types.HijackEvent{Prefix: "10.0.0.0/24"}
	annotated, ok := AnnotateMessage(ann, event)
	if !ok {
		t.Fatal("AnnotateMessage did not match a configured prefix")
	}
	if annotated.Message.Prefix != "10.0.0.0/24" {
		t.Errorf("AnnotateMessage.Message = %+v", annotated.Message)
	}
}

func TestRefreshIfNeededPicksUpReconfigure(t *testing.T) {
	reg := registry.New()
	ann := New(reg, logging.New(false))

	if _, ok := ann.Annotate(types.BGPUpdate{Prefix: "10.0.0.0/24", ASPath: []uint32{1, 2}}); ok {
		t.Fatal("Annotate matched before any configuration was installed")
	}

	idx := prefixtree.New()
	idx.Insert(netip.MustParsePrefix("10.0.0.0/24"), &types.PrefixNode{
		Prefix: "10.0.0.0/24",
		Confs:  []*types.Rule{{OriginASNs: map[uint32]struct{}{65001: {}}}},
	})
	if err := reg.Configure(&prefixtree.Compiled{Index: idx, Timestamp: 1}); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	annotated, ok := ann.Annotate(types.BGPUpdate{Prefix: "10.0.0.0/24", ASPath: []uint32{65002, 65001}})
	if !ok {
		t.Fatal("Annotate did not pick up the new configuration after refresh")
	}
	if annotated.PrefixNode.Prefix != "10.0.0.0/24" {
		t.Errorf("Annotate after refresh returned wrong node: %+v", annotated.PrefixNode)
	}
}
