package detector

import (
	"testing"

	"artemis-core/internal/types"
)

func legitNode(prefix string, origins, neighbors []uint32) *types.PrefixNode {
	originSet := map[uint32]struct{}{}
	for _, a := range origins {
		originSet[a] = struct{}{}
	}
	neighborSet := map[uint32]struct{}{}
	for _, a := range neighbors {
		neighborSet[a] = struct{}{}
	}
	return &types.PrefixNode{
		Prefix: prefix,
		Confs:  []*types.Rule{{OriginASNs: originSet, Neighbors: neighborSet, Policies: map[string]struct{}{}}},
	}
}

// TestClassifyS1ExactLegitimate covers spec scenario S1: a fully compliant
// update produces no hijack.
func TestClassifyS1ExactLegitimate(t *testing.T) {
	node := legitNode("10.0.0.0/24", []uint32{65001}, []uint32{65002})
	update := types.BGPUpdate{Prefix: "10.0.0.0/24", ASPath: []uint32{65002, 65001}, Type: types.UpdateAnnouncement}

	tt, _ := classify(node, update)
	if !tt.IsBenign() {
		t.Errorf("classify(S1) = %+v, want benign", tt)
	}
}

// TestClassifyS2TypeZero covers spec scenario S2: origin hijack.
func TestClassifyS2TypeZero(t *testing.T) {
	node := legitNode("10.0.0.0/24", []uint32{65001}, []uint32{65002})
	update := types.BGPUpdate{Prefix: "10.0.0.0/24", ASPath: []uint32{65099, 65500}, Type: types.UpdateAnnouncement}

	tt, hijacker := classify(node, update)
	want := types.HijackType{Prefix: "E", Path: "0", Dataplane: "-", Policy: "-"}
	if tt != want {
		t.Errorf("classify(S2) = %+v, want %+v", tt, want)
	}
	if hijacker == nil || *hijacker != 65500 {
		t.Errorf("classify(S2) hijacker = %v, want 65500", hijacker)
	}
}

// TestClassifyS3SubPrefixTypeOne covers spec scenario S3: sub-prefix
// announced with an unexpected upstream.
func TestClassifyS3SubPrefixTypeOne(t *testing.T) {
	node := legitNode("10.0.0.0/24", []uint32{65001}, []uint32{65002})
	update := types.BGPUpdate{Prefix: "10.0.0.128/25", ASPath: []uint32{65003, 65001}, Type: types.UpdateAnnouncement}

	tt, _ := classify(node, update)
	want := types.HijackType{Prefix: "S", Path: "1", Dataplane: "-", Policy: "-"}
	if tt != want {
		t.Errorf("classify(S3) = %+v, want %+v", tt, want)
	}
}

// TestClassifyS4Squat covers spec scenario S4: a prefix configured with no
// legitimate origins at all is squatting, even with a single-ASN as_path.
func TestClassifyS4Squat(t *testing.T) {
	node := legitNode("10.1.0.0/16", nil, nil)
	update := types.BGPUpdate{Prefix: "10.1.0.0/16", ASPath: []uint32{65500}, Type: types.UpdateAnnouncement}

	tt, hijacker := classify(node, update)
	want := types.HijackType{Prefix: "Q", Path: "0", Dataplane: "-", Policy: "-"}
	if tt != want {
		t.Errorf("classify(S4) = %+v, want %+v", tt, want)
	}
	if hijacker == nil || *hijacker != 65500 {
		t.Errorf("classify(S4) hijacker = %v, want 65500", hijacker)
	}
}

// TestClassifyS5PolicyLeak covers spec scenario S5: a no-export rule whose
// community scope marker is absent from the update.
func TestClassifyS5PolicyLeak(t *testing.T) {
	node := &types.PrefixNode{
		Prefix: "10.0.0.0/24",
		Confs: []*types.Rule{{
			OriginASNs: map[uint32]struct{}{65001: {}},
			Neighbors:  map[uint32]struct{}{65002: {}},
			Policies:   map[string]struct{}{types.PolicyNoExport: {}},
			Community: []types.CommunityAnnotation{{
				Name:    "expected-scope",
				Include: []types.CommunityValue{{ASN: 65001, Value: 100}},
			}},
		}},
	}
	update := types.BGPUpdate{
		Prefix:      "10.0.0.0/24",
		ASPath:      []uint32{65002, 65001},
		Type:        types.UpdateAnnouncement,
		Communities: nil,
	}

	tt, _ := classify(node, update)
	want := types.HijackType{Prefix: "-", Path: "-", Dataplane: "-", Policy: "L"}
	if tt != want {
		t.Errorf("classify(S5) = %+v, want %+v", tt, want)
	}
}

func TestClassifyPrependMismatch(t *testing.T) {
	node := &types.PrefixNode{
		Prefix: "10.0.0.0/24",
		Confs: []*types.Rule{{
			OriginASNs: map[uint32]struct{}{65001: {}},
			Neighbors:  map[uint32]struct{}{65002: {}},
			PrependSeq: []uint32{65001, 65001},
			Policies:   map[string]struct{}{},
		}},
	}
	update := types.BGPUpdate{Prefix: "10.0.0.0/24", ASPath: []uint32{65002, 65001}, Type: types.UpdateAnnouncement}

	tt, _ := classify(node, update)
	if tt.Path != "P" {
		t.Errorf("classify() Path = %q, want %q (prepend pattern not satisfied)", tt.Path, "P")
	}
}

func TestClassifyPrependMatch(t *testing.T) {
	node := &types.PrefixNode{
		Prefix: "10.0.0.0/24",
		Confs: []*types.Rule{{
			OriginASNs: map[uint32]struct{}{65001: {}},
			Neighbors:  map[uint32]struct{}{65002: {}},
			PrependSeq: []uint32{65002},
			Policies:   map[string]struct{}{},
		}},
	}
	update := types.BGPUpdate{Prefix: "10.0.0.0/24", ASPath: []uint32{65002, 65001}, Type: types.UpdateAnnouncement}

	tt, _ := classify(node, update)
	if tt.Path != "-" {
		t.Errorf("classify() Path = %q, want %q (prepend pattern satisfied)", tt.Path, "-")
	}
}
