package prefixtree

import (
	"fmt"
	"net/netip"

	"artemis-core/internal/asnrange"
	"artemis-core/internal/artemiserr"
	"artemis-core/internal/rfc2622"
	"artemis-core/internal/types"
)

// CommunityAnnotationDoc is the configuration-document shape of a community
// annotation entry, prior to ASN-range/value parsing.
type CommunityAnnotationDoc struct {
	Name    string   `yaml:"name" json:"name"`
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// RuleDoc is the configuration-document shape of one rule entry.
type RuleDoc struct {
	Prefixes             []string                 `yaml:"prefixes" json:"prefixes"`
	OriginASNs           []string                 `yaml:"origin_asns" json:"origin_asns"`
	Neighbors            []string                 `yaml:"neighbors" json:"neighbors"`
	PrependSeq           []string                 `yaml:"prepend_seq" json:"prepend_seq"`
	Policies             []string                 `yaml:"policies" json:"policies"`
	CommunityAnnotations []CommunityAnnotationDoc `yaml:"community_annotations" json:"community_annotations"`
	Mitigation           string                   `yaml:"mitigation" json:"mitigation"`
}

// ConfigDocument is the configuration-document shape accepted by the
// Compiler, whether it arrives as YAML or as the JSON body of POST /config.
type ConfigDocument struct {
	Timestamp int64                  `yaml:"timestamp" json:"timestamp"`
	Rules     []RuleDoc              `yaml:"rules" json:"rules"`
	Monitors  types.MonitorRoster    `yaml:"monitors" json:"monitors"`
}

// CompileResult is the outcome of applying a ConfigDocument to a registry:
// the response shape of POST /config.
type CompileResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Compiled holds everything a successful compile produces, ready to be
// installed atomically into the Shared Registry.
type Compiled struct {
	Index                 *Index
	Monitors              types.MonitorRoster
	MonitoredPrefixes     map[string]struct{}
	ConfiguredPrefixCount int
	Timestamp             int64
}

// Compile transforms a validated configuration document into a fresh Prefix
// Index, monitor roster, and derived counters, per spec §4.2. It neither
// reads nor writes a registry; callers (the Shared Registry's Configure
// method) are responsible for the stale-timestamp check and atomic install.
func Compile(doc ConfigDocument) (*Compiled, error) {
	index := New()

	for i, rule := range doc.Rules {
		origins, err := asnrange.ExpandSet(rule.OriginASNs)
		if err != nil {
			return nil, artemiserr.NewConfigInvalidError("compile", fmt.Sprintf("rule %d origin_asns", i), err)
		}
		neighbors, err := asnrange.ExpandSet(rule.Neighbors)
		if err != nil {
			return nil, artemiserr.NewConfigInvalidError("compile", fmt.Sprintf("rule %d neighbors", i), err)
		}
		prepend, err := expandPrependSeq(rule.PrependSeq)
		if err != nil {
			return nil, artemiserr.NewConfigInvalidError("compile", fmt.Sprintf("rule %d prepend_seq", i), err)
		}
		policies := make(map[string]struct{}, len(rule.Policies))
		for _, p := range rule.Policies {
			policies[p] = struct{}{}
		}
		community, err := expandCommunityAnnotations(rule.CommunityAnnotations)
		if err != nil {
			return nil, artemiserr.NewConfigInvalidError("compile", fmt.Sprintf("rule %d community_annotations", i), err)
		}
		mitigation := rule.Mitigation
		if mitigation == "" {
			mitigation = types.DefaultMitigation
		}

		conf := &types.Rule{
			OriginASNs: origins,
			Neighbors:  neighbors,
			PrependSeq: prepend,
			Policies:   policies,
			Community:  community,
			Mitigation: mitigation,
		}

		for _, rawPrefix := range rule.Prefixes {
			expanded, err := rfc2622.Expand(rawPrefix)
			if err != nil {
				return nil, artemiserr.NewConfigInvalidError("compile", fmt.Sprintf("rule %d prefixes", i), err)
			}
			for _, p := range expanded {
				if existing, ok := index.Lookup(p); ok {
					existing.Confs = append(existing.Confs, conf)
					continue
				}
				index.Insert(p, &types.PrefixNode{
					Prefix:    p.String(),
					Confs:     []*types.Rule{conf},
					Timestamp: doc.Timestamp,
				})
			}
		}
	}

	configuredPrefixCount := 0
	monitoredPrefixes := make(map[string]struct{})
	index.Iterate(func(p netip.Prefix, _ *types.PrefixNode) {
		configuredPrefixCount++
		if worst, ok := WorstPrefix(index, p); ok {
			monitoredPrefixes[worst.String()] = struct{}{}
		}
	})

	monitors := doc.Monitors
	if monitors == nil {
		monitors = types.MonitorRoster{}
	}

	return &Compiled{
		Index:                 index,
		Monitors:              monitors,
		MonitoredPrefixes:     monitoredPrefixes,
		ConfiguredPrefixCount: configuredPrefixCount,
		Timestamp:             doc.Timestamp,
	}, nil
}

func expandPrependSeq(specs []string) ([]uint32, error) {
	out := make([]uint32, 0, len(specs))
	for _, spec := range specs {
		asns, err := asnrange.Expand(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, asns...)
	}
	return out, nil
}

func expandCommunityAnnotations(docs []CommunityAnnotationDoc) ([]types.CommunityAnnotation, error) {
	out := make([]types.CommunityAnnotation, 0, len(docs))
	for _, d := range docs {
		include, err := parseCommunityValues(d.Include)
		if err != nil {
			return nil, err
		}
		exclude, err := parseCommunityValues(d.Exclude)
		if err != nil {
			return nil, err
		}
		out = append(out, types.CommunityAnnotation{
			Name:    d.Name,
			Include: include,
			Exclude: exclude,
		})
	}
	return out, nil
}

// parseCommunityValues parses "asn:value" pairs into CommunityValue structs.
func parseCommunityValues(specs []string) ([]types.CommunityValue, error) {
	out := make([]types.CommunityValue, 0, len(specs))
	for _, spec := range specs {
		var asn, value uint32
		if _, err := fmt.Sscanf(spec, "%d:%d", &asn, &value); err != nil {
			return nil, fmt.Errorf("invalid community value %q: %w", spec, err)
		}
		out = append(out, types.CommunityValue{ASN: asn, Value: value})
	}
	return out, nil
}
