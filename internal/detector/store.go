package detector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"artemis-core/internal/types"
)

// fingerprint computes the event identity key named in spec §4.4:
// hash(prefix, type_tuple, hijacker_asn_or_null, configured_prefix).
func fingerprint(prefix string, t types.HijackType, hijackerASN *uint32, configuredPrefix string) string {
	hijacker := "null"
	if hijackerASN != nil {
		hijacker = fmt.Sprintf("%d", *hijackerASN)
	}
	raw := fmt.Sprintf("%s|%s%s%s%s|%s|%s", prefix, t.Prefix, t.Path, t.Dataplane, t.Policy, hijacker, configuredPrefix)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}

// store is the Detector's in-memory event table, keyed by fingerprint, with
// a secondary index from announced prefix to open event keys so withdrawals
// can find the events they affect without a full scan.
type store struct {
	mu       sync.Mutex
	events   map[string]*types.HijackEvent
	byPrefix map[string]map[string]struct{}
}

func newStore() *store {
	return &store{
		events:   make(map[string]*types.HijackEvent),
		byPrefix: make(map[string]map[string]struct{}),
	}
}

// upsert merges a classified update into an existing open event matching key,
// or creates a new one. Returns the event and whether it was newly created.
func (s *store) upsert(key string, update types.BGPUpdate, t types.HijackType, hijackerASN *uint32, configuredPrefix, mitigation string) (*types.HijackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.events[key]; ok && existing.State == types.HijackOngoing {
		existing.PeerASNsSeen[update.PeerASN] = struct{}{}
		existing.NumPeersSeen = len(existing.PeerASNsSeen)
		if update.Timestamp > existing.TimestampOfLast {
			existing.TimestampOfLast = update.Timestamp
		}
		return existing, false
	}

	event := &types.HijackEvent{
		Key:              key,
		Type:             t,
		Prefix:           update.Prefix,
		HijackerASN:      hijackerASN,
		PeerASNsSeen:     map[uint32]struct{}{update.PeerASN: {}},
		ConfiguredPrefix: configuredPrefix,
		TimestampOfFirst: update.Timestamp,
		TimestampOfLast:  update.Timestamp,
		NumPeersSeen:     1,
		NumASNsInvolved:  numASNsInvolved(hijackerASN, update),
		RuleMitigation:   mitigation,
		State:            types.HijackOngoing,
	}
	s.events[key] = event
	s.indexPrefix(update.Prefix, key)
	return event, true
}

func numASNsInvolved(hijackerASN *uint32, update types.BGPUpdate) int {
	seen := map[uint32]struct{}{}
	for _, asn := range update.ASPath {
		seen[asn] = struct{}{}
	}
	if hijackerASN != nil {
		seen[*hijackerASN] = struct{}{}
	}
	return len(seen)
}

func (s *store) indexPrefix(prefix, key string) {
	keys, ok := s.byPrefix[prefix]
	if !ok {
		keys = make(map[string]struct{})
		s.byPrefix[prefix] = keys
	}
	keys[key] = struct{}{}
}

// withdraw removes peerASN from every open event's announcing-peer set for
// prefix, resolving any event whose set reaches zero. Returns the events
// touched.
func (s *store) withdraw(prefix string, peerASN uint32) []*types.HijackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []*types.HijackEvent
	for key := range s.byPrefix[prefix] {
		event, ok := s.events[key]
		if !ok || event.State != types.HijackOngoing {
			continue
		}
		delete(event.PeerASNsSeen, peerASN)
		event.NumPeersSeen = len(event.PeerASNsSeen)
		if event.NumPeersSeen == 0 {
			event.State = types.HijackResolved
		}
		touched = append(touched, event)
	}
	return touched
}

// ignore transitions an ongoing event to the ignored state, triggered by
// operator action via the control plane (spec §4.4).
func (s *store) ignore(key string) (*types.HijackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[key]
	if !ok || event.State != types.HijackOngoing {
		return nil, false
	}
	event.State = types.HijackIgnored
	return event, true
}

// expireOlderThan marks every ongoing event whose TimestampOfLast is older
// than cutoff as outdated (age-based expiry horizon, spec §4.4).
func (s *store) expireOlderThan(cutoff int64) []*types.HijackEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []*types.HijackEvent
	for _, event := range s.events {
		if event.State == types.HijackOngoing && event.TimestampOfLast < cutoff {
			event.State = types.HijackOutdated
			expired = append(expired, event)
		}
	}
	return expired
}

func (s *store) get(key string) (*types.HijackEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[key]
	return event, ok
}
