// Package detector implements the Detector: the hijack classification state
// machine. It consumes annotated updates, evaluates the four-dimension
// classification described in spec §4.4, upserts hijack events by
// fingerprint, and emits mitigation requests for newly created events whose
// rule names a non-manual mitigation.
package detector

import (
	"artemis-core/internal/logging"
	"artemis-core/internal/types"

	"github.com/google/uuid"
)

// Detector holds the in-memory event table for one worker process. Per spec
// §5, event state is process-local; there is no cross-process event store
// in the core.
type Detector struct {
	store *store
	log   logging.Logger
}

// New returns an empty Detector.
func New(log logging.Logger) *Detector {
	return &Detector{store: newStore(), log: log}
}

// Process classifies one annotated announcement and upserts the resulting
// hijack event. It returns the event (nil if the update is benign) and a
// mitigation request (non-nil only when the event is newly created and its
// rule names a non-manual mitigation).
//
// Announcements with an empty as_path carry no determinable origin and are
// rejected as malformed before classification; a single-ASN as_path is
// still evaluable for the origin dimension (spec scenario S4).
func (d *Detector) Process(update types.AnnotatedUpdate) (*types.HijackEvent, *types.MitigationRequest) {
	if update.Type == types.UpdateWithdrawal {
		d.processWithdrawal(update.BGPUpdate)
		return nil, nil
	}

	if len(update.ASPath) == 0 {
		d.log.Warn("detector: dropping announcement with empty as_path for %s", update.Prefix)
		return nil, nil
	}

	node := update.PrefixNode
	t, hijackerASN := classify(node, update.BGPUpdate)
	if t.IsBenign() {
		return nil, nil
	}

	mitigation := types.DefaultMitigation
	if len(node.Confs) > 0 {
		mitigation = node.Confs[0].Mitigation
	}

	key := fingerprint(update.Prefix, t, hijackerASN, node.Prefix)
	event, created := d.store.upsert(key, update.BGPUpdate, t, hijackerASN, node.Prefix, mitigation)

	var mreq *types.MitigationRequest
	if created && mitigation != types.DefaultMitigation {
		mreq = &types.MitigationRequest{
			ID:               uuid.NewString(),
			HijackInfo:       *event,
			MitigationAction: mitigation,
		}
	}
	return event, mreq
}

// processWithdrawal decrements the announcing-peer set of every open event
// for this prefix; it never evaluates the path dimension (spec §9 open
// questions: withdrawals only affect prefix/peer tracking).
func (d *Detector) processWithdrawal(update types.BGPUpdate) []*types.HijackEvent {
	return d.store.withdraw(update.Prefix, update.PeerASN)
}

// Ignore transitions an ongoing event to ignored, triggered by operator
// action via the control plane.
func (d *Detector) Ignore(key string) (*types.HijackEvent, bool) {
	return d.store.ignore(key)
}

// ExpireOlderThan marks ongoing events last updated before cutoff as
// outdated.
func (d *Detector) ExpireOlderThan(cutoff int64) []*types.HijackEvent {
	return d.store.expireOlderThan(cutoff)
}

// Get returns the event for a fingerprint, if any.
func (d *Detector) Get(key string) (*types.HijackEvent, bool) {
	return d.store.get(key)
}
