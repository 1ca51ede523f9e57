package cache

import (
	"fmt"

	"github.com/pkom79/email-metrics-cloud-sub006/internal/metrics"
)

// SchemaVersion suffixes every storage key so a future incompatible
// snapshot layout can coexist with or migrate from this one.
const SchemaVersion = "v2"

// Snapshot is the single JSON document persisted per identity. Date
// fields serialize as RFC3339 strings and revive to time values on
// load (metrics.Time).
type Snapshot struct {
	Campaigns   []metrics.CampaignRecord   `json:"campaigns"`
	FlowEmails  []metrics.FlowEmailRecord  `json:"flowEmails"`
	Subscribers []metrics.SubscriberRecord `json:"subscribers"`
	SavedAt     metrics.Time               `json:"saved_at"`
}

// Empty reports whether the snapshot carries no records at all.
func (s *Snapshot) Empty() bool {
	return s == nil || (len(s.Campaigns) == 0 && len(s.FlowEmails) == 0 && len(s.Subscribers) == 0)
}

// Key returns the storage key for an identity, namespaced by schema
// version.
func Key(identity string) string {
	return fmt.Sprintf("emailmetrics:%s:%s", SchemaVersion, identity)
}
