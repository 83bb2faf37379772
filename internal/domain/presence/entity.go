// Package presence ingests periodic location/battery reports from members and
// republishes them to the viewers the membership registry authorizes.
package presence

import (
	"errors"
	"time"

	"github.com/havenloop/haven/pkg/types/geo"
)

// Freshness classifies how recent a presence record is.
type Freshness string

const (
	FreshnessLive   Freshness = "live"
	FreshnessRecent Freshness = "recent"
	FreshnessIdle   Freshness = "idle"
	FreshnessPaused Freshness = "paused"
)

// Thresholds hold the staleness boundaries used uniformly across clients.
type Thresholds struct {
	LiveWithin   time.Duration
	RecentWithin time.Duration
}

// DefaultThresholds match the platform-wide classification: live within five
// minutes, recent within an hour.
func DefaultThresholds() Thresholds {
	return Thresholds{LiveWithin: 5 * time.Minute, RecentWithin: time.Hour}
}

// Presence is a member's latest known position and device status.  One
// current record per member; every report overwrites the previous one.
type Presence struct {
	MemberID  string    `json:"member_id"`
	Location  geo.Point `json:"location"`
	Accuracy  float64   `json:"accuracy"`
	Battery   int       `json:"battery"`
	IsPaused  bool      `json:"is_paused"`
	LastSeen  time.Time `json:"last_seen"`

	// CadenceSeconds is the advisory reporting interval last pushed to the
	// member's client.  The service records what the client achieves rather
	// than enforcing timing.
	CadenceSeconds int `json:"cadence_seconds"`
}

// Report is one inbound device payload.
type Report struct {
	MemberID string
	Location geo.Point
	Accuracy float64
	Battery  int
	IsPaused bool
}

// Validate rejects malformed reports before any state change.
func (r Report) Validate() error {
	if r.MemberID == "" {
		return errors.New("member ID cannot be empty")
	}
	if err := r.Location.Validate(); err != nil {
		return err
	}
	if r.Accuracy < 0 {
		return errors.New("accuracy cannot be negative")
	}
	if r.Battery < 0 || r.Battery > 100 {
		return errors.New("battery level out of range")
	}
	return nil
}

// Classify returns the freshness of the record at the given instant.  Paused
// overrides recency so a member who opted out never appears live.
func (p *Presence) Classify(now time.Time, t Thresholds) Freshness {
	if p.IsPaused {
		return FreshnessPaused
	}
	age := now.Sub(p.LastSeen)
	switch {
	case age <= t.LiveWithin:
		return FreshnessLive
	case age <= t.RecentWithin:
		return FreshnessRecent
	default:
		return FreshnessIdle
	}
}

// Snapshot is a presence record decorated for a viewer.
type Snapshot struct {
	Presence
	Freshness Freshness `json:"freshness"`
}
