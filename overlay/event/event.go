// Package event is the record the overlay emits to its sinks for every
// detection, promotion and battle outcome.
package event

import "time"

// Type names what happened.
type Type string

const (
	Candidate    Type = "candidate"     // element selected by a scan
	Promoted     Type = "promoted"      // element replaced by a widget
	SpawnFailed  Type = "spawn_failed"  // spawn rejected, element hidden
	Attack       Type = "attack"        // attack result applied
	AttackFailed Type = "attack_failed" // attack did not reach the service
	Defeated     Type = "defeated"      // monster defeated
	RuleError    Type = "rule_error"    // detection selector skipped
)

// Event is one overlay occurrence on one page.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	PageID     string         `json:"page_id,omitempty"`
	PageURL    string         `json:"page_url,omitempty"`
	ElementKey string         `json:"element_key,omitempty"`
	WidgetID   string         `json:"widget_id,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	Timestamp  time.Time      `json:"ts"`
}
