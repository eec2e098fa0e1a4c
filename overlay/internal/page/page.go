// Package page abstracts the host document the overlay works on. A Document
// is either a live Chrome tab (LiveDocument, over CDP) or a parsed HTML tree
// (StaticDocument). Detection reads element descriptors through Query; the
// pipeline and battle machines mutate it through Replace, Hide and Patch.
package page

import (
	"context"
	"errors"
	"fmt"
)

// Attributes stamped into the document.
const (
	AttrKey    = "data-adrpg-key"    // stable element identifier, assigned on first query
	AttrWidget = "data-adrpg-widget" // widget root, value is the widget ID
	AttrRegion = "data-adrpg-region" // addressable region inside a widget
)

// Widget regions. Every rendered widget exposes all of them.
const (
	RegionTier    = "tier"
	RegionTitle   = "title"
	RegionImage   = "image"
	RegionFill    = "hp-fill"
	RegionHPText  = "hp-text"
	RegionAttack  = "attack"
	RegionStats   = "stats"
	RegionVictory = "victory"
	RegionRewards = "rewards"
)

// ErrDetached means the addressed element or widget is no longer in the document.
var ErrDetached = errors.New("page: element not in document")

// SelectorError reports a selector the document could not evaluate.
type SelectorError struct {
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("page: selector %q: %v", e.Selector, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }

// Element describes one node of the host document as seen by a scan.
type Element struct {
	Key      string `json:"key"`
	Tag      string `json:"tag"`
	ID       string `json:"id"`
	Class    string `json:"cls"`
	Width    int    `json:"w"`
	Height   int    `json:"h"`
	InWidget bool   `json:"in_widget"` // inside (or is) a rendered widget
}

// Fragment is a rendered widget ready to be swapped in.
type Fragment struct {
	WidgetID string
	HTML     string
}

// Patch updates widget regions. Zero fields are left untouched.
type Patch struct {
	FillWidth     string `json:"fill_width,omitempty"`
	FillColor     string `json:"fill_color,omitempty"`
	HPText        string `json:"hp_text,omitempty"`
	AttackText    string `json:"attack_text,omitempty"`
	AttackScale   string `json:"attack_scale,omitempty"`
	DisableAttack bool   `json:"disable_attack,omitempty"`
	ShowVictory   bool   `json:"show_victory,omitempty"`
	AppendReward  string `json:"append_reward,omitempty"`
}

// Document is the host page. Implementations are safe for concurrent use.
type Document interface {
	// Query returns descriptors of every element matching selector, in
	// document order, stamping AttrKey on elements that lack one.
	Query(ctx context.Context, selector string) ([]Element, error)
	// Replace swaps the element for the fragment in a single operation.
	Replace(ctx context.Context, key string, f Fragment) error
	// Hide keeps the element in place but makes it invisible.
	Hide(ctx context.Context, key string) error
	// Patch applies p to the regions of the widget.
	Patch(ctx context.Context, widgetID string, p Patch) error
}
