package widget

import (
	"context"
	"strconv"

	"github.com/hazyhaar/adrpg/overlay/internal/page"
)

// View drives one rendered widget through document patches.
type View struct {
	doc page.Document
	id  string
}

// NewView binds a view to the widget with id in doc.
func NewView(doc page.Document, id string) *View {
	return &View{doc: doc, id: id}
}

// ID returns the widget ID.
func (v *View) ID() string { return v.id }

// Strike shows the transient hit or crit feedback on the attack control.
func (v *View) Strike(ctx context.Context, crit bool) error {
	label := HitLabel
	if crit {
		label = CritLabel
	}
	return v.doc.Patch(ctx, v.id, page.Patch{AttackText: label, AttackScale: "0.9"})
}

// ResetStrike restores the attack control.
func (v *View) ResetStrike(ctx context.Context) error {
	return v.doc.Patch(ctx, v.id, page.Patch{AttackText: AttackLabel, AttackScale: "1"})
}

// Health updates the bar width and text. An empty color keeps the current one.
func (v *View) Health(ctx context.Context, current, maxHP int, color string) error {
	pct := 0.0
	if maxHP > 0 {
		pct = float64(current) * 100 / float64(maxHP)
	}
	return v.doc.Patch(ctx, v.id, page.Patch{
		FillWidth: strconv.FormatFloat(pct, 'f', -1, 64) + "%",
		FillColor: color,
		HPText:    HealthText(current, maxHP),
	})
}

// Victory disables the attack control and reveals the victory panel.
func (v *View) Victory(ctx context.Context, levelUp bool, newLevel int) error {
	p := page.Patch{DisableAttack: true, ShowVictory: true}
	if levelUp {
		p.AppendReward = LevelUpText(newLevel)
	}
	return v.doc.Patch(ctx, v.id, p)
}
