// Package widget renders monsters into the interactive replacement element
// and translates battle updates into region patches on the host document.
package widget

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strconv"
	"strings"

	"github.com/hazyhaar/adrpg/monster"
	"github.com/hazyhaar/adrpg/overlay/internal/page"
	"github.com/microcosm-cc/bluemonday"
)

// MinSize is the smallest rendered edge in pixels.
const MinSize = 50

// Attack control labels.
const (
	AttackLabel = "⚔️ ATTACK!"
	HitLabel    = "⚔️ HIT!"
	CritLabel   = "💥 CRIT!"
)

var tierColors = map[monster.Tier]string{
	monster.TierTiny:   "#7f8c8d",
	monster.TierSmall:  "#27ae60",
	monster.TierMedium: "#2980b9",
	monster.TierLarge:  "#8e44ad",
	monster.TierBoss:   "#c0392b",
}

// TierColor returns the badge colour for a tier. Unknown tiers are gold.
func TierColor(t monster.Tier) string {
	if c, ok := tierColors[t]; ok {
		return c
	}
	return "#f1c40f"
}

const widgetTemplate = `<div class="ad-rpg-container" data-adrpg-widget="{{.ID}}" style="{{.BoxStyle}}">
<div class="ad-rpg-tier" data-adrpg-region="tier" style="{{.TierStyle}}">{{.TierLabel}}</div>
<div class="ad-rpg-header" data-adrpg-region="title">Lvl {{.Level}} {{.Name}}</div>
<img class="ad-rpg-monster-img" data-adrpg-region="image" src="{{.Image}}" alt="Monster">
<div class="ad-rpg-health-bar"><div class="ad-rpg-health-fill" data-adrpg-region="hp-fill" style="width: 100%"></div></div>
<div class="ad-rpg-hp-text" data-adrpg-region="hp-text">{{.CurrentHP}}/{{.MaxHP}} HP</div>
<button class="ad-rpg-attack-btn" data-adrpg-region="attack" type="button">{{.AttackLabel}}</button>
<div class="ad-rpg-stats" data-adrpg-region="stats">🎯 {{.XP}} XP | 💰 {{.Gold}} Gold</div>
<div class="ad-rpg-victory" data-adrpg-region="victory" style="display: none">
<div class="victory-text">🏆 VICTORY!</div>
<div class="victory-rewards" data-adrpg-region="rewards">+{{.XP}} XP | +{{.Gold}} Gold</div>
</div>
</div>`

type view struct {
	ID          string
	BoxStyle    template.CSS
	TierStyle   template.CSS
	TierLabel   string
	Level       int
	Name        string
	Image       string
	CurrentHP   int
	MaxHP       int
	AttackLabel string
	XP          int
	Gold        int
}

// Renderer turns monsters into widget fragments. Server-supplied strings
// are reduced to plain text before templating.
type Renderer struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
}

// NewRenderer compiles the widget template.
func NewRenderer() *Renderer {
	return &Renderer{
		tmpl:   template.Must(template.New("widget").Parse(widgetTemplate)),
		policy: bluemonday.StrictPolicy(),
	}
}

// Render produces the widget for m, sized to the replaced element. Edges
// below MinSize are raised to it.
func (r *Renderer) Render(id string, m monster.Monster, width, height int) (page.Fragment, error) {
	w, h := max(width, MinSize), max(height, MinSize)
	v := view{
		ID: id,
		BoxStyle: template.CSS(fmt.Sprintf("width: %dpx; height: %dpx; min-width: %dpx; min-height: %dpx",
			w, h, w, h)),
		TierStyle:   template.CSS("background-color: " + TierColor(m.Tier)),
		TierLabel:   strings.ToUpper(string(m.Tier)),
		Level:       m.Level,
		Name:        r.text(m.Name),
		Image:       r.text(m.Image),
		CurrentHP:   m.CurrentHP,
		MaxHP:       m.MaxHP,
		AttackLabel: AttackLabel,
		XP:          m.XPReward,
		Gold:        m.GoldReward,
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, v); err != nil {
		return page.Fragment{}, fmt.Errorf("widget: render %s: %w", id, err)
	}
	return page.Fragment{WidgetID: id, HTML: buf.String()}, nil
}

// text strips markup and decodes entities; the template escapes again.
func (r *Renderer) text(s string) string {
	return html.UnescapeString(r.policy.Sanitize(s))
}

// HealthText is the health line shown under the bar.
func HealthText(current, maxHP int) string {
	return strconv.Itoa(current) + "/" + strconv.Itoa(maxHP) + " HP"
}

// LevelUpText is appended to the victory rewards on a level up.
func LevelUpText(level int) string {
	return "🎉 LEVEL UP! Now Level " + strconv.Itoa(level) + "!"
}
