package gameserver

import (
	"math"

	"github.com/hazyhaar/adrpg/monster"
)

// Template is a monster archetype before level scaling.
type Template struct {
	Name     string
	BaseHP   int
	XPReward int
	Image    string
}

const avatarBase = "https://api.dicebear.com/7.x/bottts/svg?seed="

// Bestiary lists the archetypes of each tier.
var Bestiary = map[monster.Tier][]Template{
	monster.TierTiny: {
		{"Tracker-Spider", 15, 8, avatarBase + "spider&backgroundColor=1a1a2e"},
		{"Cookie-Imp", 12, 6, avatarBase + "imp&backgroundColor=2d132c"},
	},
	monster.TierSmall: {
		{"Ad-Goblin", 25, 15, avatarBase + "goblin&backgroundColor=1e3d59"},
		{"Pixel-Rat", 20, 12, avatarBase + "rat&backgroundColor=17301c"},
	},
	monster.TierMedium: {
		{"Banner-Orc", 50, 30, avatarBase + "orc&backgroundColor=4a0e0e"},
		{"Sidebar-Troll", 60, 35, avatarBase + "troll&backgroundColor=0e4a1c"},
	},
	monster.TierLarge: {
		{"Popup-Dragon", 100, 60, avatarBase + "dragon&backgroundColor=4a1942"},
		{"Overlay-Demon", 120, 75, avatarBase + "demon&backgroundColor=2a0a3a"},
	},
	monster.TierBoss: {
		{"Fullscreen-Hydra", 200, 150, avatarBase + "hydra&backgroundColor=0a0a0a"},
		{"Interstitial-Leviathan", 250, 200, avatarBase + "leviathan&backgroundColor=1a0505"},
	},
}

var baseLevels = map[monster.Tier]int{
	monster.TierTiny:   1,
	monster.TierSmall:  3,
	monster.TierMedium: 5,
	monster.TierLarge:  8,
	monster.TierBoss:   12,
}

// TierFor classifies an ad slot by area, with shape overrides for wide slots.
func TierFor(width, height int) monster.Tier {
	area := width * height
	switch {
	case area > 200_000 || (width > 700 && height > 400):
		return monster.TierBoss
	case area > 90_000 || (width > 600 && height > 250):
		return monster.TierLarge
	case area > 30_000 || (width > 300 && height > 150):
		return monster.TierMedium
	case area > 8_000:
		return monster.TierSmall
	default:
		return monster.TierTiny
	}
}

// LevelFor is the tier's base level plus up to 5 for the slot's size.
func LevelFor(width, height int, tier monster.Tier) int {
	base, ok := baseLevels[tier]
	if !ok {
		base = 1
	}
	area := max(width*height, 0)
	bonus := min(5, int(math.Sqrt(float64(area))/100))
	return base + bonus
}

// scale multiplies v by 1+(level-1)*growth, truncating.
func scale(v, level int, growth float64) int {
	step := float64(float64(level-1) * growth)
	return int(float64(v) * (1 + step))
}
