// Package monster defines the battle entities exchanged with the game
// service. These types are the wire contract: the relay decodes service
// responses into them and the overlay renders and updates them.
package monster

import (
	"encoding/json"
	"strings"
)

// Tier is the coarse size/difficulty class the service assigns to a monster.
type Tier string

const (
	TierTiny    Tier = "tiny"
	TierSmall   Tier = "small"
	TierMedium  Tier = "medium"
	TierLarge   Tier = "large"
	TierBoss    Tier = "boss"
	TierUnknown Tier = "unknown"
)

// ParseTier maps a service label to a Tier. Unrecognised labels are TierUnknown.
func ParseTier(s string) Tier {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierTiny, TierSmall, TierMedium, TierLarge, TierBoss:
		return t
	default:
		return TierUnknown
	}
}

// UnmarshalJSON accepts any label and normalises it.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseTier(s)
	return nil
}

// Monster is a server-issued battle entity. CurrentHP is only ever written
// from an AttackResult.
type Monster struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Level      int    `json:"level"`
	Tier       Tier   `json:"tier"`
	Image      string `json:"image"`
	CurrentHP  int    `json:"current_hp"`
	MaxHP      int    `json:"max_hp"`
	XPReward   int    `json:"xp_reward"`
	GoldReward int    `json:"gold_reward"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

// HealthPercent returns CurrentHP/MaxHP*100. A zero MaxHP reads as 0%.
func (m Monster) HealthPercent() float64 {
	if m.MaxHP <= 0 {
		return 0
	}
	return float64(m.CurrentHP) / float64(m.MaxHP) * 100
}

// Reward is attached to a lethal AttackResult.
type Reward struct {
	XP        int  `json:"xp,omitempty"`
	Gold      int  `json:"gold,omitempty"`
	TotalGold int  `json:"total_gold,omitempty"`
	LevelUp   bool `json:"level_up,omitempty"`
	NewLevel  int  `json:"new_level,omitempty"`
}

// AttackResult is the service's authoritative answer to an attack.
type AttackResult struct {
	CurrentHP int             `json:"current_hp"`
	Defeated  bool            `json:"defeated"`
	Reward    *Reward         `json:"reward,omitempty"`
	UserState json.RawMessage `json:"user_state,omitempty"`
}

// SpawnRequest is the body of POST /monster.
type SpawnRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AttackRequest is the body of POST /attack. Damage is advisory: the
// service decides the resulting health.
type AttackRequest struct {
	Damage     int `json:"damage"`
	CurrentHP  int `json:"current_hp"`
	XPReward   int `json:"xp_reward"`
	GoldReward int `json:"gold_reward,omitempty"`
}

// User is the player's progression as kept by the service.
type User struct {
	Level         int `json:"level"`
	XP            int `json:"xp"`
	XPToNextLevel int `json:"xp_to_next_level"`
	Gold          int `json:"gold"`
	MonstersSlain int `json:"monsters_slain"`
}
