// Package battle runs the per-widget battle: damage rolls, transient hit
// feedback, and reconciliation of the service's authoritative results.
package battle

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hazyhaar/adrpg/monster"
)

// ErrDefeated is returned by Attack once the monster is defeated.
var ErrDefeated = errors.New("battle: monster defeated")

// Health bar colours applied as health drops.
const (
	ColorWarning  = "#f39c12"
	ColorCritical = "#e74c3c"
)

// State is the lifecycle of a machine.
type State int

const (
	Alive State = iota
	Defeated
)

func (s State) String() string {
	if s == Defeated {
		return "defeated"
	}
	return "alive"
}

// Attacker sends an attack to the game service.
type Attacker interface {
	Attack(ctx context.Context, req monster.AttackRequest) (*monster.AttackResult, error)
}

// View is the widget the machine drives.
type View interface {
	Strike(ctx context.Context, crit bool) error
	ResetStrike(ctx context.Context) error
	Health(ctx context.Context, current, maxHP int, color string) error
	Victory(ctx context.Context, levelUp bool, newLevel int) error
}

// Report describes how one attack resolved.
type Report struct {
	WidgetID string
	Seq      int
	Damage   int
	Crit     bool
	Result   *monster.AttackResult // nil on failure
	Err      error
	Stale    bool // a newer result was already applied
}

// Config tunes damage and feedback. Zero values take defaults.
type Config struct {
	BaseDamage     int           // 10
	CritChance     float64       // 0.15 when zero; negative disables crits
	CritMultiplier int           // 2
	StrikeRevert   time.Duration // 150ms
	Rand           func() float64
	Logger         *slog.Logger
	OnReport       func(Report)
}

func (c *Config) defaults() {
	if c.BaseDamage <= 0 {
		c.BaseDamage = 10
	}
	if c.CritChance == 0 {
		c.CritChance = 0.15
	}
	if c.CritMultiplier <= 0 {
		c.CritMultiplier = 2
	}
	if c.StrikeRevert <= 0 {
		c.StrikeRevert = 150 * time.Millisecond
	}
	if c.Rand == nil {
		c.Rand = rand.Float64
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Machine owns one monster for the life of its widget.
type Machine struct {
	id       string
	cfg      Config
	view     View
	attacker Attacker

	mu      sync.Mutex
	monster monster.Monster
	state   State
	attacks int
	applied int

	// paintMu orders view updates; it is never held with mu.
	paintMu  sync.Mutex
	painted  int
	severity int

	wg sync.WaitGroup
}

// New binds m to its widget view.
func New(id string, m monster.Monster, view View, attacker Attacker, cfg Config) *Machine {
	cfg.defaults()
	return &Machine{id: id, cfg: cfg, view: view, attacker: attacker, monster: m}
}

// ID returns the widget ID.
func (m *Machine) ID() string { return m.id }

// Snapshot is a point-in-time copy of the machine.
type Snapshot struct {
	Monster monster.Monster
	State   State
	Attacks int
}

// Snapshot returns the current monster, state and attack count.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Monster: m.monster, State: m.state, Attacks: m.attacks}
}

// Attack rolls damage, shows the strike feedback, and sends the attack in
// the background. It returns ErrDefeated once the monster is defeated.
func (m *Machine) Attack(ctx context.Context) error {
	m.mu.Lock()
	if m.state == Defeated {
		m.mu.Unlock()
		return ErrDefeated
	}
	m.attacks++
	seq := m.attacks
	crit := m.cfg.Rand() < m.cfg.CritChance
	damage := m.cfg.BaseDamage
	if crit {
		damage *= m.cfg.CritMultiplier
	}
	req := monster.AttackRequest{
		Damage:     damage,
		CurrentHP:  m.monster.CurrentHP,
		XPReward:   m.monster.XPReward,
		GoldReward: m.monster.GoldReward,
	}
	m.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	if err := m.view.Strike(bg, crit); err != nil {
		m.cfg.Logger.Warn("battle: strike feedback", "widget", m.id, "error", err)
	}
	m.wg.Add(2)
	time.AfterFunc(m.cfg.StrikeRevert, func() {
		defer m.wg.Done()
		if err := m.view.ResetStrike(bg); err != nil {
			m.cfg.Logger.Debug("battle: strike revert", "widget", m.id, "error", err)
		}
	})
	go func() {
		defer m.wg.Done()
		m.resolve(bg, seq, damage, crit, req)
	}()
	return nil
}

// Wait blocks until in-flight attacks and strike reverts have finished.
func (m *Machine) Wait() { m.wg.Wait() }

func (m *Machine) resolve(ctx context.Context, seq, damage int, crit bool, req monster.AttackRequest) {
	rep := Report{WidgetID: m.id, Seq: seq, Damage: damage, Crit: crit}
	defer func() {
		if m.cfg.OnReport != nil {
			m.cfg.OnReport(rep)
		}
	}()

	res, err := m.attacker.Attack(ctx, req)
	if err != nil {
		rep.Err = err
		m.cfg.Logger.Warn("battle: attack failed", "widget", m.id, "error", err)
		return
	}
	rep.Result = res

	m.mu.Lock()
	if m.state == Defeated || seq <= m.applied {
		rep.Stale = true
		m.mu.Unlock()
		m.cfg.Logger.Debug("battle: stale result dropped", "widget", m.id, "seq", seq)
		return
	}
	m.applied = seq
	m.monster.CurrentHP = res.CurrentHP
	if res.Defeated {
		m.state = Defeated
	}
	f := frame{
		seq:      seq,
		current:  m.monster.CurrentHP,
		maxHP:    m.monster.MaxHP,
		severity: severity(m.monster.HealthPercent()),
		defeated: res.Defeated,
	}
	name, attacks := m.monster.Name, m.attacks
	m.mu.Unlock()

	if res.Defeated && res.Reward != nil && res.Reward.LevelUp {
		f.levelUp, f.newLevel = true, res.Reward.NewLevel
	}
	m.paint(ctx, f)
	if f.defeated {
		m.cfg.Logger.Info("battle: monster defeated", "widget", m.id, "monster", name, "attacks", attacks)
	}
}

// frame is what one applied result shows on the widget.
type frame struct {
	seq, current, maxHP int
	severity            int
	defeated, levelUp   bool
	newLevel            int
}

// paint pushes f to the view unless a newer frame is already shown.
func (m *Machine) paint(ctx context.Context, f frame) {
	m.paintMu.Lock()
	defer m.paintMu.Unlock()
	if f.seq <= m.painted {
		return
	}
	m.painted = f.seq

	color := ""
	if f.severity > m.severity {
		m.severity = f.severity
		color = severityColors[f.severity]
	}
	if err := m.view.Health(ctx, f.current, f.maxHP, color); err != nil {
		m.cfg.Logger.Warn("battle: health update", "widget", m.id, "error", err)
	}
	if !f.defeated {
		return
	}
	if err := m.view.Victory(ctx, f.levelUp, f.newLevel); err != nil {
		m.cfg.Logger.Warn("battle: victory", "widget", m.id, "error", err)
	}
}

var severityColors = [...]string{"", ColorWarning, ColorCritical}

func severity(pct float64) int {
	switch {
	case pct < 25:
		return 2
	case pct < 50:
		return 1
	default:
		return 0
	}
}
