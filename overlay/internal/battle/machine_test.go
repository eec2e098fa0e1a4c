package battle

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/adrpg/monster"
	"github.com/hazyhaar/adrpg/overlay/internal/page"
	"github.com/hazyhaar/adrpg/overlay/internal/widget"
)

type healthCall struct {
	current, max int
	color        string
}

type fakeView struct {
	mu      sync.Mutex
	strikes []bool
	resets  int
	health  []healthCall
	victory []int // new level, -1 without level up
}

func (v *fakeView) Strike(_ context.Context, crit bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.strikes = append(v.strikes, crit)
	return nil
}

func (v *fakeView) ResetStrike(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.resets++
	return nil
}

func (v *fakeView) Health(_ context.Context, current, maxHP int, color string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.health = append(v.health, healthCall{current, maxHP, color})
	return nil
}

func (v *fakeView) Victory(_ context.Context, levelUp bool, newLevel int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !levelUp {
		newLevel = -1
	}
	v.victory = append(v.victory, newLevel)
	return nil
}

type attackFunc func(context.Context, monster.AttackRequest) (*monster.AttackResult, error)

func (f attackFunc) Attack(ctx context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
	return f(ctx, req)
}

// hpSequence answers successive attacks with the given health values.
func hpSequence(hps ...int) attackFunc {
	var mu sync.Mutex
	return func(_ context.Context, _ monster.AttackRequest) (*monster.AttackResult, error) {
		mu.Lock()
		defer mu.Unlock()
		hp := hps[0]
		hps = hps[1:]
		return &monster.AttackResult{CurrentHP: hp, Defeated: hp == 0}, nil
	}
}

func orc() monster.Monster {
	return monster.Monster{ID: 7, Name: "Banner-Orc", Level: 6, Tier: monster.TierMedium,
		CurrentHP: 100, MaxHP: 100, XPReward: 40, GoldReward: 9}
}

func fixedRand(v ...float64) func() float64 {
	var mu sync.Mutex
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		r := v[0]
		if len(v) > 1 {
			v = v[1:]
		}
		return r
	}
}

func TestAttack_DamageRoll(t *testing.T) {
	var reqs []monster.AttackRequest
	var mu sync.Mutex
	att := attackFunc(func(_ context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
		mu.Lock()
		reqs = append(reqs, req)
		mu.Unlock()
		return &monster.AttackResult{CurrentHP: req.CurrentHP - req.Damage}, nil
	})
	view := &fakeView{}
	m := New("w", orc(), view, att, Config{Rand: fixedRand(0.5, 0.1), StrikeRevert: time.Millisecond})

	if err := m.Attack(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Wait()
	if err := m.Attack(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Wait()

	if len(reqs) != 2 || reqs[0].Damage != 10 || reqs[1].Damage != 20 {
		t.Fatalf("requests = %+v, want damage 10 then 20", reqs)
	}
	if reqs[0].XPReward != 40 || reqs[0].GoldReward != 9 || reqs[1].CurrentHP != 90 {
		t.Errorf("requests = %+v", reqs)
	}
	if len(view.strikes) != 2 || view.strikes[0] || !view.strikes[1] {
		t.Errorf("strikes = %v, want [false true]", view.strikes)
	}
	if view.resets != 2 {
		t.Errorf("resets = %d, want 2", view.resets)
	}
	if s := m.Snapshot(); s.Monster.CurrentHP != 70 || s.Attacks != 2 || s.State != Alive {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestAttack_ColourOnlyDegrades(t *testing.T) {
	view := &fakeView{}
	m := New("w", orc(), view, hpSequence(60, 45, 30, 20), Config{StrikeRevert: time.Millisecond})
	for range 4 {
		if err := m.Attack(context.Background()); err != nil {
			t.Fatal(err)
		}
		m.Wait()
	}
	want := []string{"", ColorWarning, "", ColorCritical}
	for i, h := range view.health {
		if h.color != want[i] {
			t.Errorf("update %d (hp %d) colour = %q, want %q", i, h.current, h.color, want[i])
		}
	}
}

func TestAttack_StaleResultDropped(t *testing.T) {
	release := make(chan struct{})
	att := attackFunc(func(_ context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
		if req.Damage == 10 {
			<-release
			return &monster.AttackResult{CurrentHP: 80}, nil
		}
		return &monster.AttackResult{CurrentHP: 60}, nil
	})
	var reports []Report
	var mu sync.Mutex
	view := &fakeView{}
	m := New("w", orc(), view, att, Config{
		Rand:         fixedRand(0.5, 0.1),
		StrikeRevert: time.Millisecond,
		OnReport: func(r Report) {
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
			if r.Seq == 2 {
				close(release)
			}
		},
	})

	_ = m.Attack(context.Background())
	_ = m.Attack(context.Background())
	m.Wait()

	if hp := m.Snapshot().Monster.CurrentHP; hp != 60 {
		t.Errorf("hp = %d, want 60", hp)
	}
	if len(view.health) != 1 || view.health[0].current != 60 {
		t.Errorf("health updates = %+v, want only 60", view.health)
	}
	if len(reports) != 2 || reports[0].Seq != 2 || !reports[1].Stale {
		t.Errorf("reports = %+v", reports)
	}
}

func TestAttack_TransportFailure(t *testing.T) {
	fail := true
	att := attackFunc(func(_ context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
		if fail {
			return nil, errors.New("relay: attack: network error")
		}
		return &monster.AttackResult{CurrentHP: 90}, nil
	})
	var got Report
	view := &fakeView{}
	m := New("w", orc(), view, att, Config{StrikeRevert: time.Millisecond, OnReport: func(r Report) { got = r }})

	_ = m.Attack(context.Background())
	m.Wait()
	if got.Err == nil || len(view.health) != 0 {
		t.Fatalf("failure changed state: report %+v, health %+v", got, view.health)
	}
	if s := m.Snapshot(); s.Monster.CurrentHP != 100 || s.State != Alive {
		t.Errorf("snapshot after failure = %+v", s)
	}

	fail = false
	if err := m.Attack(context.Background()); err != nil {
		t.Fatalf("retry refused: %v", err)
	}
	m.Wait()
	if hp := m.Snapshot().Monster.CurrentHP; hp != 90 {
		t.Errorf("hp after retry = %d", hp)
	}
}

func TestAttack_DefeatWithLevelUp(t *testing.T) {
	doc, err := page.ParseHTMLString(`<html><body><div id="slot"></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	els, _ := doc.Query(ctx, "#slot")
	frag, err := widget.NewRenderer().Render("w-c", orc(), 300, 250)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Replace(ctx, els[0].Key, frag); err != nil {
		t.Fatal(err)
	}

	att := attackFunc(func(context.Context, monster.AttackRequest) (*monster.AttackResult, error) {
		return &monster.AttackResult{
			CurrentHP: 0, Defeated: true,
			Reward: &monster.Reward{LevelUp: true, NewLevel: 5},
		}, nil
	})
	m := New("w-c", orc(), widget.NewView(doc, "w-c"), att, Config{StrikeRevert: time.Millisecond})

	if err := m.Attack(ctx); err != nil {
		t.Fatal(err)
	}
	m.Wait()

	fill, _ := doc.Region("w-c", page.RegionFill)
	if fill.Style["width"] != "0%" || fill.Style["background-color"] != ColorCritical {
		t.Errorf("fill = %v", fill.Style)
	}
	if v, _ := doc.Region("w-c", page.RegionVictory); v.Style["display"] != "flex" {
		t.Errorf("victory panel hidden: %v", v.Style)
	}
	if btn, _ := doc.Region("w-c", page.RegionAttack); !btn.Disabled {
		t.Error("attack control still enabled")
	}
	if r, _ := doc.Region("w-c", page.RegionRewards); !strings.Contains(r.Text, "Now Level 5") {
		t.Errorf("rewards = %q", r.Text)
	}
	if err := m.Attack(ctx); !errors.Is(err, ErrDefeated) {
		t.Errorf("attack after defeat = %v, want ErrDefeated", err)
	}
	if s := m.Snapshot(); s.State != Defeated || s.Attacks != 1 {
		t.Errorf("snapshot = %+v", s)
	}
}

func TestAttack_IndependentWidgets(t *testing.T) {
	gate := make(chan struct{})
	slow := attackFunc(func(_ context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
		<-gate
		return &monster.AttackResult{CurrentHP: req.CurrentHP - 10}, nil
	})
	fast := attackFunc(func(_ context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
		defer close(gate)
		return &monster.AttackResult{CurrentHP: req.CurrentHP - 40}, nil
	})

	va, vb := &fakeView{}, &fakeView{}
	a := orc()
	b := orc()
	b.MaxHP, b.CurrentHP = 50, 50

	reg := NewRegistry()
	reg.Add(New("a", a, va, slow, Config{Rand: fixedRand(0.9), StrikeRevert: time.Millisecond}))
	reg.Add(New("b", b, vb, fast, Config{Rand: fixedRand(0.9), StrikeRevert: time.Millisecond}))

	ctx := context.Background()
	if err := reg.Dispatch(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Dispatch(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	reg.Wait()

	ma, _ := reg.Get("a")
	mb, _ := reg.Get("b")
	if hp := ma.Snapshot().Monster.CurrentHP; hp != 90 {
		t.Errorf("widget a hp = %d, want 90", hp)
	}
	if hp := mb.Snapshot().Monster.CurrentHP; hp != 10 {
		t.Errorf("widget b hp = %d, want 10", hp)
	}
	if len(va.health) != 1 || va.health[0].color != "" {
		t.Errorf("widget a updates = %+v", va.health)
	}
	if len(vb.health) != 1 || vb.health[0].color != ColorCritical {
		t.Errorf("widget b updates = %+v", vb.health)
	}
}

func TestRegistry_UnknownWidget(t *testing.T) {
	if err := NewRegistry().Dispatch(context.Background(), "ghost"); err == nil {
		t.Error("dispatch to unknown widget succeeded")
	}
}

// stuckView blocks its first health update until released.
type stuckView struct {
	fakeView
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (v *stuckView) Health(ctx context.Context, current, maxHP int, color string) error {
	v.once.Do(func() {
		close(v.entered)
		<-v.release
	})
	return v.fakeView.Health(ctx, current, maxHP, color)
}

func TestAttack_SlowViewDoesNotBlockClicks(t *testing.T) {
	view := &stuckView{entered: make(chan struct{}), release: make(chan struct{})}
	m := New("w", orc(), view, hpSequence(80, 60), Config{Rand: fixedRand(0.9), StrikeRevert: time.Millisecond})

	if err := m.Attack(context.Background()); err != nil {
		t.Fatal(err)
	}
	<-view.entered

	done := make(chan error, 1)
	go func() {
		_ = m.Snapshot()
		done <- m.Attack(context.Background())
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second attack: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(view.release)
		t.Fatal("Attack blocked behind a pending view update")
	}

	close(view.release)
	m.Wait()

	if hp := m.Snapshot().Monster.CurrentHP; hp != 60 {
		t.Errorf("hp = %d, want 60", hp)
	}
	last := view.health[len(view.health)-1]
	if last.current != 60 {
		t.Errorf("last health update = %+v, want 60", last)
	}
}

func TestConfig_NegativeCritChanceDisablesCrits(t *testing.T) {
	var reqs []monster.AttackRequest
	att := attackFunc(func(_ context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
		reqs = append(reqs, req)
		return &monster.AttackResult{CurrentHP: 90}, nil
	})
	view := &fakeView{}
	m := New("w", orc(), view, att, Config{CritChance: -1, Rand: fixedRand(0), StrikeRevert: time.Millisecond})

	if err := m.Attack(context.Background()); err != nil {
		t.Fatal(err)
	}
	m.Wait()

	if len(view.strikes) != 1 || view.strikes[0] {
		t.Errorf("strikes = %v, want one plain hit", view.strikes)
	}
	if len(reqs) != 1 || reqs[0].Damage != 10 {
		t.Errorf("requests = %+v, want damage 10", reqs)
	}
}
