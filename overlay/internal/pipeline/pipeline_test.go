package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/adrpg/idgen"
	"github.com/hazyhaar/adrpg/monster"
	"github.com/hazyhaar/adrpg/overlay/event"
	"github.com/hazyhaar/adrpg/overlay/internal/battle"
	"github.com/hazyhaar/adrpg/overlay/internal/detect"
	"github.com/hazyhaar/adrpg/overlay/internal/page"
)

type spawnFunc func(ctx context.Context, w, h int) (*monster.Monster, error)

func (f spawnFunc) Spawn(ctx context.Context, w, h int) (*monster.Monster, error) {
	return f(ctx, w, h)
}

type attackFunc func(context.Context, monster.AttackRequest) (*monster.AttackResult, error)

func (f attackFunc) Attack(ctx context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
	return f(ctx, req)
}

func goblin(_ context.Context, w, h int) (*monster.Monster, error) {
	return &monster.Monster{ID: 1, Name: "Ad-Goblin", Level: 3, Tier: monster.TierSmall,
		CurrentHP: 25, MaxHP: 25, XPReward: 15, GoldReward: 4, Width: w, Height: h}, nil
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) emit(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func setup(t *testing.T, body string, spawn Spawner) (*page.StaticDocument, *detect.Engine, *Pipeline, *recorder) {
	t.Helper()
	doc, err := page.ParseHTMLString("<html><body>" + body + "</body></html>")
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	p := New(Config{
		Doc:     doc,
		Spawner: spawn,
		Attacker: attackFunc(func(_ context.Context, req monster.AttackRequest) (*monster.AttackResult, error) {
			hp := max(0, req.CurrentHP-req.Damage)
			return &monster.AttackResult{CurrentHP: hp, Defeated: hp == 0}, nil
		}),
		Battle: battle.Config{StrikeRevert: time.Millisecond, Rand: func() float64 { return 0.99 }},
		NewID:  idgen.Sequence("w"),
		Emit:   rec.emit,
	})
	return doc, detect.New(detect.Config{}), p, rec
}

func scanAndPromote(t *testing.T, doc page.Document, e *detect.Engine, p *Pipeline) []detect.Candidate {
	t.Helper()
	cs, err := e.Scan(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range cs {
		p.Promote(context.Background(), c)
	}
	p.Wait()
	return cs
}

func TestPromote_ReplacesWithWidget(t *testing.T) {
	doc, e, p, rec := setup(t, `<div id="div-gpt-ad-1" style="width: 728px; height: 90px"></div>`, spawnFunc(goblin))

	cs := scanAndPromote(t, doc, e, p)
	if len(cs) != 1 {
		t.Fatalf("candidates = %d", len(cs))
	}
	if doc.HasElement(cs[0].Key) {
		t.Error("candidate still in document")
	}
	if ids := doc.WidgetIDs(); len(ids) != 1 || ids[0] != "w1" {
		t.Errorf("widgets = %v", ids)
	}
	if _, ok := p.Machines().Get("w1"); !ok {
		t.Error("no battle machine bound")
	}
	if types := rec.types(); len(types) != 1 || types[0] != event.Promoted {
		t.Errorf("events = %v", types)
	}
	if got := rec.events[0]; got.WidgetID != "w1" || got.ElementKey != cs[0].Key || got.Detail["monster"] != "Ad-Goblin" {
		t.Errorf("promoted event = %+v", got)
	}

	// The widget itself never qualifies on later scans.
	if again := scanAndPromote(t, doc, e, p); len(again) != 0 {
		t.Errorf("rescan found %d candidates", len(again))
	}
}

func TestPromote_SpawnFailureHides(t *testing.T) {
	spawn := spawnFunc(func(context.Context, int, int) (*monster.Monster, error) {
		return nil, errors.New("network error")
	})
	doc, e, p, rec := setup(t, `<ins class="adsbygoogle" style="width: 300px; height: 250px"></ins>`, spawn)

	cs := scanAndPromote(t, doc, e, p)
	if len(cs) != 1 {
		t.Fatalf("candidates = %d", len(cs))
	}
	style, ok := doc.ElementStyle(cs[0].Key)
	if !ok {
		t.Fatal("element removed instead of hidden")
	}
	if style["display"] != "none" || style["visibility"] != "hidden" {
		t.Errorf("style = %v", style)
	}
	if ids := doc.WidgetIDs(); len(ids) != 0 {
		t.Errorf("widgets = %v, want none", ids)
	}
	if p.Machines().Len() != 0 {
		t.Error("machine bound for failed spawn")
	}
	if types := rec.types(); len(types) != 1 || types[0] != event.SpawnFailed {
		t.Fatalf("events = %v", types)
	}
	if rec.events[0].Detail["error"] != "network error" {
		t.Errorf("detail = %v", rec.events[0].Detail)
	}
}

// failingReplace is a document whose Replace always fails.
type failingReplace struct{ *page.StaticDocument }

func (failingReplace) Replace(context.Context, string, page.Fragment) error {
	return page.ErrDetached
}

func TestPromote_ReplaceFailureHides(t *testing.T) {
	static, err := page.ParseHTMLString(`<html><body><div data-ad-slot="x" style="width: 160px; height: 600px"></div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	doc := failingReplace{static}
	rec := &recorder{}
	p := New(Config{Doc: doc, Spawner: spawnFunc(goblin), NewID: idgen.Sequence("w"), Emit: rec.emit})

	cs := scanAndPromote(t, doc, detect.New(detect.Config{}), p)
	if len(cs) != 1 {
		t.Fatalf("candidates = %d", len(cs))
	}
	if style, _ := static.ElementStyle(cs[0].Key); style["display"] != "none" {
		t.Errorf("style = %v, want hidden", style)
	}
	if p.Machines().Len() != 0 {
		t.Error("machine left bound after failed replace")
	}
	if types := rec.types(); len(types) != 1 || types[0] != event.SpawnFailed {
		t.Errorf("events = %v", types)
	}
}

func TestPromote_TerminalExclusivity(t *testing.T) {
	// Spawns succeed for leaderboards and fail for everything else.
	spawn := spawnFunc(func(ctx context.Context, w, h int) (*monster.Monster, error) {
		if w == 728 {
			return goblin(ctx, w, h)
		}
		return nil, errors.New("relay: spawn: status 503")
	})
	doc, e, p, _ := setup(t, `
<div id="div-gpt-ad-1" style="width: 728px; height: 90px"></div>
<div data-ad-client="a" style="width: 300px; height: 250px"></div>
<div id="div-gpt-ad-2" style="width: 728px; height: 90px"></div>
<iframe width="160" height="600"></iframe>`, spawn)

	cs := scanAndPromote(t, doc, e, p)
	if len(cs) != 4 {
		t.Fatalf("candidates = %d, want 4", len(cs))
	}
	for _, c := range cs {
		present := doc.HasElement(c.Key)
		hidden := false
		if style, ok := doc.ElementStyle(c.Key); ok {
			hidden = style["display"] == "none"
		}
		replaced := !present
		if replaced == hidden {
			t.Errorf("%s (%dx%d): replaced=%v hidden=%v", c.Key, c.Width, c.Height, replaced, hidden)
		}
	}
	if n := len(doc.WidgetIDs()); n != 2 {
		t.Errorf("widgets = %d, want 2", n)
	}
}

func TestPromote_WidgetBattle(t *testing.T) {
	doc, e, p, _ := setup(t, `<div id="div-gpt-ad-1" style="width: 300px; height: 250px"></div>`, spawnFunc(goblin))
	scanAndPromote(t, doc, e, p)

	ctx := context.Background()
	for range 3 {
		if err := p.Machines().Dispatch(ctx, "w1"); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		p.Machines().Wait()
	}
	hp, _ := doc.Region("w1", page.RegionHPText)
	if hp.Text != "0/25 HP" {
		t.Errorf("hp text = %q", hp.Text)
	}
	if btn, _ := doc.Region("w1", page.RegionAttack); !btn.Disabled {
		t.Error("attack enabled after defeat")
	}
	if err := p.Machines().Dispatch(ctx, "w1"); !errors.Is(err, battle.ErrDefeated) {
		t.Errorf("dispatch after defeat = %v", err)
	}
}
