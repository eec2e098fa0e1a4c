// Package pipeline turns detected candidates into live widgets: spawn a
// monster for the slot, render it, bind a battle machine and swap it in.
// A slot whose spawn fails is hidden instead.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hazyhaar/adrpg/idgen"
	"github.com/hazyhaar/adrpg/monster"
	"github.com/hazyhaar/adrpg/overlay/event"
	"github.com/hazyhaar/adrpg/overlay/internal/battle"
	"github.com/hazyhaar/adrpg/overlay/internal/detect"
	"github.com/hazyhaar/adrpg/overlay/internal/page"
	"github.com/hazyhaar/adrpg/overlay/internal/widget"
)

// Spawner asks the game service for a monster sized to a slot.
type Spawner interface {
	Spawn(ctx context.Context, width, height int) (*monster.Monster, error)
}

// Config wires a Pipeline. Doc, Spawner and Attacker are required.
type Config struct {
	Doc      page.Document
	Spawner  Spawner
	Attacker battle.Attacker
	Renderer *widget.Renderer
	Machines *battle.Registry
	Battle   battle.Config
	NewID    idgen.Generator // widget IDs
	Emit     func(event.Event)
	Logger   *slog.Logger
}

// Pipeline promotes candidates of one document.
type Pipeline struct {
	cfg Config
	wg  sync.WaitGroup
}

// New builds a Pipeline, filling optional fields.
func New(cfg Config) *Pipeline {
	if cfg.Renderer == nil {
		cfg.Renderer = widget.NewRenderer()
	}
	if cfg.Machines == nil {
		cfg.Machines = battle.NewRegistry()
	}
	if cfg.NewID == nil {
		cfg.NewID = idgen.Prefixed("w_", idgen.NanoID(10))
	}
	if cfg.Emit == nil {
		cfg.Emit = func(event.Event) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Battle.Logger == nil {
		cfg.Battle.Logger = cfg.Logger
	}
	return &Pipeline{cfg: cfg}
}

// Machines returns the registry of bound battle machines.
func (p *Pipeline) Machines() *battle.Registry { return p.cfg.Machines }

// Promote starts the promotion of c in the background. c must already be
// claimed in the processed registry.
func (p *Pipeline) Promote(ctx context.Context, c detect.Candidate) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.promote(ctx, c)
	}()
}

// Wait blocks until every started promotion has finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

func (p *Pipeline) promote(ctx context.Context, c detect.Candidate) {
	log := p.cfg.Logger.With("element", c.Key, "size", [2]int{c.Width, c.Height})

	m, err := p.cfg.Spawner.Spawn(ctx, c.Width, c.Height)
	if err != nil {
		log.Warn("pipeline: spawn failed", "error", err)
		p.hide(ctx, c, err)
		return
	}

	id := p.cfg.NewID()
	frag, err := p.cfg.Renderer.Render(id, *m, c.Width, c.Height)
	if err != nil {
		log.Error("pipeline: render", "widget", id, "error", err)
		p.hide(ctx, c, err)
		return
	}

	mach := battle.New(id, *m, widget.NewView(p.cfg.Doc, id), p.cfg.Attacker, p.cfg.Battle)
	p.cfg.Machines.Add(mach)

	if err := p.cfg.Doc.Replace(ctx, c.Key, frag); err != nil {
		p.cfg.Machines.Remove(id)
		log.Warn("pipeline: replace failed", "widget", id, "error", err)
		p.hide(ctx, c, err)
		return
	}

	log.Info("pipeline: monster spawned", "widget", id, "monster", m.Name, "tier", m.Tier, "level", m.Level)
	p.cfg.Emit(event.Event{
		Type:       event.Promoted,
		ElementKey: c.Key,
		WidgetID:   id,
		Detail: map[string]any{
			"pass":     string(c.Pass),
			"selector": c.Selector,
			"monster":  m.Name,
			"tier":     string(m.Tier),
			"level":    m.Level,
			"max_hp":   m.MaxHP,
		},
	})
}

func (p *Pipeline) hide(ctx context.Context, c detect.Candidate, cause error) {
	if err := p.cfg.Doc.Hide(ctx, c.Key); err != nil {
		p.cfg.Logger.Warn("pipeline: hide failed", "element", c.Key, "error", err)
	}
	p.cfg.Emit(event.Event{
		Type:       event.SpawnFailed,
		ElementKey: c.Key,
		Detail:     map[string]any{"error": cause.Error()},
	})
}
