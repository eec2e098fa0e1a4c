package overlay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/adrpg/overlay/event"
	"github.com/hazyhaar/adrpg/overlay/internal/battle"
	"github.com/hazyhaar/adrpg/overlay/internal/detect"
	"github.com/hazyhaar/adrpg/overlay/internal/page"
	"github.com/hazyhaar/adrpg/overlay/internal/pipeline"
	"github.com/hazyhaar/adrpg/relay"
)

// session is the overlay of one document: its engine, pipeline and battles.
type session struct {
	id, url string
	doc     page.Document
	engine  *detect.Engine
	pipe    *pipeline.Pipeline
	logger  *slog.Logger
	emit    func(event.Event)

	nudge  chan struct{}
	cancel context.CancelFunc
	closer func() error
	loop   sync.WaitGroup
}

func (o *Overlay) newSession(id, url string, doc page.Document, bridge *relay.Bridge) *session {
	s := &session{
		id:     id,
		url:    url,
		doc:    doc,
		logger: o.logger.With("page", id),
		nudge:  make(chan struct{}, 1),
	}
	emit := func(e event.Event) { o.emit(s, e) }
	s.emit = emit

	s.engine = detect.New(detect.Config{
		MinSize:        o.cfg.Scan.MinSize,
		Tolerance:      o.cfg.Scan.Tolerance,
		ExtraSelectors: o.cfg.Scan.ExtraSelectors,
		Logger:         s.logger,
		OnRuleError: func(re *detect.RuleError) {
			emit(event.Event{Type: event.RuleError, Detail: map[string]any{
				"pass": string(re.Pass), "selector": re.Selector, "error": re.Err.Error(),
			}})
		},
	})

	var crit float64
	if p := o.cfg.Battle.CritChance; p != nil {
		crit = *p
		if crit == 0 {
			crit = -1 // battle reads zero as unset
		}
	}
	bc := battle.Config{
		BaseDamage:     o.cfg.Battle.BaseDamage,
		CritChance:     crit,
		CritMultiplier: o.cfg.Battle.CritMultiplier,
		StrikeRevert:   o.cfg.Battle.StrikeRevert,
		Logger:         s.logger,
		OnReport:       func(r battle.Report) { reportEvents(r, emit) },
	}
	s.pipe = pipeline.New(pipeline.Config{
		Doc:      doc,
		Spawner:  bridge,
		Attacker: bridge,
		Battle:   bc,
		Emit:     emit,
		Logger:   s.logger,
	})
	return s
}

// reportEvents turns a battle report into sink events.
func reportEvents(r battle.Report, emit func(event.Event)) {
	if r.Err != nil {
		emit(event.Event{Type: event.AttackFailed, WidgetID: r.WidgetID, Detail: map[string]any{
			"damage": r.Damage, "crit": r.Crit, "error": r.Err.Error(),
		}})
		return
	}
	emit(event.Event{Type: event.Attack, WidgetID: r.WidgetID, Detail: map[string]any{
		"damage": r.Damage, "crit": r.Crit, "current_hp": r.Result.CurrentHP, "stale": r.Stale,
	}})
	if r.Stale || !r.Result.Defeated {
		return
	}
	detail := map[string]any{}
	if rw := r.Result.Reward; rw != nil {
		detail["xp"] = rw.XP
		detail["gold"] = rw.Gold
		if rw.LevelUp {
			detail["new_level"] = rw.NewLevel
		}
	}
	emit(event.Event{Type: event.Defeated, WidgetID: r.WidgetID, Detail: detail})
}

// scan runs the engine once and starts a promotion per candidate.
func (s *session) scan(ctx context.Context) (int, error) {
	if e, ok := s.doc.(interface{ Ensure(context.Context) error }); ok {
		if err := e.Ensure(ctx); err != nil {
			s.logger.Warn("overlay: reinstall helpers", "error", err)
		}
	}
	cs, err := s.engine.Scan(ctx, s.doc)
	for _, c := range cs {
		s.emitCandidate(c)
		s.pipe.Promote(ctx, c)
	}
	return len(cs), err
}

func (s *session) emitCandidate(c detect.Candidate) {
	s.logger.Debug("overlay: candidate", "element", c.Key, "pass", c.Pass, "w", c.Width, "h", c.Height)
	s.emit(event.Event{Type: event.Candidate, ElementKey: c.Key, Detail: map[string]any{
		"pass": string(c.Pass), "selector": c.Selector, "tag": c.Tag, "width": c.Width, "height": c.Height,
	}})
}

// run scans immediately, then on every tick and every nudge, until ctx is done.
func (s *session) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("overlay: scan", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.nudge:
		}
	}
}

// binding handles a call from the page.
func (s *session) binding(ctx context.Context, name, payload string) {
	switch name {
	case page.BindingAttack:
		err := s.pipe.Machines().Dispatch(ctx, payload)
		switch {
		case errors.Is(err, battle.ErrDefeated):
			s.logger.Debug("overlay: click on defeated monster", "widget", payload)
		case err != nil:
			s.logger.Warn("overlay: attack dispatch", "widget", payload, "error", err)
		}
	case page.BindingNudge:
		select {
		case s.nudge <- struct{}{}:
		default:
		}
	}
}

func (s *session) close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.loop.Wait()
	s.pipe.Wait()
	s.pipe.Machines().Wait()
	if s.closer != nil {
		if err := s.closer(); err != nil {
			s.logger.Warn("overlay: close tab", "error", err)
		}
	}
}
