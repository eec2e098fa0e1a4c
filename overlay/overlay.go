// Package overlay replaces the ad slots of live pages with monsters the
// player can fight. It drives a Chrome tab per configured page, scans the
// document on a timer and on DOM mutations, swaps each detected slot for a
// battle widget, and reports what happened to event sinks.
//
// All game service traffic goes through the relay: the overlay only holds a
// relay.Bridge, and the responder that owns the HTTP client runs either
// in-process or as a separate adrpg-relay daemon.
package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/adrpg/idgen"
	"github.com/hazyhaar/adrpg/monster"
	"github.com/hazyhaar/adrpg/overlay/event"
	"github.com/hazyhaar/adrpg/overlay/internal/browser"
	"github.com/hazyhaar/adrpg/overlay/internal/config"
	"github.com/hazyhaar/adrpg/overlay/internal/page"
	"github.com/hazyhaar/adrpg/overlay/internal/sink"
	"github.com/hazyhaar/adrpg/relay"
)

// Overlay is the top-level orchestrator. Create one per process.
type Overlay struct {
	cfg    *config.Config
	mgr    *browser.Manager
	events *dispatcher
	logger *slog.Logger
	newID  idgen.Generator

	mu       sync.Mutex
	link     *link
	sessions map[string]*session
	stopped  bool
}

// New creates an Overlay from configuration. Events go to sinks, or to the
// sinks named in cfg when none are given.
func New(cfg *Config, logger *slog.Logger, sinks ...Sink) (*Overlay, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(sinks) == 0 {
		built, err := buildSinks(cfg.Sinks, logger)
		if err != nil {
			return nil, err
		}
		sinks = built
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:       cfg.Browser.Remote,
		Headful:         cfg.Browser.Headful,
		Stealth:         cfg.Browser.Stealth,
		NavigateTimeout: cfg.Browser.NavigateTimeout,
		Logger:          logger,
	})

	return &Overlay{
		cfg:      cfg,
		mgr:      mgr,
		events:   newDispatcher(sink.NewRouter(logger, sinks...), logger),
		logger:   logger,
		newID:    idgen.Default,
		sessions: make(map[string]*session),
	}, nil
}

// Start connects the relay, launches the browser and opens every
// configured page. A page that fails to open is logged and skipped.
func (o *Overlay) Start(ctx context.Context) error {
	if _, err := o.relay(ctx); err != nil {
		return err
	}
	if _, err := o.mgr.Start(ctx); err != nil {
		return fmt.Errorf("overlay: start browser: %w", err)
	}

	go o.greet(ctx)

	for _, pc := range o.cfg.Pages {
		if err := o.OpenPage(ctx, pc); err != nil {
			o.logger.Error("overlay: failed to open page", "url", pc.URL, "error", err)
		}
	}
	return nil
}

// OpenPage opens a tab on pc.URL and starts its scan loop.
func (o *Overlay) OpenPage(ctx context.Context, pc PageConfig) error {
	bridge, err := o.relay(ctx)
	if err != nil {
		return err
	}

	var doc *page.LiveDocument
	tab, err := o.mgr.OpenTab(ctx, pc.URL, pc.ID, func(p *rod.Page) error {
		doc = page.NewLiveDocument(p, o.logger)
		return doc.Bind()
	})
	if err != nil {
		return fmt.Errorf("overlay: open tab: %w", err)
	}
	if err := doc.Install(ctx); err != nil {
		tab.Close()
		return fmt.Errorf("overlay: %w", err)
	}

	s := o.newSession(pc.ID, pc.URL, doc, bridge)
	s.closer = tab.Close
	if !o.register(s) {
		s.close()
		return fmt.Errorf("overlay: page %q already open", pc.ID)
	}

	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go doc.Listen(sctx, func(name, payload string) { s.binding(sctx, name, payload) })
	s.loop.Add(1)
	go func() {
		defer s.loop.Done()
		s.run(sctx, o.cfg.Scan.Interval)
	}()

	o.logger.Info("overlay: page open", "id", pc.ID, "url", pc.URL)
	return nil
}

// ScanDocument runs one scan over doc and waits for every promotion to
// settle. The widgets stay attackable through Attack until Stop.
func (o *Overlay) ScanDocument(ctx context.Context, pageID, pageURL string, doc Document) (int, error) {
	bridge, err := o.relay(ctx)
	if err != nil {
		return 0, err
	}
	s := o.newSession(pageID, pageURL, doc, bridge)
	if !o.register(s) {
		return 0, fmt.Errorf("overlay: page %q already open", pageID)
	}
	n, err := s.scan(ctx)
	s.pipe.Wait()
	return n, err
}

// Attack clicks the attack control of a widget, as the page binding does.
func (o *Overlay) Attack(ctx context.Context, pageID, widgetID string) error {
	o.mu.Lock()
	s, ok := o.sessions[pageID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("overlay: unknown page %q", pageID)
	}
	return s.pipe.Machines().Dispatch(ctx, widgetID)
}

// Wait blocks until in-flight promotions and attacks of every page are done.
func (o *Overlay) Wait() {
	for _, s := range o.snapshot() {
		s.pipe.Wait()
		s.pipe.Machines().Wait()
	}
}

// Stop cancels every page, waits for in-flight work, then closes tabs, the
// relay, the browser and the sinks.
func (o *Overlay) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	sessions := make([]*session, 0, len(o.sessions))
	for _, s := range o.sessions {
		sessions = append(sessions, s)
	}
	l := o.link
	o.mu.Unlock()

	for _, s := range sessions {
		s.close()
		o.logger.Info("overlay: page closed", "id", s.id)
	}
	if l != nil {
		l.close()
	}
	if err := o.mgr.Close(); err != nil {
		o.logger.Warn("overlay: close browser", "error", err)
	}
	o.events.close()
}

func (o *Overlay) register(s *session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, dup := o.sessions[s.id]; dup || o.stopped {
		return false
	}
	o.sessions[s.id] = s
	return true
}

func (o *Overlay) snapshot() []*session {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*session, 0, len(o.sessions))
	for _, s := range o.sessions {
		out = append(out, s)
	}
	return out
}

// greet fetches the player once and logs it.
func (o *Overlay) greet(ctx context.Context) {
	bridge, err := o.relay(ctx)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	raw, err := bridge.User(ctx)
	if err != nil {
		o.logger.Warn("overlay: user fetch failed", "error", err)
		return
	}
	var u monster.User
	if err := json.Unmarshal(raw, &u); err != nil {
		o.logger.Warn("overlay: user decode failed", "error", err)
		return
	}
	o.logger.Info("overlay: player", "level", u.Level, "xp", u.XP, "gold", u.Gold, "slain", u.MonstersSlain)
}

// emit stamps e and queues it for the sinks.
func (o *Overlay) emit(s *session, e event.Event) {
	e.ID = o.newID()
	e.PageID = s.id
	e.PageURL = s.url
	e.Timestamp = time.Now().UTC()
	o.events.send(e)
}

// relay returns the bridge, connecting it on first use.
func (o *Overlay) relay(ctx context.Context) (*relay.Bridge, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil, fmt.Errorf("overlay: stopped")
	}
	if o.link == nil {
		l, err := connect(ctx, o.cfg.Relay, o.logger)
		if err != nil {
			return nil, err
		}
		o.link = l
	}
	return o.link.bridge, nil
}
