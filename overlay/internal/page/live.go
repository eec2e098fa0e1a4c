package page

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

//go:embed overlay.js
var overlayJS string

// Bindings exposed to the page. The widget button calls BindingAttack with
// the widget ID; the injected mutation observer calls BindingNudge.
const (
	BindingAttack = "__adrpg_attack"
	BindingNudge  = "__adrpg_nudge"
)

// LiveDocument is a Document over a Chrome tab. Every operation is a single
// Runtime.evaluate against helpers installed by Install.
type LiveDocument struct {
	page   *rod.Page
	logger *slog.Logger
}

// NewLiveDocument wraps a rod page. Call Bind for the bindings first, then Install.
func NewLiveDocument(p *rod.Page, logger *slog.Logger) *LiveDocument {
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveDocument{page: p, logger: logger}
}

// Bind registers the JS→Go bindings on the page target.
func (d *LiveDocument) Bind() error {
	for _, name := range []string{BindingAttack, BindingNudge} {
		if err := (proto.RuntimeAddBinding{Name: name}).Call(d.page); err != nil {
			return fmt.Errorf("page: add binding %s: %w", name, err)
		}
	}
	return nil
}

// Install injects the overlay helpers into the current document and every
// document loaded afterwards.
func (d *LiveDocument) Install(ctx context.Context) error {
	p := d.page.Context(ctx)
	if _, err := p.EvalOnNewDocument("(" + overlayJS + ")();"); err != nil {
		return fmt.Errorf("page: install on new document: %w", err)
	}
	return d.Ensure(ctx)
}

// Ensure installs the helpers into the current document if a navigation
// happened before the new-document script could run.
func (d *LiveDocument) Ensure(ctx context.Context) error {
	if _, err := d.page.Context(ctx).Eval(overlayJS); err != nil {
		return fmt.Errorf("page: install helpers: %w", err)
	}
	return nil
}

// Listen dispatches binding calls until ctx is done. It blocks.
func (d *LiveDocument) Listen(ctx context.Context, fn func(name, payload string)) {
	d.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != BindingAttack && e.Name != BindingNudge {
			return
		}
		fn(e.Name, e.Payload)
	})()
}

func (d *LiveDocument) Query(ctx context.Context, selector string) ([]Element, error) {
	res, err := d.page.Context(ctx).Eval(`(sel) => window.__adrpg.query(sel)`, selector)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &SelectorError{Selector: selector, Err: err}
	}
	var out []Element
	if err := json.Unmarshal([]byte(res.Value.Str()), &out); err != nil {
		return nil, fmt.Errorf("page: decode query result: %w", err)
	}
	return out, nil
}

func (d *LiveDocument) Replace(ctx context.Context, key string, f Fragment) error {
	return d.call(ctx, "replace",
		`(key, id, markup) => window.__adrpg.replace(key, id, markup)`, key, f.WidgetID, f.HTML)
}

func (d *LiveDocument) Hide(ctx context.Context, key string) error {
	return d.call(ctx, "hide", `(key) => window.__adrpg.hide(key)`, key)
}

func (d *LiveDocument) Patch(ctx context.Context, widgetID string, p Patch) error {
	return d.call(ctx, "patch", `(id, p) => window.__adrpg.patch(id, p)`, widgetID, p)
}

func (d *LiveDocument) call(ctx context.Context, op, js string, args ...any) error {
	res, err := d.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return fmt.Errorf("page: %s: %w", op, err)
	}
	if !res.Value.Bool() {
		return ErrDetached
	}
	return nil
}
