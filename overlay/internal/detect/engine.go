// Package detect finds ad slots in a host document. A scan runs three
// passes (structural rules, id/class heuristics, iframe sizes) and claims
// every candidate in the processed registry before returning it.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/adrpg/overlay/internal/page"
)

// Pass identifies which detection pass produced a candidate.
type Pass string

const (
	PassRule      Pass = "rule"
	PassHeuristic Pass = "heuristic"
	PassFrame     Pass = "frame"
)

// DefaultMinSize is the smallest width and height a candidate may have.
const DefaultMinSize = 40

// RuleError reports a selector that failed to evaluate. The scan skips it.
type RuleError struct {
	Pass     Pass
	Selector string
	Err      error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("detect: %s rule %q: %v", e.Pass, e.Selector, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Candidate is an element selected for replacement.
type Candidate struct {
	page.Element
	Pass     Pass
	Selector string
}

// Config tunes an Engine. Zero values take defaults.
type Config struct {
	MinSize        int
	Tolerance      int
	ExtraSelectors []string // appended to the built-in rules
	Logger         *slog.Logger
	OnRuleError    func(*RuleError)
}

// Engine runs scans against documents. It is safe for concurrent use; the
// registry makes concurrent scans claim each element at most once.
type Engine struct {
	rules     []string
	minSize   int
	tolerance int
	registry  *Registry
	logger    *slog.Logger
	onRuleErr func(*RuleError)
}

// New builds an Engine with its own registry.
func New(cfg Config) *Engine {
	if cfg.MinSize <= 0 {
		cfg.MinSize = DefaultMinSize
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	rules := Rules()
	for _, s := range cfg.ExtraSelectors {
		if s = strings.TrimSpace(s); s != "" {
			rules = append(rules, s)
		}
	}
	return &Engine{
		rules:     rules,
		minSize:   cfg.MinSize,
		tolerance: cfg.Tolerance,
		registry:  NewRegistry(),
		logger:    cfg.Logger,
		onRuleErr: cfg.OnRuleError,
	}
}

// Registry exposes the processed registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Scan returns the new candidates of doc, each already claimed. Rule
// failures are reported and skipped; the only error is ctx's.
func (e *Engine) Scan(ctx context.Context, doc page.Document) ([]Candidate, error) {
	var out []Candidate

	for _, sel := range e.rules {
		els, ok := e.query(ctx, doc, PassRule, sel)
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		out = e.collect(out, els, PassRule, sel, func(page.Element) bool { return true })
	}

	if els, ok := e.query(ctx, doc, PassHeuristic, heuristicSelector); ok {
		out = e.collect(out, els, PassHeuristic, heuristicSelector, func(el page.Element) bool {
			return adVocabulary.MatchString(strings.ToLower(el.ID)) ||
				adVocabulary.MatchString(strings.ToLower(el.Class)) ||
				isAdSize(el.Width, el.Height, e.tolerance)
		})
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if els, ok := e.query(ctx, doc, PassFrame, frameSelector); ok {
		out = e.collect(out, els, PassFrame, frameSelector, func(el page.Element) bool {
			return isAdSize(el.Width, el.Height, e.tolerance)
		})
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if len(out) > 0 {
		e.logger.Debug("detect: scan", "candidates", len(out), "processed", e.registry.Len())
	}
	return out, nil
}

func (e *Engine) query(ctx context.Context, doc page.Document, pass Pass, sel string) ([]page.Element, bool) {
	els, err := doc.Query(ctx, sel)
	if err == nil {
		return els, true
	}
	if ctx.Err() != nil {
		return nil, false
	}
	re := &RuleError{Pass: pass, Selector: sel, Err: err}
	e.logger.Warn("detect: rule skipped", "pass", pass, "selector", sel, "error", err)
	if e.onRuleErr != nil {
		e.onRuleErr(re)
	}
	return nil, false
}

func (e *Engine) collect(out []Candidate, els []page.Element, pass Pass, sel string, accept func(page.Element) bool) []Candidate {
	for _, el := range els {
		if el.InWidget || e.registry.Seen(el.Key) {
			continue
		}
		if el.Width < e.minSize || el.Height < e.minSize {
			continue
		}
		if !accept(el) || !e.registry.Claim(el.Key) {
			continue
		}
		out = append(out, Candidate{Element: el, Pass: pass, Selector: sel})
	}
	return out
}
