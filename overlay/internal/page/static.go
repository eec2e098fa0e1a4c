package page

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StaticDocument is a Document over a parsed HTML tree. Rendered sizes come
// from width/height attributes or inline style pixels, since there is no
// layout engine. Used for dry runs and tests.
type StaticDocument struct {
	mu   sync.Mutex
	root *html.Node
	seq  int
}

// ParseHTML parses a full HTML document.
func ParseHTML(r io.Reader) (*StaticDocument, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("page: parse: %w", err)
	}
	return &StaticDocument{root: root}, nil
}

// ParseHTMLString is ParseHTML for a string.
func ParseHTMLString(s string) (*StaticDocument, error) {
	return ParseHTML(strings.NewReader(s))
}

func (d *StaticDocument) Query(ctx context.Context, selector string) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, &SelectorError{Selector: selector, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	nodes := sel.MatchAll(d.root)
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.describe(n))
	}
	return out, nil
}

func (d *StaticDocument) Replace(ctx context.Context, key string, f Fragment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctxNode := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(f.HTML), ctxNode)
	if err != nil {
		return fmt.Errorf("page: parse fragment: %w", err)
	}
	var widget *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			widget = n
			break
		}
	}
	if widget == nil {
		return fmt.Errorf("page: fragment for %s has no element", f.WidgetID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	old := findAttr(d.root, AttrKey, key)
	if old == nil || old.Parent == nil {
		return ErrDetached
	}
	old.Parent.InsertBefore(widget, old)
	old.Parent.RemoveChild(old)
	return nil
}

func (d *StaticDocument) Hide(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	n := findAttr(d.root, AttrKey, key)
	if n == nil {
		return ErrDetached
	}
	setStyle(n, "display", "none")
	setStyle(n, "visibility", "hidden")
	return nil
}

func (d *StaticDocument) Patch(ctx context.Context, widgetID string, p Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	root := findAttr(d.root, AttrWidget, widgetID)
	if root == nil {
		return ErrDetached
	}
	region := func(name string) *html.Node { return findAttr(root, AttrRegion, name) }

	if fill := region(RegionFill); fill != nil {
		if p.FillWidth != "" {
			setStyle(fill, "width", p.FillWidth)
		}
		if p.FillColor != "" {
			setStyle(fill, "background-color", p.FillColor)
		}
	}
	if hp := region(RegionHPText); hp != nil && p.HPText != "" {
		setText(hp, p.HPText)
	}
	if btn := region(RegionAttack); btn != nil {
		if p.AttackText != "" {
			setText(btn, p.AttackText)
		}
		if p.AttackScale != "" {
			setStyle(btn, "transform", "scale("+p.AttackScale+")")
		}
		if p.DisableAttack {
			setAttr(btn, "disabled", "")
		}
	}
	if v := region(RegionVictory); v != nil && p.ShowVictory {
		setStyle(v, "display", "flex")
	}
	if r := region(RegionRewards); r != nil && p.AppendReward != "" {
		r.AppendChild(&html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br})
		r.AppendChild(&html.Node{Type: html.TextNode, Data: p.AppendReward})
	}
	return nil
}

// Render writes the current document as HTML.
func (d *StaticDocument) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

// String renders the document, for logs and assertions.
func (d *StaticDocument) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

// RegionState is what a widget region currently shows.
type RegionState struct {
	Text     string
	Style    map[string]string
	Disabled bool
}

// Region inspects a region of a rendered widget.
func (d *StaticDocument) Region(widgetID, region string) (RegionState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	root := findAttr(d.root, AttrWidget, widgetID)
	if root == nil {
		return RegionState{}, false
	}
	n := findAttr(root, AttrRegion, region)
	if n == nil {
		return RegionState{}, false
	}
	_, disabled := getAttr(n, "disabled")
	return RegionState{Text: textOf(n), Style: styleMap(n), Disabled: disabled}, true
}

// ElementStyle returns the inline style of the element with key, if present.
func (d *StaticDocument) ElementStyle(key string) (map[string]string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := findAttr(d.root, AttrKey, key)
	if n == nil {
		return nil, false
	}
	return styleMap(n), true
}

// HasElement reports whether an element with key is still in the document.
func (d *StaticDocument) HasElement(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return findAttr(d.root, AttrKey, key) != nil
}

// WidgetIDs lists rendered widgets in document order.
func (d *StaticDocument) WidgetIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ids []string
	walk(d.root, func(n *html.Node) bool {
		if v, ok := getAttr(n, AttrWidget); ok {
			ids = append(ids, v)
		}
		return true
	})
	return ids
}

func (d *StaticDocument) describe(n *html.Node) Element {
	key, ok := getAttr(n, AttrKey)
	if !ok {
		d.seq++
		key = "s" + strconv.Itoa(d.seq)
		setAttr(n, AttrKey, key)
	}
	id, _ := getAttr(n, "id")
	cls, _ := getAttr(n, "class")

	inWidget := false
	for p := n; p != nil; p = p.Parent {
		if _, ok := getAttr(p, AttrWidget); ok {
			inWidget = true
			break
		}
	}

	return Element{
		Key:      key,
		Tag:      n.Data,
		ID:       id,
		Class:    cls,
		Width:    dimension(n, "width"),
		Height:   dimension(n, "height"),
		InWidget: inWidget,
	}
}

var pxRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(px)?\s*$`)

// dimension reads a size from the inline style first, then the attribute.
func dimension(n *html.Node, prop string) int {
	if v, ok := styleMap(n)[prop]; ok {
		if px, ok := parsePx(v); ok {
			return px
		}
	}
	if v, ok := getAttr(n, prop); ok {
		if px, ok := parsePx(v); ok {
			return px
		}
	}
	return 0
}

func parsePx(s string) (int, bool) {
	m := pxRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func findAttr(root *html.Node, name, value string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if v, ok := getAttr(n, name); ok && v == value {
			found = n
			return false
		}
		return true
	})
	return found
}

func getAttr(n *html.Node, name string) (string, bool) {
	if n.Type != html.ElementNode {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

type styleDecl struct{ prop, value string }

func parseStyle(s string) []styleDecl {
	var decls []styleDecl
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		decls = append(decls, styleDecl{prop: prop, value: strings.TrimSpace(value)})
	}
	return decls
}

func styleMap(n *html.Node) map[string]string {
	s, _ := getAttr(n, "style")
	m := make(map[string]string)
	for _, d := range parseStyle(s) {
		m[d.prop] = d.value
	}
	return m
}

func setStyle(n *html.Node, prop, value string) {
	s, _ := getAttr(n, "style")
	decls := parseStyle(s)
	replaced := false
	for i := range decls {
		if decls[i].prop == prop {
			decls[i].value = value
			replaced = true
		}
	}
	if !replaced {
		decls = append(decls, styleDecl{prop: prop, value: value})
	}
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.prop + ": " + d.value
	}
	setAttr(n, "style", strings.Join(parts, "; "))
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return strings.TrimSpace(b.String())
}
