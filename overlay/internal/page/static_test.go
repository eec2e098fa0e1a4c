package page

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const fixture = `<!doctype html><html><body>
<div id="header-ad" style="width: 728px; height: 90px">buy</div>
<img class="banner" width="300" height="250" src="x.png">
<div data-adrpg-widget="w1">
  <div data-adrpg-region="hp-fill" style="width: 100%"></div>
  <span data-adrpg-region="hp-text">80/80 HP</span>
  <button data-adrpg-region="attack">⚔️ ATTACK</button>
  <div data-adrpg-region="victory" style="display: none"></div>
  <div data-adrpg-region="rewards">+10 XP</div>
</div>
</body></html>`

func mustParse(t *testing.T, s string) *StaticDocument {
	t.Helper()
	doc, err := ParseHTMLString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestStaticQuery_SizesAndKeys(t *testing.T) {
	doc := mustParse(t, fixture)
	ctx := context.Background()

	els, err := doc.Query(ctx, `#header-ad, img.banner`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(els) != 2 {
		t.Fatalf("got %d elements, want 2", len(els))
	}
	if els[0].Width != 728 || els[0].Height != 90 {
		t.Errorf("style size = %dx%d, want 728x90", els[0].Width, els[0].Height)
	}
	if els[1].Width != 300 || els[1].Height != 250 {
		t.Errorf("attr size = %dx%d, want 300x250", els[1].Width, els[1].Height)
	}
	if els[0].Key == "" || els[0].Key == els[1].Key {
		t.Errorf("keys not unique: %q %q", els[0].Key, els[1].Key)
	}

	again, _ := doc.Query(ctx, `#header-ad`)
	if again[0].Key != els[0].Key {
		t.Errorf("key changed between queries: %q → %q", els[0].Key, again[0].Key)
	}
}

func TestStaticQuery_InWidget(t *testing.T) {
	doc := mustParse(t, fixture)
	els, err := doc.Query(context.Background(), `[data-adrpg-region]`)
	if err != nil {
		t.Fatal(err)
	}
	for _, el := range els {
		if !el.InWidget {
			t.Errorf("%s not flagged as inside widget", el.Key)
		}
	}
}

func TestStaticQuery_BadSelector(t *testing.T) {
	doc := mustParse(t, fixture)
	_, err := doc.Query(context.Background(), `div[[`)
	var se *SelectorError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SelectorError", err)
	}
	if se.Selector != `div[[` {
		t.Errorf("selector = %q", se.Selector)
	}
}

func TestStaticReplace(t *testing.T) {
	doc := mustParse(t, fixture)
	ctx := context.Background()
	els, _ := doc.Query(ctx, `#header-ad`)
	key := els[0].Key

	err := doc.Replace(ctx, key, Fragment{WidgetID: "w2", HTML: "\n<div data-adrpg-widget=\"w2\"><b>monster</b></div>"})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if doc.HasElement(key) {
		t.Error("replaced element still present")
	}
	ids := doc.WidgetIDs()
	if len(ids) != 2 || ids[0] != "w2" {
		t.Errorf("widgets = %v, want [w2 w1]", ids)
	}

	if err := doc.Replace(ctx, key, Fragment{WidgetID: "w3", HTML: "<div></div>"}); !errors.Is(err, ErrDetached) {
		t.Errorf("second replace err = %v, want ErrDetached", err)
	}
}

func TestStaticHide(t *testing.T) {
	doc := mustParse(t, fixture)
	ctx := context.Background()
	els, _ := doc.Query(ctx, `img.banner`)

	if err := doc.Hide(ctx, els[0].Key); err != nil {
		t.Fatalf("hide: %v", err)
	}
	style, ok := doc.ElementStyle(els[0].Key)
	if !ok {
		t.Fatal("hidden element removed")
	}
	if style["display"] != "none" || style["visibility"] != "hidden" {
		t.Errorf("style = %v", style)
	}
	if err := doc.Hide(ctx, "nope"); !errors.Is(err, ErrDetached) {
		t.Errorf("hide unknown = %v", err)
	}
}

func TestStaticPatch(t *testing.T) {
	doc := mustParse(t, fixture)
	ctx := context.Background()

	err := doc.Patch(ctx, "w1", Patch{
		FillWidth:     "40%",
		FillColor:     "#f39c12",
		HPText:        "32/80 HP",
		AttackText:    "💥 CRIT!",
		AttackScale:   "0.9",
		DisableAttack: true,
		ShowVictory:   true,
		AppendReward:  "🎉 LEVEL UP! Now Level 3!",
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	fill, _ := doc.Region("w1", RegionFill)
	if fill.Style["width"] != "40%" || fill.Style["background-color"] != "#f39c12" {
		t.Errorf("fill style = %v", fill.Style)
	}
	hp, _ := doc.Region("w1", RegionHPText)
	if hp.Text != "32/80 HP" {
		t.Errorf("hp text = %q", hp.Text)
	}
	btn, _ := doc.Region("w1", RegionAttack)
	if btn.Text != "💥 CRIT!" || btn.Style["transform"] != "scale(0.9)" || !btn.Disabled {
		t.Errorf("attack region = %+v", btn)
	}
	v, _ := doc.Region("w1", RegionVictory)
	if v.Style["display"] != "flex" {
		t.Errorf("victory style = %v", v.Style)
	}
	r, _ := doc.Region("w1", RegionRewards)
	if !strings.Contains(r.Text, "+10 XP") || !strings.HasSuffix(r.Text, "Now Level 3!") {
		t.Errorf("rewards = %q", r.Text)
	}

	if err := doc.Patch(ctx, "missing", Patch{HPText: "x"}); !errors.Is(err, ErrDetached) {
		t.Errorf("patch missing widget = %v", err)
	}
}

func TestStaticRender(t *testing.T) {
	doc := mustParse(t, fixture)
	if !strings.Contains(doc.String(), `data-adrpg-widget="w1"`) {
		t.Error("render lost widget")
	}
}
