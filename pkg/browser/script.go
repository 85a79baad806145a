package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DocumentHTMLScript evaluates to the serialised DOM of the current page.
const DocumentHTMLScript = "document.documentElement.outerHTML"

// ScrollScript returns a JavaScript statement that scrolls the window.
func ScrollScript(dir Direction, amount int) string {
	if dir == DirectionUp {
		amount = -amount
	}
	return fmt.Sprintf("window.scrollBy(0, %d);", amount)
}

// candidateSelectors lists CSS selectors to try for an element type, most
// specific first. Text matching happens in script, not in the selector.
func candidateSelectors(el ElementDescriptor) []string {
	switch el.Type {
	case ElementButton:
		return []string{"button", "[role=button]", "input[type=button]", "input[type=submit]"}
	case ElementLink:
		return []string{"a[href]", "[role=link]"}
	case ElementInput:
		if el.Purpose == "search" {
			return []string{"input[type=search]", "input[name*=search i]", "input[placeholder*=search i]", "[role=searchbox]"}
		}
		if el.Purpose != "" {
			p := cssEscape(el.Purpose)
			return []string{
				"input[type=" + p + "]",
				"input[name*=" + p + " i]",
				"input[id*=" + p + " i]",
				"input[placeholder*=" + p + " i]",
				"input[autocomplete*=" + p + " i]",
			}
		}
		return []string{"input:not([type=hidden])", "textarea", "[contenteditable=true]"}
	default:
		return []string{"button", "a[href]", "[role=button]", "[role=link]", "input[type=submit]", "input[type=button]", "[onclick]", "[aria-label]", "[title]"}
	}
}

// cssEscape keeps only characters that are safe inside an unquoted CSS
// attribute value.
func cssEscape(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// clickTemplate finds candidates, filters by text, colour and position, then
// clicks the survivor. It evaluates to the clicked element's label or "" when
// nothing matched. %s receives the JSON-encoded locator.
const clickTemplate = `(function(q){
  var seen = new Set(), els = [];
  q.selectors.forEach(function(s){
    try { document.querySelectorAll(s).forEach(function(e){ if(!seen.has(e)){ seen.add(e); els.push(e); } }); } catch(_) {}
  });
  var visible = function(e){ var r = e.getBoundingClientRect(); return r.width > 0 && r.height > 0; };
  var label = function(e){
    return ((e.innerText || "") + " " + (e.value || "") + " " + (e.getAttribute("aria-label") || "") + " " + (e.getAttribute("title") || "") + " " + (e.getAttribute("placeholder") || "")).toLowerCase();
  };
  els = els.filter(visible);
  if (q.text) {
    var exact = els.filter(function(e){ return (e.innerText || e.value || "").trim().toLowerCase() === q.text; });
    els = exact.length ? exact : els.filter(function(e){ return label(e).indexOf(q.text) >= 0; });
  }
  if (q.color) {
    els = els.filter(function(e){
      var cs = getComputedStyle(e);
      return (cs.backgroundColor + " " + cs.color + " " + e.className).toLowerCase().indexOf(q.color) >= 0 || q.rgb.some(function(c){ return cs.backgroundColor === c || cs.color === c; });
    });
  }
  if (!els.length) { return ""; }
  var pick = els[0];
  var rect = function(e){ return e.getBoundingClientRect(); };
  switch (q.position) {
    case "last": case "bottom": pick = els.reduce(function(a,b){ return rect(b).top >= rect(a).top ? b : a; }); break;
    case "first": case "top": pick = els.reduce(function(a,b){ return rect(b).top < rect(a).top ? b : a; }); break;
    case "left": pick = els.reduce(function(a,b){ return rect(b).left < rect(a).left ? b : a; }); break;
    case "right": pick = els.reduce(function(a,b){ return rect(b).right > rect(a).right ? b : a; }); break;
    case "center": var cx = window.innerWidth/2, cy = window.innerHeight/2;
      var d = function(e){ var r = rect(e); return Math.hypot((r.left+r.right)/2-cx, (r.top+r.bottom)/2-cy); };
      pick = els.reduce(function(a,b){ return d(b) < d(a) ? b : a; }); break;
  }
  pick.scrollIntoView({block: "center"});
  if (pick.tagName === "INPUT" || pick.tagName === "TEXTAREA") { pick.focus(); }
  pick.click();
  return ((pick.innerText || pick.value || pick.getAttribute("aria-label") || pick.tagName) + "").trim().slice(0, 80) || pick.tagName;
})(%s)`

// namedColors maps spoken colour names to the computed-style values a page
// most commonly uses for them.
var namedColors = map[string][]string{
	"red":    {"rgb(255, 0, 0)", "rgb(220, 53, 69)"},
	"blue":   {"rgb(0, 0, 255)", "rgb(0, 123, 255)", "rgb(13, 110, 253)"},
	"green":  {"rgb(0, 128, 0)", "rgb(40, 167, 69)", "rgb(25, 135, 84)"},
	"yellow": {"rgb(255, 255, 0)", "rgb(255, 193, 7)"},
	"orange": {"rgb(255, 165, 0)", "rgb(253, 126, 20)"},
	"purple": {"rgb(128, 0, 128)", "rgb(111, 66, 193)"},
	"black":  {"rgb(0, 0, 0)"},
	"white":  {"rgb(255, 255, 255)"},
	"gray":   {"rgb(128, 128, 128)", "rgb(108, 117, 125)"},
	"grey":   {"rgb(128, 128, 128)", "rgb(108, 117, 125)"},
}

type locator struct {
	Selectors []string `json:"selectors"`
	Text      string   `json:"text"`
	Color     string   `json:"color"`
	RGB       []string `json:"rgb"`
	Position  string   `json:"position"`
}

// ClickScript returns a JavaScript expression that locates and clicks the
// element described by el. The expression evaluates to a non-empty string
// naming the clicked element, or "" when no element matched.
func ClickScript(el ElementDescriptor) string {
	q := locator{
		Selectors: candidateSelectors(el),
		Text:      strings.ToLower(strings.TrimSpace(el.Text)),
		Color:     strings.ToLower(el.Color),
		RGB:       namedColors[strings.ToLower(el.Color)],
		Position:  strings.ToLower(el.Position),
	}
	if q.RGB == nil {
		q.RGB = []string{}
	}
	// JSON is a valid JavaScript literal.
	data, _ := json.Marshal(q)
	return fmt.Sprintf(clickTemplate, data)
}
