package command

import (
	"log/slog"
	"maps"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/MrWong99/voicenav/internal/phonetic"
	"github.com/MrWong99/voicenav/pkg/browser"
)

// rule pairs a compiled pattern with the command it produces. Rules are tried
// in order; the first whose Regex matches wins.
type rule struct {
	// Name is a human-readable label for logging.
	Name string

	Regex *regexp.Regexp

	Intent     Intent
	Confidence float64

	// Params builds the payload from the submatches. Nil for intents without
	// parameters.
	Params func(p *Parser, m []string) (Params, float64)
}

// Option is a functional option for [Parser].
type Option func(*Parser)

// WithSites merges sites over [DefaultSites]. An empty URL removes a name.
func WithSites(sites map[string]string) Option {
	return func(p *Parser) { maps.Copy(p.siteURLs, sites) }
}

// WithMatcher sets the phonetic matcher used for fuzzy site names. A nil
// matcher disables fuzzy matching.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(p *Parser) { p.matcher = m }
}

// WithWakePhrases makes the parser ignore a wake phrase at the start of the
// text ("hey maya open google").
func WithWakePhrases(variants ...string) Option {
	return func(p *Parser) {
		for _, v := range variants {
			if v = normalize(v); v != "" {
				p.wake = append(p.wake, v)
			}
		}
	}
}

// WithClock sets the time source for Command timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// Parser maps free-form text to a [Command]. It holds no per-call state and
// is safe for concurrent use.
type Parser struct {
	siteURLs map[string]string
	sites    siteTable
	matcher  *phonetic.Matcher
	wake     []string
	now      func() time.Time
	rules    []rule
}

// NewParser returns a Parser with the built-in rules and site table.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		siteURLs: maps.Clone(DefaultSites),
		matcher:  phonetic.New(),
		now:      time.Now,
		rules:    defaultRules(),
	}
	for _, o := range opts {
		o(p)
	}
	p.sites = newSiteTable(p.siteURLs)
	p.siteURLs = nil
	return p
}

// Parse classifies text. It never fails: text that matches nothing yields
// an [IntentUnknown] command with RawText preserved.
func (p *Parser) Parse(text string) Command {
	at := p.now()
	norm := p.strip(normalize(text))
	if norm == "" {
		return Unknown(text, at)
	}

	cmd, name := p.match(norm)
	cmd.RawText = text
	cmd.Timestamp = at
	cmd = Normalize(cmd)

	slog.Debug("command: parsed",
		"text", text,
		"rule", name,
		"intent", cmd.Intent,
		"confidence", cmd.Confidence,
	)
	return cmd
}

func (p *Parser) match(norm string) (Command, string) {
	for _, r := range p.rules {
		m := r.Regex.FindStringSubmatch(norm)
		if m == nil {
			continue
		}
		cmd := Command{Intent: r.Intent, Confidence: r.Confidence}
		if r.Params != nil {
			params, ceiling := r.Params(p, m)
			cmd.Params = params
			cmd.Confidence = min(cmd.Confidence, ceiling)
		}
		if r.Intent == IntentUnknown {
			cmd.Confidence = 0
		}
		return cmd, r.Name
	}
	return p.infer(norm)
}

var (
	tldToken  = regexp.MustCompile(`(?:https?://)?\b[a-z0-9-]+(?:\.[a-z0-9-]+)*\.(?:com|org|net|edu|gov|io)\b(?:[/?#]\S*)?`)
	clickWord = regexp.MustCompile(`\b(?:click|tap|press)\b(?:\s+on)?\s*(.*)$`)
)

// infer is the last resort for text no rule matched.
func (p *Parser) infer(norm string) (Command, string) {
	if m := tldToken.FindString(norm); m != "" {
		u, _ := p.resolve(m)
		return Command{
			Intent:     IntentOpenURL,
			Params:     OpenURLParams{URL: u, Input: m},
			Confidence: ConfidenceInferred,
		}, "infer-domain"
	}
	if m := clickWord.FindStringSubmatch(norm); m != nil {
		return Command{
			Intent:     IntentClick,
			Params:     parseElement(m[1]),
			Confidence: ConfidenceInferred,
		}, "infer-click"
	}
	return Command{Intent: IntentUnknown}, "none"
}

var politeness = regexp.MustCompile(`^(?:(?:please|ok|okay|now|and|then|um|uh|can you|could you|would you|will you)\s+)+|\s+(?:please|now|thanks|thank you)$`)

// strip removes a leading wake phrase and politeness filler.
func (p *Parser) strip(norm string) string {
	for _, v := range p.wake {
		if norm == v {
			return ""
		}
		if rest, ok := strings.CutPrefix(norm, v+" "); ok {
			norm = rest
			break
		}
	}
	for {
		next := strings.TrimSpace(politeness.ReplaceAllString(norm, ""))
		if next == norm {
			return norm
		}
		norm = next
	}
}

// normalize lower-cases s, strips punctuation and collapses whitespace. A
// word that is a web address keeps its dots, scheme and path so
// "example.com/news" survives intact; elsewhere dots survive only between
// letters or digits.
func normalize(s string) string {
	out := make([]string, 0, 8)
	for _, f := range strings.Fields(s) {
		if addr := strings.TrimSuffix(strings.Trim(strings.ToLower(f), `"'(),.!?;:`), "/"); domainLike.MatchString(addr) {
			out = append(out, addr)
			continue
		}
		out = append(out, normalizeWord(f)...)
	}
	return strings.Join(out, " ")
}

// normalizeWord applies the punctuation rules to one whitespace-separated
// word, which may split it ("log-in" becomes "log in").
func normalizeWord(w string) []string {
	rs := []rune(w)
	out := make([]rune, 0, len(rs))
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			out = append(out, unicode.ToLower(r))
		case r == '\'':
		case r == '.' && i > 0 && i+1 < len(rs) && isAlnum(rs[i-1]) && isAlnum(rs[i+1]):
			out = append(out, r)
		default:
			out = append(out, ' ')
		}
	}
	return strings.Fields(string(out))
}

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// ── Rules ────────────────────────────────────────────────────────────────────

func openParams(p *Parser, m []string) (Params, float64) {
	input := strings.TrimSpace(m[1])
	u, kind := p.resolve(input)
	ceiling := ConfidenceExact
	if kind == matchFuzzy {
		ceiling = ConfidenceImplied
	}
	return OpenURLParams{URL: u, Input: input}, ceiling
}

func clickParams(_ *Parser, m []string) (Params, float64) {
	return parseElement(m[1]), ConfidenceExact
}

func scrollParams(_ *Parser, m []string) (Params, float64) {
	return ScrollParams{Direction: browser.Direction(m[1]), Amount: DefaultScrollAmount}, ConfidenceExact
}

func readMain(*Parser, []string) (Params, float64) {
	return ReadParams{Target: ReadMain}, ConfidenceExact
}

func readTitle(*Parser, []string) (Params, float64) {
	return ReadParams{Target: ReadTitle}, ConfidenceExact
}

// defaultRules returns the built-in rules, most specific first. Rules anchored
// at the start of the text come first, so an explicit verb ("open", "click")
// always owns its sentence. Keyword rules that may match anywhere come last.
func defaultRules() []rule {
	re := regexp.MustCompile
	return []rule{
		{
			Name:       "stop",
			Regex:      re(`^(?:stop|halt|cancel|quit|pause|enough|thats enough|that is enough|be quiet|shut up|silence)(?: (?:it|that|this|now|reading|talking|speaking))*$`),
			Intent:     IntentStop,
			Confidence: ConfidenceExact,
		},
		{
			Name:       "help",
			Regex:      re(`^(?:help(?: me)?|what can you do|what commands(?: are there| do you know)?|show commands|list commands|commands|options)$`),
			Intent:     IntentHelp,
			Confidence: ConfidenceExact,
		},
		{
			Name:       "back",
			Regex:      re(`^(?:(?:go|navigate|move) back(?: a page| one page| to the previous page)?|previous(?: page)?|back page|go to (?:the )?previous page)$`),
			Intent:     IntentBack,
			Confidence: ConfidenceExact,
		},
		{
			Name:       "back-word",
			Regex:      re(`^(?:back|return)$`),
			Intent:     IntentBack,
			Confidence: ConfidenceImplied,
		},
		{
			Name:       "forward",
			Regex:      re(`^(?:(?:go|navigate|move) forward(?: a page| one page)?|next(?: page)?)$`),
			Intent:     IntentForward,
			Confidence: ConfidenceExact,
		},
		{
			Name:       "forward-word",
			Regex:      re(`^(?:forward|advance)$`),
			Intent:     IntentForward,
			Confidence: ConfidenceImplied,
		},
		{
			Name:       "refresh",
			Regex:      re(`^(?:refresh|reload|update)(?: (?:the )?(?:page|this page|tab|this))?$`),
			Intent:     IntentRefresh,
			Confidence: ConfidenceExact,
		},
		{
			Name:       "read-title",
			Regex:      re(`^(?:(?:read|say|tell me)(?: me)? (?:the )?(?:page )?title|what page is this|what is (?:the )?(?:page )?title|whats the title|where am i)$`),
			Intent:     IntentRead,
			Confidence: ConfidenceExact,
			Params:     readTitle,
		},
		{
			Name:       "read",
			Regex:      re(`^(?:read|speak)(?: (?:the |this )?(?:page|this|it|article|content|main content|text))?(?: (?:to me|aloud|out loud))?$`),
			Intent:     IntentRead,
			Confidence: ConfidenceExact,
			Params:     readMain,
		},
		{
			Name:       "scroll",
			Regex:      re(`^(?:scroll|page|go|move)(?: the page)? (up|down)\b`),
			Intent:     IntentScroll,
			Confidence: ConfidenceExact,
			Params:     scrollParams,
		},
		{
			Name:       "scroll-word",
			Regex:      re(`^(up|down)$`),
			Intent:     IntentScroll,
			Confidence: ConfidenceImplied,
			Params:     scrollParams,
		},
		{
			Name:       "open",
			Regex:      re(`^(?:open(?: up)?|go to|navigate to|visit|load|browse to|take me to|bring up|pull up)\s+(.+)$`),
			Intent:     IntentOpenURL,
			Confidence: ConfidenceExact,
			Params:     openParams,
		},
		{
			Name:       "click",
			Regex:      re(`^(?:click|tap|press|select|choose|hit)(?:\s+on)?(?:\s+(.+))?$`),
			Intent:     IntentClick,
			Confidence: ConfidenceExact,
			Params:     clickParams,
		},
		{
			Name:       "help-implied",
			Regex:      re(`\b(?:what can you do|what can i say)\b`),
			Intent:     IntentHelp,
			Confidence: ConfidenceImplied,
		},
		{
			Name:       "read-implied",
			Regex:      re(`\b(?:what does it say|tell me what|read me)\b`),
			Intent:     IntentRead,
			Confidence: ConfidenceImplied,
			Params:     readMain,
		},
		{
			Name:       "scroll-loose",
			Regex:      re(`\bscroll\b(?: \w+)*? (up|down)\b`),
			Intent:     IntentScroll,
			Confidence: ConfidenceImplied,
			Params:     scrollParams,
		},
		{
			// "scroll" with no direction is deliberately not guessed.
			Name:   "scroll-undirected",
			Regex:  re(`\bscroll\b`),
			Intent: IntentUnknown,
		},
	}
}
