package command

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// DefaultSites maps spoken site names to their canonical URLs.
var DefaultSites = map[string]string{
	"google":        "https://google.com",
	"youtube":       "https://youtube.com",
	"gmail":         "https://gmail.com",
	"reddit":        "https://reddit.com",
	"twitter":       "https://twitter.com",
	"facebook":      "https://facebook.com",
	"instagram":     "https://instagram.com",
	"linkedin":      "https://linkedin.com",
	"github":        "https://github.com",
	"stackoverflow": "https://stackoverflow.com",
	"wikipedia":     "https://wikipedia.org",

	"bbc":     "https://bbc.com",
	"cnn":     "https://cnn.com",
	"news":    "https://news.google.com",
	"reuters": "https://reuters.com",

	"amazon":  "https://amazon.com",
	"ebay":    "https://ebay.com",
	"walmart": "https://walmart.com",

	"netflix": "https://netflix.com",
	"spotify": "https://spotify.com",
	"twitch":  "https://twitch.tv",

	"docs":     "https://docs.google.com",
	"drive":    "https://drive.google.com",
	"calendar": "https://calendar.google.com",
	"outlook":  "https://outlook.com",

	"codepen": "https://codepen.io",
	"replit":  "https://replit.com",
	"npmjs":   "https://npmjs.com",
}

// SearchURL is the prefix used when the input names no known site.
const SearchURL = "https://google.com/search?q="

var (
	siteFiller   = regexp.MustCompile(`\b(?:the|website|web site|site|page|homepage|home page)\b`)
	spokenDot    = regexp.MustCompile(`\s+dot\s+(com|org|net|edu|gov|io|tv|co)\b`)
	domainLike   = regexp.MustCompile(`^(?:https?://)?[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?:[/?#]\S*)?$`)
	schemePrefix = regexp.MustCompile(`^https?://`)
)

// siteTable resolves spoken site names. Keys are stored compacted (lower
// case, no spaces) so "stack overflow" finds "stackoverflow". Known sites are
// always opened over https.
type siteTable struct {
	urls  map[string]string
	names []string
}

func newSiteTable(sites map[string]string) siteTable {
	t := siteTable{urls: make(map[string]string, len(sites))}
	for name, u := range sites {
		key := compact(strings.ToLower(name))
		if key == "" || u == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(u, "http://"); ok {
			u = "https://" + rest
		}
		t.urls[key] = u
		t.names = append(t.names, key)
	}
	slices.Sort(t.names)
	return t
}

// site match kinds, in order of preference.
type siteMatch int

const (
	matchNone siteMatch = iota
	matchExact
	matchDomain
	matchPartial
	matchFuzzy
	matchSearch
)

// resolve maps the spoken target of an open command to a URL.
func (p *Parser) resolve(input string) (string, siteMatch) {
	in := spokenDot.ReplaceAllString(input, ".$1")
	if u, ok := address(in); ok {
		return u, matchDomain
	}
	in = strings.Join(strings.Fields(siteFiller.ReplaceAllString(in, " ")), " ")
	if in == "" {
		return "", matchNone
	}

	if u, ok := p.sites.urls[compact(in)]; ok {
		return u, matchExact
	}

	for _, tok := range strings.Fields(in) {
		if u, ok := p.sites.urls[tok]; ok {
			return u, matchPartial
		}
	}

	if p.matcher != nil {
		if name, _, ok := p.matcher.Best(compact(in), p.sites.names); ok {
			return p.sites.urls[name], matchFuzzy
		}
	}

	return SearchURL + url.QueryEscape(in), matchSearch
}

// address returns the URL for input that is a single web address, possibly
// surrounded by filler words ("the example.com website"). The address is
// used verbatim apart from an https scheme added when it has none. Filler is
// only removed outside the address so a path like "/home/page" is kept.
func address(input string) (string, bool) {
	var addr string
	var rest []string
	for _, f := range strings.Fields(input) {
		if domainLike.MatchString(f) {
			if addr != "" {
				return "", false
			}
			addr = f
			continue
		}
		rest = append(rest, f)
	}
	if addr == "" || strings.TrimSpace(siteFiller.ReplaceAllString(strings.Join(rest, " "), "")) != "" {
		return "", false
	}
	if schemePrefix.MatchString(addr) {
		return addr, true
	}
	return "https://" + addr, true
}

func compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
