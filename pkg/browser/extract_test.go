package browser_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/voicenav/pkg/browser"
)

func TestExtractText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "main element preferred",
			html: `<html><body><header>Site</header><main><h1>Title</h1>  <p>Body
			text</p><script>var x = 1;</script></main><footer>Foot</footer></body></html>`,
			want: "Title Body text",
		},
		{
			name: "article when no main",
			html: `<body><div>side</div><article>Story here</article></body>`,
			want: "Story here",
		},
		{
			name: "content id",
			html: `<body><div id="content">Inner</div><p>other</p></body>`,
			want: "Inner",
		},
		{
			name: "body fallback strips noise",
			html: `<body><nav>Menu</nav><p>Hello</p><style>p{}</style><p>there</p></body>`,
			want: "Hello there",
		},
		{
			name: "empty main falls through",
			html: `<body><main>   </main><p>fallback</p></body>`,
			want: "fallback",
		},
		{
			name: "empty page",
			html: ``,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := browser.ExtractText(tt.html)
			if err != nil {
				t.Fatalf("ExtractText: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTitle(t *testing.T) {
	t.Parallel()
	got, err := browser.ExtractTitle(`<html><head><title> Example
	Domain </title></head></html>`)
	if err != nil {
		t.Fatalf("ExtractTitle: %v", err)
	}
	if got != "Example Domain" {
		t.Fatalf("got %q, want %q", got, "Example Domain")
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("a", 600)
	got := browser.Summarize(long, browser.MaxReadChars)
	if len(got) != 503 || !strings.HasSuffix(got, "...") {
		t.Fatalf("len = %d, suffix %q", len(got), got[len(got)-3:])
	}
	if got := browser.Summarize("short", 500); got != "short" {
		t.Fatalf("got %q, want short", got)
	}
	// Multi-byte characters are never split.
	runes := strings.Repeat("é", 10)
	if got := browser.Summarize(runes, 4); got != "éééé..." {
		t.Fatalf("got %q, want %q", got, "éééé...")
	}
}
