package command

import (
	"slices"
	"strings"

	"github.com/MrWong99/voicenav/pkg/browser"
)

var (
	colors    = []string{"red", "blue", "green", "yellow", "orange", "purple", "black", "white", "gray", "grey"}
	positions = []string{"top", "bottom", "left", "right", "center", "first", "last"}
	purposes  = []string{"search", "email", "password", "username", "name"}

	// typeWords maps role nouns to element types. Two-word nouns are joined
	// before lookup.
	typeWords = map[string]browser.ElementType{
		"button":     browser.ElementButton,
		"btn":        browser.ElementButton,
		"link":       browser.ElementLink,
		"hyperlink":  browser.ElementLink,
		"input":      browser.ElementInput,
		"field":      browser.ElementInput,
		"box":        browser.ElementInput,
		"textbox":    browser.ElementInput,
		"text box":   browser.ElementInput,
		"search bar": browser.ElementInput,
	}

	elementFiller = []string{"the", "a", "an", "this", "that", "on", "one", "please"}
)

// parseElement decomposes a spoken element description such as "the red
// login button" into a descriptor. Every field is best effort.
func parseElement(desc string) ClickParams {
	words := strings.Fields(desc)
	var el browser.ElementDescriptor

	// Role nouns, checking two-word nouns first.
	for i := 0; i < len(words); i++ {
		if i+1 < len(words) {
			if t, ok := typeWords[words[i]+" "+words[i+1]]; ok && el.Type == "" {
				el.Type = t
				if words[i] == "search" {
					el.Purpose = "search"
				}
				words = slices.Delete(words, i, i+2)
				i--
				continue
			}
		}
		if t, ok := typeWords[words[i]]; ok && el.Type == "" {
			el.Type = t
			words = slices.Delete(words, i, i+1)
			i--
		}
	}
	if el.Type == "" {
		el.Type = browser.ElementAny
	}

	el.Color, words = takeFirst(words, colors)
	el.Position, words = takeFirst(words, positions)
	if el.Type == browser.ElementInput && el.Purpose == "" {
		el.Purpose, words = takeFirst(words, purposes)
	}

	words = slices.DeleteFunc(words, func(w string) bool {
		return slices.Contains(elementFiller, w)
	})
	el.Text = strings.Join(words, " ")
	return ClickParams{el}
}

// takeFirst removes the first word of words that appears in vocab and returns
// it.
func takeFirst(words, vocab []string) (string, []string) {
	for i, w := range words {
		if slices.Contains(vocab, w) {
			return w, slices.Delete(slices.Clone(words), i, i+1)
		}
	}
	return "", words
}
