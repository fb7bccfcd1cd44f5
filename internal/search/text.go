package search

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText strips markup from page text so that only readable words reach
// the embedder. Script and style bodies are dropped, whitespace collapsed.
func PlainText(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))

	var builder strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(builder.String()), " ")
		case html.StartTagToken:
			if isSkipped(tokenizer) {
				skipDepth++
			}
			builder.WriteByte(' ')
		case html.EndTagToken:
			if isSkipped(tokenizer) && skipDepth > 0 {
				skipDepth--
			}
			builder.WriteByte(' ')
		case html.SelfClosingTagToken:
			builder.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				builder.Write(tokenizer.Text())
				builder.WriteByte(' ')
			}
		}
	}
}

func isSkipped(tokenizer *html.Tokenizer) bool {
	name, _ := tokenizer.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
