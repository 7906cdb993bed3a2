// Package markdown flattens model output written in Markdown into plain
// text that translation models and the chat widget can handle.
package markdown

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

func ToHTML(md []byte) string {
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.FlagsNone})
	p := parser.NewWithExtensions(parser.CommonExtensions)
	return string(markdown.Render(p.Parse(md), renderer))
}

var listItems = strings.NewReplacer("<li>", "<li>- ", "<br>", "\n", "<br />", "\n")

var blankRuns = regexp.MustCompile(`\n{3,}`)

// ToPlainText renders md and drops all markup, keeping list items as
// "- " lines.
func ToPlainText(md string) string {
	out := StripHTMLTags(listItems.Replace(ToHTML([]byte(md))))
	out = html.UnescapeString(out)
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func StripHTMLTags(htmlContent string) string {
	var result bytes.Buffer
	inTag := false

	for _, ch := range htmlContent {
		switch ch {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				result.WriteRune(ch)
			}
		}
	}

	return result.String()
}
