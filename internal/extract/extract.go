// Package extract turns a rendered page into section chunks for scoring.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/seanblong/siteanswer/internal/textutil"
	"github.com/seanblong/siteanswer/pkg/models"
	"golang.org/x/net/html"
)

// DefaultSections are the section ids of the team site, in page order.
var DefaultSections = []string{"home", "about", "outreach", "unearthed", "robot", "chatbot", "contact"}

var (
	indexableSel = cascadia.MustCompile("h1, h2, h3, p, li, blockquote, figcaption, [data-indexable]")
	headingSel   = cascadia.MustCompile("h1, h2, h3")
	noScanSel    = cascadia.MustCompile(`[data-noscan="true"]`)
)

// Extractor pulls chunks for a fixed list of section ids.
type Extractor struct {
	Sections []string
}

// New creates an Extractor. An empty list selects DefaultSections.
func New(sections []string) *Extractor {
	if len(sections) == 0 {
		sections = DefaultSections
	}
	return &Extractor{Sections: append([]string(nil), sections...)}
}

// Extract parses an HTML document and returns one chunk per section id, in
// section order. Sections missing from the page yield an empty chunk titled
// with the id. Content under [data-noscan="true"] is never indexed, so the
// chat widget does not index its own conversation.
func (e *Extractor) Extract(r io.Reader) ([]models.Chunk, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	byID := make(map[string]*html.Node, len(e.Sections))
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attr(n, "id"); id != "" {
				if _, seen := byID[id]; !seen {
					byID[id] = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	chunks := make([]models.Chunk, 0, len(e.Sections))
	for _, id := range e.Sections {
		chunk := models.Chunk{ID: id, Title: id, Href: "#" + id}
		if el, ok := byID[id]; ok {
			if h := headingSel.MatchFirst(el); h != nil {
				if title := innerText(h); title != "" {
					chunk.Title = title
				}
			}
			chunk.Text = indexableText(el)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func indexableText(root *html.Node) string {
	var parts []string
	for _, n := range indexableSel.MatchAll(root) {
		if n == root || excluded(n) {
			continue
		}
		if t := innerText(n); t != "" {
			parts = append(parts, t)
		}
	}
	return textutil.CollapseSpace(strings.Join(parts, " "))
}

// excluded reports whether n sits inside (or is) a non-indexable region.
func excluded(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && noScanSel.Match(p) {
			return true
		}
	}
	return false
}

// blockElements break words apart the way a browser's innerText does.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "li": true, "main": true, "nav": true, "ol": true, "p": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

func innerText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
			if blockElements[n.Data] {
				b.WriteByte(' ')
				defer b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return textutil.CollapseSpace(b.String())
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
