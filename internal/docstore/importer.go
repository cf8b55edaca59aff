package docstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/ppiankov/chartcode/internal/model"
)

// ImportFile reads a .txt, .md or .html note from disk. The title is the
// HTML <title>, a leading markdown heading, or the file name
func ImportFile(path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}

	base := filepath.Base(path)
	fallback := strings.TrimSuffix(base, filepath.Ext(base))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return ImportHTML(string(data), fallback)
	case ".txt", ".md", ".markdown", "":
		return importText(string(data), fallback), nil
	default:
		return nil, eris.Errorf("unsupported note format %q", filepath.Ext(path))
	}
}

// ImportHTML converts an HTML page into a document of its visible text
func ImportHTML(content, fallbackTitle string) (*model.Document, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}

	title := strings.TrimSpace(findTitle(root))
	if title == "" {
		title = fallbackTitle
	}
	text := strings.TrimSpace(extractVisibleText(root))
	if text == "" {
		return nil, eris.New("html note has no visible text")
	}

	return &model.Document{Title: title, Content: text}, nil
}

func importText(content, fallbackTitle string) *model.Document {
	content = strings.TrimSpace(content)
	title := fallbackTitle
	if first, rest, ok := strings.Cut(content, "\n"); ok && strings.HasPrefix(first, "# ") {
		title = strings.TrimSpace(strings.TrimPrefix(first, "# "))
		content = strings.TrimSpace(rest)
	}
	return &model.Document{Title: title, Content: content}
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// extractVisibleText collects text nodes, skipping scripts and styles.
// Block elements end a line so the note keeps its paragraph structure
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			trimTrailingSpace(&buf)
			buf.WriteString("\n")
		}
	}

	walk(n)

	lines := strings.Split(buf.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "section", "article", "pre", "table":
		return true
	}
	return false
}

func trimTrailingSpace(b *strings.Builder) {
	s := b.String()
	if trimmed := strings.TrimRight(s, " "); len(trimmed) != len(s) {
		b.Reset()
		b.WriteString(trimmed)
	}
}
