package lyrics

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// site is one scraping strategy. Each supported host renders lyrics in a
// different markup shape, so extraction is per-domain; adding a host means
// appending an entry here, in priority order.
type site struct {
	domain  string
	extract func(doc *html.Node) string
}

var sites = []site{
	{domain: "genius.com", extract: extractGenius},
	{domain: "azlyrics.com", extract: extractAZLyrics},
}

var (
	annotationRe = regexp.MustCompile(`\[[^\[\]]*\]`)
	structuralRe = regexp.MustCompile(`(?i)(verse|chorus|bridge|outro|intro|hook|pre-chorus|interlude|solo)`)
	excessGapRe  = regexp.MustCompile(`\n{3,}`)
)

// extractGenius reads the data-lyrics-container divs (falling back to the
// older Lyrics__Container class), drops non-structural bracketed annotations
// and collapses excessive blank lines.
func extractGenius(doc *html.Node) string {
	containers := findAll(doc, func(n *html.Node) bool {
		return n.Data == "div" && attr(n, "data-lyrics-container") == "true"
	})
	if len(containers) == 0 {
		containers = findAll(doc, func(n *html.Node) bool {
			return n.Data == "div" && strings.Contains(attr(n, "class"), "Lyrics__Container")
		})
	}
	if len(containers) == 0 {
		return ""
	}

	var parts []string
	for _, container := range containers {
		parts = append(parts, strippedStrings(container)...)
	}
	text := strings.Join(parts, "\n")

	text = annotationRe.ReplaceAllStringFunc(text, func(match string) string {
		if structuralRe.MatchString(match) {
			return match
		}
		return ""
	})
	return strings.TrimSpace(excessGapRe.ReplaceAllString(text, "\n\n"))
}

// extractAZLyrics finds the main content column and takes the first child div
// without a class attribute that holds a run of <br>-separated lines; that
// unclassed div is where the site places the lyrics body.
func extractAZLyrics(doc *html.Node) string {
	columns := findAll(doc, func(n *html.Node) bool {
		return n.Data == "div" && strings.Contains(attr(n, "class"), "col-xs-12 col-lg-8 text-center")
	})
	for _, column := range columns {
		for child := column.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != html.ElementNode || child.Data != "div" || hasAttr(child, "class") {
				continue
			}
			if countBreaks(child) > 5 {
				return strings.TrimSpace(excessGapRe.ReplaceAllString(textWithBreaks(child), "\n\n"))
			}
		}
	}
	return ""
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func findAll(doc *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			found = append(found, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// strippedStrings collects the trimmed, non-empty text fragments under n in
// document order.
func strippedStrings(n *html.Node) []string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return parts
}

// textWithBreaks flattens the subtree to text, turning <br> elements into
// newlines.
func textWithBreaks(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.Data == "br":
			sb.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	lines := strings.Split(sb.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func countBreaks(n *html.Node) int {
	count := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "br" {
			count++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return count
}
