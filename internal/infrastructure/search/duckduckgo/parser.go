package duckduckgo

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"agent-compare/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// parseResults pairs each a.result-link with the result-snippet cell that
// follows it. Sponsored rows and duplicate links are skipped.
func parseResults(r io.Reader, limit int) ([]entity.SearchResult, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}
	stripNoise(root)
	doc := goquery.NewDocumentFromNode(root)

	results := make([]entity.SearchResult, 0)
	seen := make(map[string]struct{})
	var pending *entity.SearchResult

	flush := func() bool {
		if pending == nil {
			return true
		}
		if _, dup := seen[pending.Link]; !dup {
			seen[pending.Link] = struct{}{}
			results = append(results, *pending)
		}
		pending = nil
		return limit <= 0 || len(results) < limit
	}

	doc.Find("a.result-link, td.result-snippet").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "a" {
			if !flush() {
				return false
			}
			href, _ := s.Attr("href")
			link := resolveLink(href)
			title := cleanText(s.Text())
			if link == "" || title == "" || isAd(link) {
				return true
			}
			pending = &entity.SearchResult{Title: title, Link: link}
			return true
		}
		if pending != nil && pending.Snippet == "" {
			pending.Snippet = cleanText(s.Text())
		}
		return true
	})
	flush()

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

var noiseTags = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"svg":      {},
	"iframe":   {},
}

// stripNoise removes comments and non-content elements so their text never
// leaks into titles or snippets.
func stripNoise(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && isNoise(c.Data):
			n.RemoveChild(c)
		default:
			stripNoise(c)
		}
		c = next
	}
}

func isNoise(tag string) bool {
	_, ok := noiseTags[tag]
	return ok
}

// resolveLink unwraps //duckduckgo.com/l/?uddg=<target> redirects.
func resolveLink(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func isAd(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return true
	}
	return strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/y.js")
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
