package scraper

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"donorwall/config"
	"donorwall/identity"
)

var (
	modalIDPattern   = regexp.MustCompile(`myModal(\d+)_all`)
	donorsLinkRegexp = regexp.MustCompile(`/campaigns/(\d+)/campaign_donors\.html`)
)

// Extractor pulls donor names out of the "all donors" leaderboard table.
type Extractor struct {
	sel config.Selectors
}

func NewExtractor(sel config.Selectors) *Extractor {
	def := config.DefaultSelectors()
	if sel.TableID == "" {
		sel.TableID = def.TableID
	}
	if sel.RowClass == "" {
		sel.RowClass = def.RowClass
	}
	if sel.NameClass == "" {
		sel.NameClass = def.NameClass
	}
	return &Extractor{sel: sel}
}

// ExtractFile reads a saved snapshot and extracts donor names from it.
func (e *Extractor) ExtractFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()
	return e.Extract(f)
}

// Extract returns unique donor names in document order. A page without the
// leaderboard table yields an empty slice, not an error.
func (e *Extractor) Extract(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	rowSelector := fmt.Sprintf("table#%s tr.%s", e.sel.TableID, e.sel.RowClass)
	nameSelector := "." + e.sel.NameClass

	names := make([]string, 0)
	seen := make(map[string]bool)

	doc.Find(rowSelector).Each(func(i int, row *goquery.Selection) {
		cell := row.Find("td").First()
		if cell.Length() == 0 {
			return
		}

		var name string
		if nameDiv := cell.Find(nameSelector).First(); nameDiv.Length() > 0 {
			name = visibleText(nameDiv)
		} else {
			name = visibleText(cell)
		}

		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})

	return names, nil
}

// visibleText joins the text nodes under sel with single spaces, skipping
// script and style content.
func visibleText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return identity.NormalizeText(strings.Join(parts, " "))
}

// FindCampaignID looks for the campaign id on a landing page, first in the
// "all donors" modal element id, then in links to the donors listing.
func FindCampaignID(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	var id string
	doc.Find("[id]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		attr, _ := s.Attr("id")
		if m := modalIDPattern.FindStringSubmatch(attr); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	if id != "" {
		return id, nil
	}

	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if m := donorsLinkRegexp.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id, nil
}
