package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// alwaysNoise is stripped from every page regardless of source.
const alwaysNoise = "nav, footer, header, script, style, noscript, .cookie-banner, .popup"

// Page is the readable part of an HTML document.
type Page struct {
	Title string
	Text  string
}

// Extract parses html and returns the title and main text, using the
// selectors registered for src. It falls back to <body> when no content
// selector matches.
func Extract(html string, src Source) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{Title: pageTitle(doc)}

	doc.Find(alwaysNoise).Remove()
	doc.Find(strings.Join(NoiseSelectors(src), ", ")).Remove()

	content := doc.Find("body")
	for _, sel := range ContentSelectors(src) {
		if s := doc.Find(sel); s.Length() > 0 {
			content = s.First()
			break
		}
	}
	page.Text = nonBlankLines(content.Text())
	return page, nil
}

// pageTitle prefers the first h1 over <title>, dropping the gov.uk suffix.
func pageTitle(doc *goquery.Document) string {
	title := doc.Find("main h1, h1").First().Text()
	if strings.TrimSpace(title) == "" {
		title = strings.TrimSuffix(strings.TrimSpace(doc.Find("title").First().Text()), " - GOV.UK")
	}
	return strings.Join(strings.Fields(title), " ")
}

func nonBlankLines(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}
