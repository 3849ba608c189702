// Package extract turns quote page markup into quote records using goquery.
package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/quote-harvester/internal/quote"
)

// Default selectors mirror the quote page layout: the header holds the
// permalink and date, the body holds the text, the footer's third block the rating.
const (
	DefaultBodySelector  = "article > div > div"
	DefaultDateSelector  = "div > header > div"
	DefaultLikesSelector = "footer > div:nth-of-type(3)"
	DefaultDateLayout    = "02.01.2006в15:04"
)

// Config controls which nodes are read and how the date is parsed.
type Config struct {
	BodySelector  string
	DateSelector  string
	LikesSelector string
	DateLayout    string
	Location      *time.Location
}

// Extractor implements quote.Extractor.
type Extractor struct {
	cfg Config
}

// New builds an Extractor, filling unset fields with the defaults.
func New(cfg Config) *Extractor {
	if cfg.BodySelector == "" {
		cfg.BodySelector = DefaultBodySelector
	}
	if cfg.DateSelector == "" {
		cfg.DateSelector = DefaultDateSelector
	}
	if cfg.LikesSelector == "" {
		cfg.LikesSelector = DefaultLikesSelector
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = DefaultDateLayout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Extractor{cfg: cfg}
}

// Extract parses one quote page. ID and SourceURL are filled in by the caller.
func (e *Extractor) Extract(content []byte) (quote.Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return quote.Record{}, fmt.Errorf("%w: parse html: %v", quote.ErrExtraction, err)
	}

	text := e.text(doc)
	if text == "" {
		return quote.Record{}, fmt.Errorf("%w: quote text is empty", quote.ErrExtraction)
	}

	dateNode := doc.Find(e.cfg.DateSelector).First()
	if dateNode.Length() == 0 {
		return quote.Record{}, fmt.Errorf("%w: date node %q not found", quote.ErrExtraction, e.cfg.DateSelector)
	}
	published, err := time.ParseInLocation(e.cfg.DateLayout, squash(ownText(dateNode)), e.cfg.Location)
	if err != nil {
		return quote.Record{}, fmt.Errorf("%w: parse date: %v", quote.ErrExtraction, err)
	}

	likesNode := doc.Find(e.cfg.LikesSelector).First()
	if likesNode.Length() == 0 {
		return quote.Record{}, fmt.Errorf("%w: likes node %q not found", quote.ErrExtraction, e.cfg.LikesSelector)
	}

	return quote.Record{
		Text:        text,
		Likes:       parseLikes(ownText(likesNode)),
		PublishedAt: published.UTC(),
	}, nil
}

// text joins the direct text children of every body node, one line per node.
func (e *Extractor) text(doc *goquery.Document) string {
	var lines []string
	doc.Find(e.cfg.BodySelector).Each(func(_ int, s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if len(c.Nodes) == 0 || c.Nodes[0].Type != html.TextNode {
				return
			}
			if line := strings.TrimSpace(c.Nodes[0].Data); line != "" {
				lines = append(lines, line)
			}
		})
	})
	return strings.Join(lines, "\n")
}

// ownText returns only the text nodes directly under the first matched element.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		if len(c.Nodes) > 0 && c.Nodes[0].Type == html.TextNode {
			b.WriteString(c.Nodes[0].Data)
		}
	})
	return b.String()
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\t', '\r', '\u00a0':
			return -1
		}
		return r
	}, s)
}

// parseLikes returns 0 for hidden ratings such as "???".
func parseLikes(raw string) int64 {
	n, err := strconv.ParseInt(squash(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
