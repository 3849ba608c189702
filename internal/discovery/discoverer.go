// Package discovery determines the current upper bound of published identifiers.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/quote-harvester/internal/quote"
)

// DefaultPermalinkSelector matches the permalink of the first entry on the landing page.
const DefaultPermalinkSelector = "article > div > header > a"

// LandingFetcher is the slice of quote.Transport the discoverer needs.
type LandingFetcher interface {
	FetchLanding(ctx context.Context) ([]byte, error)
}

// Discoverer reads the newest identifier from the landing page.
type Discoverer struct {
	transport LandingFetcher
	selector  string
	logger    *zap.Logger
}

// New constructs a Discoverer. An empty selector uses DefaultPermalinkSelector.
func New(transport LandingFetcher, selector string, logger *zap.Logger) *Discoverer {
	if selector == "" {
		selector = DefaultPermalinkSelector
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{transport: transport, selector: selector, logger: logger}
}

// DiscoverUpperBound returns the identifier of the most recently published
// document. Every failure is a *quote.DiscoveryError; there is no retry.
func (d *Discoverer) DiscoverUpperBound(ctx context.Context) (int64, error) {
	body, err := d.transport.FetchLanding(ctx)
	if err != nil {
		return 0, &quote.DiscoveryError{Err: err}
	}
	id, err := d.parse(body)
	if err != nil {
		return 0, &quote.DiscoveryError{Err: err}
	}
	d.logger.Info("discovered upper bound", zap.Int64("id", id))
	return id, nil
}

func (d *Discoverer) parse(body []byte) (int64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse landing page: %w", err)
	}
	node := doc.Find(d.selector).First()
	if node.Length() == 0 {
		return 0, fmt.Errorf("permalink %q not found on landing page", d.selector)
	}
	raw := strings.TrimPrefix(strings.TrimSpace(node.Text()), "#")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed permalink %q: %w", node.Text(), err)
	}
	if id <= 0 {
		return 0, errors.New("permalink id must be > 0")
	}
	return id, nil
}
