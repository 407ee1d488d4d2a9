package pubmed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/helixir/rehab-research-service/internal/domain"
)

// Detail page selectors. Only the first matching region is read.
const (
	keywordRegionSelector = "div.keywords-section"
	keywordItemSelector   = "button.keyword-actions-trigger"
	subjectRegionSelector = "div.mesh-terms"
	subjectItemSelector   = "button"
)

// FetchSupplement downloads the detail page of one article and extracts its
// keywords and subject terms. On any failure both lists are empty and the
// error is returned.
func (c *Client) FetchSupplement(ctx context.Context, id string) (domain.Supplement, error) {
	pageURL := domain.ArticleURL(c.config.PageBaseURL, url.PathEscape(id))

	body, err := c.get(ctx, "page", pageURL, url.Values{}, false)
	if err != nil {
		return domain.EmptySupplement(), fmt.Errorf("detail page %s: %w", id, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		c.metrics.RecordSourceRequestFailed(sourceKey, "page", "decode")
		return domain.EmptySupplement(), fmt.Errorf("detail page %s: %w", id, domain.NewMalformedDocumentError("html", err))
	}

	return ExtractSupplement(doc), nil
}

// ExtractSupplement reads the keyword and subject term regions of a parsed
// detail page. A missing region yields an empty list for that field.
func ExtractSupplement(doc *goquery.Document) domain.Supplement {
	return domain.Supplement{
		Keywords:     regionItems(doc, keywordRegionSelector, keywordItemSelector),
		SubjectTerms: regionItems(doc, subjectRegionSelector, subjectItemSelector),
	}
}

// regionItems returns the visible text of every item inside the first region,
// trimmed at both ends, empty strings skipped, in document order. Inner
// whitespace is kept as the page renders it.
func regionItems(doc *goquery.Document, region, item string) []string {
	items := []string{}
	doc.Find(region).First().Find(item).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			items = append(items, text)
		}
	})
	return items
}
