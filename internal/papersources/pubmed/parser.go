package pubmed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/helixir/rehab-research-service/internal/domain"
)

// Record field names used by the extraction policy.
const (
	FieldID       = "id"
	FieldTitle    = "title"
	FieldAbstract = "abstract"
	FieldJournal  = "journal"
	FieldYear     = "year"
	FieldAuthors  = "authors"
)

// FieldPolicy describes how one record field is extracted from a MedlineCitation.
// Paths are tried in order and the first one yielding a usable value wins.
type FieldPolicy struct {
	Field string
	Paths []string

	// Default is used for scalar fields when no path yields a value.
	// List fields default to an empty list.
	Default string

	// List marks fields that produce a sequence rather than a string.
	List bool

	// Join, when set, concatenates all values found at a path into one string.
	Join string

	// Limit caps the number of values kept for list fields. Zero means no cap.
	Limit int
}

var fieldPolicies = []FieldPolicy{
	{Field: FieldID, Paths: []string{"PMID"}, Default: domain.UnknownID},
	{Field: FieldTitle, Paths: []string{"Article/ArticleTitle"}, Default: domain.NoTitle},
	{Field: FieldAbstract, Paths: []string{"Article/Abstract/AbstractText"}, Default: domain.NoAbstract, Join: " "},
	{Field: FieldJournal, Paths: []string{"Article/Journal/Title", "Article/Journal/ISOAbbreviation"}, Default: domain.UnknownJournal},
	{Field: FieldYear, Paths: []string{"Article/Journal/JournalIssue/PubDate/Year", "Article/Journal/JournalIssue/PubDate/MedlineDate"}, Default: domain.UnknownYear},
	{Field: FieldAuthors, Paths: []string{"Article/AuthorList/Author"}, List: true, Limit: domain.MaxAuthorsPerEntry},
}

// FieldPolicies returns a copy of the extraction policy table, one entry per record field.
func FieldPolicies() []FieldPolicy {
	out := make([]FieldPolicy, len(fieldPolicies))
	for i, p := range fieldPolicies {
		p.Paths = append([]string(nil), p.Paths...)
		out[i] = p
	}
	return out
}

// pathReader returns the candidate values found at one path, already trimmed
// and validated. Empty values are never returned.
type pathReader func(c *MedlineCitation) []string

var (
	fourDigitYear   = regexp.MustCompile(`^\d{4}$`)
	leadingYearExpr = regexp.MustCompile(`^(\d{4})\b`)
)

// pathReaders maps every path named in fieldPolicies to its reader.
// Paths are relative to MedlineCitation.
var pathReaders = map[string]pathReader{
	"PMID": func(c *MedlineCitation) []string {
		return single(strings.TrimSpace(c.PMID.Value))
	},
	"Article/ArticleTitle": func(c *MedlineCitation) []string {
		return single(c.Article.ArticleTitle.String())
	},
	"Article/Abstract/AbstractText": func(c *MedlineCitation) []string {
		if c.Article.Abstract == nil {
			return nil
		}
		var parts []string
		for i := range c.Article.Abstract.AbstractTexts {
			if s := c.Article.Abstract.AbstractTexts[i].String(); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	},
	"Article/Journal/Title": func(c *MedlineCitation) []string {
		return single(collapseSpace(c.Article.Journal.Title))
	},
	"Article/Journal/ISOAbbreviation": func(c *MedlineCitation) []string {
		return single(collapseSpace(c.Article.Journal.ISOAbbreviation))
	},
	"Article/Journal/JournalIssue/PubDate/Year": func(c *MedlineCitation) []string {
		y := strings.TrimSpace(c.Article.Journal.JournalIssue.PubDate.Year)
		if !fourDigitYear.MatchString(y) {
			return nil
		}
		return single(y)
	},
	"Article/Journal/JournalIssue/PubDate/MedlineDate": func(c *MedlineCitation) []string {
		m := leadingYearExpr.FindStringSubmatch(strings.TrimSpace(c.Article.Journal.JournalIssue.PubDate.MedlineDate))
		if m == nil {
			return nil
		}
		return single(m[1])
	},
	"Article/AuthorList/Author": func(c *MedlineCitation) []string {
		if c.Article.AuthorList == nil {
			return nil
		}
		var names []string
		for _, a := range c.Article.AuthorList.Authors {
			if name := formatAuthor(a); name != "" {
				names = append(names, name)
			}
		}
		return names
	},
}

func single(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

// formatAuthor renders "Last, Fore" or "Last". Authors without a last name,
// including collective authors, are skipped.
func formatAuthor(a Author) string {
	last := collapseSpace(a.LastName)
	if last == "" {
		return ""
	}
	if fore := collapseSpace(a.ForeName); fore != "" {
		return last + ", " + fore
	}
	return last
}

func scalarValue(p FieldPolicy, c *MedlineCitation) string {
	for _, path := range p.Paths {
		vals := pathReaders[path](c)
		if len(vals) == 0 {
			continue
		}
		if p.Join != "" {
			return strings.Join(vals, p.Join)
		}
		return vals[0]
	}
	return p.Default
}

func listValue(p FieldPolicy, c *MedlineCitation) []string {
	for _, path := range p.Paths {
		vals := pathReaders[path](c)
		if len(vals) == 0 {
			continue
		}
		if p.Limit > 0 && len(vals) > p.Limit {
			vals = vals[:p.Limit]
		}
		return vals
	}
	return []string{}
}

// ParseArticleSet decodes an efetch XML document into article records.
// Source URLs point at the public PubMed site.
func ParseArticleSet(data []byte) ([]domain.ArticleRecord, error) {
	return parseArticleSet(data, domain.DefaultPageBaseURL)
}

// parseArticleSet never returns a nil slice. A document that cannot be
// decoded yields an empty slice and a MalformedDocumentError.
func parseArticleSet(data []byte, pageBaseURL string) ([]domain.ArticleRecord, error) {
	set, err := decodeArticleSet(data)
	if err != nil {
		return []domain.ArticleRecord{}, domain.NewMalformedDocumentError("xml", err)
	}

	records := make([]domain.ArticleRecord, 0, len(set.Articles))
	for _, article := range set.Articles {
		if article.MedlineCitation == nil {
			continue
		}
		records = append(records, buildRecord(article.MedlineCitation, pageBaseURL))
	}
	return records, nil
}

// decodeArticleSet decodes the root element and then requires that nothing but
// whitespace, comments and processing instructions follows it.
func decodeArticleSet(data []byte) (*PubmedArticleSet, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var set PubmedArticleSet
	if err := dec.Decode(&set); err != nil {
		return nil, err
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return &set, nil
		}
		if err != nil {
			return nil, fmt.Errorf("after root element: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return nil, fmt.Errorf("unexpected element <%s> after root element", t.Name.Local)
		case xml.EndElement:
			return nil, fmt.Errorf("unexpected end element </%s> after root element", t.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return nil, errors.New("unexpected text after root element")
			}
		}
	}
}

func buildRecord(c *MedlineCitation, pageBaseURL string) domain.ArticleRecord {
	rec := domain.ArticleRecord{
		Keywords:     []string{},
		SubjectTerms: []string{},
	}
	for _, p := range fieldPolicies {
		if p.List {
			// Authors is the only list field.
			rec.Authors = listValue(p, c)
			continue
		}
		v := scalarValue(p, c)
		switch p.Field {
		case FieldID:
			rec.ID = v
		case FieldTitle:
			rec.Title = v
		case FieldAbstract:
			rec.Abstract = v
		case FieldJournal:
			rec.Journal = v
		case FieldYear:
			rec.Year = v
		}
	}
	rec.SourceURL = domain.ArticleURL(pageBaseURL, rec.ID)
	return rec
}
