// Package domain provides domain models and business logic for the rehabilitation research service.
package domain

import (
	"strings"
)

// Placeholder values substituted for fields missing from upstream data.
const (
	UnknownID          = "Unknown"
	NoTitle            = "No title available"
	NoAbstract         = "No abstract available."
	UnknownJournal     = "Unknown Journal"
	UnknownYear        = "N/A"
	MaxAuthorsPerEntry = 5
)

// DefaultPageBaseURL is the PubMed detail page base used to build record source URLs.
const DefaultPageBaseURL = "https://pubmed.ncbi.nlm.nih.gov"

// ArticleRecord is the normalized, in-memory representation of one article after
// parsing and enrichment. Every field is always populated: placeholders and empty
// slices stand in for missing data.
type ArticleRecord struct {
	ID           string   `json:"id" yaml:"id"`
	Title        string   `json:"title" yaml:"title"`
	Abstract     string   `json:"abstract" yaml:"abstract"`
	Authors      []string `json:"authors" yaml:"authors"`
	Journal      string   `json:"journal" yaml:"journal"`
	Year         string   `json:"year" yaml:"year"`
	SourceURL    string   `json:"source_url" yaml:"source_url"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
	SubjectTerms []string `json:"subject_terms" yaml:"subject_terms"`
}

// Supplement holds the tag lists harvested from an article's detail page.
type Supplement struct {
	Keywords     []string `json:"keywords"`
	SubjectTerms []string `json:"subject_terms"`
}

// EmptySupplement returns a Supplement with both lists empty but non-nil.
func EmptySupplement() Supplement {
	return Supplement{Keywords: []string{}, SubjectTerms: []string{}}
}

// WithSupplement returns a copy of the record with the supplement's lists merged in.
// Nil lists in the supplement become empty lists on the record.
func (r ArticleRecord) WithSupplement(s Supplement) ArticleRecord {
	r.Keywords = nonNil(s.Keywords)
	r.SubjectTerms = nonNil(s.SubjectTerms)
	return r
}

// ArticleURL builds the detail page URL for an article identifier.
func ArticleURL(pageBaseURL, id string) string {
	if pageBaseURL == "" {
		pageBaseURL = DefaultPageBaseURL
	}
	return strings.TrimRight(pageBaseURL, "/") + "/" + id + "/"
}

// NormalizeRecord re-applies the placeholder defaults to a record that may have come
// from outside the pipeline, such as a client request body.
func NormalizeRecord(r ArticleRecord, pageBaseURL string) ArticleRecord {
	r.ID = orDefault(r.ID, UnknownID)
	r.Title = orDefault(r.Title, NoTitle)
	r.Abstract = orDefault(r.Abstract, NoAbstract)
	r.Journal = orDefault(r.Journal, UnknownJournal)
	r.Year = orDefault(r.Year, UnknownYear)
	if strings.TrimSpace(r.SourceURL) == "" {
		r.SourceURL = ArticleURL(pageBaseURL, r.ID)
	}
	r.Authors = nonNil(r.Authors)
	if len(r.Authors) > MaxAuthorsPerEntry {
		r.Authors = r.Authors[:MaxAuthorsPerEntry]
	}
	r.Keywords = nonNil(r.Keywords)
	r.SubjectTerms = nonNil(r.SubjectTerms)
	return r
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
