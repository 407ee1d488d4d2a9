// Package pubmed provides a client for the NCBI PubMed E-utilities API and
// the PubMed article detail pages.
//
// The E-utilities API documentation is available at:
// https://www.ncbi.nlm.nih.gov/books/NBK25499/
package pubmed

import (
	"encoding/xml"
	"strings"
)

// ESearchResponse represents the JSON response from the esearch.fcgi endpoint
// when called with retmode=json.
type ESearchResponse struct {
	Result ESearchResult `json:"esearchresult"`
}

// ESearchResult holds the identifiers matching a search term.
type ESearchResult struct {
	Count  string   `json:"count"`
	RetMax string   `json:"retmax"`
	IDList []string `json:"idlist"`

	// Error is set by E-utilities instead of an HTTP error status for
	// some malformed requests.
	Error string `json:"ERROR,omitempty"`
}

// PubmedArticleSet represents the response from the efetch.fcgi endpoint.
// The root element name is not enforced.
type PubmedArticleSet struct {
	Articles []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle represents a single article in the PubMed database.
// MedlineCitation is nil when the element is absent.
type PubmedArticle struct {
	MedlineCitation *MedlineCitation `xml:"MedlineCitation"`
}

// MedlineCitation contains the core bibliographic information.
type MedlineCitation struct {
	PMID    PMID    `xml:"PMID"`
	Article Article `xml:"Article"`
}

// PMID represents the PubMed identifier with optional version.
type PMID struct {
	Version int    `xml:"Version,attr,omitempty"`
	Value   string `xml:",chardata"`
}

// Article contains the article metadata.
type Article struct {
	Journal      Journal     `xml:"Journal"`
	ArticleTitle *Text       `xml:"ArticleTitle"`
	Abstract     *Abstract   `xml:"Abstract"`
	AuthorList   *AuthorList `xml:"AuthorList"`
}

// Journal contains journal information.
type Journal struct {
	JournalIssue    JournalIssue `xml:"JournalIssue"`
	Title           string       `xml:"Title"`
	ISOAbbreviation string       `xml:"ISOAbbreviation"`
}

// JournalIssue contains the volume, issue, and publication date.
type JournalIssue struct {
	Volume  string  `xml:"Volume"`
	Issue   string  `xml:"Issue"`
	PubDate PubDate `xml:"PubDate"`
}

// PubDate represents the publication date which may have various formats.
type PubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	Season      string `xml:"Season"`
	MedlineDate string `xml:"MedlineDate"`
}

// Abstract contains the article abstract, which may have multiple sections.
// Structured abstracts label their sections (Background, Methods, Results);
// labels are not kept.
type Abstract struct {
	AbstractTexts []Text `xml:"AbstractText"`
}

// AuthorList contains the list of authors.
type AuthorList struct {
	CompleteYN string   `xml:"CompleteYN,attr,omitempty"`
	Authors    []Author `xml:"Author"`
}

// Author represents a single author. Collective (group) authors carry
// CollectiveName instead of LastName.
type Author struct {
	ValidYN        string `xml:"ValidYN,attr,omitempty"`
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

// Text collects all character data of an element, including the text of
// nested inline markup such as <i>, <sup> or <b>.
type Text struct {
	Value string
}

// UnmarshalXML implements xml.Unmarshaler.
func (t *Text) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(v)
		}
	}
	t.Value = b.String()
	return nil
}

// String returns the collected text with whitespace runs collapsed.
func (t *Text) String() string {
	if t == nil {
		return ""
	}
	return collapseSpace(t.Value)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
