// Package pubmedtest provides an in-process fake of the PubMed E-utilities
// endpoints and article detail pages for tests.
package pubmedtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// StrokeSearchJSON is an esearch reply resolving one identifier.
const StrokeSearchJSON = `{"header":{"type":"esearch","version":"0.3"},"esearchresult":{"count":"1","retmax":"1","retstart":"0","idlist":["12345678"]}}`

// ThreeIDSearchJSON is an esearch reply resolving three identifiers.
const ThreeIDSearchJSON = `{"esearchresult":{"count":"3","idlist":["12345678","87654321","11223344"]}}`

// EmptySearchJSON is an esearch reply with no matches.
const EmptySearchJSON = `{"esearchresult":{"count":"0","idlist":[]}}`

// StrokeArticleXML is an efetch reply for PMID 12345678.
const StrokeArticleXML = `<?xml version="1.0"?>
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID>12345678</PMID>
      <Article>
        <ArticleTitle>Effects of Physical Therapy on Stroke Recovery</ArticleTitle>
        <Abstract>
          <AbstractText>This study examines the impact of early physical therapy intervention on motor recovery following ischemic stroke.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author>
            <LastName>Smith</LastName>
            <ForeName>John</ForeName>
          </Author>
          <Author>
            <LastName>Doe</LastName>
            <ForeName>Jane</ForeName>
          </Author>
        </AuthorList>
        <Journal>
          <Title>Journal of Rehabilitation Medicine</Title>
        </Journal>
      </Article>
      <DateCompleted>
        <Year>2024</Year>
      </DateCompleted>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>
`

// StrokePageHTML is a detail page carrying two keywords and two subject terms.
const StrokePageHTML = `
<html>
<body>
<div class="keywords-section">
    <button class="keyword-actions-trigger">stroke</button>
    <button class="keyword-actions-trigger">rehabilitation</button>
</div>
<div class="mesh-terms">
    <button>Physical Therapy</button>
    <button>Stroke Recovery</button>
</div>
</body>
</html>
`

// ArticleXML builds a minimal efetch reply containing one record per id.
func ArticleXML(ids ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><PubmedArticleSet>`)
	for _, id := range ids {
		b.WriteString(`<PubmedArticle><MedlineCitation><PMID>`)
		b.WriteString(id)
		b.WriteString(`</PMID><Article><ArticleTitle>Article `)
		b.WriteString(id)
		b.WriteString(`</ArticleTitle><Journal><Title>Clinical Rehabilitation</Title>`)
		b.WriteString(`<JournalIssue><PubDate><Year>2022</Year></PubDate></JournalIssue></Journal>`)
		b.WriteString(`</Article></MedlineCitation></PubmedArticle>`)
	}
	b.WriteString(`</PubmedArticleSet>`)
	return b.String()
}

// Server is a fake PubMed host. Zero status fields mean 200.
// Fields must be set before the first request.
type Server struct {
	*httptest.Server

	SearchJSON   string
	FetchXML     string
	Pages        map[string]string
	SearchStatus int
	FetchStatus  int
	PageStatus   int

	mu          sync.Mutex
	searchCalls int
	fetchCalls  int
	pageCalls   []string
	terms       []string
	fetchIDs    []string
	userAgents  []string
}

// NewServer starts a fake host answering with the stroke fixtures.
// Callers must Close it.
func NewServer() *Server {
	s := &Server{
		SearchJSON: StrokeSearchJSON,
		FetchXML:   StrokeArticleXML,
		Pages:      map[string]string{"12345678": StrokePageHTML},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.userAgents = append(s.userAgents, r.Header.Get("User-Agent"))
	s.mu.Unlock()

	switch r.URL.Path {
	case "/esearch.fcgi":
		s.mu.Lock()
		s.searchCalls++
		s.terms = append(s.terms, r.URL.Query().Get("term"))
		s.mu.Unlock()
		reply(w, s.SearchStatus, "application/json", s.SearchJSON)
	case "/efetch.fcgi":
		s.mu.Lock()
		s.fetchCalls++
		s.fetchIDs = append(s.fetchIDs, r.URL.Query().Get("id"))
		s.mu.Unlock()
		reply(w, s.FetchStatus, "text/xml", s.FetchXML)
	default:
		id := strings.Trim(r.URL.Path, "/")
		s.mu.Lock()
		s.pageCalls = append(s.pageCalls, id)
		s.mu.Unlock()
		page, ok := s.Pages[id]
		if !ok {
			page = "<html><body></body></html>"
		}
		reply(w, s.PageStatus, "text/html", page)
	}
}

func reply(w http.ResponseWriter, status int, contentType, body string) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// SearchCalls returns the number of esearch requests received.
func (s *Server) SearchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls
}

// FetchCalls returns the number of efetch requests received.
func (s *Server) FetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchCalls
}

// PageCalls returns the article ids whose detail pages were requested, in arrival order.
func (s *Server) PageCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pageCalls...)
}

// Terms returns the esearch term parameters received.
func (s *Server) Terms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.terms...)
}

// FetchIDs returns the efetch id parameters received.
func (s *Server) FetchIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetchIDs...)
}

// UserAgents returns the User-Agent header of every request received.
func (s *Server) UserAgents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userAgents...)
}

// TotalCalls returns the number of requests of any kind received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls + s.fetchCalls + len(s.pageCalls)
}
