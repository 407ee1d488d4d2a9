package pubmed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/rehab-research-service/internal/domain"
	"github.com/helixir/rehab-research-service/internal/papersources/pubmed/pubmedtest"
)

const structuredArticleXML = `<?xml version="1.0" encoding="UTF-8" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2019//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_190101.dtd">
<PubmedArticleSet>
	<PubmedArticle>
		<MedlineCitation Status="MEDLINE" Owner="NLM">
			<PMID Version="1">34567890</PMID>
			<Article PubModel="Print-Electronic">
				<Journal>
					<JournalIssue CitedMedium="Internet">
						<Volume>25</Volume>
						<PubDate>
							<MedlineDate>2019 Nov-Dec</MedlineDate>
						</PubDate>
					</JournalIssue>
					<ISOAbbreviation>Arch Phys Med Rehabil</ISOAbbreviation>
				</Journal>
				<ArticleTitle>Robot-assisted <i>gait</i>   training after
					spinal cord injury</ArticleTitle>
				<Abstract>
					<AbstractText Label="BACKGROUND">Walking recovery is limited.</AbstractText>
					<AbstractText Label="METHODS"></AbstractText>
					<AbstractText Label="RESULTS">Gait speed improved by 0.1 m/s<sup>2</sup>.</AbstractText>
				</Abstract>
				<AuthorList CompleteYN="Y">
					<Author><LastName>Alpha</LastName><ForeName>Ann</ForeName></Author>
					<Author><CollectiveName>Gait Study Group</CollectiveName></Author>
					<Author><LastName>Beta</LastName></Author>
					<Author><LastName>Gamma</LastName><ForeName>Gus</ForeName></Author>
					<Author><LastName>Delta</LastName><ForeName>Dee</ForeName></Author>
					<Author><LastName>Epsilon</LastName><ForeName>Eve</ForeName></Author>
					<Author><LastName>Zeta</LastName><ForeName>Zed</ForeName></Author>
				</AuthorList>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
	<PubmedArticle>
		<PubmedData><PublicationStatus>ppublish</PublicationStatus></PubmedData>
	</PubmedArticle>
	<PubmedArticle>
		<MedlineCitation>
			<Article>
				<Journal><JournalIssue><PubDate><Year>Spring</Year></PubDate></JournalIssue></Journal>
			</Article>
		</MedlineCitation>
	</PubmedArticle>
</PubmedArticleSet>`

func TestParseArticleSet_StrokeFixture(t *testing.T) {
	records, err := ParseArticleSet([]byte(pubmedtest.StrokeArticleXML))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "12345678", r.ID)
	assert.Equal(t, "Effects of Physical Therapy on Stroke Recovery", r.Title)
	assert.Equal(t, "This study examines the impact of early physical therapy intervention on motor recovery following ischemic stroke.", r.Abstract)
	assert.Equal(t, []string{"Smith, John", "Doe, Jane"}, r.Authors)
	assert.Equal(t, "Journal of Rehabilitation Medicine", r.Journal)
	// DateCompleted is not a publication date.
	assert.Equal(t, domain.UnknownYear, r.Year)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/12345678/", r.SourceURL)
	assert.Equal(t, []string{}, r.Keywords)
	assert.Equal(t, []string{}, r.SubjectTerms)
}

func TestParseArticleSet_FieldFallbacks(t *testing.T) {
	records, err := ParseArticleSet([]byte(structuredArticleXML))
	require.NoError(t, err)
	require.Len(t, records, 2, "article without MedlineCitation is skipped")

	t.Run("populated record", func(t *testing.T) {
		r := records[0]
		assert.Equal(t, "34567890", r.ID)
		assert.Equal(t, "Robot-assisted gait training after spinal cord injury", r.Title)
		assert.Equal(t, "Walking recovery is limited. Gait speed improved by 0.1 m/s2.", r.Abstract)
		assert.Equal(t, "Arch Phys Med Rehabil", r.Journal)
		assert.Equal(t, "2019", r.Year)
		assert.Equal(t, []string{"Alpha, Ann", "Beta", "Gamma, Gus", "Delta, Dee", "Epsilon, Eve"}, r.Authors)
	})

	t.Run("placeholder record", func(t *testing.T) {
		r := records[1]
		assert.Equal(t, domain.UnknownID, r.ID)
		assert.Equal(t, domain.NoTitle, r.Title)
		assert.Equal(t, domain.NoAbstract, r.Abstract)
		assert.Equal(t, domain.UnknownJournal, r.Journal)
		assert.Equal(t, domain.UnknownYear, r.Year, "non-numeric year is rejected")
		assert.NotNil(t, r.Authors)
		assert.Empty(t, r.Authors)
		assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/Unknown/", r.SourceURL)
	})
}

func TestParseArticleSet_Malformed(t *testing.T) {
	inputs := map[string]string{
		"truncated":        "<broken>xml<",
		"empty":            "",
		"not xml":          `{"esearchresult":{}}`,
		"trailing content": `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>1</PMID></MedlineCitation></PubmedArticle></PubmedArticleSet></bogus><<<`,
		"second root":      `<PubmedArticleSet></PubmedArticleSet><PubmedArticleSet></PubmedArticleSet>`,
		"trailing text":    `<PubmedArticleSet></PubmedArticleSet>junk`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			records, err := ParseArticleSet([]byte(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedDocument))
			assert.NotNil(t, records)
			assert.Empty(t, records)
		})
	}
}

func TestParseArticleSet_TrailingMiscellany(t *testing.T) {
	doc := "<?xml version=\"1.0\"?>\n<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>7</PMID>" +
		"</MedlineCitation></PubmedArticle></PubmedArticleSet>\n<!-- served by efetch -->\n  \n"

	records, err := ParseArticleSet([]byte(doc))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].ID)
}

func TestParseArticleSet_EmptySet(t *testing.T) {
	records, err := ParseArticleSet([]byte(`<PubmedArticleSet></PubmedArticleSet>`))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestParseArticleSet_AbstractAllEmptySegments(t *testing.T) {
	doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>1</PMID><Article>
		<Abstract><AbstractText>  </AbstractText><AbstractText/></Abstract>
	</Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

	records, err := ParseArticleSet([]byte(doc))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.NoAbstract, records[0].Abstract)
}

func TestParseArticleSet_YearForms(t *testing.T) {
	tests := []struct {
		name     string
		pubDate  string
		expected string
	}{
		{"four digit year", "<Year>2021</Year>", "2021"},
		{"year wins over medline date", "<Year>2021</Year><MedlineDate>2019 Spring</MedlineDate>", "2021"},
		{"medline date range", "<MedlineDate>2018-2019</MedlineDate>", "2018"},
		{"two digit year rejected", "<Year>21</Year>", domain.UnknownYear},
		{"garbage medline date", "<MedlineDate>Winter</MedlineDate>", domain.UnknownYear},
		{"missing", "", domain.UnknownYear},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `<PubmedArticleSet><PubmedArticle><MedlineCitation><PMID>1</PMID><Article><Journal><JournalIssue><PubDate>` +
				tt.pubDate + `</PubDate></JournalIssue></Journal></Article></MedlineCitation></PubmedArticle></PubmedArticleSet>`

			records, err := ParseArticleSet([]byte(doc))
			require.NoError(t, err)
			require.Len(t, records, 1)
			assert.Equal(t, tt.expected, records[0].Year)
		})
	}
}

func TestParseArticleSet_PageBase(t *testing.T) {
	records, err := parseArticleSet([]byte(pubmedtest.ArticleXML("7")), "http://127.0.0.1:9999/")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "http://127.0.0.1:9999/7/", records[0].SourceURL)
}

func TestFieldPolicies(t *testing.T) {
	policies := FieldPolicies()

	t.Run("covers every record field once", func(t *testing.T) {
		seen := map[string]bool{}
		for _, p := range policies {
			assert.False(t, seen[p.Field], "duplicate policy for %s", p.Field)
			seen[p.Field] = true
		}
		for _, f := range []string{FieldID, FieldTitle, FieldAbstract, FieldJournal, FieldYear, FieldAuthors} {
			assert.True(t, seen[f], "missing policy for %s", f)
		}
	})

	t.Run("every path has a reader", func(t *testing.T) {
		for _, p := range policies {
			require.NotEmpty(t, p.Paths, p.Field)
			for _, path := range p.Paths {
				_, ok := pathReaders[path]
				assert.True(t, ok, "no reader for path %q", path)
			}
		}
	})

	t.Run("defaults match placeholders", func(t *testing.T) {
		byField := map[string]FieldPolicy{}
		for _, p := range policies {
			byField[p.Field] = p
		}
		assert.Equal(t, domain.UnknownID, byField[FieldID].Default)
		assert.Equal(t, domain.NoTitle, byField[FieldTitle].Default)
		assert.Equal(t, domain.NoAbstract, byField[FieldAbstract].Default)
		assert.Equal(t, " ", byField[FieldAbstract].Join)
		assert.Equal(t, domain.UnknownJournal, byField[FieldJournal].Default)
		assert.Equal(t, []string{"Article/Journal/Title", "Article/Journal/ISOAbbreviation"}, byField[FieldJournal].Paths)
		assert.Equal(t, domain.UnknownYear, byField[FieldYear].Default)
		assert.True(t, byField[FieldAuthors].List)
		assert.Equal(t, domain.MaxAuthorsPerEntry, byField[FieldAuthors].Limit)
	})

	t.Run("returns a copy", func(t *testing.T) {
		policies[0].Paths[0] = "mutated"
		assert.NotEqual(t, "mutated", FieldPolicies()[0].Paths[0])
	})
}

func TestFormatAuthor(t *testing.T) {
	assert.Equal(t, "Smith, John", formatAuthor(Author{LastName: "Smith", ForeName: "John"}))
	assert.Equal(t, "Smith", formatAuthor(Author{LastName: "Smith"}))
	assert.Equal(t, "", formatAuthor(Author{ForeName: "John"}))
	assert.Equal(t, "", formatAuthor(Author{CollectiveName: "Stroke Trialists"}))
}
