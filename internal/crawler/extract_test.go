package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title> Income Tax Act </title><script>var x = 1;</script></head>
<body>
<nav><a href="/eng/home">Home</a></nav>
<main>
  <h1>Section 2</h1>
  <p>Tax payable by persons resident in Canada.</p>
  <a href="section-3.html">Next</a>
  <a href="section-3.html#note">Next with fragment</a>
  <a href="/eng/acts/I-3.3/section-4.html">Absolute path</a>
  <a href="mailto:someone@example.org">Mail</a>
  <a href="javascript:void(0)">JS</a>
  <a href="ftp://example.org/file">FTP</a>
</main>
<footer>Date modified: 2024-01-01</footer>
</body>
</html>`

func sampleDocument() Document {
	return Document{
		URL:        "https://laws-lois.justice.gc.ca/eng/acts/I-3.3/section-2.html",
		FinalURL:   "https://laws-lois.justice.gc.ca/eng/acts/I-3.3/section-2.html",
		HTML:       []byte(samplePage),
		StatusCode: 200,
	}
}

func TestExtractDocument(t *testing.T) {
	doc, err := extractDocument(sampleDocument())
	require.NoError(t, err)

	require.Equal(t, "Income Tax Act", doc.Title)
	require.Contains(t, doc.Text, "Tax payable by persons resident in Canada.")
	require.NotContains(t, doc.Text, "var x = 1", "script content is stripped")
	require.NotContains(t, doc.Text, "Date modified", "footer chrome is stripped")
	require.NotContains(t, doc.Text, "Home", "nav chrome is stripped")
}

func TestExtractDocumentLinks(t *testing.T) {
	doc, err := extractDocument(sampleDocument())
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://laws-lois.justice.gc.ca/eng/home",
		"https://laws-lois.justice.gc.ca/eng/acts/I-3.3/section-3.html",
		"https://laws-lois.justice.gc.ca/eng/acts/I-3.3/section-4.html",
	}, doc.Links, "links are absolutized, normalized, deduplicated, non-http schemes dropped")
}

func TestDefaultHandlerParseContent(t *testing.T) {
	doc, err := extractDocument(sampleDocument())
	require.NoError(t, err)

	record, err := DefaultHandler{}.ParseContent(doc)
	require.NoError(t, err)
	require.Equal(t, "Income Tax Act", record["title"])
	require.Equal(t, doc.URL, record["url"])
	require.NotEmpty(t, record["content"])
}

func TestDefaultHandlerRejectsEmptyPage(t *testing.T) {
	doc, err := extractDocument(Document{
		URL:  "https://example.org/empty",
		HTML: []byte("<html><body><script>x</script></body></html>"),
	})
	require.NoError(t, err)

	_, err = DefaultHandler{}.ParseContent(doc)
	require.Error(t, err)
}
