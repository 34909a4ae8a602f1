package ingest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Queue Sizing Notes</title></head>
<body>
  <nav class="navbar"><a href="/">Home</a><a href="/guide">Guide</a></nav>
  <article>
    <h1>Queue Sizing Notes</h1>
    <p>Back-pressure begins the moment a consumer lags behind its producer for
    longer than one flush interval, and from that point every queued message
    adds latency that the reader can feel. The fix is never a bigger buffer,
    it is a bound that forces the producer to slow down.</p>
    <h2>Measuring lag</h2>
    <p>Lag is the distance between the newest enqueued offset and the newest
    acknowledged offset, sampled at the flush boundary. Sampling anywhere else
    hides the stalls that matter, because the consumer looks idle while it is
    actually blocked on a slow downstream write.</p>
    <ul>
      <li>Consumer offset delta</li>
      <li>Flush interval duration</li>
    </ul>
    <p>Once both numbers are visible the sizing rule is short: the queue holds
    two flush intervals of traffic at peak rate, and anything beyond that is
    latency the operator signed up for without knowing it.</p>
  </article>
  <footer class="footer">Copyright notice</footer>
  <script>track();</script>
</body>
</html>`

func TestConverter_Convert_Article(t *testing.T) {
	c := NewConverter()
	pageURL, err := url.Parse("https://example.com/notes/queues")
	require.NoError(t, err)

	res, err := c.Convert([]byte(articleHTML), pageURL)
	require.NoError(t, err)

	assert.Equal(t, "Queue Sizing Notes", res.Title)
	assert.Contains(t, res.Markdown, "Back-pressure begins")
	assert.Contains(t, res.Markdown, "Measuring lag")
	assert.Contains(t, res.Markdown, "Consumer offset delta")
	assert.NotContains(t, res.Markdown, "track()")
	assert.NotContains(t, res.Markdown, "[Home]")
}

func TestConverter_Convert_FallbackWithoutArticle(t *testing.T) {
	page := `<html>
<body>
  <nav><a href="/">Home</a></nav>
  <h1>Plain Page</h1>
  <p>A short page with no semantic article wrapper still yields its body
  text, minus the navigation chrome that would pollute the captured idea.</p>
</body>
</html>`

	c := NewConverter()
	res, err := c.Convert([]byte(page), nil)
	require.NoError(t, err)

	assert.Equal(t, "Plain Page", res.Title)
	assert.Contains(t, res.Markdown, "no semantic article wrapper")
	assert.NotContains(t, res.Markdown, "[Home]")
}

func TestConverter_Convert_EmptyPage(t *testing.T) {
	c := NewConverter()

	_, err := c.Convert([]byte("<html><body></body></html>"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extractable content")
}

func TestCleanMarkdown(t *testing.T) {
	in := "# Title\n\n\n\n\nbody line   \n\nlast\n\n"
	got := cleanMarkdown(in)

	assert.NotContains(t, got, "\n\n\n\n")
	assert.Contains(t, got, "body line\n")
	assert.Equal(t, "last", got[len(got)-4:])
}

func TestExtractMarkdownTitle(t *testing.T) {
	assert.Equal(t, "Build Notes", extractMarkdownTitle("intro\n# Build Notes\nbody"))
	assert.Equal(t, "", extractMarkdownTitle("## Only Subheadings\nbody"))
}
