package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papercache/internal/core/domain"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title type="html">ArXiv Query</title>
  <opensearch:totalResults>1234</opensearch:totalResults>
  <opensearch:startIndex>0</opensearch:startIndex>
  <opensearch:itemsPerPage>2</opensearch:itemsPerPage>
  <entry>
    <id>http://arxiv.org/abs/2401.01234v2</id>
    <updated>2024-01-05T10:00:00Z</updated>
    <published>2024-01-02T18:30:00Z</published>
    <title>Attention Is
      Still All You Need</title>
    <summary>  We revisit attention.
      It still works.
    </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link href="http://arxiv.org/abs/2401.01234v2" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/2401.01234v2" rel="related" type="application/pdf"/>
    <arxiv:primary_category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00007v1</id>
    <updated>2024-01-01T09:00:00Z</updated>
    <published>2024-01-01T09:00:00Z</published>
    <title>Second Paper</title>
    <summary>Abstract two.</summary>
    <author><name>Grace Hopper</name></author>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

type recordedRequests struct {
	mu      sync.Mutex
	queries []url.Values
}

func (r *recordedRequests) add(q url.Values) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

func (r *recordedRequests) last() url.Values {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[len(r.queries)-1]
}

func newTestServer(t *testing.T, status int, body string) (*Client, *recordedRequests) {
	t.Helper()

	recorded := &recordedRequests{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorded.add(r.URL.Query())
		w.Header().Set("Content-Type", "application/atom+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL, RequestsPerSecond: 1000})
	return client, recorded
}

var testFilter = domain.CorpusFilter{Categories: []string{"cs.CL", "cs.AI"}}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{})

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.InDelta(t, DefaultRequestsPerSecond, float64(client.limiter.Limit()), 1e-9)
	assert.NotNil(t, client.logger)
}

func TestFetchPage_ParsesFeed(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, sampleFeed)

	page, err := client.FetchPage(context.Background(), testFilter, 100, 2)
	require.NoError(t, err)

	assert.Equal(t, 1234, page.Total)
	require.Len(t, page.Papers, 2)

	first := page.Papers[0]
	assert.Equal(t, "2401.01234", first.ID)
	assert.Equal(t, "Attention Is Still All You Need", first.Title)
	assert.Equal(t, "We revisit attention. It still works.", first.Abstract)
	assert.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, first.Authors)
	assert.Equal(t, []string{"cs.CL", "cs.AI"}, first.Categories)
	assert.Equal(t, time.Date(2024, 1, 2, 18, 30, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), first.UpdatedAt)
	assert.Equal(t, "http://arxiv.org/abs/2401.01234v2", first.Links["abs"])
	assert.Equal(t, "http://arxiv.org/pdf/2401.01234v2", first.Links["pdf"])
	assert.Nil(t, first.Embedding)

	assert.Equal(t, "2401.00007", page.Papers[1].ID)

	q := recorded.last()
	assert.Equal(t, "(cat:cs.AI OR cat:cs.CL)", q.Get("search_query"))
	assert.Equal(t, "submittedDate", q.Get("sortBy"))
	assert.Equal(t, "descending", q.Get("sortOrder"))
	assert.Equal(t, "100", q.Get("start"))
	assert.Equal(t, "2", q.Get("max_results"))
}

func TestFetchPage_CapsPageSize(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, sampleFeed)

	_, err := client.FetchPage(context.Background(), testFilter, 0, 10000)
	require.NoError(t, err)
	assert.Equal(t, "2000", recorded.last().Get("max_results"))
}

func TestFetchPage_InvalidArguments(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, sampleFeed)
	ctx := context.Background()

	_, err := client.FetchPage(ctx, testFilter, -1, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = client.FetchPage(ctx, testFilter, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = client.FetchPage(ctx, domain.CorpusFilter{}, 0, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCount_RequestsZeroResults(t *testing.T) {
	client, recorded := newTestServer(t, http.StatusOK, sampleFeed)

	total, err := client.Count(context.Background(), testFilter)
	require.NoError(t, err)
	assert.Equal(t, 1234, total)
	assert.Equal(t, "0", recorded.last().Get("max_results"))
}

func TestFetchPage_RateLimited(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		client, _ := newTestServer(t, status, "slow down")

		_, err := client.FetchPage(context.Background(), testFilter, 0, 10)
		assert.ErrorIs(t, err, domain.ErrRateLimited, "status %d", status)
	}
}

func TestFetchPage_ServerError(t *testing.T) {
	client, _ := newTestServer(t, http.StatusInternalServerError, "boom")

	_, err := client.FetchPage(context.Background(), testFilter, 0, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchPage_MalformedFeed(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, "<html>not a feed")

	_, err := client.FetchPage(context.Background(), testFilter, 0, 10)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestFetchPage_CancelledContext(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, sampleFeed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchPage(ctx, testFilter, 0, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		filter domain.CorpusFilter
		want   string
	}{
		{
			name:   "single category",
			filter: domain.CorpusFilter{Categories: []string{"cs.CL"}},
			want:   "cat:cs.CL",
		},
		{
			name:   "categories are normalised",
			filter: domain.CorpusFilter{Categories: []string{"cs.LG", " cs.AI", "cs.LG"}},
			want:   "(cat:cs.AI OR cat:cs.LG)",
		},
		{
			name:   "closed window",
			filter: domain.CorpusFilter{Categories: []string{"cs.CL"}, From: from, To: to},
			want:   "cat:cs.CL AND submittedDate:[202401010000 TO 202401312359]",
		},
		{
			name:   "open upper bound",
			filter: domain.CorpusFilter{Categories: []string{"cs.CL"}, From: from},
			want:   "cat:cs.CL AND submittedDate:[202401010000 TO *]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SearchQuery(tt.filter))
		})
	}
}

func TestPaperID(t *testing.T) {
	assert.Equal(t, "2401.01234", PaperID("http://arxiv.org/abs/2401.01234v2"))
	assert.Equal(t, "hep-th/9901001", PaperID("http://arxiv.org/abs/hep-th/9901001v1"))
	assert.Equal(t, "2401.01234", PaperID("2401.01234"))
	assert.Empty(t, PaperID("  "))
}
