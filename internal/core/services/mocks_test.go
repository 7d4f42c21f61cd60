package services

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/custodia-labs/papercache/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

// --- Mock implementations shared by service tests ---

var errMockTransient = errors.New("mock transient failure")

// fetchCall records one FetchPage request.
type fetchCall struct {
	Offset int
	Limit  int
}

// mockCorpus implements driven.RemoteCorpus over an in-memory paper list.
type mockCorpus struct {
	mu      stdsync.Mutex
	papers  []domain.Paper
	total   int // reported total; len(papers) when zero
	fetches []fetchCall

	// failures maps an offset to the number of failing attempts left.
	failures map[int]int
	failErr  error

	// countErr fails every Count call.
	countErr error

	// beforeFetch runs before every FetchPage.
	beforeFetch func(offset, limit int)
}

func newMockCorpus(n int) *mockCorpus {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	papers := make([]domain.Paper, n)
	for i := range papers {
		papers[i] = domain.Paper{
			ID:          fmt.Sprintf("2401.%05d", i),
			Title:       fmt.Sprintf("Paper %d", i),
			Abstract:    fmt.Sprintf("Abstract of paper %d", i),
			Categories:  []string{"cs.AI"},
			PublishedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return &mockCorpus{papers: papers, failures: make(map[int]int)}
}

func (m *mockCorpus) Count(_ context.Context, _ domain.CorpusFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.reportedTotal(), nil
}

func (m *mockCorpus) FetchPage(_ context.Context, _ domain.CorpusFilter, offset, limit int) (driven.Page, error) {
	if m.beforeFetch != nil {
		m.beforeFetch(offset, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, fetchCall{Offset: offset, Limit: limit})

	if left := m.failures[offset]; left > 0 {
		m.failures[offset] = left - 1
		if m.failErr != nil {
			return driven.Page{}, m.failErr
		}
		return driven.Page{}, errMockTransient
	}

	end := min(offset+limit, len(m.papers))
	if offset >= end {
		return driven.Page{Total: m.reportedTotal()}, nil
	}
	page := make([]domain.Paper, end-offset)
	copy(page, m.papers[offset:end])
	return driven.Page{Papers: page, Total: m.reportedTotal()}, nil
}

func (m *mockCorpus) reportedTotal() int {
	if m.total > 0 {
		return m.total
	}
	return len(m.papers)
}

func (m *mockCorpus) calls() []fetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fetchCall(nil), m.fetches...)
}

// mockEmbedder implements driven.EmbeddingService with deterministic vectors.
type mockEmbedder struct {
	mu         stdsync.Mutex
	dims       int
	maxBatch   int
	batches    [][]string
	failNext   int
	malformed  bool
	beforeCall func(texts []string)
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, maxBatch: 20}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	batch, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return batch.Vectors[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) (driven.EmbeddingBatch, error) {
	if m.beforeCall != nil {
		m.beforeCall(texts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, append([]string(nil), texts...))

	if m.failNext > 0 {
		m.failNext--
		return driven.EmbeddingBatch{}, errMockTransient
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = vectorFor(text, m.dims)
	}
	if m.malformed && len(vectors) > 0 {
		vectors = vectors[:len(vectors)-1]
	}
	return driven.EmbeddingBatch{Vectors: vectors, Model: "mock-embed", Latency: time.Millisecond}, nil
}

func (m *mockEmbedder) Dimensions() int              { return m.dims }
func (m *mockEmbedder) MaxBatchSize() int            { return m.maxBatch }
func (m *mockEmbedder) MaxTextLength() int           { return 8000 }
func (m *mockEmbedder) ModelName() string            { return "mock-embed" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

func (m *mockEmbedder) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizes := make([]int, len(m.batches))
	for i, b := range m.batches {
		sizes[i] = len(b)
	}
	return sizes
}

// vectorFor derives a stable non-zero vector from text.
func vectorFor(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32((len(text)+i)%7 + 1)
	}
	return vec
}

// mockExpander implements driven.QueryExpander with a fixed vector.
type mockExpander struct {
	vector []float32
	err    error
	calls  int
}

func (m *mockExpander) Expand(_ context.Context, text string) (domain.QueryExpansion, error) {
	m.calls++
	if m.err != nil {
		return domain.QueryExpansion{}, m.err
	}
	return domain.QueryExpansion{
		Original:   text,
		Translated: text,
		Synonyms:   []string{"alt " + text},
		Vector:     m.vector,
	}, nil
}

// mockSummariser implements driven.Summariser.
type mockSummariser struct {
	err error
}

func (m *mockSummariser) Summarise(_ context.Context, paper *domain.Paper, language string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("[%s] summary of %s", language, paper.Title), nil
}

func (m *mockSummariser) ModelName() string { return "mock-chat" }

// failingPaperStore wraps the memory store and fails selected writes.
type failingPaperStore struct {
	*memory.PaperStore
	upsertErr error
	setErr    error
}

func (s *failingPaperStore) UpsertMany(ctx context.Context, papers []domain.Paper) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.PaperStore.UpsertMany(ctx, papers)
}

func (s *failingPaperStore) SetEmbeddings(ctx context.Context, vectors map[string][]float32) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.PaperStore.SetEmbeddings(ctx, vectors)
}

// mockSchedulerStore implements driven.SchedulerStore in memory.
type mockSchedulerStore struct {
	mu      stdsync.Mutex
	tasks   map[string]domain.ScheduledTask
	results []domain.TaskResult
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{tasks: make(map[string]domain.ScheduledTask)}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, id string) (*domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	return &task, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = *task
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, id string, limit int) ([]domain.TaskResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TaskResult
	for i := len(m.results) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.results[i].TaskID == id {
			out = append(out, m.results[i])
		}
	}
	return out, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error { return nil }

func (m *mockSchedulerStore) resultCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}
