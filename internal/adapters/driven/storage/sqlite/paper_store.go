package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

// ==================== Paper Store ====================

// paperStore implements the paper cache ports over one connection.
type paperStore struct {
	store *Store
}

var (
	_ driven.PaperStore      = (*paperStore)(nil)
	_ driven.AnnotationStore = (*paperStore)(nil)
	_ driven.HistoryStore    = (*paperStore)(nil)
)

// paperColumns is the column list shared by every paper query.
const paperColumns = `id, title, abstract, authors, categories, links, published_at, updated_at, embedding`

// upsertPaperSQL overwrites metadata and keeps a stored vector when the
// incoming one is NULL.
const upsertPaperSQL = `
	INSERT INTO papers (` + paperColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		abstract = excluded.abstract,
		authors = excluded.authors,
		categories = excluded.categories,
		links = excluded.links,
		published_at = excluded.published_at,
		updated_at = excluded.updated_at,
		embedding = COALESCE(excluded.embedding, papers.embedding)
`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertOne inserts or updates a paper keyed by ID.
func (s *paperStore) UpsertOne(ctx context.Context, paper *domain.Paper) error {
	if paper == nil || paper.ID == "" {
		return fmt.Errorf("%w: paper without ID", domain.ErrInvalidInput)
	}
	return upsertPaper(ctx, s.store.db, paper)
}

// UpsertMany upserts all papers in one transaction.
func (s *paperStore) UpsertMany(ctx context.Context, papers []domain.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	for i := range papers {
		if papers[i].ID == "" {
			return fmt.Errorf("%w: paper without ID at index %d", domain.ErrInvalidInput, i)
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range papers {
		if err := upsertPaper(ctx, tx, &papers[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func upsertPaper(ctx context.Context, db execer, paper *domain.Paper) error {
	authors, err := marshalJSON(paper.Authors, "[]")
	if err != nil {
		return fmt.Errorf("marshalling authors: %w", err)
	}
	categories, err := marshalJSON(paper.Categories, "[]")
	if err != nil {
		return fmt.Errorf("marshalling categories: %w", err)
	}
	links, err := marshalJSON(paper.Links, "{}")
	if err != nil {
		return fmt.Errorf("marshalling links: %w", err)
	}

	_, err = db.ExecContext(ctx, upsertPaperSQL,
		paper.ID, paper.Title, paper.Abstract, authors, categories, links,
		toMillis(paper.PublishedAt), toMillis(paper.UpdatedAt),
		float32SliceToBytes(paper.Embedding))
	if err != nil {
		return fmt.Errorf("saving paper %s: %w", paper.ID, err)
	}
	return nil
}

// Get retrieves a paper by ID.
func (s *paperStore) Get(ctx context.Context, id string) (*domain.Paper, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	paper, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return paper, err
}

// Delete removes a paper; its summaries cascade.
func (s *paperStore) Delete(ctx context.Context, id string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM papers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting paper: %w", err)
	}
	return nil
}

// Clear removes every cached paper.
func (s *paperStore) Clear(ctx context.Context) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM papers")
	if err != nil {
		return fmt.Errorf("clearing papers: %w", err)
	}
	return nil
}

// ListByPublishedDesc returns papers newest first. A non-positive limit
// returns every paper.
func (s *paperStore) ListByPublishedDesc(ctx context.Context, limit, offset int) ([]domain.Paper, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryPapers(ctx, `
		SELECT `+paperColumns+` FROM papers
		ORDER BY published_at DESC, id
		LIMIT ? OFFSET ?
	`, limit, max(offset, 0))
}

// ListMissingVector returns up to limit papers without a vector, newest first.
func (s *paperStore) ListMissingVector(ctx context.Context, limit int) ([]domain.Paper, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryPapers(ctx, `
		SELECT `+paperColumns+` FROM papers
		WHERE embedding IS NULL
		ORDER BY published_at DESC, id
		LIMIT ?
	`, limit)
}

// ListWithVectors returns every paper that has a vector.
func (s *paperStore) ListWithVectors(ctx context.Context) ([]domain.Paper, error) {
	return s.queryPapers(ctx, `
		SELECT `+paperColumns+` FROM papers
		WHERE embedding IS NOT NULL
		ORDER BY published_at DESC, id
	`)
}

// SetEmbeddings writes vectors in one transaction. Unknown IDs are ignored.
func (s *paperStore) SetEmbeddings(ctx context.Context, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "UPDATE papers SET embedding = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for id, vec := range vectors {
		if len(vec) == 0 {
			return fmt.Errorf("%w: empty vector for %s", domain.ErrInvalidInput, id)
		}
		if _, err := stmt.ExecContext(ctx, float32SliceToBytes(vec), id); err != nil {
			return fmt.Errorf("saving vector for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Count returns the number of cached papers.
func (s *paperStore) Count(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM papers")
}

// CountMissingVector returns the number of papers without a vector.
func (s *paperStore) CountMissingVector(ctx context.Context) (int, error) {
	return s.count(ctx, "SELECT COUNT(*) FROM papers WHERE embedding IS NULL")
}

func (s *paperStore) count(ctx context.Context, query string) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting papers: %w", err)
	}
	return n, nil
}

func (s *paperStore) queryPapers(ctx context.Context, query string, args ...any) ([]domain.Paper, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	papers := make([]domain.Paper, 0)
	for rows.Next() {
		paper, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, *paper)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating papers: %w", err)
	}
	return papers, nil
}

// ==================== Annotations ====================

// SaveSummary stores or replaces the summary for a paper and language.
func (s *paperStore) SaveSummary(ctx context.Context, summary *domain.Summary) error {
	if summary == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO summaries (paper_id, language, content, model, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(paper_id, language) DO UPDATE SET
			content = excluded.content,
			model = excluded.model,
			created_at = excluded.created_at
	`, summary.PaperID, summary.Language, summary.Content,
		nullString(summary.Model), toMillis(summary.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

// GetSummary returns the summary for a paper and language.
func (s *paperStore) GetSummary(ctx context.Context, paperID, language string) (*domain.Summary, error) {
	var summary domain.Summary
	var model sql.NullString
	var createdAt int64

	err := s.store.db.QueryRowContext(ctx, `
		SELECT paper_id, language, content, model, created_at
		FROM summaries WHERE paper_id = ? AND language = ?
	`, paperID, language).Scan(&summary.PaperID, &summary.Language, &summary.Content, &model, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning summary: %w", err)
	}

	summary.Model = model.String
	summary.CreatedAt = fromMillis(createdAt)
	return &summary, nil
}

// RecordInteraction appends an interaction.
func (s *paperStore) RecordInteraction(ctx context.Context, interaction *domain.Interaction) error {
	if interaction == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO interactions (id, paper_id, kind, created_at) VALUES (?, ?, ?, ?)
	`, interaction.ID, interaction.PaperID, string(interaction.Kind), toMillis(interaction.CreatedAt))
	if err != nil {
		return fmt.Errorf("recording interaction: %w", err)
	}
	return nil
}

// ListInteractions returns interactions for a paper, newest first.
func (s *paperStore) ListInteractions(ctx context.Context, paperID string) ([]domain.Interaction, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, paper_id, kind, created_at FROM interactions
		WHERE paper_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, paperID)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	defer rows.Close()

	interactions := make([]domain.Interaction, 0)
	for rows.Next() {
		var i domain.Interaction
		var kind string
		var createdAt int64
		if err := rows.Scan(&i.ID, &i.PaperID, &kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		i.Kind = domain.InteractionKind(kind)
		i.CreatedAt = fromMillis(createdAt)
		interactions = append(interactions, i)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating interactions: %w", err)
	}
	return interactions, nil
}

// ==================== Search History ====================

// AppendSearchHistory stores a search record.
func (s *paperStore) AppendSearchHistory(ctx context.Context, record *domain.SearchHistoryRecord) error {
	if record == nil || record.ID == "" {
		return domain.ErrInvalidInput
	}
	synonyms, err := marshalJSON(record.Synonyms, "[]")
	if err != nil {
		return fmt.Errorf("marshalling synonyms: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO search_history (id, query, translated, synonyms, query_vector, result_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.Query, nullString(record.Translated), synonyms,
		float32SliceToBytes(record.QueryVector), record.ResultCount, toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending search history: %w", err)
	}
	return nil
}

// ListSearchHistory returns the most recent records, newest first.
func (s *paperStore) ListSearchHistory(ctx context.Context, limit int) ([]domain.SearchHistoryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, query, translated, synonyms, query_vector, result_count, created_at
		FROM search_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying search history: %w", err)
	}
	defer rows.Close()

	records := make([]domain.SearchHistoryRecord, 0)
	for rows.Next() {
		var r domain.SearchHistoryRecord
		var translated sql.NullString
		var synonyms string
		var vector []byte
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.Query, &translated, &synonyms, &vector, &r.ResultCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning search history: %w", err)
		}
		r.Translated = translated.String
		if err := json.Unmarshal([]byte(synonyms), &r.Synonyms); err != nil {
			return nil, fmt.Errorf("unmarshalling synonyms: %w", err)
		}
		r.QueryVector = bytesToFloat32Slice(vector)
		r.CreatedAt = fromMillis(createdAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search history: %w", err)
	}
	return records, nil
}

// ==================== Scanning ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPaper scans one paper. sql.ErrNoRows is returned unwrapped.
func scanPaper(row rowScanner) (*domain.Paper, error) {
	var p domain.Paper
	var authors, categories, links string
	var publishedAt, updatedAt int64
	var embedding []byte

	if err := row.Scan(&p.ID, &p.Title, &p.Abstract, &authors, &categories, &links,
		&publishedAt, &updatedAt, &embedding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning paper: %w", err)
	}

	if err := unmarshalField(authors, &p.Authors); err != nil {
		return nil, fmt.Errorf("unmarshalling authors of %s: %w", p.ID, err)
	}
	if err := unmarshalField(categories, &p.Categories); err != nil {
		return nil, fmt.Errorf("unmarshalling categories of %s: %w", p.ID, err)
	}
	if err := unmarshalField(links, &p.Links); err != nil {
		return nil, fmt.Errorf("unmarshalling links of %s: %w", p.ID, err)
	}
	p.PublishedAt = fromMillis(publishedAt)
	p.UpdatedAt = fromMillis(updatedAt)
	p.Embedding = bytesToFloat32Slice(embedding)

	return &p, nil
}

func unmarshalField(data string, v any) error {
	data = strings.TrimSpace(data)
	if data == "" || data == "[]" || data == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(data), v)
}
