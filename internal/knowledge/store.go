package knowledge

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Garrett-s-Apps/nexus/internal/state"
	"github.com/Garrett-s-Apps/nexus/pkg/models"
)

// Store persists knowledge chunks in their own SQLite database, kept
// separate from execution state so bulk similarity scans do not
// contend with outcome writes.
type Store struct {
	conn *sql.DB
}

// OpenStore opens (or creates) the knowledge database at path.
func OpenStore(path string, maxConns int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create knowledge db directory: %w", err)
	}

	// DSN pragmas apply on every pooled connection.
	conn, err := sql.Open("sqlite", state.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open knowledge db: %w", err)
	}
	if maxConns > 0 {
		conn.SetMaxOpenConns(maxConns)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

const chunksSchema = `
CREATE TABLE IF NOT EXISTS knowledge_chunks (
	source_id  TEXT PRIMARY KEY,
	chunk_type TEXT NOT NULL,
	content    TEXT NOT NULL,
	domain_tag TEXT NOT NULL DEFAULT 'general',
	embedding  BLOB NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_type ON knowledge_chunks(chunk_type);
CREATE INDEX IF NOT EXISTS idx_chunks_domain ON knowledge_chunks(domain_tag);
CREATE INDEX IF NOT EXISTS idx_chunks_created ON knowledge_chunks(created_at);
`

func (s *Store) migrate() error {
	if _, err := s.conn.Exec(chunksSchema); err != nil {
		return fmt.Errorf("migrate knowledge db: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Upsert inserts the chunk, replacing any existing chunk with the same
// source id. Re-ingesting a source updates its content rather than
// duplicating it.
func (s *Store) Upsert(c *models.KnowledgeChunk) error {
	_, err := s.conn.Exec(`
		INSERT INTO knowledge_chunks (source_id, chunk_type, content, domain_tag, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			chunk_type = excluded.chunk_type,
			content    = excluded.content,
			domain_tag = excluded.domain_tag,
			embedding  = excluded.embedding,
			created_at = excluded.created_at`,
		c.SourceID, string(c.Type), c.Content, c.DomainTag,
		encodeEmbedding(c.Embedding), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert chunk: %w", err)
	}
	return nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count() (int, error) {
	var count int
	err := s.conn.QueryRow("SELECT COUNT(*) FROM knowledge_chunks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// CountByType returns the number of chunks per chunk type.
func (s *Store) CountByType() (map[models.ChunkType]int, error) {
	rows, err := s.conn.Query("SELECT chunk_type, COUNT(*) FROM knowledge_chunks GROUP BY chunk_type")
	if err != nil {
		return nil, fmt.Errorf("count chunks by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ChunkType]int)
	for rows.Next() {
		var ct string
		var n int
		if err := rows.Scan(&ct, &n); err != nil {
			return nil, fmt.Errorf("scan chunk count: %w", err)
		}
		counts[models.ChunkType(ct)] = n
	}
	return counts, rows.Err()
}

// Candidates returns the chunks passing the structural pre-filter:
// chunk types (empty set means all), domain tag (empty means all), and
// a creation-time cutoff (zero means no limit). The filter runs in SQL
// so the similarity math only sees plausible candidates.
func (s *Store) Candidates(types []models.ChunkType, domainTag string, createdAfter time.Time) ([]*models.KnowledgeChunk, error) {
	query := "SELECT source_id, chunk_type, content, domain_tag, embedding, created_at FROM knowledge_chunks"
	var conds []string
	var args []any

	if len(types) > 0 {
		placeholders := ""
		for i, t := range types {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, string(t))
		}
		conds = append(conds, "chunk_type IN ("+placeholders+")")
	}
	if domainTag != "" {
		conds = append(conds, "domain_tag = ?")
		args = append(args, domainTag)
	}
	if !createdAfter.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(createdAfter))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.KnowledgeChunk
	for rows.Next() {
		var c models.KnowledgeChunk
		var ct, createdAt string
		var blob []byte
		if err := rows.Scan(&c.SourceID, &ct, &c.Content, &c.DomainTag, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Type = models.ChunkType(ct)
		c.Embedding = decodeEmbedding(blob)
		c.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse chunk time: %w", err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, rows.Err()
}

// Get returns the chunk with the given source id, or nil if absent.
func (s *Store) Get(sourceID string) (*models.KnowledgeChunk, error) {
	row := s.conn.QueryRow(
		"SELECT source_id, chunk_type, content, domain_tag, embedding, created_at FROM knowledge_chunks WHERE source_id = ?",
		sourceID)

	var c models.KnowledgeChunk
	var ct, createdAt string
	var blob []byte
	err := row.Scan(&c.SourceID, &ct, &c.Content, &c.DomainTag, &blob, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	c.Type = models.ChunkType(ct)
	c.Embedding = decodeEmbedding(blob)
	c.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse chunk time: %w", err)
	}
	return &c, nil
}

// DeleteExpired removes chunks of the given type older than the
// cutoff. Returns the number of chunks removed.
func (s *Store) DeleteExpired(t models.ChunkType, cutoff time.Time) (int64, error) {
	res, err := s.conn.Exec(
		"DELETE FROM knowledge_chunks WHERE chunk_type = ? AND created_at < ?",
		string(t), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired chunks: %w", err)
	}
	return res.RowsAffected()
}

// encodeEmbedding packs the vector as little-endian float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks a vector stored by encodeEmbedding.
func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}
