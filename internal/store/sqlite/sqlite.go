package sqlite

import (
	"database/sql"
	"fmt"
	"math/rand/v2"

	"github.com/fitstash/reelbot/internal/sample"
	"github.com/fitstash/reelbot/internal/store"
	"github.com/fitstash/reelbot/internal/tags"
)

// Store is the SQLite-backed record repository. It shares the bot database
// (the videos table created by db.InitSchema).
type Store struct {
	db  *sql.DB
	rng *rand.Rand
}

var _ store.Repository = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithRand fixes the sampling source, used by tests for determinism.
func (s *Store) WithRand(rng *rand.Rand) *Store {
	s.rng = rng
	return s
}

// AllTags returns the normalized tag set across all records, deduplicated
// and ordered by first occurrence in storage.
func (s *Store) AllTags() ([]string, error) {
	rows, err := s.db.Query(`SELECT tags FROM videos ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tags: %w", err)
	}
	defer rows.Close()

	var out []string
	seen := map[string]bool{}
	for rows.Next() {
		var field string
		if err := rows.Scan(&field); err != nil {
			return nil, fmt.Errorf("sqlite scan tags: %w", err)
		}
		for _, tok := range tags.Normalize(field) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out, rows.Err()
}

// VideosByTag returns up to limit records whose stored tags field contains
// tag as a case-insensitive substring, sampled without replacement.
func (s *Store) VideosByTag(tag string, limit int) ([]store.Video, error) {
	rows, err := s.db.Query(
		`SELECT title, url, tags FROM videos WHERE instr(lower(tags), lower(?)) > 0 ORDER BY id`,
		tag,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite query videos: %w", err)
	}
	defer rows.Close()

	var matching []store.Video
	for rows.Next() {
		var v store.Video
		if err := rows.Scan(&v.Title, &v.URL, &v.Tags); err != nil {
			return nil, fmt.Errorf("sqlite scan video: %w", err)
		}
		matching = append(matching, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sample.Take(s.rng, matching, limit), nil
}

// AddVideo appends one record. Uniqueness is not enforced here; callers
// guard through IsDuplicateURL first.
func (s *Store) AddVideo(v store.Video) error {
	_, err := s.db.Exec(
		`INSERT INTO videos (title, url, tags) VALUES (?, ?, ?)`,
		v.Title, v.URL, v.Tags,
	)
	if err != nil {
		return fmt.Errorf("sqlite insert video: %w", err)
	}
	return nil
}

// IsDuplicateURL reports whether any stored record carries exactly this URL.
func (s *Store) IsDuplicateURL(url string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM videos WHERE url = ? LIMIT 1`, url).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite duplicate check: %w", err)
	}
	return true, nil
}
