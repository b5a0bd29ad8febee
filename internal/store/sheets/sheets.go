package sheets

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/fitstash/reelbot/internal/sample"
	"github.com/fitstash/reelbot/internal/store"
	"github.com/fitstash/reelbot/internal/tags"
)

// Column layout on the sheet: A=title, B=url, C=tags. Row 1 is the header.
const (
	recordRange = "A2:C"
	urlRange    = "B2:B"
	tagRange    = "C2:C"
)

// Store is the Google Sheets-backed record repository, speaking the
// spreadsheet values API with service-account credentials.
type Store struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	sheetName     string
	rng           *rand.Rand
}

var _ store.Repository = (*Store)(nil)

// New builds a repository for the given spreadsheet using a service-account
// credentials file.
func New(ctx context.Context, spreadsheetID, sheetName, credentialsFile string) (*Store, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("sheets service init: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

// NewWithService wires an existing API service, used by tests against a
// fake endpoint.
func NewWithService(svc *sheetsapi.Service, spreadsheetID, sheetName string) *Store {
	return &Store{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

// WithRand fixes the sampling source, used by tests for determinism.
func (s *Store) WithRand(rng *rand.Rand) *Store {
	s.rng = rng
	return s
}

func (s *Store) getValues(rangeSuffix string) ([][]any, error) {
	readRange := s.sheetName + "!" + rangeSuffix
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, readRange).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets get %s: %w", readRange, err)
	}
	return resp.Values, nil
}

// AllTags returns the normalized tag set across all records, deduplicated
// and ordered by first occurrence on the sheet.
func (s *Store) AllTags() ([]string, error) {
	rows, err := s.getValues(tagRange)
	if err != nil {
		return nil, err
	}
	var out []string
	seen := map[string]bool{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		for _, tok := range tags.Normalize(cellString(row[0])) {
			if !seen[tok] {
				seen[tok] = true
				out = append(out, tok)
			}
		}
	}
	return out, nil
}

// VideosByTag returns up to limit records whose tags cell contains tag as a
// case-insensitive substring, sampled without replacement.
func (s *Store) VideosByTag(tag string, limit int) ([]store.Video, error) {
	rows, err := s.getValues(recordRange)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(tag)
	var matching []store.Video
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		field := cellString(row[2])
		if !strings.Contains(strings.ToLower(field), needle) {
			continue
		}
		matching = append(matching, store.Video{
			Title: cellString(row[0]),
			URL:   cellString(row[1]),
			Tags:  field,
		})
	}
	return sample.Take(s.rng, matching, limit), nil
}

// AddVideo appends one [title,url,tags] row below the existing records.
func (s *Store) AddVideo(v store.Video) error {
	appendRange := s.sheetName + "!A:C"
	_, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, appendRange, &sheetsapi.ValueRange{
			Values: [][]any{{v.Title, v.URL, v.Tags}},
		}).
		ValueInputOption("RAW").
		Do()
	if err != nil {
		return fmt.Errorf("sheets append %s: %w", appendRange, err)
	}
	return nil
}

// IsDuplicateURL reports whether any URL cell equals url exactly.
func (s *Store) IsDuplicateURL(url string) (bool, error) {
	rows, err := s.getValues(urlRange)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if len(row) > 0 && cellString(row[0]) == url {
			return true, nil
		}
	}
	return false, nil
}

func cellString(v any) string {
	s, _ := v.(string)
	return s
}
