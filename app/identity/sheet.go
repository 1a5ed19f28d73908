package identity

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/press-relay/app/feed"
	"github.com/lysyi3m/press-relay/app/source"
	"golang.org/x/text/width"
)

const sheetTimeout = 30 * time.Second

// Cells equal to or starting with these mean "this account has no ID".
var missingMarkers = []string{"なし", "ナシ", "無し"}

// SheetURL builds the CSV export URL of a shared Google Sheet tab.
func SheetURL(sheetID, gid string) string {
	if gid == "" {
		gid = "0"
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=csv&gid=%s", sheetID, gid)
}

type Sheet struct {
	url        string
	fetcher    *source.Fetcher
	columns    map[string]feed.IDFormat
	nameColumn string
}

// NewSheet reads the id columns of the given sources plus nameColumn.
func NewSheet(url string, fetcher *source.Fetcher, sources []*feed.Config, nameColumn string) *Sheet {
	columns := make(map[string]feed.IDFormat, len(sources))
	for _, s := range sources {
		columns[s.IDField] = s.IDFormat
	}
	return &Sheet{
		url:        url,
		fetcher:    fetcher,
		columns:    columns,
		nameColumn: nameColumn,
	}
}

// Columns lists the id columns a fetched snapshot carries, sorted.
func (s *Sheet) Columns() []string {
	columns := make([]string, 0, len(s.columns))
	for column := range s.columns {
		columns = append(columns, column)
	}
	slices.Sort(columns)
	return columns
}

func (s *Sheet) Fetch(ctx context.Context) (*Snapshot, error) {
	if s.url == "" {
		return nil, fmt.Errorf("sheet URL is not configured")
	}

	data, err := s.fetcher.Fetch(ctx, s.url, sheetTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet: %w", err)
	}

	return s.Parse(data)
}

func (s *Sheet) Parse(data []byte) (*Snapshot, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("sheet is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet header: %w", err)
	}

	positions := make(map[string]int, len(header))
	for i, column := range header {
		column = strings.TrimSpace(strings.TrimPrefix(column, "\ufeff"))
		if _, seen := positions[column]; !seen {
			positions[column] = i
		}
	}

	snapshot := &Snapshot{
		FetchedAt: time.Now().UTC(),
		IDs:       make(map[string][]string, len(s.columns)),
	}
	seen := make(map[string]map[string]bool, len(s.columns))
	for column := range s.columns {
		snapshot.IDs[column] = []string{}
		seen[column] = make(map[string]bool)
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet row: %w", err)
		}

		record := Record{
			Name: cleanCell(cell(row, positions, s.nameColumn)),
			IDs:  make(map[string]string),
		}

		for column, format := range s.columns {
			value := cell(row, positions, column)
			if isMissing(value) {
				continue
			}
			id := feed.NormalizeID(format, cleanCell(value))
			if id == "" {
				continue
			}
			record.IDs[column] = id
			if !seen[column][id] {
				seen[column][id] = true
				snapshot.IDs[column] = append(snapshot.IDs[column], id)
			}
		}

		if record.Name != "" || len(record.IDs) > 0 {
			snapshot.Records = append(snapshot.Records, record)
		}
	}

	return snapshot, nil
}

func cell(row []string, positions map[string]int, column string) string {
	i, ok := positions[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func isMissing(value string) bool {
	normalized := strings.TrimSpace(strings.ReplaceAll(value, "\u3000", ""))
	if normalized == "" {
		return true
	}
	for _, marker := range missingMarkers {
		if strings.HasPrefix(normalized, marker) {
			return true
		}
	}
	return false
}

// cleanCell folds full-width ASCII (common in Japanese sheets) to half-width.
func cleanCell(value string) string {
	return strings.TrimSpace(width.Fold.String(strings.TrimSpace(value)))
}
