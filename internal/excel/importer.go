// Package excel imports the content catalog and vocabulary lists from
// Excel workbooks or CSV files.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/example/lingofeed/pkg/models"
)

// ContentUpserter stores catalog items
type ContentUpserter interface {
	UpsertContent(ctx context.Context, item *models.ContentItem) error
}

// WordUpserter stores vocabulary words
type WordUpserter interface {
	UpsertWord(ctx context.Context, word *models.Word) error
}

// ImportConfig defines the import configuration. Columns are Excel column
// letters and apply to CSV files by position.
type ImportConfig struct {
	FilePath  string
	SheetName string // Empty selects the first sheet
	StartRow  int    // 1-based; 2 skips the header

	// Content catalog columns
	IDColumn         string
	TypeColumn       string
	TitleColumn      string
	LevelColumn      string
	TopicsColumn     string // Separated by commas or semicolons
	DurationColumn   string // Seconds
	AudioColumn      string // yes/no, true/false, 1/0
	PopularityColumn string
	CreatedColumn    string // RFC3339 or YYYY-MM-DD
	TextColumn       string

	// Vocabulary columns
	WordColumn        string
	TranslationColumn string
	ContextColumn     string
	WordLevelColumn   string
	TopicColumn       string
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		StartRow:          2,
		IDColumn:          "A",
		TypeColumn:        "B",
		TitleColumn:       "C",
		LevelColumn:       "D",
		TopicsColumn:      "E",
		DurationColumn:    "F",
		AudioColumn:       "G",
		PopularityColumn:  "H",
		CreatedColumn:     "I",
		TextColumn:        "J",
		WordColumn:        "A",
		TranslationColumn: "B",
		ContextColumn:     "C",
		WordLevelColumn:   "D",
		TopicColumn:       "E",
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Imported       int
	Skipped        int
	Errors         []string
}

func (r *ImportResult) fail(rowNum int, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, fmt.Sprintf("row %d: %v", rowNum, err))
}

// ImportContent imports catalog items from an Excel or CSV file
func ImportContent(ctx context.Context, config ImportConfig, store ContentUpserter) (*ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow || isBlank(row) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalProcessed++

		item, err := parseContentRow(row, config)
		if err != nil {
			result.fail(rowNum, err)
			continue
		}
		if err := store.UpsertContent(ctx, item); err != nil {
			result.fail(rowNum, fmt.Errorf("failed to save content: %w", err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// ImportWords imports vocabulary from an Excel or CSV file
func ImportWords(ctx context.Context, config ImportConfig, store WordUpserter) (*ImportResult, error) {
	rows, err := readRows(config)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow || isBlank(row) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalProcessed++

		word, err := parseWordRow(row, config)
		if err != nil {
			result.fail(rowNum, err)
			continue
		}
		if err := store.UpsertWord(ctx, word); err != nil {
			result.fail(rowNum, fmt.Errorf("failed to save word: %w", err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// readRows returns all rows of the file, choosing the reader by extension
func readRows(config ImportConfig) ([][]string, error) {
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		return readCSV(config.FilePath)
	}
	return readExcel(config)
}

func readExcel(config ImportConfig) ([][]string, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows of sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// cell returns the trimmed value of the lettered column, or "" if the
// column is unset or past the end of the row
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	idx, err := excelize.ColumnNameToNumber(column)
	if err != nil || idx-1 >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx-1])
}

func parseContentRow(row []string, config ImportConfig) (*models.ContentItem, error) {
	title := cell(row, config.TitleColumn)
	if title == "" {
		return nil, fmt.Errorf("title cannot be empty")
	}
	ct, ok := models.ParseContentType(strings.ToLower(cell(row, config.TypeColumn)))
	if !ok || ct == models.ContentSRSReview {
		return nil, fmt.Errorf("unknown content type %q", cell(row, config.TypeColumn))
	}
	level, err := models.ParseLevel(cell(row, config.LevelColumn))
	if err != nil {
		return nil, err
	}

	item := &models.ContentItem{
		ID:     cell(row, config.IDColumn),
		Type:   ct,
		Title:  title,
		Level:  level,
		Topics: splitTopics(cell(row, config.TopicsColumn)),
		Text:   cell(row, config.TextColumn),
	}
	if item.ID == "" {
		// Stable across re-imports of the same catalog
		item.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(ct)+"/"+title)).String()
	}
	if item.DurationSeconds, err = parseNonNegative(cell(row, config.DurationColumn)); err != nil {
		return nil, fmt.Errorf("invalid duration: %w", err)
	}
	if item.Popularity, err = parseNonNegative(cell(row, config.PopularityColumn)); err != nil {
		return nil, fmt.Errorf("invalid popularity: %w", err)
	}
	if item.HasAudio, err = parseFlag(cell(row, config.AudioColumn)); err != nil {
		return nil, fmt.Errorf("invalid audio flag: %w", err)
	}
	if item.CreatedAt, err = parseDate(cell(row, config.CreatedColumn)); err != nil {
		return nil, fmt.Errorf("invalid created date: %w", err)
	}
	return item, nil
}

func parseWordRow(row []string, config ImportConfig) (*models.Word, error) {
	word := cleanWord(cell(row, config.WordColumn))
	translation := cleanWord(cell(row, config.TranslationColumn))
	if word == "" {
		return nil, fmt.Errorf("word cannot be empty")
	}
	if translation == "" {
		return nil, fmt.Errorf("translation cannot be empty")
	}
	w := &models.Word{
		Word:        word,
		Translation: translation,
		Context:     cell(row, config.ContextColumn),
		Topic:       strings.ToLower(cell(row, config.TopicColumn)),
	}
	if lv := cell(row, config.WordLevelColumn); lv != "" {
		level, err := models.ParseLevel(lv)
		if err != nil {
			return nil, err
		}
		w.Level = level
	}
	return w, nil
}

// cleanWord drops trailing notes in parentheses, "go (went, gone)" -> "go"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

func splitTopics(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	var out []string
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		t := strings.ToLower(strings.TrimSpace(f))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func parseNonNegative(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("%d is negative", v)
	}
	return v, nil
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "no", "n", "false", "0":
		return false, nil
	case "yes", "y", "true", "1":
		return true, nil
	}
	return false, fmt.Errorf("unrecognized value %q", s)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}
