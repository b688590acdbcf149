package data

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// CSVOptions configures LoadCSV.
type CSVOptions struct {
	// HasHeader skips the first record.
	HasHeader bool
	// Comma is the field separator; zero means ','.
	Comma rune
	// LabelColumn is the index of the label column. Negative values count
	// from the end, so -1 is the last column.
	LabelColumn int
}

// DefaultCSVOptions returns options for a headed, comma-separated file with
// the label in the last column.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{HasHeader: true, Comma: ',', LabelColumn: -1}
}

// LoadCSV loads samples from a CSV file. Every column except the label
// column is a feature, in file order.
func LoadCSV(path string, opts CSVOptions) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	d, err := ReadCSV(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ReadCSV reads samples in CSV form from r.
func ReadCSV(r io.Reader, opts CSVOptions) (*Dataset, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	startRow := 0
	if opts.HasHeader {
		startRow = 1
	}
	if len(records) <= startRow {
		return nil, fmt.Errorf("%w: csv file has no data rows", ErrEmpty)
	}

	numCols := len(records[startRow])
	if numCols < 2 {
		return nil, fmt.Errorf("csv needs at least 2 columns, got %d", numCols)
	}
	labelCol := opts.LabelColumn
	if labelCol < 0 {
		labelCol += numCols
	}
	if labelCol < 0 || labelCol >= numCols {
		return nil, fmt.Errorf("label column %d out of range for %d columns", opts.LabelColumn, numCols)
	}

	d := &Dataset{Samples: make([]Sample, 0, len(records)-startRow)}
	for i := startRow; i < len(records); i++ {
		record := records[i]
		sample := Sample{Features: make([]float64, 0, numCols-1)}
		for j, field := range record {
			field = strings.TrimSpace(field)
			if j == labelCol {
				label, err := parseLabel(field)
				if err != nil {
					return nil, fmt.Errorf("failed to parse label at row %d, col %d: %w", i+1, j+1, err)
				}
				sample.Label = label
				continue
			}
			val, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse value at row %d, col %d: %w", i+1, j+1, err)
			}
			sample.Features = append(sample.Features, val)
		}
		d.Samples = append(d.Samples, sample)
	}
	return d, nil
}

// parseLabel accepts integers and integral floats such as "1.0".
func parseLabel(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative label %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("label %q is not a class index", s)
	}
	return int(f), nil
}

// LoadJSON loads samples from a JSON file holding either an array of
// {"x": [...], "y": n} objects or a stream of such objects, one per line.
// Entries without features are skipped.
func LoadJSON(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	d, err := ReadJSON(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// ReadJSON reads samples in JSON form from r.
func ReadJSON(r io.Reader) (*Dataset, error) {
	dec := json.NewDecoder(r)
	d := &Dataset{}
	add := func(s Sample) error {
		if len(s.Features) == 0 {
			return nil
		}
		if s.Label < 0 {
			return fmt.Errorf("sample %d has negative label %d", d.Len(), s.Label)
		}
		d.Samples = append(d.Samples, s)
		return nil
	}

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read json: %w", err)
	}
	if delim, ok := tok.(json.Delim); ok && delim == '[' {
		for dec.More() {
			var s Sample
			if err := dec.Decode(&s); err != nil {
				return nil, fmt.Errorf("failed to decode sample %d: %w", d.Len(), err)
			}
			if err := add(s); err != nil {
				return nil, err
			}
		}
		return d, nil
	}

	// Line-delimited objects. The first token already consumed the opening
	// brace, so restart on a fresh decoder over the remaining input.
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("failed to read json: unexpected token %v", tok)
	}
	rest := io.MultiReader(strings.NewReader("{"), dec.Buffered(), r)
	dec = json.NewDecoder(rest)
	for {
		var s Sample
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			return d, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode sample %d: %w", d.Len(), err)
		}
		if err := add(s); err != nil {
			return nil, err
		}
	}
}

// Load dispatches on the file extension: .json and .jsonl go to LoadJSON,
// anything else to LoadCSV with opts.
func Load(path string, opts CSVOptions) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl":
		return LoadJSON(path)
	}
	return LoadCSV(path, opts)
}
