package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"strconv"
	"strings"

	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-pipeline/pkg/models"
)

const (
	DefaultMaxUploadBytes int64 = 100 * 1024 * 1024
	DefaultMaxRows              = 100000

	maxReportedCellErrors = 20
)

var csvContentTypes = map[string]struct{}{
	"text/csv":        {},
	"application/csv": {},
}

// Upload is a tabular file submitted for batch scoring.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.Reader
}

// UploadLimits bounds what ParseUpload accepts.
type UploadLimits struct {
	MaxBytes int64
	MaxRows  int
}

func validationError(msg string) error {
	return pkg.NewAppError(pkg.ErrInvalidInputCode, msg, nil)
}

// ParseUpload validates and parses a CSV upload. Checks run in order and each failure is a
// distinct invalid-input error: content type, size, row count, required columns and
// finally every cell. No rows are returned unless all checks pass.
func ParseUpload(u Upload, limits UploadLimits) ([]models.Transaction, error) {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxUploadBytes
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultMaxRows
	}

	if !isCSVContentType(u.ContentType) {
		return nil, validationError("Only CSV files are supported")
	}
	sizeErr := NewFileSizeError(limits.MaxBytes)
	if u.Size > limits.MaxBytes {
		return nil, sizeErr
	}

	// The declared size may be missing or wrong; never read past the limit.
	body := &limitedReader{r: u.Body, remaining: limits.MaxBytes}
	header, records, err := readRecords(body, limits.MaxRows)
	if body.exceeded {
		return nil, sizeErr
	}
	if err != nil {
		return nil, err
	}

	columns, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}
	return parseRows(records, columns)
}

// NewFileSizeError is the rejection for uploads larger than maxBytes.
func NewFileSizeError(maxBytes int64) error {
	return validationError(fmt.Sprintf("File size exceeds maximum limit of %sMB", formatMegabytes(maxBytes)))
}

func isCSVContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := csvContentTypes[strings.ToLower(mediaType)]
	return ok
}

func formatMegabytes(n int64) string {
	return strconv.FormatFloat(float64(n)/(1024*1024), 'f', -1, 64)
}

// readRecords returns the header and the data rows, failing as soon as maxRows is exceeded.
func readRecords(r io.Reader, maxRows int) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, validationError("Missing required columns in the uploaded file: " + strings.Join(models.RequiredColumns, ", "))
	}
	if err != nil {
		return nil, nil, pkg.NewAppError(pkg.ErrInvalidInputCode, "Malformed CSV file", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, pkg.NewAppError(pkg.ErrInvalidInputCode, "Malformed CSV file", err)
		}
		if len(records) == maxRows {
			return nil, nil, validationError(fmt.Sprintf("Number of rows exceeds maximum limit of %d", maxRows))
		}
		records = append(records, record)
	}
	return header, records, nil
}

// resolveColumns maps every required column to its index in header.
func resolveColumns(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	columns := make(map[string]int, len(models.RequiredColumns))
	var missing []string
	for _, name := range models.RequiredColumns {
		i, ok := index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		columns[name] = i
	}
	if len(missing) > 0 {
		return nil, validationError("Missing required columns in the uploaded file: " + strings.Join(missing, ", "))
	}
	return columns, nil
}

// parseRows converts every record, collecting malformed cells into a single error.
func parseRows(records [][]string, columns map[string]int) ([]models.Transaction, error) {
	txns := make([]models.Transaction, 0, len(records))
	var problems []string
	total := 0
	report := func(row int, column, msg string) {
		total++
		if len(problems) < maxReportedCellErrors {
			problems = append(problems, fmt.Sprintf("row %d column %s: %s", row, column, msg))
		}
	}

	for i, record := range records {
		row := i + 1
		cell := func(name string) string { return strings.TrimSpace(record[columns[name]]) }

		var txn models.Transaction
		ok := true
		if step, err := parseStep(cell(models.ColumnStep)); err != nil {
			report(row, models.ColumnStep, err.Error())
			ok = false
		} else {
			txn.Step = step
		}

		txnType := pkg.TransactionType(cell(models.ColumnType))
		if !txnType.IsValid() {
			report(row, models.ColumnType, fmt.Sprintf("unknown transaction type %q", string(txnType)))
			ok = false
		}
		txn.Type = txnType

		for _, f := range []struct {
			name        string
			dst         *float64
			nonNegative bool
		}{
			{models.ColumnAmount, &txn.Amount, true},
			{models.ColumnOldBalanceOrg, &txn.OldBalanceOrg, false},
			{models.ColumnNewBalanceOrig, &txn.NewBalanceOrig, false},
			{models.ColumnOldBalanceDest, &txn.OldBalanceDest, false},
			{models.ColumnNewBalanceDest, &txn.NewBalanceDest, false},
		} {
			v, err := parseNumber(cell(f.name), f.nonNegative)
			if err != nil {
				report(row, f.name, err.Error())
				ok = false
				continue
			}
			*f.dst = v
		}
		if ok {
			txns = append(txns, txn)
		}
	}

	if total > 0 {
		msg := fmt.Sprintf("Malformed values in the uploaded file: %s", strings.Join(problems, "; "))
		if total > len(problems) {
			msg += fmt.Sprintf(" (and %d more)", total-len(problems))
		}
		return nil, validationError(msg)
	}
	return txns, nil
}

func parseStep(s string) (int, error) {
	if s == "" {
		return 0, errors.New("value is empty")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, errors.New("must be non-negative")
		}
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("step %d out of range", n)
		}
		return n, nil
	}
	// Exported spreadsheets often write integers as 1.0.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if f < 0 {
		return 0, errors.New("must be non-negative")
	}
	return int(f), nil
}

func parseNumber(s string, nonNegative bool) (float64, error) {
	if s == "" {
		return 0, errors.New("value is empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if nonNegative && v < 0 {
		return 0, errors.New("must be non-negative")
	}
	return v, nil
}

// limitedReader reads at most remaining bytes and records whether the source had more.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Probe for one more byte to tell "exactly at the limit" from "over it".
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			l.exceeded = true
			return 0, io.ErrUnexpectedEOF
		}
		return 0, err
	}
	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
