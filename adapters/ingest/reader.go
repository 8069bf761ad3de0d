package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"churnpipe/domain/core"
	"churnpipe/domain/customer"
	"churnpipe/internal/errors"
	"churnpipe/internal/logging"
	"churnpipe/ports"
)

// expectedColumns is the raw customer schema. Header matching is
// case-insensitive and order-independent; missing columns fail ingestion.
var expectedColumns = []string{
	"customer_id",
	"full_name",
	"email",
	"phone",
	"home_address",
	"signup_date",
	"last_purchase_date",
	"monthly_spend",
	"total_shipments",
	"churn_label",
}

// FileReader reads a raw customer batch from an Excel or CSV file.
type FileReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	log      *logging.Logger
}

// NewFileReader creates a reader for the given file, picking the decoder
// from the extension.
func NewFileReader(filePath string, log *logging.Logger) ports.BatchReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &FileReader{filePath: filePath, fileType: fileType, log: log}
}

// ReadBatch loads the whole file into raw records plus an audit summary.
func (r *FileReader) ReadBatch(ctx context.Context) ([]customer.RawRecord, customer.IngestAudit, error) {
	if err := ctx.Err(); err != nil {
		return nil, customer.IngestAudit{}, err
	}
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, customer.IngestAudit{}, errors.IngestError(fmt.Sprintf("file not found: %s", r.filePath))
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV()
	case "xlsx":
		rows, err = r.readExcel()
	default:
		return nil, customer.IngestAudit{}, errors.IngestError(fmt.Sprintf("unsupported file type: %s", r.fileType))
	}
	if err != nil {
		return nil, customer.IngestAudit{}, err
	}
	if len(rows) < 2 {
		return nil, customer.IngestAudit{}, errors.IngestError("file must have a header row and at least one data row")
	}

	records, audit, err := r.processRows(rows)
	if err != nil {
		return nil, customer.IngestAudit{}, err
	}
	audit.Source = r.filePath
	audit.ReadAt = core.Now()

	r.log.Info("ingested %d rows from %s (%d exact duplicates, %d duplicate ids in batch)",
		audit.Rows, r.filePath, audit.ExactDuplicates, audit.DuplicateIDs)
	return records, audit, nil
}

func (r *FileReader) readCSV() ([][]string, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open CSV file")
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV file")
	}
	return rows, nil
}

func (r *FileReader) readExcel() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to read sheet %s", sheet))
	}
	return rows, nil
}

// processRows maps header positions to record fields and accumulates the
// audit counts. Values are passed through untouched: repair belongs to the
// cleaning stage, not ingestion.
func (r *FileReader) processRows(rows [][]string) ([]customer.RawRecord, customer.IngestAudit, error) {
	colIndex, err := mapHeader(rows[0])
	if err != nil {
		return nil, customer.IngestAudit{}, err
	}

	records := make([]customer.RawRecord, 0, len(rows)-1)
	exactSeen := make(map[string]struct{})
	idSeen := make(map[string]struct{})
	audit := customer.IngestAudit{Columns: expectedColumns}

	for _, row := range rows[1:] {
		cell := func(name string) string {
			idx := colIndex[name]
			if idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		rec := customer.RawRecord{
			ID:               cell("customer_id"),
			Name:             cell("full_name"),
			Email:            cell("email"),
			Phone:            cell("phone"),
			Address:          cell("home_address"),
			SignupDate:       cell("signup_date"),
			LastPurchaseDate: cell("last_purchase_date"),
			MonthlySpend:     cell("monthly_spend"),
			TotalShipments:   cell("total_shipments"),
			ChurnLabel:       cell("churn_label"),
		}

		key := strings.Join(row, "\x1f")
		if _, dup := exactSeen[key]; dup {
			audit.ExactDuplicates++
		}
		exactSeen[key] = struct{}{}
		if _, dup := idSeen[rec.ID]; dup {
			audit.DuplicateIDs++
		}
		idSeen[rec.ID] = struct{}{}

		records = append(records, rec)
	}
	audit.Rows = len(records)
	return records, audit, nil
}

func mapHeader(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range expectedColumns {
		if _, ok := index[col]; !ok {
			return nil, errors.IngestError(fmt.Sprintf("missing required column %q", col))
		}
	}
	return index, nil
}
