package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/infrastructure/extractor"
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02-Jan-2006",
	"02 Jan 2006",
	"2006/01/02",
	"01-02-06",
}

// Extractor reads xlsx bank statements: a labelled header block followed by
// a transaction table with a date column and a credit column.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, doc domain.DocumentArtifact, content []byte) (map[string]string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open spreadsheet", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return map[string]string{}, nil
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parseRows(doc.Type, rows), nil
}

func parseRows(docType domain.DocumentType, rows [][]string) map[string]string {
	header := -1
	var labelled strings.Builder
	for idx, row := range rows {
		if dateCol, creditCol := tableColumns(row); dateCol >= 0 && creditCol >= 0 {
			header = idx
			break
		}
		if label, value := firstTwoCells(row); label != "" && value != "" {
			fmt.Fprintf(&labelled, "%s: %s\n", label, value)
		}
	}

	fields := extractor.ParseLabeledText(docType, labelled.String())
	if docType != domain.DocumentBankStatement || header < 0 {
		return fields
	}
	if _, ok := fields["average_monthly_credit"]; ok {
		return fields
	}
	dateCol, creditCol := tableColumns(rows[header])
	if average, ok := averageMonthlyCredit(rows[header+1:], dateCol, creditCol); ok {
		fields["average_monthly_credit"] = average.StringFixed(0)
	}
	return fields
}

func tableColumns(row []string) (int, int) {
	dateCol, creditCol := -1, -1
	for idx, cell := range row {
		switch label := extractor.NormalizeLabel(cell); {
		case dateCol < 0 && (label == "date" || label == "txn date" || label == "transaction date" || label == "value date"):
			dateCol = idx
		case creditCol < 0 && (label == "credit" || label == "credits" || label == "deposit" || label == "credit amount" || label == "cr"):
			creditCol = idx
		}
	}
	return dateCol, creditCol
}

func firstTwoCells(row []string) (string, string) {
	var cells []string
	for _, cell := range row {
		if trimmed := strings.TrimSpace(cell); trimmed != "" {
			cells = append(cells, trimmed)
		}
		if len(cells) == 2 {
			break
		}
	}
	if len(cells) < 2 {
		return "", ""
	}
	return strings.TrimSuffix(cells[0], ":"), cells[1]
}

// averageMonthlyCredit sums credits per calendar month and averages over the
// months that appear in the table. Rows with unparsable dates still count
// towards the total and fall into a single undated bucket.
func averageMonthlyCredit(rows [][]string, dateCol, creditCol int) (decimal.Decimal, bool) {
	total := decimal.Zero
	months := make(map[string]struct{})
	credited := false
	for _, row := range rows {
		if creditCol >= len(row) {
			continue
		}
		amount, ok := parseMoney(row[creditCol])
		if !ok || !amount.IsPositive() {
			continue
		}
		total = total.Add(amount)
		credited = true

		month := "undated"
		if dateCol < len(row) {
			if date, ok := parseDate(row[dateCol]); ok {
				month = date.Format("2006-01")
			}
		}
		months[month] = struct{}{}
	}
	if !credited {
		return decimal.Zero, false
	}
	return total.Div(decimal.NewFromInt(int64(len(months)))).Round(0), true
}

func parseMoney(raw string) (decimal.Decimal, bool) {
	cleaned := strings.NewReplacer(",", "", "₹", "", "Rs.", "", "INR", "", " ", "").Replace(strings.TrimSpace(raw))
	cleaned = strings.TrimSuffix(strings.TrimSuffix(cleaned, "Cr"), "CR")
	if cleaned == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, raw); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}
