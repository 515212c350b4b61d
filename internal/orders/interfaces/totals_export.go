package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"order-totals/internal/orders/application"
)

// TotalsReport is the export view of a run.
type TotalsReport struct {
	Report   application.RunReport
	Currency string
}

func (r TotalsReport) status() string {
	if r.Report.Result.Aborted {
		return "aborted"
	}
	return "completed"
}

func (r TotalsReport) abortOrder() string {
	if r.Report.Result.AbortOrderID == nil {
		return "-"
	}
	return strconv.FormatInt(*r.Report.Result.AbortOrderID, 10)
}

// BuildTotalsCSV renders the totals as customer_id,total_amount rows.
func BuildTotalsCSV(report TotalsReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"customer_id", "total_amount"}); err != nil {
		return nil, err
	}
	for _, row := range report.Report.Result.Totals.Rows() {
		if err := writer.Write([]string{strconv.FormatInt(row.CustomerID, 10), row.TotalAmount.StringFixed(2)}); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildTotalsPDF renders a minimal PDF for a run.
func BuildTotalsPDF(report TotalsReport) ([]byte, error) {
	result := report.Report.Result
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Customer Totals")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Run: %s", report.Report.RunID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.Report.FinishedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", report.status()))
	pdf.Ln(5)
	if result.Aborted {
		pdf.Cell(0, 6, fmt.Sprintf("Aborted at order: %s", report.abortOrder()))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Orders processed: %d", result.Processed))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Grand Total (%s): %s", report.Currency, result.Totals.Sum().StringFixed(2)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Customer", "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, "Total Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range result.Totals.Rows() {
		pdf.CellFormat(50, 6, strconv.FormatInt(row.CustomerID, 10), "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 6, row.TotalAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildTotalsXLSX renders a summary sheet and a totals sheet.
func BuildTotalsXLSX(report TotalsReport) ([]byte, error) {
	result := report.Report.Result
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	totalsSheet := "totals"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(totalsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Customer Totals")
	_ = f.SetCellValue(summarySheet, "A3", "Run")
	_ = f.SetCellValue(summarySheet, "B3", report.Report.RunID)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", report.Report.FinishedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Status")
	_ = f.SetCellValue(summarySheet, "B5", report.status())
	_ = f.SetCellValue(summarySheet, "A6", "Abort Order")
	_ = f.SetCellValue(summarySheet, "B6", report.abortOrder())
	_ = f.SetCellValue(summarySheet, "A7", "Orders Processed")
	_ = f.SetCellValue(summarySheet, "B7", result.Processed)
	_ = f.SetCellValue(summarySheet, "A8", "Grand Total")
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return nil, err
	}
	if err := setAmountCell(f, summarySheet, "B8", result.Totals.Sum(), amountStyle); err != nil {
		return nil, err
	}
	_ = f.SetCellValue(summarySheet, "A9", "Currency")
	_ = f.SetCellValue(summarySheet, "B9", report.Currency)

	_ = f.SetCellValue(totalsSheet, "A1", "Customer")
	_ = f.SetCellValue(totalsSheet, "B1", "Total Amount")
	for i, row := range result.Totals.Rows() {
		line := i + 2
		_ = f.SetCellValue(totalsSheet, fmt.Sprintf("A%d", line), row.CustomerID)
		if err := setAmountCell(f, totalsSheet, fmt.Sprintf("B%d", line), row.TotalAmount, amountStyle); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setAmountCell stores the exact decimal text as a numeric cell shown with two places.
func setAmountCell(f *excelize.File, sheet, cell string, amount decimal.Decimal, style int) error {
	if err := f.SetCellDefault(sheet, cell, amount.String()); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

// WriteReports renders each format into dir as totals-<run id>.<format>.
func WriteReports(dir string, formats []string, report TotalsReport) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create dir: %w", err)
	}
	var written []string
	for _, format := range formats {
		var data []byte
		var err error
		switch format {
		case "csv":
			data, err = BuildTotalsCSV(report)
		case "xlsx":
			data, err = BuildTotalsXLSX(report)
		case "pdf":
			data, err = BuildTotalsPDF(report)
		default:
			return written, fmt.Errorf("export: unknown format %q", format)
		}
		if err != nil {
			return written, fmt.Errorf("export %s: %w", format, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("totals-%s.%s", report.Report.RunID, format))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("export %s: %w", format, err)
		}
		written = append(written, path)
	}
	return written, nil
}
