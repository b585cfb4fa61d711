package statement

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"grocertrack/backend/internal/domain"
)

const (
	FormatCSV  = "csv"
	FormatHTML = "html"
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// ContentType maps an export format to its MIME type.
func ContentType(format string) (string, bool) {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8", true
	case FormatHTML:
		return "text/html; charset=utf-8", true
	case FormatPDF:
		return "application/pdf", true
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", true
	default:
		return "", false
	}
}

func Render(w io.Writer, format string, doc Document) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, doc.Rows)
	case FormatHTML:
		return RenderHTML(w, doc)
	case FormatPDF:
		return RenderPDF(w, doc)
	case FormatXLSX:
		return RenderXLSX(w, doc)
	default:
		return fmt.Errorf("%w: unsupported format %q", ErrMalformed, format)
	}
}

func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// statementHTMLTmpl renders the printable statement; html/template escapes every field.
var statementHTMLTmpl = template.Must(template.New("statement").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Statement {{.Customer.Name}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    td.amount { text-align: right; }
  </style>
</head>
<body>
  <h2>Customer Statement</h2>
  <p>{{.Customer.Name}}{{if .Customer.Mobile}} | {{.Customer.Mobile}}{{end}}{{if .Customer.Address}} | {{.Customer.Address}}{{end}}</p>
  <p>Generated: {{.Generated}}</p>
  <table>
    <thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
    <tbody>{{range .Records}}<tr><td>{{index . 0}}</td><td>{{index . 1}}</td><td>{{index . 2}}</td><td class="amount">{{index . 3}}</td></tr>{{end}}</tbody>
  </table>
  <h3>Balance: {{.Balance}}</h3>
</body>
</html>
`))

type htmlView struct {
	Customer  domain.Customer
	Header    []string
	Records   [][]string
	Balance   string
	Generated string
}

func RenderHTML(w io.Writer, doc Document) error {
	return statementHTMLTmpl.Execute(w, htmlView{
		Customer:  doc.Customer,
		Header:    Header,
		Records:   doc.Records(),
		Balance:   doc.Balance.StringFixed(2),
		Generated: doc.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"),
	})
}

var pdfColumns = []float64{22, 44, 94, 30}

func RenderPDF(w io.Writer, doc Document) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Customer Statement", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Customer Statement", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, tr(doc.Customer.Name), "", 1, "L", false, 0, "")
	if doc.Customer.Mobile != "" {
		pdf.CellFormat(0, 7, tr(doc.Customer.Mobile), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 7, "Generated: "+doc.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	header := func() {
		pdf.SetFont("Arial", "B", 11)
		for i, title := range Header {
			pdf.CellFormat(pdfColumns[i], 8, title, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	const lineHeight = 6.0
	for _, record := range doc.Records() {
		desc := tr(record[2])
		lines := pdf.SplitLines([]byte(desc), pdfColumns[2]-2)
		height := lineHeight * float64(max(1, len(lines)))
		if pdf.GetY()+height > pageHeight-bottom {
			pdf.AddPage()
			header()
		}

		pdf.CellFormat(pdfColumns[0], height, record[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(pdfColumns[1], height, record[1], "1", 0, "L", false, 0, "")
		x, y := pdf.GetXY()
		pdf.MultiCell(pdfColumns[2], lineHeight, desc, "", "L", false)
		pdf.Rect(x, y, pdfColumns[2], height, "D")
		pdf.SetXY(x+pdfColumns[2], y)
		pdf.CellFormat(pdfColumns[3], height, record[3], "1", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Balance: "+doc.Balance.StringFixed(2), "", 1, "R", false, 0, "")

	return pdf.Output(w)
}

const xlsxSheet = "Statement"

func RenderXLSX(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return err
	}
	if err := f.SetCellValue(xlsxSheet, "A1", "Customer Statement"); err != nil {
		return err
	}
	if err := f.SetCellValue(xlsxSheet, "A2", doc.Customer.Name); err != nil {
		return err
	}
	if err := f.SetCellValue(xlsxSheet, "C2", "Balance"); err != nil {
		return err
	}
	if err := f.SetCellValue(xlsxSheet, "D2", doc.Balance.StringFixed(2)); err != nil {
		return err
	}

	const headerRow = 4
	if err := f.SetSheetRow(xlsxSheet, fmt.Sprintf("A%d", headerRow), &Header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(xlsxSheet, "A1", "A1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(xlsxSheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("D%d", headerRow), bold); err != nil {
		return err
	}

	for i, record := range doc.Records() {
		cell, err := excelize.CoordinatesToCellName(1, headerRow+1+i)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &record); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(xlsxSheet, "B", "B", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(xlsxSheet, "C", "C", 60); err != nil {
		return err
	}

	return f.Write(w)
}
