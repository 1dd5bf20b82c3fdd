package exchange

import (
	"io"
	"strconv"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/go-faster/errors"
	"github.com/gocarina/gocsv"

	"github.com/xenking/quickpay/internal/domain/transaction"
)

// TimestampLayout renders sale times the way Czech locale dates read.
const TimestampLayout = "2. 1. 2006 15:04:05"

// HistorySheet is the worksheet name of spreadsheet exports.
const HistorySheet = "Transakce"

// HistoryRow is one sold line of a transaction.
type HistoryRow struct {
	TransactionID string `csv:"ID transakce"`
	Timestamp     string `csv:"Datum a čas"`
	Total         string `csv:"Celková částka"`
	Method        string `csv:"Způsob platby"`
	ProductID     string `csv:"ID produktu"`
	ProductName   string `csv:"Název produktu"`
	Quantity      int    `csv:"Množství"`
	UnitPrice     string `csv:"Cena za kus"`
	Subtotal      string `csv:"Mezisoučet"`
}

var historyHeader = []interface{}{
	"ID transakce",
	"Datum a čas",
	"Celková částka",
	"Způsob platby",
	"ID produktu",
	"Název produktu",
	"Množství",
	"Cena za kus",
	"Mezisoučet",
}

// Rows flattens the log into one row per sold line, keeping log order.
// Timestamps are rendered in loc.
func Rows(log []transaction.Transaction, loc *time.Location) []HistoryRow {
	var rows []HistoryRow
	for _, t := range log {
		ts := t.Timestamp.In(loc).Format(TimestampLayout)
		for _, it := range t.Items {
			rows = append(rows, HistoryRow{
				TransactionID: t.ID,
				Timestamp:     ts,
				Total:         t.Total.String(),
				Method:        t.PaymentMethod.Label(),
				ProductID:     it.ProductID,
				ProductName:   it.Name,
				Quantity:      it.Quantity,
				UnitPrice:     it.Price.String(),
				Subtotal:      it.Subtotal().String(),
			})
		}
	}
	return rows
}

// WriteCSV writes rows as CSV with a header line.
func WriteCSV(w io.Writer, rows []HistoryRow) error {
	if rows == nil {
		rows = []HistoryRow{}
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return nil
}

// WriteXLSX writes rows as a single-sheet spreadsheet. Amounts are stored as
// numbers so the sheet can sum them.
func WriteXLSX(w io.Writer, rows []HistoryRow) error {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", HistorySheet)

	header := historyHeader
	f.SetSheetRow(HistorySheet, "A1", &header)
	for i, r := range rows {
		row := []interface{}{
			r.TransactionID,
			r.Timestamp,
			number(r.Total),
			r.Method,
			r.ProductID,
			r.ProductName,
			r.Quantity,
			number(r.UnitPrice),
			number(r.Subtotal),
		}
		f.SetSheetRow(HistorySheet, "A"+strconv.Itoa(i+2), &row)
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write xlsx")
	}
	return nil
}

func number(s string) interface{} {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}
