package vinnustund

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Andriy31193/smastund-scrapper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Structural markers used by the remote table widget.
const (
	tableMarkerClass = "clsTableControl"
	headerCellClass  = "vrTableHeader"
)

// Column positions in the timesheet table. The remote page does not
// render consistent headers, so cells are read by position, never by
// header text. Columns 3-5 (work-hours overflow, note, clock-in) are
// not part of the record shape and are skipped.
const (
	colDayOfWeek         = 0
	colDate              = 1
	colWorkHours         = 2
	colTimeEntered       = 6
	colCalculationMethod = 7
	colTotalHours        = 8
	colAbsenceSupplement = 9
	colHoursUnits        = 10
	colRemark            = 11
	colStatusShift       = 12
	colStatusTime        = 13
	colPayElementFirst   = 14
)

// ParseShiftTable extracts shift records from a timesheet page. A page
// without the table widget yields an empty result: the remote renders
// the same markup for an empty date range, so absence of the table is
// indistinguishable from "no shifts" and is not an error.
func ParseShiftTable(page []byte) ([]ShiftRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse timesheet html: %w", err)
	}

	table := findDataTable(doc)
	if table == nil {
		return nil, nil
	}

	var records []ShiftRecord
	tableRows(table).Each(func(_ int, row *goquery.Selection) {
		rec, ok := parseShiftRow(row)
		if ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

// the page can contain several clsTableControl widgets; the one with
// the most rows is the data table
func findDataTable(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestRows := -1
	doc.Find("table." + tableMarkerClass).Each(func(_ int, tbl *goquery.Selection) {
		n := tbl.Find("tr").Length()
		if n > bestRows {
			best = tbl
			bestRows = n
		}
	})
	return best
}

func tableRows(table *goquery.Selection) *goquery.Selection {
	tbody := table.Find("tbody").First()
	if tbody.Length() > 0 {
		return tbody.Find("tr")
	}
	return table.Find("tr")
}

// parseShiftRow reads one data row positionally into the fixed record
// shape. The remote omits trailing empty columns inconsistently, so a
// short row is padded with empty strings rather than rejected. Header,
// summary and filler rows report ok == false.
func parseShiftRow(row *goquery.Selection) (ShiftRecord, bool) {
	if row.Find("td."+headerCellClass).Length() > 0 {
		return ShiftRecord{}, false
	}

	tds := row.Find("td")
	if tds.Length() < 3 {
		return ShiftRecord{}, false
	}

	texts := make([]string, tds.Length())
	tds.Each(func(i int, td *goquery.Selection) {
		texts[i] = htmlutil.CleanText(td.Text())
	})

	// the summary row renders a "Total" label instead of a day column
	if strings.Contains(strings.ToLower(strings.Join(texts, " ")), "total") {
		return ShiftRecord{}, false
	}

	cell := func(i int) string {
		if i < len(texts) {
			return texts[i]
		}
		return ""
	}

	if cell(colDayOfWeek) == "" {
		return ShiftRecord{}, false
	}

	return ShiftRecord{
		DayOfWeek:         cell(colDayOfWeek),
		Date:              cell(colDate),
		WorkHours:         cell(colWorkHours),
		TimeEntered:       cell(colTimeEntered),
		CalculationMethod: cell(colCalculationMethod),
		TotalHours:        cell(colTotalHours),
		AbsenceSupplement: cell(colAbsenceSupplement),
		HoursUnits:        cell(colHoursUnits),
		Remark:            cell(colRemark),
		StatusShift:       cell(colStatusShift),
		StatusTime:        cell(colStatusTime),
		PayElements: PayElements{
			PayElement1: cell(colPayElementFirst),
			PayElement2: cell(colPayElementFirst + 1),
			PayElement3: cell(colPayElementFirst + 2),
			PayElement4: cell(colPayElementFirst + 3),
			PayElement5: cell(colPayElementFirst + 4),
		},
		RawText: strings.Join(texts, " | "),
	}, true
}
