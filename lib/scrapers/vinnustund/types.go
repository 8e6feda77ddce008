package vinnustund

import (
	"fmt"
	"time"

	"github.com/Andriy31193/smastund-scrapper/lib/timezone"
)

// DateLayout is the dd.MM.yyyy format the attendance system renders and
// expects in its date range form fields.
const DateLayout = "02.01.2006"

// PayElements are the five fixed-position pay columns of a shift row.
// Their meaning is defined by the remote system and opaque here; values
// keep the site's decimal-comma formatting verbatim (e.g. "8,00").
type PayElements struct {
	PayElement1 string `json:"payElement1"`
	PayElement2 string `json:"payElement2"`
	PayElement3 string `json:"payElement3"`
	PayElement4 string `json:"payElement4"`
	PayElement5 string `json:"payElement5"`
}

// ShiftRecord is one parsed row of attendance data for a single day.
// Every field is always present, possibly as an empty string: the record
// shape is fixed regardless of which columns the source table rendered.
type ShiftRecord struct {
	DayOfWeek         string      `json:"dayOfWeek"`
	Date              string      `json:"date"`
	WorkHours         string      `json:"workHours"`
	TimeEntered       string      `json:"timeEntered"`
	CalculationMethod string      `json:"calculationMethod"`
	TotalHours        string      `json:"totalHours"`
	AbsenceSupplement string      `json:"absenceSupplement"`
	HoursUnits        string      `json:"hoursUnits"`
	Remark            string      `json:"remark"`
	StatusShift       string      `json:"statusShift"`
	StatusTime        string      `json:"statusTime"`
	PayElements       PayElements `json:"payElements"`
	// RawText is the row's full text with cell separators normalized to
	// " | ". Diagnostics only, never parsed back.
	RawText string `json:"rawText"`
}

// ValidateDate rejects anything that is not a syntactically valid
// dd.MM.yyyy date. Ordering of a from/to pair is deliberately not
// checked; the remote site owns that semantic.
func ValidateDate(s string) error {
	_, err := time.ParseInLocation(DateLayout, s, timezone.Location)
	if err != nil {
		return fmt.Errorf("%w: %q is not a dd.MM.yyyy date", ErrInvalidParameters, s)
	}
	return nil
}
