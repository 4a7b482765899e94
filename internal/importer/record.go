package importer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/casenum"
	"github.com/JustJay7/tribunal-registry/internal/database"
)

// FiledByCode is the one letter shorthand used in cause list payloads.
type FiledByCode string

const (
	FiledByCodeAssessee   FiledByCode = "A"
	FiledByCodeDepartment FiledByCode = "D"
)

// Canonical maps the shorthand to the stored value.
func (c FiledByCode) Canonical() (database.FiledBy, error) {
	switch c {
	case FiledByCodeAssessee:
		return database.FiledByAssessee, nil
	case FiledByCodeDepartment:
		return database.FiledByDepartment, nil
	}
	return "", fmt.Errorf("unknown filed_by code %q", string(c))
}

// ImportRecord is one validated cause list row. It is produced by the
// Validator and consumed as-is by the Pipeline; case_no is not part of it
// because the pipeline derives it.
type ImportRecord struct {
	Row             int                `json:"row"`
	CaseType        casenum.CaseType   `json:"case_type"`
	SerialNumber    int                `json:"serial_number"`
	PlaceOfFiling   string             `json:"place_of_filing"`
	YearOfFiling    int                `json:"year_of_filing"`
	FiledBy         FiledByCode        `json:"filed_by"`
	BenchType       database.BenchType `json:"bench_type"`
	AssesseeName    string             `json:"assessee_name"`
	AssessmentYear  FlexString         `json:"assessment_year"`
	AssessedSection FlexString         `json:"assessed_section"`
	DisputedAmount  float64            `json:"disputed_amount"`
	ArguedBy        database.ArguedBy  `json:"argued_by"`
	Remarks         string             `json:"remarks,omitempty"`
	HearingDate     string             `json:"hearing_date"`
	NextHearingDate string             `json:"next_hearing_date,omitempty"`
}

// FlexString accepts either a JSON string or a JSON number. Spreadsheet
// exports turn values such as "2022" or "143" into numbers.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = FlexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("must be a string or a number")
	}
	*f = FlexString(n.String())
	return nil
}

// Normalize returns the trimmed value, or nil when blank.
func (f FlexString) Normalize() *string {
	s := strings.TrimSpace(string(f))
	if s == "" {
		return nil
	}
	return &s
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

var dateLayouts = []string{
	"2006-01-02",
	"2-1-2006",
	"2/1/2006",
	"2.1.2006",
	"2 Jan 2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeDate converts the date formats seen in cause lists (day first)
// into YYYY-MM-DD.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < 1950 || t.Year() > 2100 {
			return "", fmt.Errorf("date %q out of range", s)
		}
		return t.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("unrecognised date %q", s)
}

// NormalizeArguedBy accepts the spellings used across cause lists.
func NormalizeArguedBy(s string) (database.ArguedBy, bool) {
	key := strings.ToUpper(strings.Join(strings.Fields(s), ""))
	key = strings.ReplaceAll(key, ".", "")
	switch key {
	case "CIT(DR)", "CITDR":
		return database.ArguedByCITDR, true
	case "SRDR":
		return database.ArguedBySrDR, true
	}
	return "", false
}
