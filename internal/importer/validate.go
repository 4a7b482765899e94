package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/JustJay7/tribunal-registry/internal/casenum"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/go-playground/validator/v10"
)

var (
	ErrNotArray      = errors.New("input is not an array")
	ErrBatchTooLarge = errors.New("batch too large")
)

// ValidationError lists everything wrong with one payload element.
type ValidationError struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// rawRow is the wire shape of a cause list row before validation.
type rawRow struct {
	CaseType        string     `json:"case_type" validate:"required,oneof=ITA MA SA CO"`
	SNo             *int       `json:"s_no"`
	SerialNumber    *int       `json:"serial_number"`
	PlaceOfFiling   string     `json:"place_of_filing" validate:"len=3,alpha,uppercase"`
	YearOfFiling    *int       `json:"year_of_filing" validate:"required,gte=1950,lte=2100"`
	FiledBy         string     `json:"filed_by" validate:"required,oneof=A D"`
	BenchType       string     `json:"bench_type" validate:"required,oneof=DB SMC"`
	AssesseeName    string     `json:"assessee_name" validate:"required"`
	AssessmentYear  FlexString `json:"assessment_year" validate:"required"`
	AssessedSection FlexString `json:"assessed_section"`
	DisputedAmount  *float64   `json:"disputed_amount" validate:"omitempty,gte=0"`
	ArguedBy        string     `json:"argued_by" validate:"required"`
	Remarks         string     `json:"remarks"`
	HearingDate     string     `json:"hearing_date" validate:"required"`
	NextHearingDate string     `json:"next_hearing_date"`
}

// Validator turns untyped cause list payloads into ImportRecords.
type Validator struct {
	validate     *validator.Validate
	defaultPlace string
	maxBatch     int
}

// NewValidator creates a validator. defaultPlace fills place_of_filing when a
// row omits it; maxBatch <= 0 disables the size limit.
func NewValidator(defaultPlace string, maxBatch int) *Validator {
	if defaultPlace == "" {
		defaultPlace = casenum.DefaultPlaceOfFiling
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{
		validate:     v,
		defaultPlace: strings.ToUpper(defaultPlace),
		maxBatch:     maxBatch,
	}
}

// ValidatePayload validates a JSON array of rows. Valid rows are returned in
// payload order; invalid ones are itemised by index. A body that is not an
// array yields a single error with index -1.
func (v *Validator) ValidatePayload(body []byte) ([]ImportRecord, []ValidationError, error) {
	notArray := []ValidationError{{Index: -1, Errors: []string{"Input is not an array"}}}
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, notArray, ErrNotArray
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || trimmed[0] != '[' {
			return nil, notArray, ErrNotArray
		}
		return nil, notArray, fmt.Errorf("%w: %v", ErrNotArray, err)
	}
	if v.maxBatch > 0 && len(rows) > v.maxBatch {
		return nil, nil, fmt.Errorf("%w: %d rows, limit is %d", ErrBatchTooLarge, len(rows), v.maxBatch)
	}

	records, errs := v.ValidateRows(rows)
	return records, errs, nil
}

// ValidateRows validates already split rows.
func (v *Validator) ValidateRows(rows []json.RawMessage) ([]ImportRecord, []ValidationError) {
	records := make([]ImportRecord, 0, len(rows))
	errs := []ValidationError{}

	for i, raw := range rows {
		rec, problems := v.validateRow(raw)
		if len(problems) > 0 {
			errs = append(errs, ValidationError{Index: i, Errors: problems})
			continue
		}
		rec.Row = i
		records = append(records, rec)
	}

	return records, errs
}

func (v *Validator) validateRow(raw json.RawMessage) (ImportRecord, []string) {
	var row rawRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return ImportRecord{}, []string{decodeMessage(err)}
	}

	row.CaseType = strings.ToUpper(strings.TrimSpace(row.CaseType))
	row.PlaceOfFiling = strings.ToUpper(strings.TrimSpace(row.PlaceOfFiling))
	if row.PlaceOfFiling == "" {
		row.PlaceOfFiling = v.defaultPlace
	}
	row.FiledBy = strings.ToUpper(strings.TrimSpace(row.FiledBy))
	row.BenchType = strings.ToUpper(strings.TrimSpace(row.BenchType))
	row.AssesseeName = strings.TrimSpace(row.AssesseeName)
	row.AssessmentYear = FlexString(strings.TrimSpace(string(row.AssessmentYear)))

	var problems []string
	if err := v.validate.Struct(row); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return ImportRecord{}, []string{err.Error()}
		}
		for _, fe := range fieldErrs {
			problems = append(problems, fieldMessage(fe))
		}
	}

	serial := row.SerialNumber
	if serial == nil {
		serial = row.SNo
	}
	switch {
	case serial == nil:
		problems = append(problems, "s_no is required")
	case *serial <= 0:
		problems = append(problems, "s_no must be a positive integer")
	}

	if row.DisputedAmount == nil {
		problems = append(problems, "disputed_amount is required")
	}

	arguedBy, ok := NormalizeArguedBy(row.ArguedBy)
	if row.ArguedBy != "" && !ok {
		problems = append(problems, fmt.Sprintf("argued_by must be one of [%s %s]", database.ArguedByCITDR, database.ArguedBySrDR))
	}

	hearingDate := ""
	if row.HearingDate != "" {
		d, err := NormalizeDate(row.HearingDate)
		if err != nil {
			problems = append(problems, "hearing_date: "+err.Error())
		}
		hearingDate = d
	}

	nextHearingDate := ""
	if strings.TrimSpace(row.NextHearingDate) != "" {
		d, err := NormalizeDate(row.NextHearingDate)
		if err != nil {
			problems = append(problems, "next_hearing_date: "+err.Error())
		}
		nextHearingDate = d
	}

	if len(problems) > 0 {
		return ImportRecord{}, problems
	}

	return ImportRecord{
		CaseType:        casenum.CaseType(row.CaseType),
		SerialNumber:    *serial,
		PlaceOfFiling:   row.PlaceOfFiling,
		YearOfFiling:    *row.YearOfFiling,
		FiledBy:         FiledByCode(row.FiledBy),
		BenchType:       database.BenchType(row.BenchType),
		AssesseeName:    row.AssesseeName,
		AssessmentYear:  row.AssessmentYear,
		AssessedSection: row.AssessedSection,
		DisputedAmount:  *row.DisputedAmount,
		ArguedBy:        arguedBy,
		Remarks:         strings.TrimSpace(row.Remarks),
		HearingDate:     hearingDate,
		NextHearingDate: nextHearingDate,
	}, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "alpha", "uppercase":
		return fe.Field() + " must be uppercase letters"
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

func decodeMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.String())
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return "malformed row: " + syntaxErr.Error()
	}
	return "invalid row: " + err.Error()
}
