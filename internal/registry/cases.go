package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/JustJay7/tribunal-registry/internal/casenum"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/importer"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// sortColumns maps accepted sort keys to columns.
var sortColumns = map[string]string{
	"case_no":         "case_no",
	"s_no":            "s_no",
	"year_of_filing":  "year_of_filing",
	"disputed_amount": "disputed_amount",
	"created_at":      "created_at",
	"updated_at":      "updated_at",
}

type ListQuery struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	Search   string `form:"search"`
	CaseType string `form:"case_type"`
	Status   string `form:"status"`
	Year     int    `form:"year"`
	SortBy   string `form:"sort_by"`
	Order    string `form:"order"`
}

type ListResult struct {
	Cases []database.Case `json:"cases"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (q *ListQuery) normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit < 1:
		q.Limit = DefaultPageSize
	case q.Limit > MaxPageSize:
		q.Limit = MaxPageSize
	}
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = "created_at"
	}
	if strings.ToLower(q.Order) == "asc" {
		q.Order = "ASC"
	} else {
		q.Order = "DESC"
	}
}

// ListCases returns one page of cases matching q.
func (s *Service) ListCases(ctx context.Context, store database.StoreName, q ListQuery) (*ListResult, error) {
	q.normalize()

	db, err := s.db(ctx, store)
	if err != nil {
		return nil, err
	}

	query := db.Model(&database.Case{})
	if search := strings.TrimSpace(q.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("case_no LIKE ? OR appellant_name LIKE ? OR respondant_name LIKE ? OR pan LIKE ?",
			like, like, like, like)
	}
	if q.CaseType != "" {
		query = query.Where("case_type = ?", strings.ToUpper(q.CaseType))
	}
	if q.Status != "" {
		query = query.Where("case_status = ?", strings.ToUpper(q.Status))
	}
	if q.Year > 0 {
		query = query.Where("year_of_filing = ?", q.Year)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count cases: %w", err)
	}

	cases := []database.Case{}
	if err := query.
		Order(fmt.Sprintf("%s %s, case_no ASC", sortColumns[q.SortBy], q.Order)).
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}

	return &ListResult{Cases: cases, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// CaseInput is a fully described case entered by hand.
type CaseInput struct {
	CaseType                 string  `json:"case_type" validate:"required,oneof=ITA MA SA CO"`
	SerialNumber             int     `json:"s_no" validate:"required,gt=0"`
	PlaceOfFiling            string  `json:"place_of_filing" validate:"omitempty,len=3,alpha,uppercase"`
	YearOfFiling             int     `json:"year_of_filing" validate:"required,gte=1950,lte=2100"`
	FiledBy                  string  `json:"filed_by" validate:"required,oneof=ASSESSEE DEPARTMENT"`
	BenchType                string  `json:"bench_type" validate:"required,oneof=DB SMC"`
	AppellantName            string  `json:"appellant_name" validate:"required"`
	RespondentName           string  `json:"respondant_name" validate:"required"`
	AssessmentYear           string  `json:"assessment_year" validate:"required,assessment_year"`
	AssessedSection          string  `json:"assessed_section"`
	DisputedAmount           float64 `json:"disputed_amount" validate:"gte=0"`
	ArguedBy                 string  `json:"argued_by" validate:"required,argued_by"`
	CaseStatus               string  `json:"case_status" validate:"omitempty,oneof=PENDING HEARD COMPLETED"`
	CaseResult               string  `json:"case_result" validate:"omitempty,oneof=ALLOWED 'PARTLY ALLOWED' DISMISSED"`
	DateOfOrder              string  `json:"date_of_order" validate:"omitempty,datetime=2006-01-02"`
	DateOfFiling             string  `json:"date_of_filing" validate:"required,datetime=2006-01-02"`
	PAN                      string  `json:"pan" validate:"required,len=10,alphanum"`
	AuthorisedRepresentative string  `json:"authorised_representative"`
	Notes                    string  `json:"notes"`
	IsDetailPresent          bool    `json:"is_detail_present"`
	NeedsReview              bool    `json:"needs_review"`
}

var assessmentYearPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

func newCaseValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	})
	v.RegisterValidation("assessment_year", func(fl validator.FieldLevel) bool {
		return assessmentYearPattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("argued_by", func(fl validator.FieldLevel) bool {
		_, ok := importer.NormalizeArguedBy(fl.Field().String())
		return ok
	})
	return v
}

// CreateCase stores a manually entered case and returns it.
func (s *Service) CreateCase(ctx context.Context, store database.StoreName, in CaseInput) (*database.Case, error) {
	in.CaseType = strings.ToUpper(strings.TrimSpace(in.CaseType))
	in.PlaceOfFiling = strings.ToUpper(strings.TrimSpace(in.PlaceOfFiling))
	in.PAN = strings.ToUpper(strings.TrimSpace(in.PAN))

	if err := s.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	c := caseFromInput(in)

	db, err := s.db(ctx, store)
	if err != nil {
		return nil, err
	}

	if err := db.Create(c).Error; err != nil {
		if database.ClassifyError(err) == database.KindDuplicate {
			return nil, fmt.Errorf("%w: %s", ErrCaseExists, c.CaseNo)
		}
		return nil, fmt.Errorf("failed to create case: %w", err)
	}

	s.Invalidate(store, c.CaseNo)
	s.logger.Info("Case created", "store", store, "case_no", c.CaseNo)

	return c, nil
}

func caseFromInput(in CaseInput) *database.Case {
	place := in.PlaceOfFiling
	if place == "" {
		place = casenum.DefaultPlaceOfFiling
	}
	arguedBy, _ := importer.NormalizeArguedBy(in.ArguedBy)
	status := database.CaseStatus(in.CaseStatus)
	if status == "" {
		status = database.StatusPending
	}

	c := &database.Case{
		CaseNo:                   casenum.Derive(casenum.CaseType(in.CaseType), in.SerialNumber, place, in.YearOfFiling),
		CaseType:                 casenum.CaseType(in.CaseType),
		SerialNumber:             in.SerialNumber,
		PlaceOfFiling:            place,
		YearOfFiling:             in.YearOfFiling,
		FiledBy:                  database.FiledBy(in.FiledBy),
		BenchType:                database.BenchType(in.BenchType),
		AppellantName:            nullable(in.AppellantName),
		RespondentName:           nullable(in.RespondentName),
		AssessmentYear:           in.AssessmentYear,
		AssessedSection:          nullable(in.AssessedSection),
		DisputedAmount:           in.DisputedAmount,
		ArguedBy:                 arguedBy,
		CaseStatus:               status,
		DateOfOrder:              nullable(in.DateOfOrder),
		DateOfFiling:             nullable(in.DateOfFiling),
		PAN:                      nullable(in.PAN),
		AuthorisedRepresentative: nullable(in.AuthorisedRepresentative),
		Notes:                    nullable(in.Notes),
		IsDetailPresent:          in.IsDetailPresent,
		NeedsReview:              in.NeedsReview,
	}
	if in.CaseResult != "" {
		result := database.CaseResult(in.CaseResult)
		c.CaseResult = &result
	}
	return c
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
