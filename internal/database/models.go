package database

import (
	"time"

	"github.com/JustJay7/tribunal-registry/internal/casenum"
	"gorm.io/gorm"
)

type FiledBy string

const (
	FiledByAssessee   FiledBy = "ASSESSEE"
	FiledByDepartment FiledBy = "DEPARTMENT"
)

type BenchType string

const (
	BenchDB  BenchType = "DB"
	BenchSMC BenchType = "SMC"
)

// ArguedBy is the departmental representative category.
type ArguedBy string

const (
	ArguedByCITDR ArguedBy = "CIT (DR)"
	ArguedBySrDR  ArguedBy = "Sr. DR"
)

type CaseStatus string

const (
	StatusPending   CaseStatus = "PENDING"
	StatusHeard     CaseStatus = "HEARD"
	StatusCompleted CaseStatus = "COMPLETED"
)

type CaseResult string

const (
	ResultAllowed       CaseResult = "ALLOWED"
	ResultPartlyAllowed CaseResult = "PARTLY ALLOWED"
	ResultDismissed     CaseResult = "DISMISSED"
)

// Case is one appeal tracked by the registry. CaseNo is derived from the
// four composing fields and is never supplied directly.
type Case struct {
	CaseNo                   string           `json:"case_no" gorm:"column:case_no;primaryKey"`
	CaseType                 casenum.CaseType `json:"case_type" gorm:"column:case_type;not null"`
	SerialNumber             int              `json:"s_no" gorm:"column:s_no;not null"`
	PlaceOfFiling            string           `json:"place_of_filing" gorm:"column:place_of_filing;size:3;not null"`
	YearOfFiling             int              `json:"year_of_filing" gorm:"column:year_of_filing;not null"`
	FiledBy                  FiledBy          `json:"filed_by" gorm:"column:filed_by;not null"`
	BenchType                BenchType        `json:"bench_type" gorm:"column:bench_type;not null"`
	AppellantName            *string          `json:"appellant_name" gorm:"column:appellant_name"`
	RespondentName           *string          `json:"respondant_name" gorm:"column:respondant_name"`
	AssessmentYear           string           `json:"assessment_year" gorm:"column:assessment_year;not null"`
	AssessedSection          *string          `json:"assessed_section" gorm:"column:assessed_section"`
	DisputedAmount           float64          `json:"disputed_amount" gorm:"column:disputed_amount;not null"`
	ArguedBy                 ArguedBy         `json:"argued_by" gorm:"column:argued_by;not null"`
	CaseStatus               CaseStatus       `json:"case_status" gorm:"column:case_status;not null"`
	CaseResult               *CaseResult      `json:"case_result" gorm:"column:case_result"`
	DateOfOrder              *string          `json:"date_of_order" gorm:"column:date_of_order"`
	DateOfFiling             *string          `json:"date_of_filing" gorm:"column:date_of_filing"`
	PAN                      *string          `json:"pan" gorm:"column:pan;size:10"`
	AuthorisedRepresentative *string          `json:"authorised_representative" gorm:"column:authorised_representative"`
	Notes                    *string          `json:"notes" gorm:"column:notes;type:text"`
	IsDetailPresent          bool             `json:"is_detail_present" gorm:"column:is_detail_present;not null"`
	NeedsReview              bool             `json:"needs_review" gorm:"column:needs_review;not null"`
	Hearings                 []Hearing        `json:"hearings,omitempty" gorm:"foreignKey:CaseNo;references:CaseNo;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt                time.Time        `json:"created_at"`
	UpdatedAt                time.Time        `json:"updated_at"`
}

// Hearing is one sitting date of a case. A case has at most one hearing
// per date.
type Hearing struct {
	ID          uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	CaseNo      string  `json:"case_no" gorm:"column:case_no;not null;uniqueIndex:uq_case_hearing_date,priority:1"`
	HearingDate string  `json:"hearing_date" gorm:"column:hearing_date;not null;uniqueIndex:uq_case_hearing_date,priority:2"`
	Remarks     *string `json:"remarks" gorm:"column:remarks"`
}

// ImportLog records one import batch run against a store.
type ImportLog struct {
	gorm.Model
	BatchID    string          `json:"batch_id" gorm:"size:36;uniqueIndex"`
	Store      string          `json:"store"`
	Policy     string          `json:"policy"`
	Received   int             `json:"received"`
	Imported   int             `json:"imported"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Failures   []ImportFailure `json:"failures,omitempty" gorm:"foreignKey:ImportLogID"`
}

// ImportFailure is a record that passed validation but was rejected by the
// store.
type ImportFailure struct {
	gorm.Model
	ImportLogID uint   `json:"import_log_id" gorm:"index"`
	RecordIndex int    `json:"record_index"`
	CaseNo      string `json:"case_no"`
	Kind        string `json:"kind"`
	Reason      string `json:"reason" gorm:"type:text"`
}

func (Case) TableName() string {
	return "case_table"
}

func (Hearing) TableName() string {
	return "hearings"
}

func (ImportLog) TableName() string {
	return "import_logs"
}

func (ImportFailure) TableName() string {
	return "import_failures"
}
