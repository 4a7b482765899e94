package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/casenum"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStoreUnavailable is returned when the store cannot be used at all. The
// batch stops and the summary holds what was committed so far.
var ErrStoreUnavailable = errors.New("store unavailable")

// HearingPolicy decides what happens when a record carries a hearing date
// the case already has.
type HearingPolicy string

const (
	// PolicyReject fails the whole record on a duplicate (case_no, hearing_date).
	PolicyReject HearingPolicy = "reject"
	// PolicySkip keeps the existing hearing row; the case upsert still lands.
	PolicySkip HearingPolicy = "skip"
	// PolicyUpdate overwrites the remarks of the existing hearing row.
	PolicyUpdate HearingPolicy = "update"
)

// ParseHearingPolicy accepts reject, skip or update. Empty means reject.
func ParseHearingPolicy(s string) (HearingPolicy, error) {
	switch p := HearingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyReject, nil
	case PolicyReject, PolicySkip, PolicyUpdate:
		return p, nil
	}
	return "", fmt.Errorf("unknown duplicate hearing policy %q", s)
}

// UpsertColumns are overwritten when a case is imported again. Lifecycle
// columns (status, result, PAN, notes, flags) are left alone.
var UpsertColumns = []string{
	"case_type",
	"s_no",
	"place_of_filing",
	"year_of_filing",
	"filed_by",
	"bench_type",
	"appellant_name",
	"respondant_name",
	"assessment_year",
	"assessed_section",
	"disputed_amount",
	"argued_by",
	"updated_at",
}

// RecordFailure describes a valid record the store refused.
type RecordFailure struct {
	Index  int                `json:"index"`
	Row    int                `json:"row"`
	CaseNo string             `json:"case_no"`
	Kind   database.ErrorKind `json:"kind"`
	Reason string             `json:"reason"`
}

// Summary is the outcome of one ImportBatch call.
type Summary struct {
	BatchID  string          `json:"batch_id"`
	Received int             `json:"received"`
	Imported int             `json:"imported"`
	Failed   []RecordFailure `json:"failed"`
	CaseNos  []string        `json:"case_nos"`
}

type Option func(*Pipeline)

// WithHearingPolicy sets the duplicate hearing policy. Default is reject.
func WithHearingPolicy(p HearingPolicy) Option {
	return func(pl *Pipeline) { pl.policy = p }
}

// WithStoreName labels import logs with the target store.
func WithStoreName(name database.StoreName) Option {
	return func(pl *Pipeline) { pl.store = name }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) { pl.now = now }
}

type batchConfig struct {
	skipped int
}

type BatchOption func(*batchConfig)

// Skipped records how many payload rows were dropped by validation before
// the batch reached the pipeline. It only affects the import log.
func Skipped(n int) BatchOption {
	return func(c *batchConfig) { c.skipped = n }
}

// Pipeline writes validated records into one store.
type Pipeline struct {
	db     *gorm.DB
	logger *logger.Logger
	policy HearingPolicy
	store  database.StoreName
	now    func() time.Time
}

func NewPipeline(db *gorm.DB, log *logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:     db,
		logger: log,
		policy: PolicyReject,
		store:  database.StoreStaging,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the duplicate hearing policy in effect.
func (p *Pipeline) Policy() HearingPolicy {
	return p.policy
}

// ImportBatch imports records in order, each in its own transaction. A record
// the store rejects is itemised in Summary.Failed and the batch moves on. If
// the store becomes unusable the batch stops and the returned error wraps
// ErrStoreUnavailable; the summary is still returned.
func (p *Pipeline) ImportBatch(ctx context.Context, records []ImportRecord, opts ...BatchOption) (*Summary, error) {
	var bc batchConfig
	for _, opt := range opts {
		opt(&bc)
	}

	summary := &Summary{
		BatchID:  uuid.NewString(),
		Received: len(records),
		Failed:   []RecordFailure{},
		CaseNos:  []string{},
	}
	started := p.now()
	log := p.logger.With("batch_id", summary.BatchID, "store", p.store)

	if err := database.Ping(ctx, p.db); err != nil {
		return summary, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	log.Info("Import started", "records", len(records), "policy", p.policy)

	for i := range records {
		rec := &records[i]

		if err := ctx.Err(); err != nil {
			p.writeLog(log, summary, bc, started)
			return summary, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		caseNo, err := p.importRecord(ctx, rec)
		if err == nil {
			summary.Imported++
			summary.CaseNos = append(summary.CaseNos, caseNo)
			continue
		}

		if database.IsSystemic(err) {
			log.Error("Store unavailable, aborting import", "index", i, "case_no", caseNo, "error", err)
			p.writeLog(log, summary, bc, started)
			return summary, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}

		failure := RecordFailure{
			Index:  i,
			Row:    rec.Row,
			CaseNo: caseNo,
			Kind:   database.ClassifyError(err),
			Reason: err.Error(),
		}
		summary.Failed = append(summary.Failed, failure)
		log.Warn("Record skipped", "index", i, "case_no", caseNo, "kind", failure.Kind, "error", err)
	}

	p.writeLog(log, summary, bc, started)

	log.Info("Import finished",
		"received", summary.Received,
		"imported", summary.Imported,
		"failed", len(summary.Failed),
	)

	return summary, nil
}

// importRecord runs the upsert and hearing inserts for one record in a
// single transaction and returns the derived case number.
func (p *Pipeline) importRecord(ctx context.Context, rec *ImportRecord) (string, error) {
	c, err := p.buildCase(rec)
	if err != nil {
		return c.CaseNo, err
	}

	hearings := buildHearings(c.CaseNo, rec)

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "case_no"}},
			DoUpdates: clause.AssignmentColumns(UpsertColumns),
		}).Create(c).Error; err != nil {
			return fmt.Errorf("upsert case: %w", err)
		}

		for j := range hearings {
			if err := p.insertHearing(tx, &hearings[j]); err != nil {
				return fmt.Errorf("insert hearing %s: %w", hearings[j].HearingDate, err)
			}
		}
		return nil
	})

	return c.CaseNo, err
}

func (p *Pipeline) insertHearing(tx *gorm.DB, h *database.Hearing) error {
	conflict := clause.OnConflict{
		Columns: []clause.Column{{Name: "case_no"}, {Name: "hearing_date"}},
	}

	switch p.policy {
	case PolicySkip:
		conflict.DoNothing = true
		return tx.Clauses(conflict).Create(h).Error
	case PolicyUpdate:
		conflict.DoUpdates = clause.Set{{
			Column: clause.Column{Name: "remarks"},
			Value:  gorm.Expr("COALESCE(excluded.remarks, hearings.remarks)"),
		}}
		return tx.Clauses(conflict).Create(h).Error
	default:
		return tx.Create(h).Error
	}
}

// buildCase maps an ImportRecord onto a case row.
func (p *Pipeline) buildCase(rec *ImportRecord) (*database.Case, error) {
	c := &database.Case{
		CaseNo:          casenum.Derive(rec.CaseType, rec.SerialNumber, rec.PlaceOfFiling, rec.YearOfFiling),
		CaseType:        rec.CaseType,
		SerialNumber:    rec.SerialNumber,
		PlaceOfFiling:   rec.PlaceOfFiling,
		YearOfFiling:    rec.YearOfFiling,
		BenchType:       rec.BenchType,
		AssessedSection: rec.AssessedSection.Normalize(),
		DisputedAmount:  rec.DisputedAmount,
		ArguedBy:        rec.ArguedBy,
		CaseStatus:      database.StatusPending,
	}

	filedBy, err := rec.FiledBy.Canonical()
	if err != nil {
		return c, err
	}
	c.FiledBy = filedBy

	if ay := rec.AssessmentYear.Normalize(); ay != nil {
		c.AssessmentYear = *ay
	}

	name := optionalString(rec.AssesseeName)
	if filedBy == database.FiledByAssessee {
		c.AppellantName = name
	} else {
		c.RespondentName = name
	}

	return c, nil
}

func buildHearings(caseNo string, rec *ImportRecord) []database.Hearing {
	hearings := []database.Hearing{{
		CaseNo:      caseNo,
		HearingDate: rec.HearingDate,
		Remarks:     optionalString(rec.Remarks),
	}}
	if rec.NextHearingDate != "" {
		hearings = append(hearings, database.Hearing{
			CaseNo:      caseNo,
			HearingDate: rec.NextHearingDate,
		})
	}
	return hearings
}

// writeLog stores the batch outcome in import_logs. Errors are logged only.
func (p *Pipeline) writeLog(log *logger.Logger, s *Summary, bc batchConfig, started time.Time) {
	entry := &database.ImportLog{
		BatchID:    s.BatchID,
		Store:      string(p.store),
		Policy:     string(p.policy),
		Received:   s.Received,
		Imported:   s.Imported,
		Failed:     len(s.Failed),
		Skipped:    bc.skipped,
		StartedAt:  started,
		FinishedAt: p.now(),
	}
	for _, f := range s.Failed {
		entry.Failures = append(entry.Failures, database.ImportFailure{
			RecordIndex: f.Index,
			CaseNo:      f.CaseNo,
			Kind:        string(f.Kind),
			Reason:      f.Reason,
		})
	}

	// Use a fresh context so a cancelled request still leaves a trace.
	if err := p.db.WithContext(context.Background()).Create(entry).Error; err != nil {
		log.Error("Failed to write import log", "error", err)
	}
}
