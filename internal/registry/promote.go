package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/importer"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PromoteFailure struct {
	CaseNo string             `json:"case_no"`
	Kind   database.ErrorKind `json:"kind"`
	Reason string             `json:"reason"`
}

type PromoteSummary struct {
	Requested int              `json:"requested"`
	Promoted  int              `json:"promoted"`
	CaseNos   []string         `json:"case_nos"`
	Failed    []PromoteFailure `json:"failed"`
}

// Promote copies staged cases and their hearings into the main store, one
// transaction per case. With no case numbers, every staged case flagged
// is_detail_present is promoted. A case that fails is reported and skipped;
// an unreachable store stops the run with an error wrapping
// importer.ErrStoreUnavailable.
func (s *Service) Promote(ctx context.Context, caseNos []string) (*PromoteSummary, error) {
	staging := s.stores.Staging.WithContext(ctx)
	main := s.stores.Main.WithContext(ctx)

	if len(caseNos) == 0 {
		if err := staging.Model(&database.Case{}).
			Where("is_detail_present = ?", true).
			Order("case_no ASC").
			Pluck("case_no", &caseNos).Error; err != nil {
			return nil, s.promoteError(err)
		}
	}

	summary := &PromoteSummary{
		Requested: len(caseNos),
		CaseNos:   []string{},
		Failed:    []PromoteFailure{},
	}

	for _, caseNo := range caseNos {
		err := s.promoteOne(staging, main, caseNo)
		if err == nil {
			summary.Promoted++
			summary.CaseNos = append(summary.CaseNos, caseNo)
			continue
		}
		if database.IsSystemic(err) {
			s.Invalidate(database.StoreMain, summary.CaseNos...)
			return summary, s.promoteError(err)
		}

		kind := database.ClassifyError(err)
		if errors.Is(err, ErrCaseNotFound) {
			kind = database.KindNotFound
		}
		summary.Failed = append(summary.Failed, PromoteFailure{CaseNo: caseNo, Kind: kind, Reason: err.Error()})
		s.logger.Warn("Case not promoted", "case_no", caseNo, "kind", kind, "error", err)
	}

	s.Invalidate(database.StoreMain, summary.CaseNos...)
	s.logger.Info("Promotion finished", "requested", summary.Requested, "promoted", summary.Promoted, "failed", len(summary.Failed))

	return summary, nil
}

func (s *Service) promoteOne(staging, main *gorm.DB, caseNo string) error {
	var c database.Case
	err := staging.Preload("Hearings").First(&c, "case_no = ?", caseNo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w in staging: %s", ErrCaseNotFound, caseNo)
	}
	if err != nil {
		return err
	}

	hearings := c.Hearings
	c.Hearings = nil

	return main.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "case_no"}},
			DoUpdates: promoteAssignments(),
		}).Create(&c).Error; err != nil {
			return fmt.Errorf("upsert case: %w", err)
		}

		for _, h := range hearings {
			row := database.Hearing{CaseNo: h.CaseNo, HearingDate: h.HearingDate, Remarks: h.Remarks}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "case_no"}, {Name: "hearing_date"}},
				DoUpdates: clause.AssignmentColumns([]string{"remarks"}),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("copy hearing %s: %w", h.HearingDate, err)
			}
		}
		return nil
	})
}

// curatedColumns are maintained in the main store. A promotion only fills
// them where main has no value yet.
var curatedColumns = []string{
	"case_result",
	"date_of_order",
	"date_of_filing",
	"pan",
	"authorised_representative",
	"notes",
}

// promoteAssignments overwrites the import-owned columns and keeps main's
// status, review flag and curated values. is_detail_present is sticky.
func promoteAssignments() clause.Set {
	set := clause.AssignmentColumns(importer.UpsertColumns)
	for _, col := range curatedColumns {
		set = append(set, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr(fmt.Sprintf("COALESCE(%s.%s, excluded.%s)", database.Case{}.TableName(), col, col)),
		})
	}
	return append(set, clause.Assignment{
		Column: clause.Column{Name: "is_detail_present"},
		Value:  gorm.Expr(fmt.Sprintf("MAX(%s.is_detail_present, excluded.is_detail_present)", database.Case{}.TableName())),
	})
}

func (s *Service) promoteError(err error) error {
	if database.IsSystemic(err) {
		return fmt.Errorf("%w: %w", importer.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("promotion failed: %w", err)
}
