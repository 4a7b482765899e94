package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/database"
)

type ReportCard struct {
	MonthName                    string `json:"month_name"`
	TotalCauseList               int    `json:"total_cause_list"`
	CasesAdjournedCurrentMonth   int    `json:"cases_adjourned_current_month"`
	CasesAdjournedNextMonth      int    `json:"cases_adjourned_next_month"`
	CasesAdjournedAfterNextMonth int    `json:"cases_adjourned_after_next_month"`
	CasesAdjournedRemainingMonth int    `json:"cases_adjourned_remaining_months"`
	CasesHeard                   int    `json:"cases_heard"`
	TotalCases                   int64  `json:"total_cases"`
}

type YearlyCases struct {
	Year         int `json:"year"`
	TotalCases   int `json:"total_cases"`
	PendingCases int `json:"pending_cases"`
}

type CaseStatusCard struct {
	TotalCases        int64         `json:"total_cases"`
	TotalCasesPending int64         `json:"total_cases_pending"`
	CasesPendingCITDR int64         `json:"cases_pending_cit_dr"`
	CasesPendingSrDR  int64         `json:"cases_pending_sr_dr"`
	YearlyData        []YearlyCases `json:"yearly_data"`
}

type Dashboard struct {
	SelectedMonth  string           `json:"selected_month"`
	ReportCard     ReportCard       `json:"report_card"`
	CaseStatusCard CaseStatusCard   `json:"case_status_card"`
	Cases          []HearingListing `json:"cases"`
}

// Dashboard summarises the cause list of month (YYYY-MM; empty means the
// current month) and the overall case status of store.
func (s *Service) Dashboard(ctx context.Context, store database.StoreName, month string) (*Dashboard, error) {
	if month == "" {
		month = s.now().Format("2006-01")
	}
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, ErrInvalidMonth
	}
	end := start.AddDate(0, 1, -1)

	db, err := s.db(ctx, store)
	if err != nil {
		return nil, err
	}

	listings, err := listingsBetween(db, start.Format("2006-01-02"), end.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		SelectedMonth: month,
		ReportCard:    ReportCard{MonthName: start.Format("January 2006")},
		Cases:         listings,
	}

	listed := make(map[string]bool)
	for _, l := range listings {
		if listed[l.CaseNo] {
			continue
		}
		listed[l.CaseNo] = true
		if l.CaseStatus == database.StatusHeard || l.CaseStatus == database.StatusCompleted {
			d.ReportCard.CasesHeard++
		}
	}
	d.ReportCard.TotalCauseList = len(listed)

	// For every case listed this month, the first hearing after its first
	// listing in the month tells where it was adjourned to.
	var adjourned []struct {
		CaseNo   string
		NextDate *string
	}
	if err := db.Raw(`
		SELECT h.case_no AS case_no, MIN(n.hearing_date) AS next_date
		FROM hearings h
		LEFT JOIN hearings n ON n.case_no = h.case_no AND n.hearing_date > h.hearing_date
		WHERE h.hearing_date BETWEEN ? AND ?
		GROUP BY h.case_no`,
		start.Format("2006-01-02"), end.Format("2006-01-02"),
	).Scan(&adjourned).Error; err != nil {
		return nil, fmt.Errorf("failed to load adjournments: %w", err)
	}

	next := start.AddDate(0, 1, 0).Format("2006-01")
	afterNext := start.AddDate(0, 2, 0).Format("2006-01")
	for _, a := range adjourned {
		if a.NextDate == nil || len(*a.NextDate) < 7 {
			continue
		}
		switch m := (*a.NextDate)[:7]; {
		case m == month:
			d.ReportCard.CasesAdjournedCurrentMonth++
		case m == next:
			d.ReportCard.CasesAdjournedNextMonth++
		case m == afterNext:
			d.ReportCard.CasesAdjournedAfterNextMonth++
		default:
			d.ReportCard.CasesAdjournedRemainingMonth++
		}
	}

	if err := s.fillStatusCard(ctx, store, &d.CaseStatusCard); err != nil {
		return nil, err
	}
	d.ReportCard.TotalCases = d.CaseStatusCard.TotalCases

	return d, nil
}

func (s *Service) fillStatusCard(ctx context.Context, store database.StoreName, card *CaseStatusCard) error {
	db, err := s.db(ctx, store)
	if err != nil {
		return err
	}

	if err := db.Model(&database.Case{}).Count(&card.TotalCases).Error; err != nil {
		return fmt.Errorf("failed to count cases: %w", err)
	}

	if err := db.Model(&database.Case{}).
		Where("case_status = ?", database.StatusPending).
		Count(&card.TotalCasesPending).Error; err != nil {
		return fmt.Errorf("failed to count pending cases: %w", err)
	}
	if err := db.Model(&database.Case{}).
		Where("case_status = ? AND argued_by = ?", database.StatusPending, database.ArguedByCITDR).
		Count(&card.CasesPendingCITDR).Error; err != nil {
		return fmt.Errorf("failed to count pending cases: %w", err)
	}
	if err := db.Model(&database.Case{}).
		Where("case_status = ? AND argued_by = ?", database.StatusPending, database.ArguedBySrDR).
		Count(&card.CasesPendingSrDR).Error; err != nil {
		return fmt.Errorf("failed to count pending cases: %w", err)
	}

	card.YearlyData = []YearlyCases{}
	if err := db.Model(&database.Case{}).
		Select("year_of_filing AS year, COUNT(*) AS total_cases, SUM(CASE WHEN case_status = ? THEN 1 ELSE 0 END) AS pending_cases", database.StatusPending).
		Group("year_of_filing").
		Order("year_of_filing ASC").
		Scan(&card.YearlyData).Error; err != nil {
		return fmt.Errorf("failed to load yearly totals: %w", err)
	}

	return nil
}
