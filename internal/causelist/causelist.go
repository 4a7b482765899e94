// Package causelist builds the printable cause list of one hearing date and
// exports it as a spreadsheet or PDF.
package causelist

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/casenum"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/internal/registry"
)

// Source supplies the cases listed on a date. *registry.Service satisfies it.
type Source interface {
	CasesByHearingDate(ctx context.Context, store database.StoreName, date string) ([]registry.HearingListing, error)
}

type Entry struct {
	SerialNo       int                `json:"serial_no"`
	CaseNo         string             `json:"case_no"`
	BenchType      database.BenchType `json:"bench_type"`
	Appellant      string             `json:"appellant"`
	Respondent     string             `json:"respondent"`
	AssessmentYear string             `json:"assessment_year"`
	DisputedAmount float64            `json:"disputed_amount"`
	ArguedBy       database.ArguedBy  `json:"argued_by"`
	Remarks        string             `json:"remarks"`
}

type CauseList struct {
	Registry    string    `json:"registry"`
	Date        string    `json:"date"`
	Store       string    `json:"store"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
}

// Build assembles the cause list for date. Entries are numbered from 1 after
// sorting division bench matters before single member ones, then by case
// type, year and serial number.
func Build(ctx context.Context, src Source, store database.StoreName, date, registryName string) (*CauseList, error) {
	listings, err := src.CasesByHearingDate(ctx, store, date)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(listings))
	for _, l := range listings {
		e := Entry{
			CaseNo:         l.CaseNo,
			BenchType:      l.BenchType,
			AssessmentYear: l.AssessmentYear,
			DisputedAmount: l.DisputedAmount,
			ArguedBy:       l.ArguedBy,
		}
		if l.AppellantName != nil {
			e.Appellant = *l.AppellantName
		}
		if l.RespondentName != nil {
			e.Respondent = *l.RespondentName
		}
		if l.Remarks != nil {
			e.Remarks = *l.Remarks
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return less(entries[i], entries[j])
	})
	for i := range entries {
		entries[i].SerialNo = i + 1
	}

	return &CauseList{
		Registry:    registryName,
		Date:        date,
		Store:       string(store),
		GeneratedAt: time.Now(),
		Entries:     entries,
	}, nil
}

func less(a, b Entry) bool {
	if a.BenchType != b.BenchType {
		return benchRank(a.BenchType) < benchRank(b.BenchType)
	}

	pa, errA := casenum.Parse(a.CaseNo)
	pb, errB := casenum.Parse(b.CaseNo)
	if errA != nil || errB != nil {
		return a.CaseNo < b.CaseNo
	}
	if pa.CaseType != pb.CaseType {
		return typeRank(pa.CaseType) < typeRank(pb.CaseType)
	}
	if pa.YearOfFiling != pb.YearOfFiling {
		return pa.YearOfFiling < pb.YearOfFiling
	}
	return pa.SerialNumber < pb.SerialNumber
}

func benchRank(b database.BenchType) int {
	switch b {
	case database.BenchDB:
		return 0
	case database.BenchSMC:
		return 1
	}
	return 2
}

func typeRank(t casenum.CaseType) int {
	for i, ct := range casenum.CaseTypes {
		if ct == t {
			return i
		}
	}
	return len(casenum.CaseTypes)
}

// Title is the heading printed on exports.
func (l *CauseList) Title() string {
	if l.Registry == "" {
		return fmt.Sprintf("Cause List for %s", l.Date)
	}
	return fmt.Sprintf("%s: Cause List for %s", l.Registry, l.Date)
}
