package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/JustJay7/tribunal-registry/internal/cache"
	"github.com/JustJay7/tribunal-registry/internal/casenum"
	"github.com/JustJay7/tribunal-registry/internal/database"
	"github.com/JustJay7/tribunal-registry/pkg/logger"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	ErrInvalidCaseNo = errors.New("invalid case number format, expected 'TYPE NUMBER/BENCH/YEAR'")
	ErrCaseNotFound  = errors.New("case not found")
	ErrCaseExists    = errors.New("case already exists")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidMonth  = errors.New("invalid month, expected YYYY-MM")
	ErrInvalidInput  = errors.New("invalid input")
)

// Service answers registry queries against the staging and main stores.
type Service struct {
	stores   *database.Stores
	cache    cache.Cache
	logger   *logger.Logger
	validate *validator.Validate
	group    singleflight.Group
	now      func() time.Time

	// generation is bumped by Invalidate. A lookup that started before an
	// invalidation does not cache what it read.
	generation atomic.Uint64
}

func NewService(stores *database.Stores, c cache.Cache, log *logger.Logger) *Service {
	return &Service{
		stores:   stores,
		cache:    c,
		logger:   log,
		validate: newCaseValidator(),
		now:      time.Now,
	}
}

func (s *Service) db(ctx context.Context, store database.StoreName) (*gorm.DB, error) {
	db, err := s.stores.Get(store)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// Invalidate drops cached details for caseNos in store. The import handler
// calls it after a batch commits.
func (s *Service) Invalidate(store database.StoreName, caseNos ...string) {
	s.generation.Add(1)
	s.cache.Invalidate(store, caseNos...)
}

// CaseByNumber returns a case with its hearings ordered by date.
func (s *Service) CaseByNumber(ctx context.Context, store database.StoreName, caseNo string) (*database.Case, error) {
	parts, err := casenum.Parse(strings.TrimSpace(caseNo))
	if err != nil {
		return nil, ErrInvalidCaseNo
	}
	// Stored numbers carry no zero padding.
	caseNo = parts.String()

	key := cache.GenerateCacheKey(store, caseNo)
	if cached, found := s.cache.Get(key); found {
		return cached, nil
	}

	gen := s.generation.Load()
	ch := s.group.DoChan(key, func() (interface{}, error) {
		// The fetch is shared, so it must outlive any single caller.
		db, err := s.db(context.WithoutCancel(ctx), store)
		if err != nil {
			return nil, err
		}

		var c database.Case
		err = db.Preload("Hearings", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("hearing_date ASC")
		}).First(&c, "case_no = ?", caseNo).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCaseNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load case %s: %w", caseNo, err)
		}

		if s.generation.Load() != gen {
			return &c, nil
		}
		if err := s.cache.Set(key, &c); err != nil {
			s.logger.Warn("Failed to cache case", "case_no", caseNo, "error", err)
		}
		if s.generation.Load() != gen {
			s.cache.Delete(key)
		}
		return &c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("Collapsed concurrent case lookup", "case_no", caseNo)
		}
		return res.Val.(*database.Case), nil
	}
}

// HearingListing is a case row flattened with one of its hearings.
type HearingListing struct {
	database.Case
	HearingDate string  `json:"hearing_date"`
	Remarks     *string `json:"remarks"`
}

// CasesByHearingDate lists the cases heard on date, ordered by bench type,
// case type and serial number.
func (s *Service) CasesByHearingDate(ctx context.Context, store database.StoreName, date string) ([]HearingListing, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidDate
	}

	db, err := s.db(ctx, store)
	if err != nil {
		return nil, err
	}

	return listingsBetween(db, date, date)
}

// listingsBetween returns one listing per hearing whose date is in [from, to].
func listingsBetween(db *gorm.DB, from, to string) ([]HearingListing, error) {
	var hearings []database.Hearing
	if err := db.Where("hearing_date BETWEEN ? AND ?", from, to).
		Order("hearing_date ASC").
		Find(&hearings).Error; err != nil {
		return nil, fmt.Errorf("failed to load hearings: %w", err)
	}

	listings := []HearingListing{}
	if len(hearings) == 0 {
		return listings, nil
	}

	caseNos := make([]string, 0, len(hearings))
	seen := make(map[string]bool, len(hearings))
	for _, h := range hearings {
		if !seen[h.CaseNo] {
			seen[h.CaseNo] = true
			caseNos = append(caseNos, h.CaseNo)
		}
	}

	var cases []database.Case
	if err := db.Where("case_no IN ?", caseNos).
		Order("bench_type ASC, case_type ASC, s_no ASC").
		Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("failed to load cases: %w", err)
	}

	byCase := make(map[string][]database.Hearing, len(caseNos))
	for _, h := range hearings {
		byCase[h.CaseNo] = append(byCase[h.CaseNo], h)
	}

	for _, c := range cases {
		for _, h := range byCase[c.CaseNo] {
			listings = append(listings, HearingListing{
				Case:        c,
				HearingDate: h.HearingDate,
				Remarks:     h.Remarks,
			})
		}
	}

	return listings, nil
}
