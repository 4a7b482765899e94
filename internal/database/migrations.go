package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations executes all database migrations
func RunMigrations(db *gorm.DB) error {
	// Create indexes for better performance
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// createIndexes creates database indexes
func createIndexes(db *gorm.DB) error {
	statements := []string{
		// Listing and filtering by composing fields
		`CREATE INDEX IF NOT EXISTS idx_case_table_search
		ON case_table(case_type, year_of_filing, s_no)`,

		// Dashboard pending counts
		`CREATE INDEX IF NOT EXISTS idx_case_table_status
		ON case_table(case_status, argued_by)`,

		// Cause list lookups
		`CREATE INDEX IF NOT EXISTS idx_hearings_date
		ON hearings(hearing_date)`,

		`CREATE INDEX IF NOT EXISTS idx_import_logs_started
		ON import_logs(started_at)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
