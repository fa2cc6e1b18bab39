package migrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/addonhub/addonhub/internal/models"
)

// AbuseReportAppeals reshapes the abuse-report tables for the appeals
// workflow: the report-level state column goes away, reports gain an
// appeal date, cinder jobs gain a link to the job opened for their
// appeal, and the standalone appeal table is dropped.
func AbuseReportAppeals(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error {
	logger.Info().Msg("Reshaping abuse report tables for appeals")

	if db.Migrator().HasColumn("abuse_reports", "state") {
		if err := db.Exec(`ALTER TABLE abuse_reports DROP COLUMN state`).Error; err != nil {
			return err
		}
		logger.Info().Msg("Dropped abuse_reports.state column")
	}

	if !db.Migrator().HasColumn("abuse_reports", "appeal_date") {
		if err := db.Exec(`
			ALTER TABLE abuse_reports
			ADD COLUMN appeal_date TIMESTAMP DEFAULT NULL
		`).Error; err != nil {
			return err
		}
		logger.Info().Msg("Added abuse_reports.appeal_date column")
	}

	if !db.Migrator().HasColumn("cinder_jobs", "appeal_job_id") {
		if err := db.Exec(`
			ALTER TABLE cinder_jobs
			ADD COLUMN appeal_job_id INTEGER DEFAULT NULL REFERENCES cinder_jobs(id)
		`).Error; err != nil {
			return err
		}
		logger.Info().Msg("Added cinder_jobs.appeal_job_id column")
	}

	// Reasons outside the updated value set become unspecified.
	valid := make([]string, 0, len(models.ValidAbuseReasons))
	for reason := range models.ValidAbuseReasons {
		valid = append(valid, fmt.Sprintf("%d", reason))
	}
	if err := db.Exec(fmt.Sprintf(`
		UPDATE abuse_reports
		SET reason = NULL
		WHERE reason IS NOT NULL AND reason NOT IN (%s)
	`, strings.Join(valid, ", "))).Error; err != nil {
		return err
	}

	if db.Migrator().HasTable("cinder_job_appeals") {
		if err := db.Exec(`DROP TABLE cinder_job_appeals`).Error; err != nil {
			return err
		}
		logger.Info().Msg("Dropped cinder_job_appeals table")
	}

	return nil
}
