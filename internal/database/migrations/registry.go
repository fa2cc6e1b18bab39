package migrations

import (
	"github.com/addonhub/addonhub/internal/database"
)

// GetMigrations returns all registered migrations
func GetMigrations() []database.Migration {
	return []database.Migration{
		{
			Version: "20240109_021",
			Name:    "abuse_report_appeals",
			Run:     AbuseReportAppeals,
		},
	}
}
