package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// AbuseReport is a user-filed report against an addon or a bare guid.
type AbuseReport struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	ReporterName  string `json:"reporter_name,omitempty"`
	ReporterEmail string `gorm:"index" json:"reporter_email,omitempty"`
	AddonID       *uint  `gorm:"index" json:"addon_id,omitempty"`
	GUID          string `gorm:"index" json:"guid,omitempty"`
	Message       string `gorm:"type:text" json:"message"`

	// Reason is a small-int enum; nil means unspecified. See
	// ValidAbuseReasons for the accepted values.
	Reason *int `json:"reason,omitempty"`

	// AppealDate is set when the reporter appeals the decision.
	AppealDate *time.Time `json:"appeal_date,omitempty"`

	CinderJobID *uint     `gorm:"index" json:"cinder_job_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Abuse report reasons. The numbering is part of the external reporting
// API and has gaps where reasons were retired.
const (
	ReasonDamages            = 1
	ReasonSpam               = 2
	ReasonSettingsHijack     = 3
	ReasonBroken             = 5
	ReasonHateful            = 6
	ReasonDeceptive          = 7
	ReasonUnwanted           = 9
	ReasonDSAInappropriate   = 11
	ReasonDSAIllegal         = 12
	ReasonDSAPolicyViolation = 13
	ReasonDSAOther           = 14
	ReasonFeedbackBroken     = 20
	ReasonFeedbackSpam       = 21
	ReasonOther              = 127
)

// ValidAbuseReasons is the accepted value set for AbuseReport.Reason.
var ValidAbuseReasons = map[int]string{
	ReasonDamages:            "Damages computer and/or data",
	ReasonSpam:               "Creates spam or advertising",
	ReasonSettingsHijack:     "Changes search / homepage / new tab page without informing user",
	ReasonBroken:             "Doesn't work, breaks websites, or slows the browser down",
	ReasonHateful:            "Hateful, violent, or illegal content",
	ReasonDeceptive:          "Pretends to be something it's not",
	ReasonUnwanted:           "Wasn't wanted / impossible to get rid of",
	ReasonDSAInappropriate:   "DSA: It contains hateful, violent, deceptive, or other inappropriate content",
	ReasonDSAIllegal:         "DSA: It violates the law or contains content that violates the law",
	ReasonDSAPolicyViolation: "DSA: It violates the marketplace's add-on policies",
	ReasonDSAOther:           "DSA: Something else",
	ReasonFeedbackBroken:     "Feedback: It does not work, breaks websites, or slows the browser down",
	ReasonFeedbackSpam:       "Feedback: It's spam",
	ReasonOther:              "Other",
}

// TableName ensures consistent table naming
func (AbuseReport) TableName() string {
	return "abuse_reports"
}

// Validate checks the reason against the accepted value set.
func (r *AbuseReport) Validate() error {
	if r.Reason == nil {
		return nil
	}
	if _, ok := ValidAbuseReasons[*r.Reason]; !ok {
		return errors.New("invalid abuse report reason")
	}
	return nil
}

// BeforeCreate runs validation before saving a new report
func (r *AbuseReport) BeforeCreate(tx *gorm.DB) error {
	return r.Validate()
}

// BeforeUpdate runs validation before updating an existing report
func (r *AbuseReport) BeforeUpdate(tx *gorm.DB) error {
	return r.Validate()
}

// CinderJob tracks a report's job in the external moderation service.
// AppealJobID links a job to the job opened for its appeal.
type CinderJob struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	JobID       string     `gorm:"uniqueIndex;not null" json:"job_id"`
	AppealJobID *uint      `gorm:"index" json:"appeal_job_id,omitempty"`
	AppealJob   *CinderJob `gorm:"foreignKey:AppealJobID" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName ensures consistent table naming
func (CinderJob) TableName() string {
	return "cinder_jobs"
}
