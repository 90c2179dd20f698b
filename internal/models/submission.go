package models

import (
	"time"

	"gorm.io/datatypes"
)

// HomeworkSubmission is one homework attempt as recorded by the grading pipeline.
// Upstream writers were inconsistent about which student key they filled, and the
// analysis payload may live in any one of three places.
type HomeworkSubmission struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	StudentUsername   *string        `gorm:"column:student_id;size:150;index" json:"student_id"`
	StudentNameID     *uint          `gorm:"column:student_name_id;index" json:"student_name_id"`
	HomeworkID        *string        `gorm:"column:homework_id;size:64" json:"homework_id"`
	SubmissionDate    *time.Time     `json:"submission_date"`
	AgentAnalysisData datatypes.JSON `json:"agent_analysis_data"`
	ResultJSON        datatypes.JSON `gorm:"column:result_json" json:"result_json"`
	Score             *float64       `json:"score"`
	Percentage        *float64       `json:"percentage"`
	Grade             *string        `gorm:"size:16" json:"grade"`
}

// TableName maps the model to the submission log table.
func (HomeworkSubmission) TableName() string {
	return "myapp_homeworksubmission"
}

// SubmissionLinkage is the pair of keys that may tie a submission to a student.
// Either side may be absent.
type SubmissionLinkage struct {
	NumericID   *uint
	UsernameKey *string
}

// Linkage returns the linkage keys carried by the submission.
func (s HomeworkSubmission) Linkage() SubmissionLinkage {
	return SubmissionLinkage{NumericID: s.StudentNameID, UsernameKey: s.StudentUsername}
}

// MatchesStudent reports whether the linkage points at the student through
// either key: the numeric foreign key or the historical username string.
func (l SubmissionLinkage) MatchesStudent(student Student) bool {
	if l.NumericID != nil && *l.NumericID == student.ID {
		return true
	}
	if l.UsernameKey != nil && student.Username != "" && *l.UsernameKey == student.Username {
		return true
	}
	return false
}
