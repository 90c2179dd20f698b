package repository

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-weekly-report/internal/models"
)

// DefaultSubmissionLimit is the number of recent submissions pulled per student.
const DefaultSubmissionLimit = 5

// HomeworkSubmissionRepository defines read operations over the submission log.
type HomeworkSubmissionRepository interface {
	ListRecentForStudent(ctx context.Context, student models.Student, limit int) ([]models.HomeworkSubmission, error)
}

type homeworkSubmissionRepository struct {
	db *gorm.DB
}

// NewHomeworkSubmissionRepository instantiates the repository.
func NewHomeworkSubmissionRepository(db *gorm.DB) HomeworkSubmissionRepository {
	return &homeworkSubmissionRepository{db: db}
}

// ListRecentForStudent returns up to limit submissions linked to the student by
// either linkage key, newest id first. Timestamps are missing on older rows, so
// the surrogate id is the recency order.
func (r *homeworkSubmissionRepository) ListRecentForStudent(ctx context.Context, student models.Student, limit int) ([]models.HomeworkSubmission, error) {
	if limit <= 0 {
		limit = DefaultSubmissionLimit
	}

	query := r.db.WithContext(ctx).Model(&models.HomeworkSubmission{})
	if student.Username != "" {
		query = query.Where("student_name_id = ? OR student_id = ?", student.ID, student.Username)
	} else {
		query = query.Where("student_name_id = ?", student.ID)
	}

	var rows []models.HomeworkSubmission
	if err := query.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	return DedupeAndOrder(rows, student, limit), nil
}

// DedupeAndOrder keeps rows that match the student, drops repeated primary keys
// and orders the result strictly by descending id, capped at limit.
func DedupeAndOrder(rows []models.HomeworkSubmission, student models.Student, limit int) []models.HomeworkSubmission {
	seen := make(map[uint]struct{}, len(rows))
	result := make([]models.HomeworkSubmission, 0, len(rows))
	for _, row := range rows {
		if !row.Linkage().MatchesStudent(student) {
			continue
		}
		if _, ok := seen[row.ID]; ok {
			continue
		}
		seen[row.ID] = struct{}{}
		result = append(result, row)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result
}
