package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-weekly-report/internal/models"
)

// StudentRepository provides read access to the student directory.
type StudentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Student, error)
	ListByPhone(ctx context.Context, phone string) ([]models.Student, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) GetByID(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}

	return student, nil
}

// ListByPhone matches the stored phone number exactly. Formats are not
// normalised, so "+91 9000961240" and "9000961240" are different households.
func (r *studentRepository) ListByPhone(ctx context.Context, phone string) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).
		Where("phone_number = ?", phone).
		Order("id ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}

	return students, nil
}
