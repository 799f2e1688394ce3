package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// TutorRepository reads tutor profiles.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs the repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// FindByID loads a tutor profile.
func (r *TutorRepository) FindByID(ctx context.Context, id int64) (*models.Tutor, error) {
	const query = `SELECT t.id, t.user_id, u.full_name, t.subjects FROM tutors t JOIN users u ON u.id = t.user_id WHERE t.id = $1`
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}
