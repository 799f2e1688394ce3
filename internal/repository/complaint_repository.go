package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const complaintColumns = `id, contract_id, user_id, description, status, created_at`

// ComplaintRepository persists contract complaints.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a complaint.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO complaints (contract_id, user_id, description, status, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.GetContext(ctx, &complaint.ID, query,
		complaint.ContractID, complaint.UserID, complaint.Description, complaint.Status, complaint.CreatedAt); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// FindByID loads a complaint.
func (r *ComplaintRepository) FindByID(ctx context.Context, id int64) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// FindByIDForUpdateTx loads and row-locks a complaint.
func (r *ComplaintRepository) FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := tx.GetContext(ctx, &complaint, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// List returns complaints, optionally restricted to one status.
func (r *ComplaintRepository) List(ctx context.Context, status models.ComplaintStatus) ([]models.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, nil
}

// UpdateStatusTx changes the review state of a complaint.
func (r *ComplaintRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.ComplaintStatus) error {
	if _, err := tx.ExecContext(ctx, `UPDATE complaints SET status = $1 WHERE id = $2`, status, id); err != nil {
		return fmt.Errorf("update complaint %d status: %w", id, err)
	}
	return nil
}
