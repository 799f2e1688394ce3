package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const contractColumns = `id, tutor_id, student_id, course_id, terms, fee, start_date, end_date, status, created_at`

// ContractRepository persists contracts.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository constructs the repository.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// FindByID loads a contract.
func (r *ContractRepository) FindByID(ctx context.Context, id int64) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.GetContext(ctx, &contract, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &contract, nil
}

// FindByIDForUpdateTx loads and row-locks a contract.
func (r *ContractRepository) FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Contract, error) {
	var contract models.Contract
	if err := tx.GetContext(ctx, &contract, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &contract, nil
}

// FindDocument loads a contract with the party names used in exports.
func (r *ContractRepository) FindDocument(ctx context.Context, id int64) (*models.ContractDocument, error) {
	const query = `SELECT ct.id, ct.tutor_id, ct.student_id, ct.course_id, ct.terms, ct.fee, ct.start_date, ct.end_date, ct.status, ct.created_at,
c.name AS course_name, tu.full_name AS tutor_name, su.full_name AS student_name
FROM contracts ct
JOIN courses c ON c.id = ct.course_id
JOIN tutors t ON t.id = ct.tutor_id
JOIN users tu ON tu.id = t.user_id
JOIN students s ON s.id = ct.student_id
JOIN users su ON su.id = s.user_id
WHERE ct.id = $1`
	var doc models.ContractDocument
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListByStudent returns a student's contracts, newest first.
func (r *ContractRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Contract, error) {
	var contracts []models.Contract
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE student_id = $1 ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &contracts, query, studentID); err != nil {
		return nil, fmt.Errorf("list student contracts: %w", err)
	}
	return contracts, nil
}

// ListByTutor returns a tutor's contracts, newest first.
func (r *ContractRepository) ListByTutor(ctx context.Context, tutorID int64) ([]models.Contract, error) {
	var contracts []models.Contract
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE tutor_id = $1 ORDER BY created_at DESC, id DESC`
	if err := r.db.SelectContext(ctx, &contracts, query, tutorID); err != nil {
		return nil, fmt.Errorf("list tutor contracts: %w", err)
	}
	return contracts, nil
}

// CreateTx inserts a contract inside the enrollment transaction.
func (r *ContractRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, contract *models.Contract) error {
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO contracts (tutor_id, student_id, course_id, terms, fee, start_date, end_date, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	if err := tx.GetContext(ctx, &contract.ID, query,
		contract.TutorID, contract.StudentID, contract.CourseID, contract.Terms, contract.Fee,
		contract.StartDate, contract.EndDate, contract.Status, contract.CreatedAt); err != nil {
		return fmt.Errorf("create contract: %w", err)
	}
	return nil
}

// UpdateStatus changes the status of one contract.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id int64, status models.ContractStatus) error {
	return r.updateStatus(ctx, r.db, id, status)
}

// UpdateStatusTx changes the status of one contract inside a transaction.
func (r *ContractRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.ContractStatus) error {
	return r.updateStatus(ctx, tx, id, status)
}

func (r *ContractRepository) updateStatus(ctx context.Context, exec sqlx.ExecerContext, id int64, status models.ContractStatus) error {
	if _, err := exec.ExecContext(ctx, `UPDATE contracts SET status = $1 WHERE id = $2`, status, id); err != nil {
		return fmt.Errorf("update contract %d status: %w", id, err)
	}
	return nil
}

// CompleteExpiredTx completes the active contracts of a course whose end date
// is before today.
func (r *ContractRepository) CompleteExpiredTx(ctx context.Context, tx *sqlx.Tx, courseID int64, today time.Time) (int64, error) {
	const query = `UPDATE contracts SET status = $1 WHERE course_id = $2 AND status = $3 AND end_date < $4`
	res, err := tx.ExecContext(ctx, query, models.ContractStatusCompleted, courseID, models.ContractStatusActive, today)
	if err != nil {
		return 0, fmt.Errorf("complete expired contracts for course %d: %w", courseID, err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
