package repository

import (
	"database/sql"
	"fmt"

	"readquest/internal/database"
	"readquest/internal/models"
)

// OperatorRepository handles database operations for operator accounts
type OperatorRepository struct {
	db *database.DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *database.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// CreateOperator creates a new operator account
func (r *OperatorRepository) CreateOperator(email, passwordHash, name string) (*models.Operator, error) {
	query := "INSERT INTO operators (email, password_hash, name) VALUES (?, ?, ?)"
	id, err := r.db.ExecReturningID(query, email, passwordHash, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}
	return r.GetOperatorByID(id)
}

// GetOperatorByID retrieves an operator by ID, or nil when not found
func (r *OperatorRepository) GetOperatorByID(operatorID int64) (*models.Operator, error) {
	query := "SELECT id, email, password_hash, name, created_at FROM operators WHERE id = ?"
	op := &models.Operator{}
	err := r.db.QueryRow(query, operatorID).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.Name, &op.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return op, nil
}

// GetOperatorByEmail retrieves an operator by email, or nil when not found
func (r *OperatorRepository) GetOperatorByEmail(email string) (*models.Operator, error) {
	query := "SELECT id, email, password_hash, name, created_at FROM operators WHERE email = ?"
	op := &models.Operator{}
	err := r.db.QueryRow(query, email).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.Name, &op.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return op, nil
}

// CountOperators returns the number of operator accounts
func (r *OperatorRepository) CountOperators() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM operators").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count operators: %w", err)
	}
	return count, nil
}
