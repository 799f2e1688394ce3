package models

import "time"

// ComplaintStatus enumerates review states.
type ComplaintStatus string

const (
	ComplaintStatusPending  ComplaintStatus = "pending"
	ComplaintStatusApproved ComplaintStatus = "approved"
	ComplaintStatusRejected ComplaintStatus = "rejected"
)

// Complaint is raised by a participant against a contract.
type Complaint struct {
	ID          int64           `db:"id" json:"id"`
	ContractID  int64           `db:"contract_id" json:"contract_id"`
	UserID      int64           `db:"user_id" json:"user_id"`
	Description string          `db:"description" json:"description"`
	Status      ComplaintStatus `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
