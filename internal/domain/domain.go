package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleDoctor       Role = "doctor"
	RoleNurse        Role = "nurse"
	RoleReceptionist Role = "receptionist"
	// RoleDisplay is the waiting-room board account. It can only poll the
	// queue projection, never mutate.
	RoleDisplay Role = "display"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleNurse, RoleReceptionist, RoleDisplay:
		return true
	}
	return false
}

// CanSchedule reports whether the role may create or cancel appointments.
func (r Role) CanSchedule() bool {
	return r == RoleAdmin || r == RoleReceptionist
}

// CanCheckIn reports whether the role may admit patients to the queue.
func (r Role) CanCheckIn() bool {
	return r == RoleAdmin || r == RoleReceptionist || r == RoleNurse
}

type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionRead   AuditAction = "read"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	UserRole  Role      `gorm:"column:user_role;type:varchar(30);not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID  string `gorm:"column:request_id;type:varchar(50);index"`
	StatusCode int    `gorm:"column:status_code"`

	Changes string `gorm:"column:changes;type:jsonb"`
}

func (AuditLog) TableName() string {
	return "audit.logs"
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // Always "Bearer"
}

// Claims is the identity the session resolver hands to every operation.
// PractitionerID is set for doctor/nurse accounts and links them to their
// calendar and queue assignments.
type Claims struct {
	UserID         uuid.UUID  `json:"sub"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	PractitionerID *uuid.UUID `json:"practitioner_id,omitempty"`
}
