package schema

import (
	"time"

	"github.com/google/uuid"
)

// ThreatIntelItem is a record from the threat-intelligence channel.
type ThreatIntelItem struct {
	ID         uuid.UUID `json:"id" validate:"required"`
	Indicator  string    `json:"indicator" validate:"required,max=512"`
	Kind       string    `json:"kind" validate:"required,oneof=address domain hash actor technique"`
	Techniques []string  `json:"techniques,omitempty"`
	Source     string    `json:"source,omitempty" validate:"max=256"`
	Confidence float64   `json:"confidence" validate:"min=0,max=1"`
	AddedAt    time.Time `json:"added_at" validate:"required"`
}

// AttackPattern is a record from the attack-patterns channel.
type AttackPattern struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	Name        string    `json:"name" validate:"required,max=256"`
	TechniqueID string    `json:"technique_id,omitempty" validate:"max=32"`
	Phase       string    `json:"phase,omitempty" validate:"max=64"`
	Description string    `json:"description,omitempty" validate:"max=4096"`
	DetectedAt  time.Time `json:"detected_at"`
}

// IOCUpdate is a record from the ioc-updates channel.
type IOCUpdate struct {
	ID        uuid.UUID `json:"id" validate:"required"`
	Kind      string    `json:"kind" validate:"required,oneof=address domain hash url"`
	Value     string    `json:"value" validate:"required,max=2048"`
	Op        string    `json:"op" validate:"required,oneof=add remove"`
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
}

// CaseUpdate is a record from the case-updates channel.
type CaseUpdate struct {
	CaseID    string    `json:"case_id" validate:"required,max=128"`
	Status    string    `json:"status" validate:"required,max=64"`
	Assignee  string    `json:"assignee,omitempty" validate:"max=256"`
	UpdatedBy string    `json:"updated_by,omitempty" validate:"max=256"`
	UpdatedAt time.Time `json:"updated_at" validate:"required"`
	Summary   string    `json:"summary,omitempty" validate:"max=4096"`
}

// PlaybookStepStatus enumerates the states of a playbook step.
type PlaybookStepStatus string

const (
	StepPending          PlaybookStepStatus = "pending"
	StepRunning          PlaybookStepStatus = "running"
	StepAwaitingApproval PlaybookStepStatus = "awaiting-approval"
	StepCompleted        PlaybookStepStatus = "completed"
	StepFailed           PlaybookStepStatus = "failed"
)

// PlaybookExecution is a record from the playbook-executions channel.
type PlaybookExecution struct {
	ExecutionID uuid.UUID          `json:"execution_id" validate:"required"`
	PlaybookID  string             `json:"playbook_id" validate:"required,max=128"`
	CaseID      string             `json:"case_id,omitempty" validate:"max=128"`
	StepID      string             `json:"step_id,omitempty" validate:"max=128"`
	StepStatus  PlaybookStepStatus `json:"step_status" validate:"required,oneof=pending running awaiting-approval completed failed"`
	Approvers   []string           `json:"approvers,omitempty"`
	Assignee    string             `json:"assignee,omitempty" validate:"max=256"`
	UpdatedAt   time.Time          `json:"updated_at" validate:"required"`
}
