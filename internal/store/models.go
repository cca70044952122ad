package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a resolve run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// StringSlice persists a []string as a JSON array column, mirroring the
// platform's jsonb Value/Scan pattern for struct-valued columns.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringSlice", value)
	}
}

// ResolveRunRecord is the durable record of one resolver.Resolve invocation
// (C6), keyed by the run id also carried in the lockfile (C9) and in every
// log line emitted during the run.
type ResolveRunRecord struct {
	ID              uuid.UUID   `json:"id" gorm:"type:uuid;primary_key"`
	RequestedIDs    StringSlice `json:"requested_ids" gorm:"type:jsonb;not null"`
	Status          RunStatus   `json:"status" gorm:"not null;index"`
	PlanPackageIDs  StringSlice `json:"plan_package_ids" gorm:"type:jsonb"`
	ErrorCode       string      `json:"error_code,omitempty"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	DurationMillis  int64       `json:"duration_millis"`
	CreatedAt       time.Time   `json:"created_at" gorm:"autoCreateTime;index"`
}

func (ResolveRunRecord) TableName() string { return "resolve_run_records" }

func (r *ResolveRunRecord) Validate() error {
	if len(r.RequestedIDs) == 0 {
		return errors.New("requested_ids is required")
	}
	if !r.Status.Valid() {
		return errors.New("status must be one of: running, succeeded, failed, cancelled")
	}
	return nil
}

// RepositorySyncRecord tracks the last successful/attempted sync of one
// repository (C2), so a scheduler can decide which repositories are stale.
type RepositorySyncRecord struct {
	RepoID       string     `json:"repo_id" gorm:"primary_key"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	LastError    string     `json:"last_error,omitempty"`
	PackageCount int        `json:"package_count"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (RepositorySyncRecord) TableName() string { return "repository_sync_records" }
