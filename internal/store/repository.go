package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordRunStart inserts a new ResolveRunRecord in the "running" state and
// returns it, so the caller can fill in its outcome via RecordRunOutcome
// once resolver.Resolve returns.
func (s *Store) RecordRunStart(ctx context.Context, runID uuid.UUID, requestedIDs []string) (*ResolveRunRecord, error) {
	rec := &ResolveRunRecord{
		ID:           runID,
		RequestedIDs: requestedIDs,
		Status:       RunStatusRunning,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	return rec, nil
}

// RecordRunOutcome updates a previously started run with its terminal
// status and plan/error details.
func (s *Store) RecordRunOutcome(ctx context.Context, runID uuid.UUID, status RunStatus, planPackageIDs []string, errCode, errMessage string, duration time.Duration) error {
	updates := map[string]interface{}{
		"status":           status,
		"plan_package_ids": StringSlice(planPackageIDs),
		"error_code":       errCode,
		"error_message":    errMessage,
		"duration_millis":  duration.Milliseconds(),
	}
	return s.DB.WithContext(ctx).Model(&ResolveRunRecord{}).Where("id = ?", runID).Updates(updates).Error
}

// GetRun fetches one resolve-run record by id.
func (s *Store) GetRun(ctx context.Context, runID uuid.UUID) (*ResolveRunRecord, error) {
	var rec ResolveRunRecord
	if err := s.DB.WithContext(ctx).First(&rec, "id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecentRuns lists the most recently created resolve runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]ResolveRunRecord, error) {
	var recs []ResolveRunRecord
	if err := s.DB.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// UpsertRepositorySync records the outcome of a repository sync (C2),
// overwriting any prior record for the same repo id.
func (s *Store) UpsertRepositorySync(ctx context.Context, repoID string, packageCount int, syncErr error) error {
	now := time.Now().UTC()
	rec := &RepositorySyncRecord{
		RepoID:       repoID,
		LastSyncedAt: &now,
		PackageCount: packageCount,
	}
	if syncErr != nil {
		rec.LastError = syncErr.Error()
	}
	return s.DB.WithContext(ctx).Save(rec).Error
}

// GetRepositorySync fetches the last recorded sync outcome for repoID.
func (s *Store) GetRepositorySync(ctx context.Context, repoID string) (*RepositorySyncRecord, error) {
	var rec RepositorySyncRecord
	if err := s.DB.WithContext(ctx).First(&rec, "repo_id = ?", repoID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}
