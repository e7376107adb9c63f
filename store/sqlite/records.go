package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/toil-engine/factory"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
	"github.com/warp/toil-engine/timesheet"
	"github.com/warp/toil-engine/toil"
)

// =============================================================================
// SCHEDULES (schedule.Repository interface)
// =============================================================================

// SaveSchedule upserts a schedule. The definition is kept as factory JSON.
func (s *Store) SaveSchedule(ctx context.Context, ws *schedule.WorkSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := factory.NewScheduleFactory().Marshal(ws)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}

	kind := ws.Owner.Kind
	if kind == "" {
		kind = schedule.OwnerOrganization
	}
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO schedules (id, name, owner_kind, owner_id, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			owner_kind = excluded.owner_kind,
			owner_id = excluded.owner_id,
			config_json = excluded.config_json,
			version = schedules.version + 1,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		ws.ID, ws.Name, kind, ws.Owner.ID, configJSON, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

// GetSchedule retrieves a schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, id schedule.ScheduleID) (*schedule.WorkSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT config_json, created_at, updated_at FROM schedules WHERE id = ?", id)

	ws, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrScheduleNotFound, id)
	}
	return ws, err
}

// ListSchedules returns every stored schedule ordered by ID.
func (s *Store) ListSchedules(ctx context.Context) ([]*schedule.WorkSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT config_json, created_at, updated_at FROM schedules ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*schedule.WorkSchedule
	for rows.Next() {
		ws, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, ws)
	}
	return schedules, rows.Err()
}

// OrganizationDefault returns the most recently updated organization schedule.
func (s *Store) OrganizationDefault(ctx context.Context) (*schedule.WorkSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT config_json, created_at, updated_at FROM schedules
		WHERE owner_kind = ?
		ORDER BY updated_at DESC, rowid DESC
		LIMIT 1
	`, schedule.OwnerOrganization)

	ws, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return ws, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*schedule.WorkSchedule, error) {
	var configJSON, createdAt, updatedAt string
	if err := row.Scan(&configJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	ws, err := factory.NewScheduleFactory().ParseSchedule(configJSON)
	if err != nil {
		return nil, fmt.Errorf("stored schedule is invalid: %w", err)
	}
	ws.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ws.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return ws, nil
}

// =============================================================================
// TIME ENTRIES (timesheet.Repository interface)
// =============================================================================

// SaveEntry upserts a time entry.
func (s *Store) SaveEntry(ctx context.Context, e timesheet.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO time_entries
		(id, user_id, date, hours, description, category, is_overtime, is_toil_eligible, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			hours = excluded.hours,
			description = excluded.description,
			category = excluded.category,
			is_overtime = excluded.is_overtime,
			is_toil_eligible = excluded.is_toil_eligible
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.UserID,
		e.Date.String(),
		e.Hours.String(),
		nullString(e.Description),
		nullString(e.Category),
		e.IsOvertime,
		e.IsToilEligible,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save time entry: %w", err)
	}
	return nil
}

// DeleteEntry removes an entry owned by userID and returns what was removed.
func (s *Store) DeleteEntry(ctx context.Context, userID generic.UserID, id timesheet.EntryID) (timesheet.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, entrySelect+" WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return timesheet.TimeEntry{}, fmt.Errorf("failed to load time entry: %w", err)
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return timesheet.TimeEntry{}, err
	}
	if len(entries) == 0 {
		return timesheet.TimeEntry{}, fmt.Errorf("%w: %s", generic.ErrEntryNotFound, id)
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM time_entries WHERE id = ? AND user_id = ?", id, userID); err != nil {
		return timesheet.TimeEntry{}, fmt.Errorf("failed to delete time entry: %w", err)
	}
	return entries[0], nil
}

// EntriesForDay returns a user's entries for one calendar day.
func (s *Store) EntriesForDay(ctx context.Context, userID generic.UserID, date generic.TimePoint) ([]timesheet.TimeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		entrySelect+" WHERE user_id = ? AND date = ? ORDER BY created_at, id",
		userID, date.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	return scanEntries(rows)
}

const entrySelect = `
	SELECT id, user_id, date, hours, description, category,
	       is_overtime, is_toil_eligible, created_at
	FROM time_entries`

func scanEntries(rows *sql.Rows) ([]timesheet.TimeEntry, error) {
	defer rows.Close()

	var entries []timesheet.TimeEntry
	for rows.Next() {
		var (
			e           timesheet.TimeEntry
			date        string
			hours       string
			description sql.NullString
			category    sql.NullString
			createdAt   string
		)
		err := rows.Scan(&e.ID, &e.UserID, &date, &hours, &description, &category,
			&e.IsOvertime, &e.IsToilEligible, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}

		e.Date, _ = generic.ParseDate(date)
		e.Hours = generic.MustParseDecimal(hours)
		e.Description = description.String
		e.Category = category.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// DAY STATUS
// =============================================================================

// DayStatus returns the recorded flags, or a zero-flag status.
func (s *Store) DayStatus(ctx context.Context, userID generic.UserID, date generic.TimePoint) (timesheet.DayStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := timesheet.DayStatus{UserID: userID, Date: date}
	var updatedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT leave_active, toil_active, updated_at FROM day_status
		WHERE user_id = ? AND date = ?
	`, userID, date.String()).Scan(&status.LeaveActive, &status.ToilActive, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("failed to load day status: %w", err)
	}
	status.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return status, nil
}

func (s *Store) SaveDayStatus(ctx context.Context, status timesheet.DayStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO day_status (user_id, date, leave_active, toil_active, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			leave_active = excluded.leave_active,
			toil_active = excluded.toil_active,
			updated_at = excluded.updated_at
	`, status.UserID, status.Date.String(), status.LeaveActive, status.ToilActive,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save day status: %w", err)
	}
	return nil
}

// =============================================================================
// PROFILES (toil.ProfileRepository interface)
// =============================================================================

func (s *Store) SaveProfile(ctx context.Context, p toil.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, category, fte, schedule_id, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			category = excluded.category,
			fte = excluded.fte,
			schedule_id = excluded.schedule_id,
			updated_at = excluded.updated_at
	`, p.UserID, p.Category, p.FTE.String(), nullString(string(p.ScheduleID)),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Profile returns generic.ErrProfileNotFound for unknown users.
func (s *Store) Profile(ctx context.Context, userID generic.UserID) (toil.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p          = toil.Profile{UserID: userID}
		fte        string
		scheduleID sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT category, fte, schedule_id FROM profiles WHERE user_id = ?", userID,
	).Scan(&p.Category, &fte, &scheduleID)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("%w: %s", generic.ErrProfileNotFound, userID)
	}
	if err != nil {
		return p, fmt.Errorf("failed to load profile: %w", err)
	}

	p.FTE = generic.MustParseDecimal(fte)
	p.ScheduleID = schedule.ScheduleID(scheduleID.String)
	return p, nil
}
