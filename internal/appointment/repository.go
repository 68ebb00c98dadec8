package appointment

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/carelink/care-coordination/pkg/database"
	"github.com/carelink/care-coordination/pkg/interfaces"
	"github.com/carelink/care-coordination/pkg/logger"
	"github.com/carelink/care-coordination/pkg/types"
)

// Repository implements the AppointmentRepository interface over Postgres
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new appointment repository
func NewRepository(db *database.DB, log *logger.Logger) interfaces.AppointmentRepository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

const appointmentColumns = `
	id, patient_account_id, provider_account_id, COALESCE(affiliation_id, ''),
	scheduled_at, status, COALESCE(notes, ''), COALESCE(cancelled_by, ''),
	COALESCE(cancel_reason, ''), short_notice, COALESCE(rescheduled_from_id, ''),
	COALESCE(rescheduled_to_id, ''), created_at, missed_at, rescheduled_at, updated_at`

// Create persists a new appointment
func (r *Repository) Create(apt *types.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_account_id, provider_account_id, affiliation_id,
			scheduled_at, status, notes, short_notice, rescheduled_from_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(query,
		apt.ID,
		apt.PatientAccountID,
		apt.ProviderAccountID,
		nullable(apt.AffiliationID),
		apt.ScheduledAt,
		string(apt.Status),
		nullable(apt.Notes),
		apt.ShortNotice,
		nullable(apt.RescheduledFromID),
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to create appointment %s", apt.ID)
		return types.NewUnavailableError(types.ErrCodeUnavailable, "failed to create appointment", err)
	}

	return nil
}

// GetByID retrieves an appointment by ID
func (r *Repository) GetByID(id string) (*types.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	apt, err := scanAppointment(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("appointment not found: %s", id))
		}
		r.logger.WithError(err).Errorf("Failed to get appointment %s", id)
		return nil, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to get appointment", err)
	}

	return apt, nil
}

// TransitionStatus applies a guarded status update. The WHERE clause carries
// the expected prior status, so a racing transition makes exactly one of the
// writers match; the loser gets false back and re-reads.
func (r *Repository) TransitionStatus(id string, update *interfaces.StatusUpdate) (bool, error) {
	set := []string{"status = $1", "updated_at = CURRENT_TIMESTAMP"}
	args := []interface{}{string(update.To)}

	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.CancelledBy != "" {
		add("cancelled_by", string(update.CancelledBy))
	}
	if update.CancelReason != "" {
		add("cancel_reason", update.CancelReason)
	}
	if update.ShortNotice {
		add("short_notice", true)
	}
	if update.MissedAt != nil {
		add("missed_at", *update.MissedAt)
	}
	if update.RescheduledAt != nil {
		add("rescheduled_at", *update.RescheduledAt)
	}
	if update.RescheduledToID != "" {
		add("rescheduled_to_id", update.RescheduledToID)
	}

	args = append(args, id)
	idArg := len(args)
	args = append(args, string(update.From))

	query := fmt.Sprintf(
		"UPDATE appointments SET %s WHERE id = $%d AND status = $%d",
		strings.Join(set, ", "), idArg, idArg+1,
	)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		r.logger.WithError(err).Errorf("Failed to transition appointment %s to %s", id, update.To)
		return false, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to transition appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListByPatient retrieves the appointments an account booked as a patient,
// newest slot first
func (r *Repository) ListByPatient(accountID string) ([]*types.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_account_id = $1
		ORDER BY scheduled_at DESC`

	return r.list(query, accountID)
}

// ListByProvider retrieves appointments addressed to any of the given
// provider identities. The slice covers the account id plus every owned
// profile id.
func (r *Repository) ListByProvider(providerAccountIDs []string) ([]*types.Appointment, error) {
	if len(providerAccountIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE provider_account_id = ANY($1)
		ORDER BY scheduled_at DESC`

	return r.list(query, pq.Array(providerAccountIDs))
}

// ListBetween retrieves every appointment linking two accounts, in either
// patient/provider direction
func (r *Repository) ListBetween(accountA, accountB string) ([]*types.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE (patient_account_id = $1 AND provider_account_id = $2)
		   OR (patient_account_id = $2 AND provider_account_id = $1)
		ORDER BY scheduled_at DESC`

	return r.list(query, accountA, accountB)
}

// ListOverdue retrieves approved appointments whose slot has passed. The
// sweep turns these into missed through the same guarded transition as the
// manual path.
func (r *Repository) ListOverdue(now time.Time) ([]*types.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = $1 AND scheduled_at < $2
		ORDER BY scheduled_at ASC`

	return r.list(query, string(types.StatusApproved), now)
}

func (r *Repository) list(query string, args ...interface{}) ([]*types.Appointment, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.WithError(err).Error("Failed to list appointments")
		return nil, types.NewUnavailableError(types.ErrCodeUnavailable, "failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*types.Appointment
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, apt)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointments: %w", err)
	}

	return appointments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*types.Appointment, error) {
	apt := &types.Appointment{}
	err := row.Scan(
		&apt.ID,
		&apt.PatientAccountID,
		&apt.ProviderAccountID,
		&apt.AffiliationID,
		&apt.ScheduledAt,
		&apt.Status,
		&apt.Notes,
		&apt.CancelledBy,
		&apt.CancelReason,
		&apt.ShortNotice,
		&apt.RescheduledFromID,
		&apt.RescheduledToID,
		&apt.CreatedAt,
		&apt.MissedAt,
		&apt.RescheduledAt,
		&apt.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan appointment: %w", err)
	}
	return apt, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
