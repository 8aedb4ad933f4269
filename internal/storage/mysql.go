package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"registration-gateway/internal/config"
	"registration-gateway/internal/logger"
	"registration-gateway/internal/models"
	"registration-gateway/internal/utils"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return store, nil
}

func (s *MySQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "mysql", "Creating registration tables if not exist")

	queries := []string{
		`CREATE TABLE IF NOT EXISTS events (
			event_id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			capacity INT NOT NULL,
			price DECIMAL(10,2) NOT NULL DEFAULT 0,
			is_registration_open BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(32) NOT NULL DEFAULT 'draft',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS event_form_fields (
			field_id VARCHAR(36) PRIMARY KEY,
			event_id VARCHAR(36) NOT NULL,
			label VARCHAR(255) NOT NULL,
			field_type VARCHAR(32) NOT NULL DEFAULT 'text',
			required BOOLEAN NOT NULL DEFAULT FALSE,
			options JSON NULL,
			disabled BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX idx_event_id (event_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS registrations (
			registration_id VARCHAR(36) PRIMARY KEY,
			event_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
			entry_code VARCHAR(24) NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_event_id (event_id),
			INDEX idx_user_event (user_id, event_id),
			INDEX idx_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS registration_responses (
			registration_id VARCHAR(36) NOT NULL,
			field_id VARCHAR(36) NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (registration_id, field_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS payments (
			payment_id VARCHAR(36) PRIMARY KEY,
			registration_id VARCHAR(36) NOT NULL,
			gateway_order_id VARCHAR(64) NOT NULL,
			gateway_payment_id VARCHAR(64) NULL,
			amount DECIMAL(10,2) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'CREATED',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			INDEX idx_registration_id (registration_id),
			INDEX idx_gateway_order_id (gateway_order_id),
			INDEX idx_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS payment_confirmations (
			confirmation_id VARCHAR(36) PRIMARY KEY,
			registration_id VARCHAR(36) NOT NULL,
			gateway_order_id VARCHAR(64) NOT NULL,
			gateway_payment_id VARCHAR(64) NOT NULL,
			signature VARCHAR(128) NOT NULL,
			amount DECIMAL(10,2) NOT NULL,
			received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_registration_id (registration_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		`CREATE TABLE IF NOT EXISTS attendance (
			attendance_id VARCHAR(36) PRIMARY KEY,
			registration_id VARCHAR(36) NOT NULL UNIQUE,
			checked_in_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "mysql", "Registration tables ready")
	return nil
}

func (s *MySQLStore) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	s.log.LogDatabase("SELECT", "events", fmt.Sprintf("Fetching event %s", eventID))

	query := `
    SELECT event_id, name, capacity, price, is_registration_open, status, created_at, updated_at
    FROM events WHERE event_id = ?
    `

	event := &models.Event{}
	err := s.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.EventID, &event.Name, &event.Capacity, &event.Price,
		&event.IsRegistrationOpen, &event.Status, &event.CreatedAt, &event.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "events", fmt.Sprintf("Event %s not found", eventID))
			return nil, ErrEventNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get event %s: %s", eventID, err.Error()))
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

func (s *MySQLStore) UpsertEvent(ctx context.Context, event *models.Event) error {
	s.log.LogDatabase("UPSERT", "events", fmt.Sprintf("Upserting event %s", event.EventID))

	query := `
    INSERT INTO events (event_id, name, capacity, price, is_registration_open, status, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE
        name = VALUES(name), capacity = VALUES(capacity), price = VALUES(price),
        is_registration_open = VALUES(is_registration_open), status = VALUES(status),
        updated_at = VALUES(updated_at)
    `

	_, err := s.db.ExecContext(ctx, query,
		event.EventID, event.Name, event.Capacity, event.Price,
		event.IsRegistrationOpen, event.Status, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to upsert event %s: %s", event.EventID, err.Error()))
		return fmt.Errorf("failed to upsert event: %w", err)
	}

	return nil
}

func (s *MySQLStore) ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error) {
	s.log.LogDatabase("SELECT", "event_form_fields", fmt.Sprintf("Listing form fields for event %s", eventID))

	query := `
    SELECT field_id, event_id, label, field_type, required, options, disabled
    FROM event_form_fields WHERE event_id = ?
    `

	rows, err := s.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list form fields: %w", err)
	}
	defer rows.Close()

	var fields []models.FormField
	for rows.Next() {
		var f models.FormField
		var options sql.NullString
		if err := rows.Scan(&f.FieldID, &f.EventID, &f.Label, &f.FieldType, &f.Required, &options, &f.Disabled); err != nil {
			return nil, fmt.Errorf("failed to scan form field: %w", err)
		}
		if options.Valid && options.String != "" {
			if err := json.Unmarshal([]byte(options.String), &f.Options); err != nil {
				return nil, fmt.Errorf("failed to decode field options: %w", err)
			}
		}
		fields = append(fields, f)
	}

	return fields, rows.Err()
}

// RegisterForEvent is one of the two atomic store operations. The event row
// is locked with SELECT ... FOR UPDATE for the duration of the transaction,
// which serialises concurrent attempts against the same event: the duplicate
// check, the capacity count and the insert all happen under that lock, so two
// racing requests can never both pass the checks.
func (s *MySQLStore) RegisterForEvent(ctx context.Context, eventID, userID string) (registrationID string, err error) {
	s.log.LogDatabase("TX_BEGIN", "registrations", fmt.Sprintf("Reserving seat for user %s on event %s", userID, eventID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var capacity int
	var open bool
	var status models.EventStatus
	err = tx.QueryRowContext(ctx,
		`SELECT capacity, is_registration_open, status FROM events WHERE event_id = ? FOR UPDATE`,
		eventID,
	).Scan(&capacity, &open, &status)
	if err != nil {
		if err == sql.ErrNoRows {
			err = ErrEventNotFound
			return "", err
		}
		return "", fmt.Errorf("failed to lock event row: %w", err)
	}

	if !open || status != models.EventApproved {
		err = ErrRegistrationClosed
		return "", err
	}

	var dupCount int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations
		 WHERE event_id = ? AND user_id = ? AND status <> 'CANCELLED'`,
		eventID, userID,
	).Scan(&dupCount)
	if err != nil {
		return "", fmt.Errorf("failed to check duplicate registration: %w", err)
	}
	if dupCount > 0 {
		err = ErrAlreadyRegistered
		return "", err
	}

	// PENDING rows count against capacity so a seat reserved for an unpaid
	// registration is never handed out twice.
	var liveCount int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = ? AND status <> 'CANCELLED'`,
		eventID,
	).Scan(&liveCount)
	if err != nil {
		return "", fmt.Errorf("failed to count registrations: %w", err)
	}
	if liveCount >= capacity {
		err = ErrCapacityExceeded
		return "", err
	}

	registrationID = uuid.New().String()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO registrations (registration_id, event_id, user_id, status, entry_code, created_at, updated_at)
		 VALUES (?, ?, ?, 'PENDING', ?, ?, ?)`,
		registrationID, eventID, userID, utils.GenerateEntryCode(), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert registration: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit reservation: %w", err)
	}

	s.log.LogDatabase("TX_COMMIT", "registrations", fmt.Sprintf("Registration %s reserved", registrationID))
	return registrationID, nil
}

// ConfirmRegistration is the second atomic store operation. Idempotent:
// re-confirming a CONFIRMED registration commits without touching any row,
// so webhook redeliveries converge to the same state.
func (s *MySQLStore) ConfirmRegistration(ctx context.Context, registrationID string) (err error) {
	s.log.LogDatabase("TX_BEGIN", "registrations", fmt.Sprintf("Confirming registration %s", registrationID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.RegistrationStatus
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM registrations WHERE registration_id = ? FOR UPDATE`,
		registrationID,
	).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			err = ErrInvalidState
			return err
		}
		return fmt.Errorf("failed to lock registration row: %w", err)
	}

	switch status {
	case models.RegistrationConfirmed:
		// Already final; nothing to do.
		return tx.Commit()
	case models.RegistrationCancelled:
		err = ErrInvalidState
		return err
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE registrations SET status = 'CONFIRMED', updated_at = ? WHERE registration_id = ?`,
		now, registrationID,
	)
	if err != nil {
		return fmt.Errorf("failed to confirm registration: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE payments SET status = 'SUCCESS', updated_at = ? WHERE registration_id = ? AND status = 'CREATED'`,
		now, registrationID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark payment success: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit confirmation: %w", err)
	}

	s.log.LogDatabase("TX_COMMIT", "registrations", fmt.Sprintf("Registration %s confirmed", registrationID))
	return nil
}

func (s *MySQLStore) GetRegistration(ctx context.Context, registrationID string) (*models.Registration, error) {
	return s.getRegistration(ctx, "registration_id", registrationID)
}

func (s *MySQLStore) GetRegistrationByEntryCode(ctx context.Context, entryCode string) (*models.Registration, error) {
	return s.getRegistration(ctx, "entry_code", entryCode)
}

func (s *MySQLStore) getRegistration(ctx context.Context, column, value string) (*models.Registration, error) {
	s.log.LogDatabase("SELECT", "registrations", fmt.Sprintf("Fetching registration by %s", column))

	query := fmt.Sprintf(`
    SELECT registration_id, event_id, user_id, status, entry_code, created_at, updated_at
    FROM registrations WHERE %s = ?
    `, column)

	reg := &models.Registration{}
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&reg.RegistrationID, &reg.EventID, &reg.UserID, &reg.Status,
		&reg.EntryCode, &reg.CreatedAt, &reg.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRegistrationNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get registration: %s", err.Error()))
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	return reg, nil
}

func (s *MySQLStore) SaveResponses(ctx context.Context, responses []models.RegistrationResponse) error {
	if len(responses) == 0 {
		return nil
	}
	s.log.LogDatabase("INSERT", "registration_responses", fmt.Sprintf("Saving %d responses", len(responses)))

	query := `
    INSERT INTO registration_responses (registration_id, field_id, value)
    VALUES (?, ?, ?)
    `

	for _, resp := range responses {
		if _, err := s.db.ExecContext(ctx, query, resp.RegistrationID, resp.FieldID, resp.Value); err != nil {
			s.log.Error("DATABASE", fmt.Sprintf("Failed to save response for field %s: %s", resp.FieldID, err.Error()))
			return fmt.Errorf("failed to save response: %w", err)
		}
	}

	return nil
}

func (s *MySQLStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("Saving payment %s", payment.PaymentID))

	query := `
    INSERT INTO payments (payment_id, registration_id, gateway_order_id, gateway_payment_id, amount, status, created_at, updated_at)
    VALUES (?, ?, ?, NULLIF(?, ''), ?, ?, ?, ?)
    `

	_, err := s.db.ExecContext(ctx, query,
		payment.PaymentID, payment.RegistrationID, payment.GatewayOrderID,
		payment.GatewayPaymentID, payment.Amount, payment.Status,
		payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment %s: %s", payment.PaymentID, err.Error()))
		return fmt.Errorf("failed to save payment: %w", err)
	}

	return nil
}

func (s *MySQLStore) GetPaymentByRegistration(ctx context.Context, registrationID string) (*models.Payment, error) {
	s.log.LogDatabase("SELECT", "payments", fmt.Sprintf("Fetching payment for registration %s", registrationID))

	query := `
    SELECT payment_id, registration_id, gateway_order_id, COALESCE(gateway_payment_id, ''), amount, status, created_at, updated_at
    FROM payments WHERE registration_id = ?
    ORDER BY created_at DESC LIMIT 1
    `

	payment := &models.Payment{}
	err := s.db.QueryRowContext(ctx, query, registrationID).Scan(
		&payment.PaymentID, &payment.RegistrationID, &payment.GatewayOrderID,
		&payment.GatewayPaymentID, &payment.Amount, &payment.Status,
		&payment.CreatedAt, &payment.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get payment for registration %s: %s", registrationID, err.Error()))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

func (s *MySQLStore) RecordPaymentCapture(ctx context.Context, registrationID, gatewayPaymentID string) error {
	s.log.LogDatabase("UPDATE", "payments", fmt.Sprintf("Recording capture %s for registration %s", gatewayPaymentID, registrationID))

	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET gateway_payment_id = ?, updated_at = ? WHERE registration_id = ? AND gateway_payment_id IS NULL`,
		gatewayPaymentID, time.Now().UTC(), registrationID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to record capture for registration %s: %s", registrationID, err.Error()))
		return fmt.Errorf("failed to record capture: %w", err)
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		var count int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM payments WHERE registration_id = ?`, registrationID,
		).Scan(&count); err == nil && count == 0 {
			return ErrPaymentNotFound
		}
	}

	return nil
}

func (s *MySQLStore) SavePaymentConfirmation(ctx context.Context, conf *models.PaymentConfirmation) error {
	s.log.LogDatabase("INSERT", "payment_confirmations", fmt.Sprintf("Recording confirmation for registration %s", conf.RegistrationID))

	query := `
    INSERT INTO payment_confirmations (confirmation_id, registration_id, gateway_order_id, gateway_payment_id, signature, amount, received_at)
    VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.ExecContext(ctx, query,
		conf.ConfirmationID, conf.RegistrationID, conf.GatewayOrderID,
		conf.GatewayPaymentID, conf.Signature, conf.Amount, conf.ReceivedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to record payment confirmation: %s", err.Error()))
		return fmt.Errorf("failed to record payment confirmation: %w", err)
	}

	return nil
}

// CreateAttendance relies on the UNIQUE constraint on registration_id:
// INSERT IGNORE makes the second check-in a no-op, and the existing row is
// returned instead.
func (s *MySQLStore) CreateAttendance(ctx context.Context, registrationID string) (*models.Attendance, bool, error) {
	s.log.LogDatabase("INSERT", "attendance", fmt.Sprintf("Checking in registration %s", registrationID))

	att := &models.Attendance{
		AttendanceID:   uuid.New().String(),
		RegistrationID: registrationID,
		CheckedInAt:    time.Now().UTC(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO attendance (attendance_id, registration_id, checked_in_at) VALUES (?, ?, ?)`,
		att.AttendanceID, att.RegistrationID, att.CheckedInAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to create attendance: %s", err.Error()))
		return nil, false, fmt.Errorf("failed to create attendance: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 1 {
		return att, true, nil
	}

	existing := &models.Attendance{}
	err = s.db.QueryRowContext(ctx,
		`SELECT attendance_id, registration_id, checked_in_at FROM attendance WHERE registration_id = ?`,
		registrationID,
	).Scan(&existing.AttendanceID, &existing.RegistrationID, &existing.CheckedInAt)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch existing attendance: %w", err)
	}

	return existing, false, nil
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}

func (s *MySQLStore) HealthCheck() error {
	return s.db.Ping()
}
