package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/example/service-match/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) GetRequestDetails(ctx context.Context, requestID string) (*models.RequestDetails, error) {
	var d models.RequestDetails
	var serviceID sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT r.id, r.service_type_id, r.service_id, r.seeker_user_id, r.address_id,
		       r.description, r.status, r.created_at, r.updated_at,
		       st.name, u.name, a.id, a.label, a.lat, a.lon
		FROM requests r
		JOIN service_types st ON st.id = r.service_type_id
		JOIN users u ON u.id = r.seeker_user_id
		JOIN addresses a ON a.id = r.address_id
		WHERE r.id = $1`, requestID).Scan(
		&d.ID, &d.ServiceTypeID, &serviceID, &d.SeekerUserID, &d.AddressID,
		&d.Description, &d.Status, &d.CreatedAt, &d.UpdatedAt,
		&d.ServiceTypeName, &d.SeekerName, &d.Address.ID, &d.Address.Label, &d.Address.Lat, &d.Address.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.ServiceID = serviceID.String
	if err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(image_key ORDER BY image_key), '{}') FROM request_images WHERE request_id = $1`,
		requestID).Scan(pq.Array(&d.ImageKeys)); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteRequest removes the request row together with its images and owned
// address in one transaction.
func (p *PostgresStore) DeleteRequest(ctx context.Context, requestID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var addressID string
	err = tx.QueryRowContext(ctx, `SELECT address_id FROM requests WHERE id = $1`, requestID).Scan(&addressID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM request_images WHERE request_id = $1`, requestID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = $1`, requestID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, addressID); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) GetTargetProviders(ctx context.Context, serviceTypeID, serviceID string) ([]string, error) {
	if serviceID != "" {
		var owner string
		err := p.db.QueryRowContext(ctx,
			`SELECT provider_user_id FROM services WHERE id = $1`, serviceID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return []string{owner}, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT provider_user_id FROM services
		WHERE service_type_id = $1 AND is_accepting
		ORDER BY provider_user_id`, serviceTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *PostgresStore) VerifyUserInBooking(ctx context.Context, bookingID, userID string) (bool, error) {
	var seeker, provider string
	err := p.db.QueryRowContext(ctx,
		`SELECT seeker_user_id, provider_user_id FROM bookings WHERE id = $1`, bookingID).Scan(&seeker, &provider)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return seeker == userID || provider == userID, nil
}

func (p *PostgresStore) GetBookingParticipants(ctx context.Context, bookingID string) (*models.BookingParticipants, error) {
	var bp models.BookingParticipants
	err := p.db.QueryRowContext(ctx, `
		SELECT b.id, b.request_id, b.seeker_user_id, su.name, b.provider_user_id, pu.name, b.deposit_intent_id
		FROM bookings b
		JOIN users su ON su.id = b.seeker_user_id
		JOIN users pu ON pu.id = b.provider_user_id
		WHERE b.id = $1`, bookingID).Scan(
		&bp.BookingID, &bp.RequestID, &bp.SeekerUserID, &bp.SeekerName, &bp.ProviderUserID, &bp.ProviderName, &bp.DepositIntentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bp, nil
}

func (p *PostgresStore) GetFCMToken(ctx context.Context, userID string) (string, error) {
	var token string
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(fcm_token, '') FROM users WHERE id = $1`, userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (p *PostgresStore) CreateMessage(ctx context.Context, bookingID, userID, text string, imageKeys []string) (*models.Message, error) {
	var m models.Message
	m.BookingID = bookingID
	m.UserID = userID
	m.Text = text
	m.ImageKeys = imageKeys
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO messages(booking_id, user_id, text, image_keys)
		VALUES($1, $2, $3, $4)
		RETURNING id, created_at, (SELECT name FROM users WHERE id = $2)`,
		bookingID, userID, text, pq.Array(imageKeys)).Scan(&m.ID, &m.CreatedAt, &m.SenderName)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgresStore) GetMessages(ctx context.Context, bookingID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT m.id, m.booking_id, m.user_id, m.text, m.image_keys, m.created_at, u.name
		FROM messages m JOIN users u ON u.id = m.user_id
		WHERE m.booking_id = $1
		ORDER BY m.created_at ASC
		LIMIT $2 OFFSET $3`, bookingID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.BookingID, &m.UserID, &m.Text, pq.Array(&m.ImageKeys), &m.CreatedAt, &m.SenderName); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
