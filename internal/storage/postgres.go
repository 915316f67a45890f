package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/zakisalem/souq-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(config DatabaseConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStore) Create(ctx context.Context, ad *models.Ad) (int64, error) {
	query := `
		INSERT INTO ads (session_id, original_text, enhanced_text, status, category, price, location, contact_info, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	if ad.Status == "" {
		ad.Status = models.AdPending
	}

	err := s.db.QueryRowContext(ctx, query,
		ad.SessionID,
		ad.OriginalText,
		ad.EnhancedText,
		ad.Status,
		nullString(ad.Category),
		nullFloat(ad.Price),
		nullString(ad.Location),
		nullString(ad.ContactInfo),
		nullString(ad.ImageURL),
	).Scan(&ad.ID, &ad.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("error creating ad: %w", err)
	}

	return ad.ID, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.Ad, error) {
	query := selectColumns + ` FROM ads WHERE id = $1`

	ad, err := scanAd(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error querying ad: %w", err)
	}
	return ad, nil
}

func (s *PostgresStore) ListApproved(ctx context.Context, f models.AdFilters) ([]models.Ad, error) {
	var (
		clauses = []string{"status = 'approved'"}
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Category != "" {
		clauses = append(clauses, "category ILIKE "+arg("%"+f.Category+"%"))
	}
	if f.Location != "" {
		clauses = append(clauses, "location ILIKE "+arg("%"+f.Location+"%"))
	}
	if f.PriceMin > 0 {
		clauses = append(clauses, "(price IS NULL OR price >= "+arg(f.PriceMin)+")")
	}
	if f.PriceMax > 0 {
		clauses = append(clauses, "(price IS NULL OR price <= "+arg(f.PriceMax)+")")
	}

	query := selectColumns + ` FROM ads WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying approved ads: %w", err)
	}
	defer rows.Close()

	return collectAds(rows)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]models.Ad, error) {
	query := selectColumns + ` FROM ads WHERE status = 'pending' ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying pending ads: %w", err)
	}
	defer rows.Close()

	return collectAds(rows)
}

func (s *PostgresStore) SetStatus(ctx context.Context, id int64, status models.AdStatus, notes string) error {
	var query string
	switch status {
	case models.AdApproved:
		query = `
			UPDATE ads
			SET status = $1, admin_notes = $2, approved_at = NOW(), link = '/ad/' || id
			WHERE id = $3 AND status = 'pending'`
	case models.AdRejected:
		query = `
			UPDATE ads
			SET status = $1, admin_notes = $2, rejected_at = NOW()
			WHERE id = $3 AND status = 'pending'`
	default:
		return fmt.Errorf("invalid target status %q", status)
	}

	result, err := s.db.ExecContext(ctx, query, status, nullString(notes), id)
	if err != nil {
		return fmt.Errorf("error updating ad status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		// Either absent or already reviewed; disambiguate for the caller.
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyModerated
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting ad: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT id, session_id, original_text, enhanced_text, status, category, price,
	       location, contact_info, image_url, link, admin_notes,
	       created_at, approved_at, rejected_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAd(row rowScanner) (*models.Ad, error) {
	var (
		ad                                              models.Ad
		category, location, contact, image, link, notes sql.NullString
		price                                           sql.NullFloat64
		approvedAt, rejectedAt                          sql.NullTime
	)
	err := row.Scan(
		&ad.ID, &ad.SessionID, &ad.OriginalText, &ad.EnhancedText, &ad.Status,
		&category, &price, &location, &contact, &image, &link, &notes,
		&ad.CreatedAt, &approvedAt, &rejectedAt,
	)
	if err != nil {
		return nil, err
	}
	ad.Category = category.String
	ad.Location = location.String
	ad.ContactInfo = contact.String
	ad.ImageURL = image.String
	ad.Link = link.String
	ad.AdminNotes = notes.String
	if price.Valid {
		v := price.Float64
		ad.Price = &v
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		ad.ApprovedAt = &t
	}
	if rejectedAt.Valid {
		t := rejectedAt.Time
		ad.RejectedAt = &t
	}
	return &ad, nil
}

func collectAds(rows *sql.Rows) ([]models.Ad, error) {
	var ads []models.Ad
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning ad: %w", err)
		}
		ads = append(ads, *ad)
	}
	return ads, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
