package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cohortanalysis/golang_services/internal/seller_service/domain"
)

// DBTX is the part of *pgxpool.Pool the repository uses. pgxmock pools satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TokenSealer encrypts refresh tokens before they are written.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

// TokenTable names a refresh token table and its partner key column.
type TokenTable struct {
	Name      string
	KeyColumn string
}

var (
	SellersTable     = TokenTable{Name: "sellers", KeyColumn: "selling_partner_id"}
	AdvertisersTable = TokenTable{Name: "advertisers", KeyColumn: "advertiser_id"}
)

type PgTokenRepository struct {
	db          DBTX
	sealer      TokenSealer
	logger      *slog.Logger
	upsertQuery string
	selectQuery string
}

func NewPgTokenRepository(db DBTX, table TokenTable, sealer TokenSealer, logger *slog.Logger) *PgTokenRepository {
	upsert := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, refresh_token)
	          VALUES ($1, $2)
	          ON CONFLICT (%[2]s)
	          DO UPDATE SET refresh_token = EXCLUDED.refresh_token, updated_at = NOW()`, table.Name, table.KeyColumn)
	query := fmt.Sprintf(`SELECT refresh_token FROM %s WHERE %s = $1`, table.Name, table.KeyColumn)

	return &PgTokenRepository{
		db:          db,
		sealer:      sealer,
		logger:      logger.With("component", "token_repository_pg", "table", table.Name),
		upsertQuery: upsert,
		selectQuery: query,
	}
}

func (r *PgTokenRepository) Upsert(ctx context.Context, partnerID, refreshToken string) error {
	if partnerID == "" {
		return domain.ErrMissingPartnerID
	}
	sealed, err := r.sealer.Seal(refreshToken)
	if err != nil {
		return fmt.Errorf("sealing refresh token: %w", err)
	}
	r.logger.DebugContext(ctx, "Upserting refresh token", "partner_id", partnerID)
	if _, err := r.db.Exec(ctx, r.upsertQuery, partnerID, sealed); err != nil {
		r.logger.ErrorContext(ctx, "Error upserting refresh token", "partner_id", partnerID, "error", err)
		return fmt.Errorf("upserting refresh token for %s: %w", partnerID, err)
	}
	return nil
}

func (r *PgTokenRepository) GetRefreshToken(ctx context.Context, partnerID string) (string, error) {
	var stored string
	err := r.db.QueryRow(ctx, r.selectQuery, partnerID).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.InfoContext(ctx, "No refresh token stored", "partner_id", partnerID)
			return "", domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error reading refresh token", "partner_id", partnerID, "error", err)
		return "", fmt.Errorf("reading refresh token for %s: %w", partnerID, err)
	}
	token, err := r.sealer.Open(stored)
	if err != nil {
		return "", fmt.Errorf("opening refresh token for %s: %w", partnerID, err)
	}
	return token, nil
}
