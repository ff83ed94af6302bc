package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyagoodarzi28/ModernBlog/internal/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore is the production Store backed by Postgres.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const accountColumns = `
	id, email, email_verified, display_name, avatar_url,
	COALESCE(password_hash, ''), status, created_at, updated_at
`

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)
	return scanAccount(row)
}

func (s *PostgresStore) CreateAccount(ctx context.Context, na NewAccount) (*Account, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (email, email_verified, display_name, avatar_url, password_hash)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id
	`,
		na.Email,
		na.EmailVerified,
		na.DisplayName,
		na.AvatarURL,
		na.PasswordHash,
	).Scan(&id)

	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id.String())
}

func (s *PostgresStore) CreateAccountWithIdentity(
	ctx context.Context,
	na NewAccount,
	ref IdentityRef,
) (*Account, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var id uuid.UUID
	err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts (email, email_verified, display_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`,
		na.Email,
		na.EmailVerified,
		na.DisplayName,
		na.AvatarURL,
	).Scan(&id)

	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO identities (account_id, provider, provider_user_id, raw_profile)
		VALUES ($1, $2, $3, $4)
	`,
		id,
		ref.Provider,
		ref.ProviderUserID,
		nullableJSON(ref.RawProfile),
	)

	if isUniqueViolation(err) {
		return nil, ErrIdentityTaken
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id.String())
}

func (s *PostgresStore) FindIdentity(
	ctx context.Context,
	provider string,
	providerUserID string,
) (*LinkedIdentity, error) {

	var li LinkedIdentity
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account_id, provider, provider_user_id,
		       COALESCE(raw_profile, 'null'::jsonb), created_at
		FROM identities
		WHERE provider = $1
		  AND provider_user_id = $2
	`,
		provider,
		providerUserID,
	).Scan(&li.ID, &li.AccountID, &li.Provider, &li.ProviderUserID, &raw, &li.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	li.RawProfile = raw
	return &li, nil
}

func (s *PostgresStore) LinkIdentity(ctx context.Context, accountID string, ref IdentityRef) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (account_id, provider, provider_user_id, raw_profile)
		VALUES ($1, $2, $3, $4)
	`,
		accountID,
		ref.Provider,
		ref.ProviderUserID,
		nullableJSON(ref.RawProfile),
	)

	if isUniqueViolation(err) {
		return ErrIdentityTaken
	}
	return err
}

func (s *PostgresStore) SetPasswordHash(ctx context.Context, accountID, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, accountID, hash)
	return err
}

func (s *PostgresStore) BackfillProfile(
	ctx context.Context,
	accountID string,
	displayName string,
	avatarURL string,
) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET display_name = COALESCE(NULLIF(display_name, ''), $2),
		    avatar_url   = COALESCE(NULLIF(avatar_url, ''), $3),
		    updated_at   = NOW()
		WHERE id = $1
	`, accountID, displayName, avatarURL)
	return err
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.EmailVerified,
		&a.DisplayName,
		&a.AvatarURL,
		&a.PasswordHash,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
