package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/chirp/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// profileColumns はプロフィール取得クエリの共通SELECT列。
const profileColumns = `id, email, name, first_name, last_name,
	COALESCE(username, ''), avatar_url, description, website, password_hash,
	created_at, updated_at`

// scanProfile は1行をmodel.Profileに読み込む。
func scanProfile(row *sql.Row) (*model.Profile, error) {
	p := &model.Profile{}
	err := row.Scan(
		&p.ID, &p.Email, &p.Name, &p.FirstName, &p.LastName,
		&p.Username, &p.AvatarURL, &p.Description, &p.Website, &p.PasswordHash,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}
	return p, nil
}

// FindByEmail はメールアドレスでプロフィールを検索する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByEmail(ctx context.Context, email string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = $1`,
		email,
	)
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by email: %w", err)
	}
	return p, nil
}

// Create はプロフィールを作成する。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, name, first_name, last_name, username,
		 avatar_url, description, website, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)`,
		profile.ID, profile.Email, profile.Name, profile.FirstName, profile.LastName,
		profile.Username, profile.AvatarURL, profile.Description, profile.Website,
		profile.PasswordHash, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// CreateWithIdentity はプロフィールとidentityを同一トランザクションで作成する。
func (r *PostgresProfileRepo) CreateWithIdentity(ctx context.Context, profile *model.Profile, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (id, email, name, first_name, last_name, username,
		 avatar_url, description, website, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)`,
		profile.ID, profile.Email, profile.Name, profile.FirstName, profile.LastName,
		profile.Username, profile.AvatarURL, profile.Description, profile.Website,
		profile.PasswordHash, profile.CreatedAt, profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO identities (id, profile_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.ProfileID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update はプロフィールの編集可能フィールドを更新する。
// 行の選択は常にprofile.ID（= 認証済みユーザーのID）で行う。
func (r *PostgresProfileRepo) Update(ctx context.Context, profile *model.Profile) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles
		 SET name = $2, first_name = $3, last_name = $4, username = NULLIF($5, ''),
		     avatar_url = $6, description = $7, website = $8, updated_at = now()
		 WHERE id = $1`,
		profile.ID, profile.Name, profile.FirstName, profile.LastName, profile.Username,
		profile.AvatarURL, profile.Description, profile.Website,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile not found: %s", profile.ID)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
