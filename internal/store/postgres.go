package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---- users ----

func (s *PostgresStore) EnsureUserByName(ctx context.Context, name string) (User, error) {
	const findUser = `SELECT id, name, role, tenant_id FROM users WHERE name = $1`
	var user User
	err := s.db.QueryRowContext(ctx, findUser, name).Scan(&user.ID, &user.Name, &user.Role, &user.TenantID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	const insertUser = `
		INSERT INTO users (name, email, role)
		VALUES ($1, CONCAT(LOWER(REPLACE($1, ' ', '.')), '@local.bandstand.dev'), 'user')
		RETURNING id, name, role, tenant_id
	`
	if err := s.db.QueryRowContext(ctx, insertUser, name).Scan(&user.ID, &user.Name, &user.Role, &user.TenantID); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, tenant_id, is_email_verified
		FROM users WHERE id=$1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.TenantID, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, tenant_id, is_email_verified
		FROM users WHERE email=$1
	`, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.TenantID, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, tenant_id, is_email_verified, verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, user.Name, user.Email, user.PasswordHash, user.Role, user.TenantID, user.IsEmailVerified, user.VerificationToken).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_email_verified=TRUE, verification_token='', updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify email rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO NOTHING
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (int64, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

// ---- content nodes ----

const contentColumns = `id, title, author_id, content_type_id, parent_id, access_type, tenant_id, metadata, created_at, updated_at`

func scanContentNode(row interface{ Scan(...any) error }) (ContentNode, error) {
	var node ContentNode
	err := row.Scan(
		&node.ID,
		&node.Title,
		&node.AuthorID,
		&node.ContentTypeID,
		&node.ParentID,
		&node.AccessType,
		&node.TenantID,
		&node.Metadata,
		&node.CreatedAt,
		&node.UpdatedAt,
	)
	return node, err
}

func (s *PostgresStore) GetContentNode(ctx context.Context, id int64) (ContentNode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE id=$1`, id)
	return scanContentNode(row)
}

func (s *PostgresStore) ContentNodeExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM content WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check content exists: %w", err)
	}
	return exists, nil
}

// InsertContentNode writes a node and returns its id. A non-zero node.ID is
// honored so a batch can insert with a client-chosen key and address it in
// later mutations of the same batch.
func (s *PostgresStore) InsertContentNode(ctx context.Context, node ContentNode) (int64, error) {
	metadata := node.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}

	var id int64
	var err error
	if node.ID != 0 {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO content (id, title, author_id, content_type_id, parent_id, access_type, tenant_id, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, node.ID, node.Title, node.AuthorID, node.ContentTypeID, node.ParentID, node.AccessType, node.TenantID, metadata).Scan(&id)
		if err == nil {
			err = s.advanceSerial(ctx, "content")
		}
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO content (title, author_id, content_type_id, parent_id, access_type, tenant_id, metadata)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, node.Title, node.AuthorID, node.ContentTypeID, node.ParentID, node.AccessType, node.TenantID, metadata).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("insert content: %w", err)
	}
	return id, nil
}

// UpdateContentNode overwrites the supplied attributes on an existing node.
// Returns false when no row matched.
func (s *PostgresStore) UpdateContentNode(ctx context.Context, id int64, patch ContentNodePatch) (bool, error) {
	sets := []string{"updated_at=NOW()"}
	args := []any{id}
	argN := 2

	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s=$%d", column, argN))
		args = append(args, value)
		argN++
	}

	if patch.Title != nil {
		addSet("title", *patch.Title)
	}
	if patch.AuthorID != nil {
		addSet("author_id", *patch.AuthorID)
	}
	if patch.ContentTypeID != nil {
		addSet("content_type_id", *patch.ContentTypeID)
	}
	if patch.ClearParent {
		sets = append(sets, "parent_id=NULL")
	} else if patch.ParentID != nil {
		addSet("parent_id", *patch.ParentID)
	}
	if patch.AccessType != nil {
		addSet("access_type", *patch.AccessType)
	}
	if patch.TenantID != nil {
		addSet("tenant_id", *patch.TenantID)
	}
	if len(patch.Metadata) > 0 {
		addSet("metadata", []byte(patch.Metadata))
	}

	query := fmt.Sprintf(`UPDATE content SET %s WHERE id=$1`, strings.Join(sets, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update content rows: %w", err)
	}
	return affected > 0, nil
}

// advanceSerial keeps a table's id sequence ahead of explicitly inserted
// ids. Without this a client-chosen id would not advance the BIGSERIAL and
// a later auto-assigned id would eventually collide with it.
func (s *PostgresStore) advanceSerial(ctx context.Context, table string) error {
	query := fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%s', 'id'), (SELECT GREATEST(MAX(id), 1) FROM %s))`,
		table, table,
	)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("advance %s id sequence: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) DeleteContentNode(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return nil
}

// FindReactionByKind looks up one reaction by the same author on the same
// parent with the given metadata kind. Returns nil when none exists.
func (s *PostgresStore) FindReactionByKind(ctx context.Context, authorID, parentID int64, kind string) (*ContentNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contentColumns+`
		FROM content
		WHERE author_id=$1 AND parent_id=$2 AND metadata->>'kind'=$3
		LIMIT 1
	`, authorID, parentID, kind)
	node, err := scanContentNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reaction: %w", err)
	}
	return &node, nil
}

// FindEmojiReaction looks up an emoji reaction by author, parent, and the
// specific emoji value.
func (s *PostgresStore) FindEmojiReaction(ctx context.Context, authorID, parentID int64, emoji string) (*ContentNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contentColumns+`
		FROM content
		WHERE author_id=$1 AND parent_id=$2 AND metadata->>'kind'='emoji' AND metadata->>'emoji'=$3
		LIMIT 1
	`, authorID, parentID, emoji)
	node, err := scanContentNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find emoji reaction: %w", err)
	}
	return &node, nil
}

// DetachChildren clears parent_id on every child of the given node so the
// children survive as top-level content when their parent is removed.
func (s *PostgresStore) DetachChildren(ctx context.Context, parentID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE content SET parent_id=NULL, updated_at=NOW() WHERE parent_id=$1`, parentID)
	if err != nil {
		return fmt.Errorf("detach children: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListChildren(ctx context.Context, parentID int64) ([]ContentNode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+` FROM content WHERE parent_id=$1 ORDER BY created_at ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	items := make([]ContentNode, 0)
	for rows.Next() {
		node, err := scanContentNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		items = append(items, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}
	return items, nil
}

// ---- content access grants ----

func (s *PostgresStore) InsertContentAccess(ctx context.Context, grant ContentAccess) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO content_access (content_id, rule) VALUES ($1, $2) RETURNING id
	`, grant.ContentID, grant.Rule).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert content access: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListContentAccess(ctx context.Context, contentID int64) ([]ContentAccess, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_id, rule, granted_at FROM content_access WHERE content_id=$1 ORDER BY id
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list content access: %w", err)
	}
	defer rows.Close()

	items := make([]ContentAccess, 0)
	for rows.Next() {
		var grant ContentAccess
		if err := rows.Scan(&grant.ID, &grant.ContentID, &grant.Rule, &grant.GrantedAt); err != nil {
			return nil, fmt.Errorf("scan content access: %w", err)
		}
		items = append(items, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate content access: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteContentAccessByContent(ctx context.Context, contentID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM content_access WHERE content_id=$1`, contentID)
	if err != nil {
		return fmt.Errorf("delete content access: %w", err)
	}
	return nil
}

// ---- content types ----

func (s *PostgresStore) GetContentType(ctx context.Context, id int64) (ContentType, error) {
	var ct ContentType
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, family, created_at, updated_at FROM content_types WHERE id=$1
	`, id).Scan(&ct.ID, &ct.Name, &ct.Family, &ct.CreatedAt, &ct.UpdatedAt)
	if err != nil {
		return ContentType{}, err
	}
	return ct, nil
}

func (s *PostgresStore) InsertContentType(ctx context.Context, ct ContentType) (int64, error) {
	var id int64
	var err error
	if ct.ID != 0 {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO content_types (id, name, family) VALUES ($1, $2, $3) RETURNING id
		`, ct.ID, ct.Name, ct.Family).Scan(&id)
		if err == nil {
			err = s.advanceSerial(ctx, "content_types")
		}
	} else {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO content_types (name, family) VALUES ($1, $2) RETURNING id
		`, ct.Name, ct.Family).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("insert content type: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateContentType(ctx context.Context, id int64, name, family *string) (bool, error) {
	sets := []string{"updated_at=NOW()"}
	args := []any{id}
	argN := 2
	if name != nil {
		sets = append(sets, fmt.Sprintf("name=$%d", argN))
		args = append(args, *name)
		argN++
	}
	if family != nil {
		sets = append(sets, fmt.Sprintf("family=$%d", argN))
		args = append(args, *family)
		argN++
	}

	query := fmt.Sprintf(`UPDATE content_types SET %s WHERE id=$1`, strings.Join(sets, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update content type: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update content type rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteContentType(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM content_types WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete content type: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete content type rows: %w", err)
	}
	return affected > 0, nil
}
