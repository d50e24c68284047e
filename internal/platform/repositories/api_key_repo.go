package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"courierly/internal/platform/models"
	"github.com/google/uuid"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(key *models.APIKey) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.New().String()
	}
	key.CreatedAt = time.Now().Unix()

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, scopes, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, key.ID, key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, string(scopesJSON), key.CreatedAt, key.ExpiresAt)
	return err
}

func (r *APIKeyRepository) GetByHash(hash string) (*models.APIKey, error) {
	query := `SELECT id, owner_id, name, key_prefix, scopes, last_used_at, created_at, expires_at, revoked_at FROM api_keys WHERE key_hash = ?`
	row := r.db.QueryRow(query, hash)

	var k models.APIKey
	var scopesStr string
	var lastUsedAt, expiresAt, revokedAt sql.NullInt64

	err := row.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyPrefix, &scopesStr, &lastUsedAt, &k.CreatedAt, &expiresAt, &revokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if lastUsedAt.Valid {
		k.LastUsedAt = &lastUsedAt.Int64
	}
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Int64
	}
	if revokedAt.Valid {
		k.RevokedAt = &revokedAt.Int64
	}
	json.Unmarshal([]byte(scopesStr), &k.Scopes)

	return &k, nil
}

func (r *APIKeyRepository) ListByOwner(ownerID string) ([]*models.APIKey, error) {
	query := `SELECT id, owner_id, name, key_prefix, scopes, last_used_at, created_at, expires_at, revoked_at FROM api_keys WHERE owner_id = ? ORDER BY created_at DESC`
	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		var scopesStr string
		var lastUsedAt, expiresAt, revokedAt sql.NullInt64

		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyPrefix, &scopesStr, &lastUsedAt, &k.CreatedAt, &expiresAt, &revokedAt); err != nil {
			return nil, err
		}
		if lastUsedAt.Valid {
			k.LastUsedAt = &lastUsedAt.Int64
		}
		if expiresAt.Valid {
			k.ExpiresAt = &expiresAt.Int64
		}
		if revokedAt.Valid {
			k.RevokedAt = &revokedAt.Int64
		}
		json.Unmarshal([]byte(scopesStr), &k.Scopes)
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (r *APIKeyRepository) Revoke(id, ownerID string) error {
	res, err := r.db.Exec(`UPDATE api_keys SET revoked_at = ? WHERE id = ? AND owner_id = ? AND revoked_at IS NULL`, time.Now().Unix(), id, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *APIKeyRepository) TouchLastUsed(id string) error {
	_, err := r.db.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}
