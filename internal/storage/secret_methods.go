package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/netbill-server/internal/models"
)

// ========== Secret Methods ==========

const secretColumns = `id, created_at, updated_at, username, password, service, profile,
               local_address, remote_address, comment, disabled, customer_id, package_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSecret(row rowScanner) (*models.Secret, error) {
	secret := &models.Secret{}
	err := row.Scan(
		&secret.ID, &secret.CreatedAt, &secret.UpdatedAt, &secret.Username,
		&secret.Password, &secret.Service, &secret.Profile, &secret.LocalAddress,
		&secret.RemoteAddress, &secret.Comment, &secret.Disabled,
		&secret.CustomerID, &secret.PackageID,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return secret, nil
}

// CreateSecret creates a new secret
func (s *PostgresStore) CreateSecret(ctx context.Context, secret *models.Secret) error {
	if secret.ID == uuid.Nil {
		secret.ID = uuid.New()
	}

	now := time.Now()
	secret.CreatedAt = now
	secret.UpdatedAt = now

	query := `
        INSERT INTO mikrotik_secrets (
            id, created_at, updated_at, username, password, service, profile,
            local_address, remote_address, comment, disabled, customer_id, package_id
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		secret.ID, secret.CreatedAt, secret.UpdatedAt, secret.Username,
		secret.Password, secret.Service, secret.Profile, secret.LocalAddress,
		secret.RemoteAddress, secret.Comment, secret.Disabled,
		secret.CustomerID, secret.PackageID,
	)

	return mapError(err)
}

// GetSecret gets a secret by ID
func (s *PostgresStore) GetSecret(ctx context.Context, id uuid.UUID) (*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM mikrotik_secrets WHERE id = $1`
	return scanSecret(s.getDB().QueryRowContext(ctx, query, id))
}

// GetSecretByUsername gets a secret by its (username, service) key
func (s *PostgresStore) GetSecretByUsername(ctx context.Context, username string, service models.ServiceType) (*models.Secret, error) {
	query := `SELECT ` + secretColumns + ` FROM mikrotik_secrets WHERE username = $1 AND service = $2`
	return scanSecret(s.getDB().QueryRowContext(ctx, query, username, service))
}

// UpdateSecret updates a secret
func (s *PostgresStore) UpdateSecret(ctx context.Context, secret *models.Secret) error {
	secret.UpdatedAt = time.Now()

	query := `
        UPDATE mikrotik_secrets SET
            updated_at = $2, username = $3, password = $4, service = $5,
            profile = $6, local_address = $7, remote_address = $8, comment = $9,
            disabled = $10, customer_id = $11, package_id = $12
        WHERE id = $1`

	return expectOne(s.getDB().ExecContext(ctx, query,
		secret.ID, secret.UpdatedAt, secret.Username, secret.Password,
		secret.Service, secret.Profile, secret.LocalAddress, secret.RemoteAddress,
		secret.Comment, secret.Disabled, secret.CustomerID, secret.PackageID,
	))
}

// DeleteSecret deletes a secret
func (s *PostgresStore) DeleteSecret(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.getDB().ExecContext(ctx, "DELETE FROM mikrotik_secrets WHERE id = $1", id))
}

// ListSecrets lists secrets
func (s *PostgresStore) ListSecrets(ctx context.Context, filter models.SecretFilter, limit, offset int) ([]*models.Secret, int64, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Service != nil {
		conds = append(conds, "service = "+arg(*filter.Service))
	}
	if filter.Disabled != nil {
		conds = append(conds, "disabled = "+arg(*filter.Disabled))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, "(username ILIKE "+p+" OR comment ILIKE "+p+")")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	// Get count
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM mikrotik_secrets"+where, args...).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	// Get rows
	query := `SELECT ` + secretColumns + ` FROM mikrotik_secrets` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var secrets []*models.Secret
	for rows.Next() {
		secret, err := scanSecret(rows)
		if err != nil {
			return nil, 0, err
		}
		secrets = append(secrets, secret)
	}

	return secrets, count, rows.Err()
}
