package storage

import (
	"context"
	"time"

	"github.com/netbill/netbill-server/internal/models"
)

// GetRouterSettings returns the router settings row or ErrNotFound
func (s *PostgresStore) GetRouterSettings(ctx context.Context) (*models.RouterSettings, error) {
	settings := &models.RouterSettings{}
	err := s.getDB().QueryRowContext(ctx, `
        SELECT id, host, port, username, password, ssl, updated_at
        FROM router_settings
        LIMIT 1`,
	).Scan(
		&settings.ID, &settings.Host, &settings.Port, &settings.Username,
		&settings.Password, &settings.SSL, &settings.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return settings, nil
}

// SaveRouterSettings inserts or replaces the router settings row
func (s *PostgresStore) SaveRouterSettings(ctx context.Context, settings *models.RouterSettings) error {
	settings.ID = 1
	settings.UpdatedAt = time.Now()
	if settings.Port == 0 {
		settings.Port = models.DefaultAPIPort
	}

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO router_settings (id, host, port, username, password, ssl, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            host = EXCLUDED.host, port = EXCLUDED.port, username = EXCLUDED.username,
            password = EXCLUDED.password, ssl = EXCLUDED.ssl, updated_at = EXCLUDED.updated_at`,
		settings.ID, settings.Host, settings.Port, settings.Username,
		settings.Password, settings.SSL, settings.UpdatedAt,
	)
	return mapError(err)
}
