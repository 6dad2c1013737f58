package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/netbill/netbill-server/internal/models"
)

// ========== Package Methods ==========

func scanPackage(row rowScanner) (*models.Package, error) {
	pkg := &models.Package{}
	err := row.Scan(
		&pkg.ID, &pkg.CreatedAt, &pkg.UpdatedAt, &pkg.Name, &pkg.Type,
		&pkg.Bandwidth, &pkg.Burst, &pkg.Priority, &pkg.Price,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return pkg, nil
}

// CreatePackage creates a new package
func (s *PostgresStore) CreatePackage(ctx context.Context, pkg *models.Package) error {
	if pkg.ID == uuid.Nil {
		pkg.ID = uuid.New()
	}

	now := time.Now()
	pkg.CreatedAt = now
	pkg.UpdatedAt = now

	query := `
        INSERT INTO packages (
            id, created_at, updated_at, name, type, bandwidth, burst, priority, price
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		pkg.ID, pkg.CreatedAt, pkg.UpdatedAt, pkg.Name, pkg.Type,
		pkg.Bandwidth, pkg.Burst, pkg.Priority, pkg.Price,
	)

	return mapError(err)
}

// GetPackage gets a package by ID
func (s *PostgresStore) GetPackage(ctx context.Context, id uuid.UUID) (*models.Package, error) {
	query := `
        SELECT id, created_at, updated_at, name, type, bandwidth, burst, priority, price
        FROM packages
        WHERE id = $1`

	return scanPackage(s.getDB().QueryRowContext(ctx, query, id))
}

// UpdatePackage updates a package
func (s *PostgresStore) UpdatePackage(ctx context.Context, pkg *models.Package) error {
	pkg.UpdatedAt = time.Now()

	query := `
        UPDATE packages SET
            updated_at = $2, name = $3, type = $4, bandwidth = $5,
            burst = $6, priority = $7, price = $8
        WHERE id = $1`

	return expectOne(s.getDB().ExecContext(ctx, query,
		pkg.ID, pkg.UpdatedAt, pkg.Name, pkg.Type, pkg.Bandwidth,
		pkg.Burst, pkg.Priority, pkg.Price,
	))
}

// DeletePackage deletes a package
func (s *PostgresStore) DeletePackage(ctx context.Context, id uuid.UUID) error {
	return expectOne(s.getDB().ExecContext(ctx, "DELETE FROM packages WHERE id = $1", id))
}

// ListPackages lists packages
func (s *PostgresStore) ListPackages(ctx context.Context, limit, offset int) ([]*models.Package, int64, error) {
	var count int64
	if err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM packages").Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, name, type, bandwidth, burst, priority, price
        FROM packages
        ORDER BY name
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var pkgs []*models.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, 0, err
		}
		pkgs = append(pkgs, pkg)
	}

	return pkgs, count, rows.Err()
}
