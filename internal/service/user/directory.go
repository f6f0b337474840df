// Package user is the read-only directory adapter over the platform's tenant
// and landlord tables. The chat core uses it to decorate output with display
// identity; it is never consulted for authorization.
package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/internal/repository"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/redis"
)

var ErrUserNotFound = errors.New("user not found")

// Identity is the directory view of a platform user. Identifier is the value
// the chat subsystem keys conversations on.
type Identity struct {
	Type       string `json:"type"`
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Identifier string `json:"identifier"`
}

// Directory resolves user identity for display purposes.
type Directory interface {
	Resolve(ctx context.Context, identifier string) (*Identity, error)
	Search(ctx context.Context, query, exclude string) ([]*Identity, error)
	GetByID(ctx context.Context, id int64) (*Identity, error)
}

// SQLDirectory reads the tenant/landlord tables owned by the property domain.
// Lookups run behind a circuit breaker and a short-lived cache so a directory
// outage degrades chat output instead of failing it.
type SQLDirectory struct {
	*repository.BaseRepository
	cache   *redis.Cache
	breaker *gobreaker.CircuitBreaker
}

func NewSQLDirectory(db *sql.DB, log *zap.Logger, cache *redis.Cache) *SQLDirectory {
	return &SQLDirectory{
		BaseRepository: repository.NewBaseRepository(db, log),
		cache:          cache,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "user-directory",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

const directoryCacheTTL = 5 * time.Minute

const identityUnion = `
	SELECT 'tenant' AS type, id, name, email FROM tenants
	UNION ALL
	SELECT 'landlord' AS type, id, name, email FROM landlords`

// Resolve looks up the identity for a chat identifier (the user's email).
func (d *SQLDirectory) Resolve(ctx context.Context, identifier string) (*Identity, error) {
	if d.cache != nil {
		cached := &Identity{}
		if err := d.cache.Get(ctx, "identity", identifier, cached); err == nil {
			return cached, nil
		}
	}

	result, err := d.breaker.Execute(func() (interface{}, error) {
		ident := &Identity{}
		query := `SELECT type, id, name, email FROM (` + identityUnion + `) u WHERE u.email = $1 LIMIT 1`
		err := d.GetDB().QueryRowContext(ctx, query, identifier).Scan(
			&ident.Type, &ident.ID, &ident.Name, &ident.Email,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		ident.Identifier = ident.Email
		return ident, nil
	})
	if err != nil {
		return nil, err
	}

	ident, ok := result.(*Identity)
	if !ok {
		return nil, ErrUserNotFound
	}
	if d.cache != nil {
		if err := d.cache.Set(ctx, "identity", identifier, ident, directoryCacheTTL); err != nil {
			d.GetLogger().Warn("failed to cache identity", zap.Error(err))
		}
	}
	return ident, nil
}

// Search finds users whose name or email matches the query, excluding one
// identifier (typically the caller).
func (d *SQLDirectory) Search(ctx context.Context, query, exclude string) ([]*Identity, error) {
	result, err := d.breaker.Execute(func() (interface{}, error) {
		q := `SELECT type, id, name, email FROM (` + identityUnion + `) u
			WHERE (u.name ILIKE '%' || $1 || '%' OR u.email ILIKE '%' || $1 || '%')
				AND u.email <> $2
			ORDER BY u.name ASC
			LIMIT 20`
		rows, err := d.GetDB().QueryContext(ctx, q, query, exclude)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var identities []*Identity
		for rows.Next() {
			ident := &Identity{}
			if err := rows.Scan(&ident.Type, &ident.ID, &ident.Name, &ident.Email); err != nil {
				return nil, err
			}
			ident.Identifier = ident.Email
			identities = append(identities, ident)
		}
		return identities, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	identities, ok := result.([]*Identity)
	if !ok {
		return nil, nil
	}
	return identities, nil
}

// GetByID looks a user up by surrogate id across both tables.
func (d *SQLDirectory) GetByID(ctx context.Context, id int64) (*Identity, error) {
	result, err := d.breaker.Execute(func() (interface{}, error) {
		ident := &Identity{}
		query := `SELECT type, id, name, email FROM (` + identityUnion + `) u WHERE u.id = $1 LIMIT 1`
		err := d.GetDB().QueryRowContext(ctx, query, id).Scan(
			&ident.Type, &ident.ID, &ident.Name, &ident.Email,
		)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		ident.Identifier = ident.Email
		return ident, nil
	})
	if err != nil {
		return nil, err
	}
	ident, ok := result.(*Identity)
	if !ok {
		return nil, ErrUserNotFound
	}
	return ident, nil
}
