// Package provisioning prepares the database artefacts of a new school.
package provisioning

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zenGate-Global/schoolspace/platform/go/persistence"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// SchemaProvisioner creates the school namespace and its base tables.
type SchemaProvisioner struct {
	pool *pgxpool.Pool
}

func NewSchemaProvisioner(pool *pgxpool.Pool) *SchemaProvisioner {
	if pool == nil {
		panic("schema provisioner requires pool")
	}
	return &SchemaProvisioner{pool: pool}
}

// Ensure is idempotent: existing schemas and tables are left untouched.
func (p *SchemaProvisioner) Ensure(ctx context.Context, namespace string) error {
	if err := tenant.ValidateNamespace(namespace); err != nil {
		return err
	}
	if err := persistence.BootstrapSchool(ctx, p.pool, namespace); err != nil {
		return fmt.Errorf("ensure namespace %s: %w", namespace, err)
	}
	return nil
}

// Noop skips provisioning. Used with the in-memory repository.
type Noop struct{}

func (Noop) Ensure(context.Context, string) error { return nil }
