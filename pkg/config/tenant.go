package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// TenantConfig pairs one ERP company database with one portal tenant credential set.
type TenantConfig struct {
	DatabaseID      string `ignored:"true"`
	ERPDriver       string `envconfig:"ERP_DRIVER" default:"sqlserver"`
	ERPDSN          string `envconfig:"ERP_DSN" required:"true"`
	PortalTenantID  string `envconfig:"PORTAL_TENANT_ID" required:"true"`
	PortalAPIKey    string `envconfig:"PORTAL_API_KEY" required:"true"`
	PortalAPISecret string `envconfig:"PORTAL_API_SECRET" required:"true"`
}

type tenantGate struct {
	Disabled bool `envconfig:"DISABLED" default:"false"`
}

// TenantPrefix returns the env prefix holding the settings of databaseID,
// e.g. POSYNC_TENANT_COMP01.
func TenantPrefix(databaseID string) string {
	normalized := strings.ToUpper(strings.TrimSpace(databaseID))
	normalized = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(normalized)
	return fmt.Sprintf(tenantPrefixFormat, normalized)
}

// LoadTenants resolves the per-tenant settings of every database listed in Sync.Tenants.
// Disabled tenants are dropped.
func LoadTenants(cfg *Config) ([]TenantConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	ids := cfg.Sync.TenantIDs()
	tenants := make([]TenantConfig, 0, len(ids))
	for _, id := range ids {
		prefix := TenantPrefix(id)
		var gate tenantGate
		if err := envconfig.Process(prefix, &gate); err != nil {
			return nil, fmt.Errorf("tenant %s: %w", id, err)
		}
		if gate.Disabled {
			continue
		}
		var tenant TenantConfig
		if err := envconfig.Process(prefix, &tenant); err != nil {
			return nil, fmt.Errorf("tenant %s: %w", id, err)
		}
		tenant.DatabaseID = id
		tenant.ERPDriver = strings.ToLower(strings.TrimSpace(tenant.ERPDriver))
		tenants = append(tenants, tenant)
	}
	return tenants, nil
}
