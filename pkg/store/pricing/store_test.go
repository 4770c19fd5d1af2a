package pricing

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

const validTable = `
version: "2024-06"
currency: USD
rules:
  - provider: yandex
    resource_type: disk_snapshot
    unit: storage_gb
    rate_per_unit_per_day: "0.1123"
  - provider: yandex
    resource_type: reserved_address
    unit: public_ip_idle
    rate_per_unit_per_day: "0"
    flat_surcharge_per_day: "0.3"
`

func TestParse_Valid(t *testing.T) {
	loadedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	table, err := Parse(strings.NewReader(validTable), loadedAt)
	require.NoError(t, err)

	assert.Equal(t, "2024-06", table.Version)
	assert.Equal(t, "USD", table.Currency)
	assert.Equal(t, loadedAt, table.LoadedAt)
	assert.Equal(t, 2, table.Len())

	rules := table.Rules(domain.RuleKey{Provider: domain.ProviderYandex, ResourceType: domain.ResourceReservedAddress})
	require.Len(t, rules, 1)
	require.NotNil(t, rules[0].FlatSurchargePerDay)
	assert.Equal(t, "0.3", rules[0].FlatSurchargePerDay.String())
	assert.Equal(t, "0.1123", table.Rules(domain.RuleKey{Provider: domain.ProviderYandex, ResourceType: domain.ResourceDiskSnapshot})[0].RatePerUnitPerDay.String())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "empty document",
			doc:     "",
			wantErr: "empty",
		},
		{
			name:    "unknown field",
			doc:     "version: v1\ncurrency: USD\nformula: x*2\nrules: []\n",
			wantErr: "formula",
		},
		{
			name:    "missing version",
			doc:     "currency: USD\nrules:\n  - {provider: aws, resource_type: image, unit: storage_gb, rate_per_unit_per_day: '1'}\n",
			wantErr: "Version",
		},
		{
			name:    "unknown unit",
			doc:     "version: v1\ncurrency: USD\nrules:\n  - {provider: aws, resource_type: image, unit: iops, rate_per_unit_per_day: '1'}\n",
			wantErr: `unknown unit "iops"`,
		},
		{
			name:    "unknown provider",
			doc:     "version: v1\ncurrency: USD\nrules:\n  - {provider: gcp, resource_type: image, unit: storage_gb, rate_per_unit_per_day: '1'}\n",
			wantErr: `unknown provider "gcp"`,
		},
		{
			name:    "negative rate",
			doc:     "version: v1\ncurrency: USD\nrules:\n  - {provider: aws, resource_type: image, unit: storage_gb, rate_per_unit_per_day: '-1'}\n",
			wantErr: "must not be negative",
		},
		{
			name:    "malformed surcharge",
			doc:     "version: v1\ncurrency: USD\nrules:\n  - {provider: aws, resource_type: image, unit: instance, rate_per_unit_per_day: '0', flat_surcharge_per_day: abc}\n",
			wantErr: "flat_surcharge_per_day",
		},
		{
			name: "duplicate rule",
			doc: "version: v1\ncurrency: USD\nrules:\n" +
				"  - {provider: aws, resource_type: image, unit: storage_gb, rate_per_unit_per_day: '1'}\n" +
				"  - {provider: aws, resource_type: image, unit: storage_gb, rate_per_unit_per_day: '2'}\n",
			wantErr: "duplicate pricing rule aws/image/storage_gb",
		},
		{
			name:    "lowercase currency",
			doc:     "version: v1\ncurrency: usd\nrules:\n  - {provider: aws, resource_type: image, unit: storage_gb, rate_per_unit_per_day: '1'}\n",
			wantErr: "Currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc), time.Now())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFileStore_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validTable), 0o600))

	table, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-06", table.Version)

	_, err = NewFileStore(filepath.Join(t.TempDir(), "missing.yaml")).Load(context.Background())
	assert.Error(t, err)
}
