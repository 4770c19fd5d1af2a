package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	azureprovider "github.com/de-tools/inventory-atlas/pkg/providers/azure"
	"github.com/de-tools/inventory-atlas/pkg/services/billing"
)

const (
	SourceName = "azure_cost_management"

	costColumn     = "PreTaxCost"
	typeColumn     = "ResourceType"
	currencyColumn = "Currency"
)

// Keys are lower-case ARM resource types.
var resourceTypes = map[string]domain.ResourceType{
	"microsoft.compute/virtualmachines":      domain.ResourceComputeInstance,
	"microsoft.compute/disks":                domain.ResourceBlockVolume,
	"microsoft.compute/snapshots":            domain.ResourceDiskSnapshot,
	"microsoft.compute/images":               domain.ResourceImage,
	"microsoft.network/publicipaddresses":    domain.ResourceReservedAddress,
	"microsoft.network/loadbalancers":        domain.ResourceLoadBalancer,
	"microsoft.network/dnszones":             domain.ResourceDNSZone,
	"microsoft.containerregistry/registries": domain.ResourceRegistry,
}

type QueryAPI interface {
	Usage(
		ctx context.Context,
		scope string,
		parameters armcostmanagement.QueryDefinition,
		options *armcostmanagement.QueryClientUsageOptions,
	) (armcostmanagement.QueryClientUsageResponse, error)
}

type Source struct {
	client QueryAPI
	scope  string
}

func New(client QueryAPI, subscriptionID string) *Source {
	return &Source{
		client: client,
		scope:  fmt.Sprintf("/subscriptions/%s", subscriptionID),
	}
}

func Factory(_ context.Context, conn domain.Connection) (billing.Source, error) {
	if conn.Scope.AccountID == "" {
		return nil, fmt.Errorf("connection %s has no subscription id", conn.ID)
	}
	cred, err := azureprovider.NewCredential(conn.Credential)
	if err != nil {
		return nil, err
	}
	client, err := armcostmanagement.NewQueryClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cost management client: %w", err)
	}
	return New(client, conn.Scope.AccountID), nil
}

func (s *Source) Name() string {
	return SourceName
}

// Actual sums pre-tax actual cost for the subscription, grouped by ARM
// resource type.
func (s *Source) Actual(ctx context.Context, period domain.TimePeriod) (domain.ActualBill, error) {
	logger := zerolog.Ctx(ctx)

	from, until := period.Start, period.End
	params := armcostmanagement.QueryDefinition{
		Type:      to.Ptr(armcostmanagement.ExportTypeActualCost),
		Timeframe: to.Ptr(armcostmanagement.TimeframeTypeCustom),
		TimePeriod: &armcostmanagement.QueryTimePeriod{
			From: &from,
			To:   &until,
		},
		Dataset: &armcostmanagement.QueryDataset{
			Aggregation: map[string]*armcostmanagement.QueryAggregation{
				"totalCost": {
					Name:     to.Ptr(costColumn),
					Function: to.Ptr(armcostmanagement.FunctionTypeSum),
				},
			},
			Grouping: []*armcostmanagement.QueryGrouping{
				{
					Name: to.Ptr(typeColumn),
					Type: to.Ptr(armcostmanagement.QueryColumnTypeDimension),
				},
			},
		},
	}

	result, err := s.client.Usage(ctx, s.scope, params, nil)
	if err != nil {
		return domain.ActualBill{}, fmt.Errorf("failed to query costs: %w", err)
	}
	if result.Properties == nil {
		return billing.Daily(SourceName, period, "", decimal.Zero, nil), nil
	}

	columns := make(map[string]int, len(result.Properties.Columns))
	for i, c := range result.Properties.Columns {
		if c != nil && c.Name != nil {
			columns[*c.Name] = i
		}
	}
	costIdx, ok := columns[costColumn]
	if !ok {
		costIdx, ok = columns["totalCost"]
	}
	if !ok {
		return domain.ActualBill{}, fmt.Errorf("query result has no %s column", costColumn)
	}
	typeIdx, hasType := columns[typeColumn]
	currencyIdx, hasCurrency := columns[currencyColumn]

	total := decimal.Zero
	byType := make(map[domain.ResourceType]decimal.Decimal)
	currency := ""

	for _, row := range result.Properties.Rows {
		if costIdx >= len(row) {
			continue
		}
		amount, err := toDecimal(row[costIdx])
		if err != nil {
			return domain.ActualBill{}, err
		}
		total = total.Add(amount)

		if hasCurrency && currencyIdx < len(row) && currency == "" {
			currency = fmt.Sprintf("%v", row[currencyIdx])
		}
		if !hasType || typeIdx >= len(row) {
			continue
		}
		armType := strings.ToLower(fmt.Sprintf("%v", row[typeIdx]))
		if t, ok := resourceTypes[armType]; ok {
			byType[t] = byType[t].Add(amount)
		} else {
			logger.Debug().Str("arm_type", armType).Msg("resource type not tracked")
		}
	}

	return billing.Daily(SourceName, period, currency, total, byType), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid cost %q: %w", n, err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected cost value %T", v)
	}
}
