package azure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/costmanagement/armcostmanagement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

type fakeQuery struct {
	scope  string
	params armcostmanagement.QueryDefinition
	resp   armcostmanagement.QueryClientUsageResponse
	err    error
}

func (f *fakeQuery) Usage(
	_ context.Context,
	scope string,
	parameters armcostmanagement.QueryDefinition,
	_ *armcostmanagement.QueryClientUsageOptions,
) (armcostmanagement.QueryClientUsageResponse, error) {
	f.scope = scope
	f.params = parameters
	return f.resp, f.err
}

func column(name string) *armcostmanagement.QueryColumn {
	return &armcostmanagement.QueryColumn{Name: to.Ptr(name)}
}

func testPeriod() domain.TimePeriod {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return domain.TimePeriod{Start: start, End: start.AddDate(0, 0, 4)}
}

func TestSource_Actual(t *testing.T) {
	q := &fakeQuery{
		resp: armcostmanagement.QueryClientUsageResponse{
			QueryResult: armcostmanagement.QueryResult{
				Properties: &armcostmanagement.QueryProperties{
					Columns: []*armcostmanagement.QueryColumn{column("PreTaxCost"), column("ResourceType"), column("Currency")},
					Rows: [][]any{
						{float64(8), "Microsoft.Compute/virtualMachines", "EUR"},
						{float64(2), "microsoft.compute/disks", "EUR"},
						{"2", "Microsoft.Storage/storageAccounts", "EUR"},
					},
				},
			},
		},
	}

	bill, err := New(q, "sub-1").Actual(context.Background(), testPeriod())
	require.NoError(t, err)

	assert.Equal(t, "/subscriptions/sub-1", q.scope)
	assert.Equal(t, armcostmanagement.ExportTypeActualCost, *q.params.Type)
	assert.Equal(t, "ResourceType", *q.params.Dataset.Grouping[0].Name)

	assert.Equal(t, "3", bill.Amount.String())
	assert.Equal(t, "2", bill.ByType[domain.ResourceComputeInstance].String())
	assert.Equal(t, "0.5", bill.ByType[domain.ResourceBlockVolume].String())
	assert.Len(t, bill.ByType, 2)
	assert.Equal(t, "EUR", bill.Currency)
}

func TestSource_ActualErrors(t *testing.T) {
	_, err := New(&fakeQuery{err: errors.New("forbidden")}, "sub-1").Actual(context.Background(), testPeriod())
	assert.ErrorContains(t, err, "forbidden")

	noCost := &fakeQuery{
		resp: armcostmanagement.QueryClientUsageResponse{
			QueryResult: armcostmanagement.QueryResult{
				Properties: &armcostmanagement.QueryProperties{
					Columns: []*armcostmanagement.QueryColumn{column("ResourceType")},
				},
			},
		},
	}
	_, err = New(noCost, "sub-1").Actual(context.Background(), testPeriod())
	assert.ErrorContains(t, err, "PreTaxCost")

	badValue := &fakeQuery{
		resp: armcostmanagement.QueryClientUsageResponse{
			QueryResult: armcostmanagement.QueryResult{
				Properties: &armcostmanagement.QueryProperties{
					Columns: []*armcostmanagement.QueryColumn{column("PreTaxCost")},
					Rows:    [][]any{{true}},
				},
			},
		},
	}
	_, err = New(badValue, "sub-1").Actual(context.Background(), testPeriod())
	assert.ErrorContains(t, err, "unexpected cost value")
}
