package resolver

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

func gib(n int64) decimal.Decimal {
	return decimal.NewFromInt(n << 30)
}

func diskLink(id string) domain.Link {
	return domain.Link{
		Attribute:       domain.AttrStorageBytes,
		TargetType:      domain.ResourceBlockVolume,
		TargetID:        id,
		TargetAttribute: domain.AttrStorageBytes,
		Status:          domain.LinkUnresolved,
	}
}

func instance(id string, links ...domain.Link) domain.Resource {
	return domain.Resource{
		ID:         id,
		Type:       domain.ResourceComputeInstance,
		Attributes: domain.Attributes{domain.AttrCPUUnits: decimal.NewFromInt(2)},
		Links:      links,
	}
}

func disk(id string, size int64) domain.Resource {
	return domain.Resource{
		ID:         id,
		Type:       domain.ResourceBlockVolume,
		Attributes: domain.Attributes{domain.AttrStorageBytes: gib(size)},
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name         string
		kind         domain.ProviderKind
		resources    []domain.Resource
		wantStorage  decimal.Decimal
		wantStatus   []domain.LinkStatus
		wantDangling []domain.DanglingLink
	}{
		{
			name:        "target present",
			kind:        domain.ProviderYandex,
			resources:   []domain.Resource{instance("I1", diskLink("D1")), disk("D1", 20)},
			wantStorage: gib(20),
			wantStatus:  []domain.LinkStatus{domain.LinkResolved},
		},
		{
			name:        "target absent",
			kind:        domain.ProviderYandex,
			resources:   []domain.Resource{instance("I1", diskLink("D1"))},
			wantStorage: decimal.Zero,
			wantStatus:  []domain.LinkStatus{domain.LinkDangling},
			wantDangling: []domain.DanglingLink{{
				SourceType: domain.ResourceComputeInstance,
				SourceID:   "I1",
				Attribute:  domain.AttrStorageBytes,
				TargetType: domain.ResourceBlockVolume,
				TargetID:   "D1",
			}},
		},
		{
			name:        "several targets are summed",
			kind:        domain.ProviderAWS,
			resources:   []domain.Resource{disk("D1", 20), disk("D2", 5), instance("I1", diskLink("D1"), diskLink("D2"))},
			wantStorage: gib(25),
			wantStatus:  []domain.LinkStatus{domain.LinkResolved, domain.LinkResolved},
		},
		{
			name:        "azure ids ignore case",
			kind:        domain.ProviderAzure,
			resources:   []domain.Resource{instance("vm", diskLink("/subscriptions/S/disks/OS")), disk("/subscriptions/s/disks/os", 30)},
			wantStorage: gib(30),
			wantStatus:  []domain.LinkStatus{domain.LinkResolved},
		},
		{
			name:        "other providers keep case",
			kind:        domain.ProviderAWS,
			resources:   []domain.Resource{instance("I1", diskLink("VOL-1")), disk("vol-1", 30)},
			wantStorage: decimal.Zero,
			wantStatus:  []domain.LinkStatus{domain.LinkDangling},
			wantDangling: []domain.DanglingLink{{
				SourceType: domain.ResourceComputeInstance,
				SourceID:   "I1",
				Attribute:  domain.AttrStorageBytes,
				TargetType: domain.ResourceBlockVolume,
				TargetID:   "VOL-1",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolved, dangling, err := Resolve(context.Background(), NewIndex(tt.kind, tt.resources))
			require.NoError(t, err)
			require.Len(t, resolved, len(tt.resources))

			var inst domain.Resource
			for _, r := range resolved {
				if r.Type == domain.ResourceComputeInstance {
					inst = r
				}
			}
			got, ok := inst.Attributes[domain.AttrStorageBytes].(decimal.Decimal)
			require.True(t, ok, "storage must be set explicitly")
			assert.True(t, tt.wantStorage.Equal(got), "storage %s", got)
			assert.True(t, inst.Attributes.Decimal(domain.AttrCPUUnits).Equal(decimal.NewFromInt(2)))

			statuses := make([]domain.LinkStatus, 0, len(inst.Links))
			for _, l := range inst.Links {
				statuses = append(statuses, l.Status)
			}
			assert.Equal(t, tt.wantStatus, statuses)
			assert.Equal(t, tt.wantDangling, dangling)
		})
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	in := []domain.Resource{instance("I1", diskLink("D1")), disk("D1", 20)}
	ix := NewIndex(domain.ProviderYandex, in)

	_, _, err := Resolve(context.Background(), ix)
	require.NoError(t, err)

	r, ok := ix.Lookup(domain.ResourceComputeInstance, "I1")
	require.True(t, ok)
	assert.Equal(t, domain.LinkUnresolved, r.Links[0].Status)
	assert.NotContains(t, r.Attributes, domain.AttrStorageBytes)
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Resolve(ctx, NewIndex(domain.ProviderYandex, []domain.Resource{instance("I1", diskLink("D1"))}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewIndex_LastDuplicateWins(t *testing.T) {
	ix := NewIndex(domain.ProviderAzure, []domain.Resource{disk("/d/A", 1), disk("/d/a", 2)})

	assert.Equal(t, 1, ix.Len())
	r, ok := ix.Lookup(domain.ResourceBlockVolume, "/D/A")
	require.True(t, ok)
	assert.True(t, r.Attributes.Decimal(domain.AttrStorageBytes).Equal(gib(2)))
}
