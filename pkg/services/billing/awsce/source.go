package awsce

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	awsprovider "github.com/de-tools/inventory-atlas/pkg/providers/aws"
	"github.com/de-tools/inventory-atlas/pkg/services/billing"
)

const (
	SourceName = "aws_ce"
	metric     = "UnblendedCost"
	dateLayout = "2006-01-02"
)

var serviceTypes = map[string]domain.ResourceType{
	"Amazon Elastic Compute Cloud - Compute": domain.ResourceComputeInstance,
	"EC2 - Other":                            domain.ResourceBlockVolume,
	"Amazon Relational Database Service":     domain.ResourceDatabaseCluster,
	"Amazon Simple Storage Service":          domain.ResourceObjectBucket,
	"Amazon Route 53":                        domain.ResourceDNSZone,
	"Elastic Load Balancing":                 domain.ResourceLoadBalancer,
	"Amazon EC2 Container Registry (ECR)":    domain.ResourceRegistry,
}

type API interface {
	GetCostAndUsage(
		ctx context.Context,
		params *costexplorer.GetCostAndUsageInput,
		optFns ...func(*costexplorer.Options),
	) (*costexplorer.GetCostAndUsageOutput, error)
}

type Source struct {
	client API
}

func New(client API) *Source {
	return &Source{client: client}
}

func Factory(ctx context.Context, conn domain.Connection) (billing.Source, error) {
	profile := ""
	if conn.Credential.Source == "profile" {
		profile = conn.Credential.Value
	}
	cfg, _, err := awsprovider.LoadConfig(ctx, profile)
	if err != nil {
		return nil, err
	}
	return New(costexplorer.NewFromConfig(cfg)), nil
}

func (s *Source) Name() string {
	return SourceName
}

// Actual sums unblended cost per service over the period, credits and
// refunds excluded.
func (s *Source) Actual(ctx context.Context, period domain.TimePeriod) (domain.ActualBill, error) {
	logger := zerolog.Ctx(ctx)

	input := &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(period.Start.Format(dateLayout)),
			End:   aws.String(period.End.Format(dateLayout)),
		},
		Granularity: types.GranularityMonthly,
		Metrics:     []string{metric},
		Filter: &types.Expression{
			Not: &types.Expression{
				Dimensions: &types.DimensionValues{
					Key:    types.DimensionRecordType,
					Values: []string{"Credit", "Refund"},
				},
			},
		},
		GroupBy: []types.GroupDefinition{
			{
				Type: types.GroupDefinitionTypeDimension,
				Key:  aws.String(string(types.DimensionService)),
			},
		},
	}

	total := decimal.Zero
	byType := make(map[domain.ResourceType]decimal.Decimal)
	currency := ""

	for {
		out, err := s.client.GetCostAndUsage(ctx, input)
		if err != nil {
			return domain.ActualBill{}, fmt.Errorf("failed to get cost and usage: %w", err)
		}

		for _, byTime := range out.ResultsByTime {
			for _, group := range byTime.Groups {
				value, ok := group.Metrics[metric]
				if !ok || value.Amount == nil {
					continue
				}
				amount, err := decimal.NewFromString(*value.Amount)
				if err != nil {
					return domain.ActualBill{}, fmt.Errorf("invalid amount %q: %w", *value.Amount, err)
				}
				if value.Unit != nil && currency == "" {
					currency = *value.Unit
				}

				total = total.Add(amount)
				if len(group.Keys) == 0 {
					continue
				}
				if t, ok := serviceTypes[group.Keys[0]]; ok {
					byType[t] = byType[t].Add(amount)
				} else {
					logger.Debug().Str("service", group.Keys[0]).Msg("service has no resource type")
				}
			}
		}

		if out.NextPageToken == nil || *out.NextPageToken == "" {
			break
		}
		input.NextPageToken = out.NextPageToken
	}

	return billing.Daily(SourceName, period, currency, total, byType), nil
}
