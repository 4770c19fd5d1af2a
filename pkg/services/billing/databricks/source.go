package databricks

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/databricks/databricks-sql-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	dbxprovider "github.com/de-tools/inventory-atlas/pkg/providers/databricks"
	"github.com/de-tools/inventory-atlas/pkg/services/billing"
)

const SourceName = "databricks_billing"

const usageQuery = `
	SELECT
		u.billing_origin_product AS product,
		lp.currency_code AS currency_code,
		SUM(u.usage_quantity * lp.pricing.default) AS cost
	FROM system.billing.usage AS u
	JOIN system.billing.list_prices AS lp
		ON u.sku_name = lp.sku_name
		AND u.usage_end_time >= lp.price_start_time
		AND (lp.price_end_time IS NULL OR u.usage_end_time < lp.price_end_time)
	WHERE u.usage_date >= ? AND u.usage_date < ?
	GROUP BY u.billing_origin_product, lp.currency_code
`

var productTypes = map[string]domain.ResourceType{
	"ALL_PURPOSE": domain.ResourceAnalyticsCluster,
	"JOBS":        domain.ResourceAnalyticsCluster,
	"DLT":         domain.ResourceAnalyticsCluster,
	"SQL":         domain.ResourceSQLWarehouse,
}

type Source struct {
	db *sql.DB
}

func New(db *sql.DB) *Source {
	return &Source{db: db}
}

// Factory opens a SQL warehouse connection. The warehouse is named by
// scope.extra.http_path.
func Factory(_ context.Context, conn domain.Connection) (billing.Source, error) {
	httpPath := conn.Scope.Extra["http_path"]
	if httpPath == "" {
		return nil, fmt.Errorf("connection %s has no warehouse http_path", conn.ID)
	}
	profile, err := dbxprovider.ResolveProfile(conn.Credential, conn.Scope.Extra["host"], conn.Scope.Extra["config_file"])
	if err != nil {
		return nil, err
	}

	host := strings.TrimPrefix(strings.TrimPrefix(profile.Host, "https://"), "http://")
	dsn := fmt.Sprintf("token:%s@%s%s", profile.Token, strings.TrimSuffix(host, "/"), httpPath)
	db, err := sql.Open("databricks", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open databricks sql connection: %w", err)
	}
	return New(db), nil
}

func (s *Source) Name() string {
	return SourceName
}

func (s *Source) Close() error {
	return s.db.Close()
}

// Actual prices billable usage at list price, grouped by billing product.
func (s *Source) Actual(ctx context.Context, period domain.TimePeriod) (domain.ActualBill, error) {
	logger := zerolog.Ctx(ctx)

	rows, err := s.db.QueryContext(ctx, usageQuery, period.Start.Format("2006-01-02"), period.End.Format("2006-01-02"))
	if err != nil {
		return domain.ActualBill{}, fmt.Errorf("billing usage query failed: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close billing usage rows")
		}
	}(rows)

	total := decimal.Zero
	byType := make(map[domain.ResourceType]decimal.Decimal)
	currency := ""

	for rows.Next() {
		var (
			product, currencyCode string
			cost                  decimal.NullDecimal
		)
		if err := rows.Scan(&product, &currencyCode, &cost); err != nil {
			return domain.ActualBill{}, fmt.Errorf("failed to scan billing usage row: %w", err)
		}
		if !cost.Valid {
			continue
		}
		if currency == "" {
			currency = currencyCode
		} else if currency != currencyCode {
			return domain.ActualBill{}, fmt.Errorf("billing usage mixes currencies %s and %s", currency, currencyCode)
		}

		total = total.Add(cost.Decimal)
		if t, ok := productTypes[product]; ok {
			byType[t] = byType[t].Add(cost.Decimal)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.ActualBill{}, fmt.Errorf("failed to read billing usage: %w", err)
	}

	return billing.Daily(SourceName, period, currency, total, byType), nil
}
