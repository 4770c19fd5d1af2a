package snowflake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/snowflakedb/gosnowflake"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
	"github.com/de-tools/inventory-atlas/pkg/providers"
)

const defaultPageSize = 500

var supportedTypes = []domain.ResourceType{
	domain.ResourceSQLWarehouse,
	domain.ResourceDatabaseStorage,
}

var (
	authErrors    = map[int]bool{390100: true, 390144: true}
	expiredErrors = map[int]bool{390112: true, 390114: true}
	deniedErrors  = map[int]bool{2003: true, 3001: true}
)

type Opener func(dsn string) (*sql.DB, error)

func openSnowflake(dsn string) (*sql.DB, error) {
	return sql.Open("snowflake", dsn)
}

type Adapter struct {
	open     Opener
	pageSize int

	mu sync.Mutex
	db *sql.DB
}

func New() *Adapter {
	return &Adapter{open: openSnowflake, pageSize: defaultPageSize}
}

func Factory(_ context.Context, conn domain.Connection) (providers.Adapter, error) {
	if conn.Provider != domain.ProviderSnowflake {
		return nil, fmt.Errorf("connection %s is not a Snowflake connection", conn.ID)
	}
	return New(), nil
}

func (a *Adapter) Kind() domain.ProviderKind {
	return domain.ProviderSnowflake
}

func (a *Adapter) ResourceTypes() []domain.ResourceType {
	return supportedTypes
}

// Authenticate accepts a profile file (source "file") or a raw DSN (source "dsn").
func (a *Adapter) Authenticate(ctx context.Context, credential domain.CredentialHandle) (providers.Session, error) {
	var (
		dsn     string
		account string
	)
	switch credential.Source {
	case "file":
		cfg, err := LoadConfig(credential.Value)
		if err != nil {
			return providers.Session{}, providers.AuthenticationFailure(domain.ProviderSnowflake, "invalid profile", err)
		}
		if dsn, err = cfg.DSN(); err != nil {
			return providers.Session{}, providers.AuthenticationFailure(domain.ProviderSnowflake, "invalid profile", err)
		}
		account = cfg.Account
	case "dsn":
		dsn = credential.Value
		if parsed, err := gosnowflake.ParseDSN(dsn); err == nil {
			account = parsed.Account
		}
	default:
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderSnowflake,
			fmt.Sprintf("unsupported credential source %q", credential.Source), nil)
	}

	db, err := a.open(dsn)
	if err != nil {
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderSnowflake, "failed to open connection", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		if classified := classify(err, ""); providers.IsCategory(classified, providers.CategoryTransient) {
			return providers.Session{}, classified
		}
		return providers.Session{}, providers.AuthenticationFailure(domain.ProviderSnowflake, "login rejected", err)
	}

	a.mu.Lock()
	if a.db != nil {
		_ = a.db.Close()
	}
	a.db = db
	a.mu.Unlock()

	return providers.Session{Token: account}, nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// ListPage pages with numeric offsets encoded as the page token.
func (a *Adapter) ListPage(
	ctx context.Context,
	_ providers.Session,
	_ domain.Scope,
	resourceType domain.ResourceType,
	pageToken string,
) (providers.Page, error) {
	a.mu.Lock()
	db := a.db
	a.mu.Unlock()
	if db == nil {
		return providers.Page{}, providers.SessionExpired(domain.ProviderSnowflake, resourceType, nil)
	}

	offset := 0
	if pageToken != "" {
		var err error
		if offset, err = strconv.Atoi(pageToken); err != nil {
			return providers.Page{}, fmt.Errorf("invalid page token %q: %w", pageToken, err)
		}
	}

	var (
		rows    *sql.Rows
		err     error
		idField string
		paged   bool
	)
	switch resourceType {
	case domain.ResourceSQLWarehouse:
		rows, err = db.QueryContext(ctx, "SHOW WAREHOUSES")
		idField = "name"
	case domain.ResourceDatabaseStorage:
		//language=SQL
		query := `
			SELECT database_id, database_name, usage_date, average_database_bytes, average_failsafe_bytes
			FROM snowflake.account_usage.database_storage_usage_history
			WHERE deleted IS NULL
			  AND usage_date = (SELECT MAX(usage_date) FROM snowflake.account_usage.database_storage_usage_history)
			ORDER BY database_name
			LIMIT ? OFFSET ?
		`
		rows, err = db.QueryContext(ctx, query, a.pageSize, offset)
		idField = "database_name"
		paged = true
	default:
		return providers.Page{}, providers.Unavailable(domain.ProviderSnowflake, resourceType, "resource type not supported", nil)
	}
	if err != nil {
		return providers.Page{}, classify(err, resourceType)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return providers.Page{}, classify(err, resourceType)
	}

	page := providers.Page{}
	for _, fields := range records {
		id, _ := fields[idField].(string)
		page.Entries = append(page.Entries, domain.RawEntry{ID: id, Fields: fields})
	}
	if paged && len(records) == a.pageSize {
		page.NextToken = strconv.Itoa(offset + a.pageSize)
	}
	return page, nil
}

// scanRows reads rows of unknown shape into maps keyed by lower-cased column name.
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[strings.ToLower(col)] = v
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func classify(err error, resourceType domain.ResourceType) error {
	var sfErr *gosnowflake.SnowflakeError
	if errors.As(err, &sfErr) {
		switch {
		case authErrors[sfErr.Number]:
			return providers.AuthenticationFailure(domain.ProviderSnowflake, sfErr.Message, err)
		case expiredErrors[sfErr.Number]:
			return providers.SessionExpired(domain.ProviderSnowflake, resourceType, err)
		case deniedErrors[sfErr.Number]:
			return providers.Unavailable(domain.ProviderSnowflake, resourceType, sfErr.Message, err)
		}
	}
	return providers.Transient(domain.ProviderSnowflake, resourceType, "query failed", err)
}
