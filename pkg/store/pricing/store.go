package pricing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/de-tools/inventory-atlas/pkg/models/domain"
)

// Store yields the pricing table version to use for a run.
type Store interface {
	Load(ctx context.Context) (domain.PricingTable, error)
}

type ruleDocument struct {
	Provider            string  `yaml:"provider" validate:"required"`
	ResourceType        string  `yaml:"resource_type" validate:"required"`
	Unit                string  `yaml:"unit" validate:"required"`
	RatePerUnitPerDay   string  `yaml:"rate_per_unit_per_day" validate:"required"`
	FlatSurchargePerDay *string `yaml:"flat_surcharge_per_day,omitempty"`
}

type tableDocument struct {
	Version  string         `yaml:"version" validate:"required"`
	Currency string         `yaml:"currency" validate:"required,len=3,uppercase"`
	Rules    []ruleDocument `yaml:"rules" validate:"required,min=1,dive"`
}

type fileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore reads a YAML pricing table from path on every Load, so edits
// to the file become a new version at the next run.
func NewFileStore(path string) Store {
	return &fileStore{path: path, now: time.Now}
}

func (s *fileStore) Load(_ context.Context) (domain.PricingTable, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return domain.PricingTable{}, fmt.Errorf("failed to open pricing table: %w", err)
	}
	defer f.Close()

	table, err := Parse(f, s.now().UTC())
	if err != nil {
		return domain.PricingTable{}, fmt.Errorf("pricing table %s: %w", s.path, err)
	}
	return table, nil
}

type staticStore struct {
	table domain.PricingTable
}

func NewStaticStore(table domain.PricingTable) Store {
	return &staticStore{table: table}
}

func (s *staticStore) Load(_ context.Context) (domain.PricingTable, error) {
	return s.table, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse decodes and validates a pricing table document. Unknown fields,
// unknown enum values, negative rates and duplicate rules are rejected.
func Parse(r io.Reader, loadedAt time.Time) (domain.PricingTable, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc tableDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.PricingTable{}, fmt.Errorf("pricing table is empty")
		}
		return domain.PricingTable{}, fmt.Errorf("failed to decode pricing table: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return domain.PricingTable{}, fmt.Errorf("invalid pricing table: %w", err)
	}

	var problems []string
	rules := make([]domain.PricingRule, 0, len(doc.Rules))
	for i, rd := range doc.Rules {
		rule, err := rd.toDomain()
		if err != nil {
			problems = append(problems, fmt.Sprintf("rules[%d]: %v", i, err))
			continue
		}
		rules = append(rules, rule)
	}
	if len(problems) > 0 {
		return domain.PricingTable{}, fmt.Errorf("invalid pricing table: %s", strings.Join(problems, "; "))
	}

	return domain.NewPricingTable(doc.Version, doc.Currency, loadedAt, rules)
}

func (rd ruleDocument) toDomain() (domain.PricingRule, error) {
	rule := domain.PricingRule{
		Provider:     domain.ProviderKind(rd.Provider),
		ResourceType: domain.ResourceType(rd.ResourceType),
		Unit:         domain.UnitKind(rd.Unit),
	}
	if !rule.Provider.Valid() {
		return rule, fmt.Errorf("unknown provider %q", rd.Provider)
	}
	if !rule.ResourceType.Valid() {
		return rule, fmt.Errorf("unknown resource type %q", rd.ResourceType)
	}
	if !rule.Unit.Valid() {
		return rule, fmt.Errorf("unknown unit %q", rd.Unit)
	}

	rate, err := parseAmount(rd.RatePerUnitPerDay)
	if err != nil {
		return rule, fmt.Errorf("rate_per_unit_per_day: %w", err)
	}
	rule.RatePerUnitPerDay = rate

	if rd.FlatSurchargePerDay != nil {
		surcharge, err := parseAmount(*rd.FlatSurchargePerDay)
		if err != nil {
			return rule, fmt.Errorf("flat_surcharge_per_day: %w", err)
		}
		rule.FlatSurchargePerDay = &surcharge
	}
	return rule, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a decimal: %q", s)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("must not be negative: %s", s)
	}
	return d, nil
}
