package coupon

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// DefaultRules is the storefront's built-in coupon table.
var DefaultRules = []Descriptor{
	{Code: "GOLD10", Kind: enums.DiscountKindPercentage, Value: decimal.RequireFromString("0.10"), Description: "10% de desconto"},
	{Code: "SAVE50", Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(50), Description: "R$ 50 de desconto"},
}

// StaticTable is an in-memory Repository keyed by normalized code.
type StaticTable struct {
	rules map[string]Descriptor
}

func NewStaticTable(rules []Descriptor) (*StaticTable, error) {
	table := &StaticTable{rules: make(map[string]Descriptor, len(rules))}
	for _, rule := range rules {
		rule.Code = Normalize(rule.Code)
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		if _, dup := table.rules[rule.Code]; dup {
			return nil, fmt.Errorf("duplicate coupon %s", rule.Code)
		}
		table.rules[rule.Code] = rule
	}
	return table, nil
}

func (t *StaticTable) FindByCode(_ context.Context, code string) (*Descriptor, error) {
	rule, ok := t.rules[Normalize(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rule, nil
}

// ParseRules reads entries of the form CODE:kind:value, e.g. "GOLD10:percentage:0.10".
func ParseRules(entries []string) ([]Descriptor, error) {
	rules := make([]Descriptor, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("coupon entry %q: expected CODE:kind:value", entry)
		}
		kind, err := enums.ParseDiscountKind(parts[1])
		if err != nil {
			return nil, fmt.Errorf("coupon entry %q: %w", entry, err)
		}
		value, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, fmt.Errorf("coupon entry %q: %w", entry, err)
		}
		rule := Descriptor{Code: Normalize(parts[0]), Kind: kind, Value: value}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
