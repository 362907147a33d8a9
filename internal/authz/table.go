// Package authz holds the declarative permission table and the single function that
// consults it.
package authz

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Feature names
const (
	FeatureDashboard            = "dashboard"
	FeatureCategories           = "categories"
	FeatureIngredients          = "ingredients"
	FeatureStock                = "stock"
	FeatureCustomers            = "customers"
	FeatureCustomerSegmentation = "customer_segmentation"
	FeatureCoupons              = "coupons"
	FeatureOrders               = "orders"
	FeatureCashRegister         = "cash_register"
	FeatureFeedback             = "feedback"
	FeatureIntegrations         = "integrations"
	FeatureAudit                = "audit"
)

// Action is an operation on a feature.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"

	wildcard Action = "*"
)

//go:embed permissions.yaml
var defaultTable []byte

// FeatureRule is one row of the table.
type FeatureRule struct {
	Core  bool                `yaml:"core"`
	Roles map[string][]Action `yaml:"roles"`
}

// Table maps features to their rules.
type Table struct {
	Features map[string]FeatureRule `yaml:"features"`
}

// ParseTable decodes a YAML permission table.
func ParseTable(raw []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse permission table: %w", err)
	}
	if len(t.Features) == 0 {
		return nil, fmt.Errorf("parse permission table: no features declared")
	}
	return &t, nil
}

// DefaultTable returns the embedded table.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(err)
	}
	return t
}

// Known reports whether feature is declared.
func (t *Table) Known(feature string) bool {
	_, ok := t.Features[feature]
	return ok
}

// IsCore reports whether feature is always enabled.
func (t *Table) IsCore(feature string) bool {
	return t.Features[feature].Core
}

// Optional lists the features a restaurant can toggle, sorted.
func (t *Table) Optional() []string {
	var out []string
	for name, rule := range t.Features {
		if !rule.Core {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Grants reports whether role may perform action on feature.
func (t *Table) Grants(role, feature string, action Action) bool {
	rule, ok := t.Features[feature]
	if !ok {
		return false
	}
	for _, granted := range rule.Roles[role] {
		if granted == wildcard || granted == action {
			return true
		}
	}
	return false
}
