package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableDeclaresEveryFeature(t *testing.T) {
	table := DefaultTable()

	for _, f := range []string{
		FeatureDashboard, FeatureCategories, FeatureIngredients, FeatureStock,
		FeatureCustomers, FeatureCustomerSegmentation, FeatureCoupons, FeatureOrders,
		FeatureCashRegister, FeatureFeedback, FeatureIntegrations, FeatureAudit,
	} {
		assert.True(t, table.Known(f), f)
	}
	assert.False(t, table.Known("payroll"))
}

func TestOptionalIsSortedAndExcludesCore(t *testing.T) {
	optional := DefaultTable().Optional()

	assert.Equal(t, []string{
		FeatureCashRegister, FeatureCoupons, FeatureCustomerSegmentation,
		FeatureFeedback, FeatureIntegrations, FeatureStock,
	}, optional)
}

func TestGrants(t *testing.T) {
	table := DefaultTable()

	assert.True(t, table.Grants("owner", FeatureIntegrations, ActionDelete), "wildcard")
	assert.True(t, table.Grants("staff", FeatureOrders, ActionCreate))
	assert.False(t, table.Grants("staff", FeatureCategories, ActionDelete))
	assert.False(t, table.Grants("staff", FeatureIntegrations, ActionView))
	assert.False(t, table.Grants("owner", "payroll", ActionView))
	assert.False(t, table.Grants("super_admin", FeatureOrders, ActionView), "super_admin bypasses the table")
}

func TestParseTable(t *testing.T) {
	table, err := ParseTable([]byte(`
features:
  reports:
    core: true
    roles:
      manager: [view]
`))
	require.NoError(t, err)
	assert.True(t, table.IsCore("reports"))
	assert.True(t, table.Grants("manager", "reports", ActionView))

	_, err = ParseTable([]byte("features: {}"))
	assert.Error(t, err)

	_, err = ParseTable([]byte("features: ["))
	assert.Error(t, err)
}
