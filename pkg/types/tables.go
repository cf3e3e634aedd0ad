package types

// Standard entity names of the collection back office.
const (
	EntityPortfolios   = "portfolios"
	EntityCases        = "cases"
	EntityPayments     = "payments"
	EntityVendors      = "vendors"
	EntityTemplates    = "templates"
	EntityIntegrations = "integrations"
	EntityUsers        = "users"
	EntityActivityLogs = "activity_logs"
	EntitySessions     = "sessions"
)

// StandardEntityNames lists all standard entity names for enumeration.
var StandardEntityNames = []string{
	EntityPortfolios,
	EntityCases,
	EntityPayments,
	EntityVendors,
	EntityTemplates,
	EntityIntegrations,
	EntityUsers,
	EntityActivityLogs,
	EntitySessions,
}

// ValidEntityName reports whether name can key a store: lowercase
// letters, digits and underscores, starting with a letter.
func ValidEntityName(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_'):
		default:
			return false
		}
	}
	return true
}
