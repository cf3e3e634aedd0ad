package catalog

import "github.com/mesh-intelligence/casebook/pkg/types"

// Case statuses.
const (
	CaseStatusNew       = "new"
	CaseStatusActive    = "active"
	CaseStatusPromise   = "promise_to_pay"
	CaseStatusDisputed  = "disputed"
	CaseStatusPaid      = "paid"
	CaseStatusClosed    = "closed"
	CaseStatusWrittenOf = "written_off"
)

// Payment statuses.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

func standardSchemas() []types.Schema {
	return []types.Schema{
		{
			Name:     types.EntityPortfolios,
			Category: types.CategoryRemotePrimary,
			Fallback: true,
			Fields: []types.FieldSpec{
				{Name: "name", Type: types.FieldTypeString, Required: true},
				{Name: "client_name", Type: types.FieldTypeString},
				{Name: "face_value", Type: types.FieldTypeNumber},
				{Name: "purchase_price", Type: types.FieldTypeNumber},
				{Name: "purchase_date", Type: types.FieldTypeTimestamp},
				{Name: "status", Type: types.FieldTypeEnum, Values: []string{"active", "closed", "pending"}},
			},
		},
		{
			Name:     types.EntityCases,
			Category: types.CategoryHybrid,
			Fields: []types.FieldSpec{
				{Name: "debtor_name", Type: types.FieldTypeString, Required: true},
				{Name: "debtor_email", Type: types.FieldTypeString},
				{Name: "debtor_phone", Type: types.FieldTypeString},
				{Name: "portfolio_id", Type: types.FieldTypeString},
				{Name: "amount", Type: types.FieldTypeNumber},
				{Name: "amount_paid", Type: types.FieldTypeNumber},
				{Name: "status", Type: types.FieldTypeEnum, Values: []string{
					CaseStatusNew, CaseStatusActive, CaseStatusPromise, CaseStatusDisputed,
					CaseStatusPaid, CaseStatusClosed, CaseStatusWrittenOf,
				}},
				{Name: "assigned_to", Type: types.FieldTypeString},
				{Name: "last_contact_date", Type: types.FieldTypeTimestamp},
			},
		},
		{
			Name:     types.EntityPayments,
			Category: types.CategoryRemotePrimary,
			Fallback: true,
			Fields: []types.FieldSpec{
				{Name: "case_id", Type: types.FieldTypeString, Required: true},
				{Name: "amount", Type: types.FieldTypeNumber, Required: true},
				{Name: "payment_date", Type: types.FieldTypeTimestamp},
				{Name: "method", Type: types.FieldTypeEnum, Values: []string{"card", "ach", "check", "cash", "wire"}},
				{Name: "status", Type: types.FieldTypeEnum, Values: []string{
					PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded,
				}},
			},
		},
		{
			Name:     types.EntityVendors,
			Category: types.CategoryRemotePrimary,
			Fallback: true,
			Fields: []types.FieldSpec{
				{Name: "name", Type: types.FieldTypeString, Required: true},
				{Name: "vendor_type", Type: types.FieldTypeEnum, Values: []string{"agency", "law_firm", "skip_trace", "print"}},
				{Name: "contact_email", Type: types.FieldTypeString},
				{Name: "commission_rate", Type: types.FieldTypeNumber},
			},
		},
		{
			Name:     types.EntityTemplates,
			Category: types.CategoryRemotePrimary,
			Fallback: true,
			Fields: []types.FieldSpec{
				{Name: "name", Type: types.FieldTypeString, Required: true},
				{Name: "channel", Type: types.FieldTypeEnum, Values: []string{"email", "sms", "letter"}},
				{Name: "subject", Type: types.FieldTypeString},
				{Name: "body", Type: types.FieldTypeString},
			},
		},
		{
			Name:     types.EntityIntegrations,
			Category: types.CategoryRemotePrimary,
			Fields: []types.FieldSpec{
				{Name: "name", Type: types.FieldTypeString, Required: true},
				{Name: "provider", Type: types.FieldTypeString},
				{Name: "enabled", Type: types.FieldTypeBool},
			},
		},
		{
			Name:     types.EntityUsers,
			Category: types.CategoryRemotePrimary,
			Fallback: true,
			Fields: []types.FieldSpec{
				{Name: "email", Type: types.FieldTypeString, Required: true},
				{Name: "full_name", Type: types.FieldTypeString},
				{Name: "role", Type: types.FieldTypeEnum, Values: []string{"admin", "manager", "agent", "viewer"}},
				{Name: "password_hash", Type: types.FieldTypeString},
			},
		},
		{
			Name:     types.EntityActivityLogs,
			Category: types.CategoryRemotePrimary,
			Fallback: true,
			Fields: []types.FieldSpec{
				{Name: "case_id", Type: types.FieldTypeString, Required: true},
				{Name: "activity_type", Type: types.FieldTypeString, Required: true},
				{Name: "description", Type: types.FieldTypeString},
				{Name: "activity_date", Type: types.FieldTypeTimestamp},
				{Name: "performed_by", Type: types.FieldTypeString},
			},
		},
		{
			Name:     types.EntitySessions,
			Category: types.CategoryLocalOnly,
			Fields: []types.FieldSpec{
				{Name: "user_id", Type: types.FieldTypeString, Required: true},
				{Name: "token", Type: types.FieldTypeString},
				{Name: "expires_at", Type: types.FieldTypeTimestamp},
			},
		},
	}
}
