package directory

import "github.com/pitabwire/signoff/model"

// Standard returns profiles for every role used by the built-in catalog.
func Standard() []model.StakeholderProfile {
	email := map[string]bool{"email": true, "sms": false}
	return []model.StakeholderProfile{
		{
			ID: "stk-ciso", Name: "Dana Okafor", Role: "ciso", Title: "Chief Information Security Officer",
			Department: "Security", Email: "ciso@example.com",
			ApprovalTypes:           []string{"security_review"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-cto", "stk-ceo"},
		},
		{
			ID: "stk-cto", Name: "Sam Reyes", Role: "cto", Title: "Chief Technology Officer",
			Department: "Engineering", Email: "cto@example.com",
			ApprovalTypes:           []string{"technical_architecture", "go_live"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-ceo"},
			DelegateID:              "stk-architect",
		},
		{
			ID: "stk-architect", Name: "Jordan Lee", Role: "lead_architect", Title: "Lead Architect",
			Department: "Engineering", Email: "architect@example.com",
			ApprovalTypes:           []string{"technical_architecture"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-cto"},
		},
		{
			ID: "stk-compliance", Name: "Priya Nair", Role: "compliance_officer", Title: "Compliance Officer",
			Department: "Risk", Email: "compliance@example.com",
			ApprovalTypes:           []string{"regulatory_compliance"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-legal", "stk-ceo"},
		},
		{
			ID: "stk-legal", Name: "Alex Moreau", Role: "legal_counsel", Title: "General Counsel",
			Department: "Legal", Email: "legal@example.com",
			ApprovalTypes:           []string{"regulatory_compliance", "legal_review"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-ceo"},
		},
		{
			ID: "stk-product", Name: "Robin Castillo", Role: "product_owner", Title: "Product Owner",
			Department: "Product", Email: "product@example.com",
			ApprovalTypes:           []string{"business_approval", "go_live"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-ceo"},
		},
		{
			ID: "stk-cfo", Name: "Morgan Blake", Role: "cfo", Title: "Chief Financial Officer",
			Department: "Finance", Email: "cfo@example.com",
			ApprovalTypes:           []string{"business_approval", "budget_approval"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-ceo"},
		},
		{
			ID: "stk-ceo", Name: "Casey Morgan", Role: "ceo", Title: "Chief Executive Officer",
			Department: "Executive", Email: "ceo@example.com",
			ApprovalTypes:           []string{"business_approval", "go_live"},
			NotificationPreferences: email,
		},
		{
			ID: "stk-ops", Name: "Taylor Kim", Role: "ops_manager", Title: "Operations Manager",
			Department: "Operations", Email: "ops@example.com",
			ApprovalTypes:           []string{"operational_readiness"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-cto"},
		},
		{
			ID: "stk-sre", Name: "Jamie Fox", Role: "sre_lead", Title: "SRE Lead",
			Department: "Operations", Email: "sre@example.com",
			ApprovalTypes:           []string{"operational_readiness"},
			NotificationPreferences: email,
			EscalationChain:         []string{"stk-ops", "stk-cto"},
		},
	}
}
