package catalog

import (
	"time"

	"github.com/pitabwire/signoff/model"
)

const day = 24 * time.Hour

// Standard returns the built-in launch-readiness catalog with deadlines
// anchored at now. Every requirement uses a distinct approval type.
func Standard(now time.Time) []model.ApprovalRequirement {
	return []model.ApprovalRequirement{
		{
			ID:                    "SEC_001",
			ApprovalType:          "security_review",
			RequiredRoles:         []string{"ciso"},
			MinimumApprovals:      1,
			Description:           "Security architecture and penetration test sign-off",
			RequiredDocumentation: []string{"threat_model", "pentest_report"},
			Deadline:              now.Add(7 * day),
			Priority:              model.PriorityCritical,
		},
		{
			ID:                    "TECH_001",
			ApprovalType:          "technical_architecture",
			RequiredRoles:         []string{"cto", "lead_architect"},
			MinimumApprovals:      1,
			Description:           "Technical architecture and scalability review",
			RequiredDocumentation: []string{"architecture_diagram", "load_test_results"},
			Deadline:              now.Add(5 * day),
			Priority:              model.PriorityHigh,
		},
		{
			ID:                    "COMP_001",
			ApprovalType:          "regulatory_compliance",
			RequiredRoles:         []string{"compliance_officer", "legal_counsel"},
			MinimumApprovals:      2,
			Description:           "Regulatory and data-protection compliance review",
			RequiredDocumentation: []string{"dpia", "compliance_checklist"},
			Deadline:              now.Add(10 * day),
			Priority:              model.PriorityCritical,
		},
		{
			ID:                    "BIZ_001",
			ApprovalType:          "business_approval",
			RequiredRoles:         []string{"product_owner", "cfo", "ceo"},
			MinimumApprovals:      2,
			Description:           "Business case and commercial readiness",
			RequiredDocumentation: []string{"business_case"},
			Deadline:              now.Add(7 * day),
			Priority:              model.PriorityHigh,
		},
		{
			ID:                    "FIN_001",
			ApprovalType:          "budget_approval",
			RequiredRoles:         []string{"cfo"},
			MinimumApprovals:      1,
			Description:           "Operating budget and cost model approval",
			RequiredDocumentation: []string{"cost_model"},
			Deadline:              now.Add(5 * day),
			Priority:              model.PriorityHigh,
		},
		{
			ID:                    "LEGAL_001",
			ApprovalType:          "legal_review",
			RequiredRoles:         []string{"legal_counsel"},
			MinimumApprovals:      1,
			Description:           "Terms of service and contract review",
			RequiredDocumentation: []string{"terms_of_service", "privacy_policy"},
			Deadline:              now.Add(10 * day),
			Priority:              model.PriorityMedium,
		},
		{
			ID:                    "OPS_001",
			ApprovalType:          "operational_readiness",
			RequiredRoles:         []string{"ops_manager", "sre_lead"},
			MinimumApprovals:      1,
			Description:           "Monitoring, runbooks and on-call readiness",
			RequiredDocumentation: []string{"runbook", "incident_response_plan"},
			Deadline:              now.Add(14 * day),
			Priority:              model.PriorityHigh,
			Dependencies:          []string{"TECH_001", "SEC_001"},
		},
		{
			ID:                    "GOLIVE_001",
			ApprovalType:          "go_live",
			RequiredRoles:         []string{"ceo", "cto", "product_owner"},
			MinimumApprovals:      3,
			Description:           "Final go-live authorization",
			RequiredDocumentation: []string{"launch_checklist"},
			Deadline:              now.Add(21 * day),
			Priority:              model.PriorityCritical,
			Dependencies:          []string{"SEC_001", "TECH_001", "COMP_001", "BIZ_001", "FIN_001", "OPS_001"},
		},
	}
}
