package generatereport

import (
	"lead-pipeline/internal/intelligence"
	"lead-pipeline/internal/models"
)

// Report types a process can request.
const (
	ReportCompetitor = "competitor"
	ReportMarket     = "market"
	ReportViability  = "viability"
	ReportCompany    = "company"
	ReportLead       = "lead"
)

type Input struct {
	ReportType  string               `json:"reportType"`
	UserID      string               `json:"userId"`
	WorkspaceID string               `json:"workspaceId,omitempty"`
	Subject     intelligence.Subject `json:"subject"`
	Idea        string               `json:"idea,omitempty"`
	Company     intelligence.Company `json:"company"`
	Lead        *models.ScoredPlace  `json:"lead,omitempty"`
	TopN        int                  `json:"topN,omitempty"`
}

func (in Input) attribution() models.Attribution {
	return models.Attribution{WorkspaceID: in.WorkspaceID, UserID: in.UserID}
}

type Output struct {
	ReportType string      `json:"reportType"`
	Report     interface{} `json:"report"`
	Degraded   bool        `json:"reportDegraded"`
}
