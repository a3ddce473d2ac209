package intelligence

import (
	"context"
	"fmt"
	"strings"

	errs "lead-pipeline/internal/common/errors"
	"lead-pipeline/internal/models"
)

var companySchema = mustSchema(`{
	"type": "object",
	"required": ["summary", "reputation"],
	"properties": {
		"summary": {"type": "string"},
		"reputation": {"type": "string", "enum": ["good", "mixed", "poor", "unknown"]},
		"digitalPresence": {"type": "string"},
		"risks": {"type": "array", "items": {"type": "string"}},
		"salesApproach": {"type": "string"}
	}
}`)

// Company identifies the business a company report looks up.
type Company struct {
	Name    string `json:"name"`
	City    string `json:"city,omitempty"`
	Website string `json:"website,omitempty"`
}

type CompanyAnalysis struct {
	Summary         string   `json:"summary"`
	Reputation      string   `json:"reputation"`
	DigitalPresence string   `json:"digitalPresence"`
	Risks           []string `json:"risks"`
	SalesApproach   string   `json:"salesApproach"`
}

type CompanyReport struct {
	Company    Company         `json:"company"`
	HasContext bool            `json:"hasContext"`
	Analysis   CompanyAnalysis `json:"analysis"`
	Degraded   bool            `json:"degraded,omitempty"`
}

func companyQueries(c Company) []string {
	name := strings.TrimSpace(c.Name + " " + c.City)
	return []string{
		name + " Reclame Aqui",
		name + " Jusbrasil processos",
		c.Name + " CNPJ",
		name + " Instagram",
		c.Name + " LinkedIn",
		name + " avaliações Google",
	}
}

// CompanyReport researches one business on the web (reputation, legal
// records, registry, social and reviews) and asks the company_analysis
// role for a due-diligence summary.
func (s *Service) CompanyReport(ctx context.Context, company Company, attr models.Attribution) (*CompanyReport, error) {
	company.Name = strings.TrimSpace(company.Name)
	if company.Name == "" {
		return nil, errs.NewInvalidRequestError("company name is required")
	}

	report := &CompanyReport{
		Company: company,
		Analysis: CompanyAnalysis{
			Summary:    "Company analysis is not available right now.",
			Reputation: "unknown",
		},
	}

	webCtx := s.webContext(ctx, models.RoleCompanyAnalysis, companyQueries(company), attr)
	report.HasContext = webCtx != ""

	prompt := fmt.Sprintf(`Prepare a due-diligence summary of the company "%s"`, company.Name)
	if company.City != "" {
		prompt += fmt.Sprintf(` located in %s`, company.City)
	}
	if company.Website != "" {
		prompt += fmt.Sprintf(` (website %s)`, company.Website)
	}
	prompt += `.
If no web context is given, say so in the summary and use reputation "unknown".
Return JSON with: summary, reputation (good|mixed|poor|unknown), digitalPresence, risks, salesApproach.`
	prompt = withContext(prompt, webCtx)

	var analysis CompanyAnalysis
	ok, err := s.analyze(ctx, models.RoleCompanyAnalysis, prompt, companySchema, attr, &analysis)
	if err != nil {
		return nil, err
	}
	if ok {
		report.Analysis = analysis
	} else {
		report.Degraded = true
	}
	return report, nil
}
