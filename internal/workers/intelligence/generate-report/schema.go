package generatereport

import "lead-pipeline/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"reportType", "userId"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"reportType": {
				Type: "string",
				Enum: []string{ReportCompetitor, ReportMarket, ReportViability, ReportCompany, ReportLead},
			},
			"userId":      {Type: "string", MinLength: validation.Int(1)},
			"workspaceId": {Type: "string"},
			"idea":        {Type: "string", MaxLength: validation.Int(2000)},
			"topN":        {Type: "integer", Minimum: validation.Float(0), Maximum: validation.Float(50)},
			"subject": {
				Type: "object",
				Properties: map[string]validation.Property{
					"query":    {Type: "string"},
					"city":     {Type: "string"},
					"radiusKm": {Type: "number", Minimum: validation.Float(0)},
				},
			},
			"company": {
				Type: "object",
				Properties: map[string]validation.Property{
					"name": {Type: "string"},
				},
			},
			"lead": {Type: "object"},
		},
	}
}
