package scoreplaces

import "lead-pipeline/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"places"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"places": {
				Type: "array",
				Items: &validation.Property{
					Type: "object",
					Properties: map[string]validation.Property{
						"externalId":  {Type: "string"},
						"name":        {Type: "string"},
						"rating":      {Type: "number", Minimum: validation.Float(0), Maximum: validation.Float(5)},
						"reviewCount": {Type: "integer", Minimum: validation.Float(0)},
					},
				},
			},
			"topN": {Type: "integer", Minimum: validation.Float(0)},
		},
	}
}
