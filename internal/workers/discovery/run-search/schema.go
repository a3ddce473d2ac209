package runsearch

import "lead-pipeline/internal/common/validation"

var presence = []string{"", "yes", "no"}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:                 "object",
		Required:             []string{"userId"},
		AdditionalProperties: true,
		Properties: map[string]validation.Property{
			"userId":     {Type: "string", MinLength: validation.Int(1)},
			"textQuery":  {Type: "string", MaxLength: validation.Int(300)},
			"category":   {Type: "string", MaxLength: validation.Int(100)},
			"pageSize":   {Type: "integer", Minimum: validation.Float(0), Maximum: validation.Float(100)},
			"pageToken":  {Type: "string"},
			"city":       {Type: "string"},
			"state":      {Type: "string"},
			"country":    {Type: "string"},
			"radiusKm":   {Type: "number", Minimum: validation.Float(0)},
			"hasWebsite": {Type: "string", Enum: presence},
			"hasPhone":   {Type: "string", Enum: presence},
			"maxPlaces":  {Type: "integer", Minimum: validation.Float(0), Maximum: validation.Float(MaxPlacesCeiling)},
		},
	}
}
