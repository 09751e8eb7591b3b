package upstream

import (
	"github.com/tidwall/gjson"

	"github.com/angeloszaimis/nutrition-proxy/internal/nutrition"
)

const (
	macroInstruction = `You are a nutrition assistant. Estimate the total calories and macronutrients ` +
		`of the food the user describes, taking stated quantities into account. ` +
		`Reply only with JSON matching the response schema: "name" is a short label for the food, ` +
		`"calories" is in kcal, and "protein", "carbs" and "fat" are in grams. ` +
		`Use 0 for any value you cannot estimate.`

	imageInstruction = `You are a food recognition assistant. Identify the main food or dish in the image ` +
		`and suggest a typical serving. Reply only with JSON matching the response schema: ` +
		`"foodName" is the name of the food and "suggestedQuantity" is a portion such as "1 cup" or "150g".`

	imagePrompt = "What food is in this image and how much of it is there?"

	textPath = "candidates.0.content.parts.0.text"
)

type generateContentRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema"`
}

type schema struct {
	Type             string             `json:"type"`
	Description      string             `json:"description,omitempty"`
	Properties       map[string]*schema `json:"properties,omitempty"`
	Required         []string           `json:"required,omitempty"`
	PropertyOrdering []string           `json:"propertyOrdering,omitempty"`
}

var macroSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"name":     {Type: "STRING", Description: "Short label for the food"},
		"calories": {Type: "NUMBER", Description: "Energy in kcal"},
		"protein":  {Type: "NUMBER", Description: "Protein in grams"},
		"carbs":    {Type: "NUMBER", Description: "Carbohydrates in grams"},
		"fat":      {Type: "NUMBER", Description: "Fat in grams"},
	},
	Required:         []string{"name", "calories", "protein", "carbs", "fat"},
	PropertyOrdering: []string{"name", "calories", "protein", "carbs", "fat"},
}

var imageSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"foodName":          {Type: "STRING", Description: "Name of the food"},
		"suggestedQuantity": {Type: "STRING", Description: "Typical portion with units"},
	},
	Required:         []string{"foodName", "suggestedQuantity"},
	PropertyOrdering: []string{"foodName", "suggestedQuantity"},
}

func macroRequest(q nutrition.TextQuery) generateContentRequest {
	return generateContentRequest{
		SystemInstruction: &content{Parts: []part{{Text: macroInstruction}}},
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: q.Text}},
		}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   macroSchema,
		},
	}
}

func imageRequest(q nutrition.ImageQuery) generateContentRequest {
	return generateContentRequest{
		SystemInstruction: &content{Parts: []part{{Text: imageInstruction}}},
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{MIMEType: q.MIMEType, Data: q.ImageData}},
				{Text: imagePrompt},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   imageSchema,
		},
	}
}

// extractText pulls the JSON string the provider embeds in its first candidate.
func extractText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", malformed(string(body), errEnvelopeNotJSON)
	}

	v := gjson.GetBytes(body, textPath)
	if v.Type != gjson.String {
		return "", malformed(string(body), errEnvelopeShape)
	}

	return v.Str, nil
}
