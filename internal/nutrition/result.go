package nutrition

import (
	"errors"
	"math"
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"
)

var (
	ErrInvalidJSON = errors.New("payload is not valid JSON")
	ErrNotObject   = errors.New("payload is not a JSON object")
)

// MacroResult is the macro estimate for a described food. All amounts are
// finite and non-negative; calories in kcal, the rest in grams.
type MacroResult struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// ImageRecognitionResult names the food found in an image and a typical portion.
type ImageRecognitionResult struct {
	FoodName          string `json:"foodName"`
	SuggestedQuantity string `json:"suggestedQuantity"`
}

// DecodeMacroResult parses the provider's JSON text into a MacroResult.
// Amounts that are missing, null, non-numeric, negative or not finite
// become 0 rather than failing the decode.
func DecodeMacroResult(raw string) (MacroResult, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return MacroResult{}, err
	}

	return MacroResult{
		Name:     text(obj.Get("name")),
		Calories: Amount(obj.Get("calories")),
		Protein:  Amount(obj.Get("protein")),
		Carbs:    Amount(obj.Get("carbs")),
		Fat:      Amount(obj.Get("fat")),
	}, nil
}

// DecodeImageRecognitionResult parses the provider's JSON text into an
// ImageRecognitionResult. Missing fields decode as empty strings.
func DecodeImageRecognitionResult(raw string) (ImageRecognitionResult, error) {
	obj, err := parseObject(raw)
	if err != nil {
		return ImageRecognitionResult{}, err
	}

	return ImageRecognitionResult{
		FoodName:          text(obj.Get("foodName")),
		SuggestedQuantity: text(obj.Get("suggestedQuantity")),
	}, nil
}

// Amount coerces a JSON value to a non-negative finite number. Numeric strings
// such as "300" or " 12.5 " are accepted.
func Amount(v gjson.Result) float64 {
	var f float64

	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := cast.ToFloat64E(strings.TrimSpace(v.Str))
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}

	return f
}

func parseObject(raw string) (gjson.Result, error) {
	if !gjson.Valid(raw) {
		return gjson.Result{}, ErrInvalidJSON
	}

	obj := gjson.Parse(raw)
	if !obj.IsObject() {
		return gjson.Result{}, ErrNotObject
	}

	return obj, nil
}

func text(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}
