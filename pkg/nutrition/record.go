package nutrition

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Dish record field names.
const (
	FieldName        = "name"
	FieldMeal        = "assigned_meal"
	FieldKcal        = "kcal"
	FieldProtein     = "protein"
	FieldTotalFat    = "totalfat"
	FieldCarbs       = "carbs"
	FieldBounds      = "solver_bounds"
	FieldScale       = "portion_scale"
	FieldFinalKcal   = "final_kcal"
	FieldFinalProt   = "final_protein"
	FieldFinalFat    = "final_totalfat"
	FieldFinalCarbs  = "final_carbs"
	FieldLoss        = "optimization_loss"
	FieldTargetKcal  = "targetcalories"
	FieldTargetCarbs = "carbohydrate"
)

var dishMacroFields = [NumMacros]string{FieldKcal, FieldProtein, FieldTotalFat, FieldCarbs}

var finalMacroFields = [NumMacros]string{FieldFinalKcal, FieldFinalProt, FieldFinalFat, FieldFinalCarbs}

var targetMacroFields = [NumMacros]string{FieldTargetKcal, FieldProtein, FieldTotalFat, FieldTargetCarbs}

// ParseDish decodes one dish record. It never fails outright: fields that
// cannot be coerced are reported through Dish.Problem and left at zero.
// Missing or null macros default to 0.
func ParseDish(raw string) Dish {
	var d Dish
	res := gjson.Parse(raw)
	if !gjson.Valid(raw) || !res.IsObject() {
		d.Problem = fmt.Errorf("%w: dish record must be a JSON object", ErrMalformedRecord)
		return d
	}

	var problems []error
	res.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch name {
		case FieldName:
			d.Name = value.String()
		case FieldMeal:
			d.Meal = value.String()
		case FieldKcal, FieldProtein, FieldTotalFat, FieldCarbs:
			v, err := coerceFloat(value)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", name, err))
				return true
			}
			d.Macros[macroIndex(name)] = v
		case FieldBounds:
			b, err := parseBounds(value)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", name, err))
				return true
			}
			d.Bounds = b
		case FieldScale:
			v, err := coerceFloat(value)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", name, err))
				return true
			}
			d.PortionScale = v
		case FieldFinalKcal, FieldFinalProt, FieldFinalFat, FieldFinalCarbs, FieldLoss:
			// derived on output
		default:
			if d.Extra == nil {
				d.Extra = make(map[string][]byte)
			}
			d.Extra[name] = []byte(value.Raw)
		}
		return true
	})

	if len(problems) > 0 {
		label := d.Name
		if label == "" {
			label = "unnamed dish"
		}
		d.Problem = fmt.Errorf("%w: %s: %w", ErrMalformedRecord, label, errors.Join(problems...))
	}
	return d
}

// ParseDishes decodes a JSON array of dish records. Individual records keep
// their own Problem; only a non-array input is an error.
func ParseDishes(raw string) ([]Dish, error) {
	res := gjson.Parse(raw)
	if !res.Exists() || res.Type == gjson.Null {
		return nil, nil
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: dish list must be a JSON array", ErrMalformedRecord)
	}

	dishes := make([]Dish, 0, len(res.Array()))
	res.ForEach(func(_, value gjson.Result) bool {
		dishes = append(dishes, ParseDish(value.Raw))
		return true
	})
	return dishes, nil
}

// ParseTarget decodes a macro target record with targetcalories, protein,
// totalfat and carbohydrate. Missing fields default to 0.
func ParseTarget(raw string) (Vector, error) {
	var target Vector
	res := gjson.Parse(raw)
	if !gjson.Valid(raw) || !res.IsObject() {
		return target, fmt.Errorf("%w: target record must be a JSON object", ErrMalformedRecord)
	}

	for i, field := range targetMacroFields {
		v, err := coerceFloat(res.Get(field))
		if err != nil {
			return Vector{}, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, field, err)
		}
		target[i] = v
	}
	return target, nil
}

// UnmarshalJSON decodes a dish record, failing when any field is malformed.
func (d *Dish) UnmarshalJSON(data []byte) error {
	*d = ParseDish(string(data))
	return d.Problem
}

// MarshalJSON writes the record with its passthrough fields and, when
// annotated, the portion scale and final macros. Non-finite numbers, such as
// the infinite loss of an unscorable candidate, are written as null.
func (d Dish) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Extra)+12)
	for k, v := range d.Extra {
		out[k] = json.RawMessage(v)
	}

	out[FieldName] = d.Name
	out[FieldMeal] = d.Meal
	for i, field := range dishMacroFields {
		out[field] = finiteOrNil(d.Macros[i])
	}
	if d.Bounds != nil {
		out[FieldBounds] = [2]interface{}{finiteOrNil(d.Bounds.Min), finiteOrNil(d.Bounds.Max)}
	}
	if d.Annotated || d.PortionScale != 0 {
		out[FieldScale] = finiteOrNil(d.Scale())
	}
	if d.Annotated {
		for i, field := range finalMacroFields {
			out[field] = d.Final[i]
		}
	}
	if d.Scored {
		out[FieldLoss] = finiteOrNil(d.Loss)
	}
	return json.Marshal(out)
}

// finiteOrNil maps NaN and infinities to JSON null.
func finiteOrNil(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func macroIndex(field string) int {
	for i, f := range dishMacroFields {
		if f == field {
			return i
		}
	}
	return -1
}

// coerceFloat accepts numbers, numeric strings and booleans. Missing and
// null values are 0. NaN and infinities are rejected.
func coerceFloat(value gjson.Result) (float64, error) {
	v, err := parseFloat(value)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not a finite number", value.Raw)
	}
	return v, nil
}

func parseFloat(value gjson.Result) (float64, error) {
	switch value.Type {
	case gjson.Null:
		return 0, nil
	case gjson.Number:
		return value.Num, nil
	case gjson.True:
		return 1, nil
	case gjson.False:
		return 0, nil
	case gjson.String:
		trimmed := strings.TrimSpace(value.Str)
		v, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to a number", value.Str)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("cannot convert %s to a number", value.Raw)
	}
}

func parseBounds(value gjson.Result) (*Bounds, error) {
	if value.Type == gjson.Null {
		return nil, nil
	}
	if value.IsObject() {
		lo, err := coerceFloat(value.Get("min"))
		if err != nil {
			return nil, err
		}
		hi, err := coerceFloat(value.Get("max"))
		if err != nil {
			return nil, err
		}
		return &Bounds{Min: lo, Max: hi}, nil
	}
	if !value.IsArray() {
		return nil, fmt.Errorf("expected a [min, max] pair")
	}
	items := value.Array()
	if len(items) != 2 {
		return nil, fmt.Errorf("expected a [min, max] pair, got %d values", len(items))
	}
	lo, err := coerceFloat(items[0])
	if err != nil {
		return nil, err
	}
	hi, err := coerceFloat(items[1])
	if err != nil {
		return nil, err
	}
	return &Bounds{Min: lo, Max: hi}, nil
}
