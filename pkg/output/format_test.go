package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/iwvelando/portion-planner/internal/planner"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/iwvelando/portion-planner/pkg/optimization"
	"gopkg.in/yaml.v3"
)

func sampleMenuPlan() *planner.MenuPlan {
	pho := nutrition.Dish{
		Name:   "Pho",
		Meal:   "lunch",
		Macros: nutrition.Vector{500, 30, 14, 60},
		Extra:  map[string][]byte{"meal_id": []byte("7")},
	}.Annotate(4.1)

	return &planner.MenuPlan{
		Target: nutrition.Vector{2000, 100, 70, 250},
		Dishes: []nutrition.Dish{pho},
		Report: optimization.MenuReport{
			Nutrients: []optimization.NutrientLine{
				{Nutrient: "Energy", Unit: "kcal", Target: 2000, Achieved: 2050, Deviation: 50, Weight: 3},
				{Nutrient: "Protein", Unit: "g", Target: 100, Achieved: 123, Deviation: 23, Weight: 2, Warning: true},
			},
			Meals:      []optimization.MealLine{{Meal: "lunch", TargetKcal: 800, AchievedKcal: 2050}},
			Collapsed:  []string{"Fat"},
			Loss:       0.1234,
			Iterations: 4,
			Converged:  true,
		},
		Warnings: []string{"Dish 'Pho' appears 2 times in the menu"},
	}
}

func sampleSubstitutionPlan() *planner.SubstitutionPlan {
	old := nutrition.Dish{Name: "Pho bo", Meal: "lunch", Macros: nutrition.Vector{450, 25, 8, 60}}
	best := nutrition.Dish{Name: "Pho ga", Meal: "lunch", Macros: nutrition.Vector{430, 26, 7, 58}}.Annotate(1.1).WithLoss(0.0206)
	broken := nutrition.Dish{Name: "Banh mi"}.Annotate(1).WithLoss(math.Inf(1))

	return &planner.SubstitutionPlan{
		Old:        old,
		Candidates: []nutrition.Dish{best, broken},
		Best:       &best,
		Report: optimization.SubstitutionReport{
			Old:       "Pho bo",
			Best:      "Pho ga",
			BestScale: 1.1,
			Retrieved: 3,
			Excluded:  1,
			Scored:    2,
			Kept:      2,
			Comparison: []optimization.ComparisonLine{
				{Nutrient: "Energy", Unit: "kcal", Old: 450, New: 452, Deviation: 0.0044},
				{Nutrient: "TotalFat", Unit: "g", Old: 8, New: 7, Deviation: -0.125},
				{Nutrient: "Carb", Unit: "g", Old: 60, New: 40, Deviation: -0.3333, Warning: true},
			},
		},
	}
}

func TestPrettyMenu(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettyMenu(&buf, sampleMenuPlan()); err != nil {
		t.Fatalf("PrettyMenu returned error: %v", err)
	}
	output := buf.String()

	expected := []string{
		"--- Optimized menu ---",
		"Dish | Meal | Scale | Energy | Protein | TotalFat | Carb",
		"Pho | lunch | 4.10 | 2,050 kcal | 123 g | 57 g | 246 g",
		"Energy | 2,000 kcal | 2,050 kcal | +50 kcal | 3",
		"Protein | 100 g | 123 g | +23 g | 2 !",
		"lunch | 800 kcal | 2,050 kcal",
		"Loss: 0.1234",
		"converged: true",
		"Relaxed nutrients: Fat",
		"Warnings:",
		"appears 2 times",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("PrettyMenu output missing %q\n%s", want, output)
		}
	}
	if strings.Contains(output, "Notes:") {
		t.Errorf("PrettyMenu should omit an empty notes section")
	}
}

func TestPrettySubstitution(t *testing.T) {
	var buf bytes.Buffer
	if err := PrettySubstitution(&buf, sampleSubstitutionPlan()); err != nil {
		t.Fatalf("PrettySubstitution returned error: %v", err)
	}
	output := buf.String()

	expected := []string{
		"--- Substitutes for Pho bo ---",
		"1 | Pho ga | 1.10 | 473 kcal | 29 g | 8 g | 64 g | 0.0206",
		"2 | Banh mi | 1.00 | 0 kcal | 0 g | 0 g | 0 g | n/a",
		"Retrieved 3, excluded 1, scored 2, rejected 0, kept 2",
		"--- Pho bo -> Pho ga (scale 1.10) ---",
		"TotalFat | 8 g | 7 g | -12.5%",
		"Carb | 60 g | 40 g | -33.3% !",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("PrettySubstitution output missing %q\n%s", want, output)
		}
	}
}

func TestPrettySubstitutionWithoutBest(t *testing.T) {
	plan := &planner.SubstitutionPlan{
		Old:    nutrition.Dish{Name: "Pho bo"},
		Report: optimization.SubstitutionReport{Old: "Pho bo", Notes: []string{"no candidates to score"}},
	}

	var buf bytes.Buffer
	if err := PrettySubstitution(&buf, plan); err != nil {
		t.Fatalf("PrettySubstitution returned error: %v", err)
	}
	output := buf.String()
	if strings.Contains(output, "->") {
		t.Errorf("comparison section should be omitted without a best candidate")
	}
	if !strings.Contains(output, "no candidates to score") {
		t.Errorf("missing notes in output:\n%s", output)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleSubstitutionPlan()); err != nil {
		t.Fatalf("JSON returned error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON output is not valid JSON: %v", err)
	}

	candidates, ok := decoded["candidates"].([]interface{})
	if !ok || len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %v", decoded["candidates"])
	}
	first := candidates[0].(map[string]interface{})
	if first["name"] != "Pho ga" || first["portion_scale"] != 1.1 {
		t.Errorf("unexpected first candidate %v", first)
	}
	second := candidates[1].(map[string]interface{})
	if loss, present := second["optimization_loss"]; !present || loss != nil {
		t.Errorf("infinite loss should be written as null, got %v", loss)
	}
}

func TestYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := YAML(&buf, sampleMenuPlan()); err != nil {
		t.Fatalf("YAML returned error: %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("YAML output is not valid YAML: %v", err)
	}

	menu, ok := decoded["menu"].([]interface{})
	if !ok || len(menu) != 1 {
		t.Fatalf("expected a menu with one dish, got %v", decoded["menu"])
	}
	dish := menu[0].(map[string]interface{})
	tests := []struct {
		key  string
		want interface{}
	}{
		{"name", "Pho"},
		{"final_kcal", 2050},
		{"meal_id", 7},
		{"portion_scale", 4.1},
	}
	for _, tt := range tests {
		if dish[tt.key] != tt.want {
			t.Errorf("dish[%q] = %v (%T), want %v", tt.key, dish[tt.key], dish[tt.key], tt.want)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriterErrors(t *testing.T) {
	if err := PrettyMenu(failingWriter{}, sampleMenuPlan()); err == nil {
		t.Error("PrettyMenu should report write errors")
	}
	if err := PrettySubstitution(failingWriter{}, sampleSubstitutionPlan()); err == nil {
		t.Error("PrettySubstitution should report write errors")
	}
	if err := JSON(failingWriter{}, sampleMenuPlan()); err == nil {
		t.Error("JSON should report write errors")
	}
}
