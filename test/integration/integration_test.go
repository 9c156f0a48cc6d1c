package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iwvelando/portion-planner/internal/config"
	"github.com/iwvelando/portion-planner/internal/planner"
	"github.com/iwvelando/portion-planner/internal/request"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/iwvelando/portion-planner/pkg/output"
	"github.com/iwvelando/portion-planner/pkg/testutil"
	"go.uber.org/zap"
)

const (
	testConfigPath      = "../test_config.yaml"
	menuRequestPath     = "../testdata/menu_request.json"
	substitutionReqPath = "../testdata/substitution_request.yaml"
)

func newTestPlanner(t testing.TB) *planner.Planner {
	t.Helper()
	conf, err := config.LoadConfiguration(testConfigPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	p, err := planner.New(zap.NewNop(), conf)
	if err != nil {
		t.Fatalf("planner.New() error = %v", err)
	}
	return p
}

func loadRequest(t testing.TB, path string) *request.Request {
	t.Helper()
	req, err := request.Load(path)
	if err != nil {
		t.Fatalf("request.Load(%s) error = %v", path, err)
	}
	return req
}

// TestMenuRequestEndToEnd runs the menu fixture the way the CLI does.
func TestMenuRequestEndToEnd(t *testing.T) {
	p := newTestPlanner(t)
	req := loadRequest(t, menuRequestPath)
	if req.Kind != request.KindMenu {
		t.Fatalf("expected a menu request, got %s", req.Kind)
	}

	plan, err := p.PlanMenu(context.Background(), req.Target, req.Menu)
	if err != nil {
		t.Fatalf("PlanMenu() error = %v", err)
	}

	if len(plan.Dishes) != len(req.Menu) {
		t.Fatalf("expected %d dishes, got %d", len(req.Menu), len(plan.Dishes))
	}
	if !plan.Report.Converged || plan.Report.Fallback {
		t.Errorf("expected a converged solve, report = %+v", plan.Report)
	}
	if plan.Report.Loss > plan.Report.BaselineLoss {
		t.Errorf("optimized loss %.4f is worse than one serving each %.4f", plan.Report.Loss, plan.Report.BaselineLoss)
	}
	if len(plan.Report.Meals) != 3 {
		t.Errorf("expected 3 meal lines, got %d", len(plan.Report.Meals))
	}

	for i, d := range plan.Dishes {
		if !d.Annotated {
			t.Errorf("dish %s not annotated", d.Name)
		}
		if b := req.Menu[i].Bounds; b != nil && !b.Contains(d.PortionScale) {
			t.Errorf("dish %s scale %.2f outside [%g, %g]", d.Name, d.PortionScale, b.Min, b.Max)
		}
	}

	fish := testutil.FindDish(plan.Dishes, "Grilled fish")
	if fish == nil || fish.Final[nutrition.Carb] != 0 {
		t.Errorf("null carbs should stay zero, got %+v", fish)
	}
	if len(plan.Warnings) != 0 {
		t.Errorf("fixture should produce no warnings, got %v", plan.Warnings)
	}
}

// TestMenuOutputFormats checks that each renderer carries the passthrough fields.
func TestMenuOutputFormats(t *testing.T) {
	p := newTestPlanner(t)
	req := loadRequest(t, menuRequestPath)

	plan, err := p.PlanMenu(context.Background(), req.Target, req.Menu)
	if err != nil {
		t.Fatalf("PlanMenu() error = %v", err)
	}

	var buf bytes.Buffer
	if err := output.JSON(&buf, plan); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	var decoded struct {
		Menu []map[string]interface{} `json:"menu"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON output invalid: %v", err)
	}
	if len(decoded.Menu) != 4 {
		t.Fatalf("expected 4 dishes in JSON output, got %d", len(decoded.Menu))
	}
	if decoded.Menu[0]["meal_id"] != 101.0 {
		t.Errorf("meal_id not passed through: %v", decoded.Menu[0]["meal_id"])
	}
	if decoded.Menu[2]["role"] != "side" {
		t.Errorf("role not passed through: %v", decoded.Menu[2]["role"])
	}
	if _, ok := decoded.Menu[1]["final_kcal"]; !ok {
		t.Errorf("final_kcal missing from JSON output")
	}

	buf.Reset()
	if err := output.YAML(&buf, plan); err != nil {
		t.Fatalf("YAML() error = %v", err)
	}
	if !strings.Contains(buf.String(), "meal_id: 104") {
		t.Errorf("YAML output missing meal_id:\n%s", buf.String())
	}

	buf.Reset()
	if err := output.PrettyMenu(&buf, plan); err != nil {
		t.Fatalf("PrettyMenu() error = %v", err)
	}
	for _, want := range []string{"Oatmeal with banana", "Grilled fish", "--- Nutrients ---", "--- Meals ---", "2,000 kcal"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("pretty output missing %q", want)
		}
	}
}

// TestSubstitutionRequestEndToEnd runs the substitution fixture.
func TestSubstitutionRequestEndToEnd(t *testing.T) {
	p := newTestPlanner(t)
	req := loadRequest(t, substitutionReqPath)
	if req.Kind != request.KindSubstitution {
		t.Fatalf("expected a substitution request, got %s", req.Kind)
	}

	plan, err := p.Substitute(context.Background(), req.Old, planner.StaticCandidates(req.Candidates), req.Top)
	if err != nil {
		t.Fatalf("Substitute() error = %v", err)
	}

	got := testutil.Names(plan.Candidates)
	want := []string{"Pho ga", "Hu tieu", "Mi xao"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ranking = %v, want %v", got, want)
	}

	r := plan.Report
	if r.Retrieved != 5 || r.Excluded != 1 || r.Scored != 4 || r.Rejected != 1 || r.Kept != 3 {
		t.Errorf("unexpected counts %+v", r)
	}
	if plan.Best == nil || plan.Best.Name != "Pho ga" {
		t.Fatalf("expected Pho ga as best, got %+v", plan.Best)
	}
	if len(r.Comparison) != nutrition.NumMacros {
		t.Errorf("expected %d comparison lines, got %d", nutrition.NumMacros, len(r.Comparison))
	}
	for _, line := range r.Comparison {
		if line.Warning {
			t.Errorf("Pho ga should stay within the deviation limit, %s deviates %.3f", line.Nutrient, line.Deviation)
		}
	}

	var buf bytes.Buffer
	if err := output.PrettySubstitution(&buf, plan); err != nil {
		t.Fatalf("PrettySubstitution() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Pho bo -> Pho ga") {
		t.Errorf("pretty output missing comparison header:\n%s", buf.String())
	}
}

// TestUnscorableCandidatesStillRender checks that candidates with non-finite
// macros are ranked last without breaking any output format.
func TestUnscorableCandidatesStillRender(t *testing.T) {
	p := newTestPlanner(t)
	req, err := request.Decode(strings.NewReader(`{
		"food_old": {"name": "Pho bo", "assigned_meal": "lunch", "kcal": 450, "protein": 25, "totalfat": 8, "carbs": 60},
		"candidates": [
			{"name": "Bad", "kcal": "NaN", "protein": 10},
			{"name": "Worse", "kcal": "Infinity"},
			{"name": "Pho ga", "assigned_meal": "lunch", "kcal": 430, "protein": 26, "totalfat": 7, "carbs": 58}
		]
	}`), "json")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	plan, err := p.Substitute(context.Background(), req.Old, planner.StaticCandidates(req.Candidates), 0)
	if err != nil {
		t.Fatalf("Substitute() error = %v", err)
	}
	if plan.Best == nil || plan.Best.Name != "Pho ga" {
		t.Fatalf("expected Pho ga as best, got %+v", plan.Best)
	}

	var buf bytes.Buffer
	if err := output.JSON(&buf, plan); err != nil {
		t.Errorf("JSON() error = %v", err)
	}
	buf.Reset()
	if err := output.YAML(&buf, plan); err != nil {
		t.Errorf("YAML() error = %v", err)
	}
	buf.Reset()
	if err := output.PrettySubstitution(&buf, plan); err != nil {
		t.Errorf("PrettySubstitution() error = %v", err)
	}
}

// TestConfigurationDrivesPolicy checks that the test configuration reaches the planner.
func TestConfigurationDrivesPolicy(t *testing.T) {
	conf, err := config.LoadConfiguration(testConfigPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	conf.Policy.TopCandidates = 1

	p, err := planner.New(zap.NewNop(), conf)
	if err != nil {
		t.Fatalf("planner.New() error = %v", err)
	}
	req := loadRequest(t, substitutionReqPath)

	plan, err := p.Substitute(context.Background(), req.Old, planner.StaticCandidates(req.Candidates), 0)
	if err != nil {
		t.Fatalf("Substitute() error = %v", err)
	}
	if len(plan.Candidates) != 1 {
		t.Errorf("expected policy top of 1, got %d candidates", len(plan.Candidates))
	}
}
