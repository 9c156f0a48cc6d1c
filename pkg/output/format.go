// Package output provides utilities for formatting and displaying planner results.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/iwvelando/portion-planner/internal/planner"
	"github.com/iwvelando/portion-planner/pkg/mathutil"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/iwvelando/portion-planner/pkg/optimization"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// PrettyMenu writes a human-readable rather than machine-readable menu table.
func PrettyMenu(w io.Writer, plan *planner.MenuPlan) error {
	var buf bytes.Buffer
	p := message.NewPrinter(language.English)

	fmt.Fprintf(&buf, "--- Optimized menu ---\n")
	fmt.Fprintf(&buf, "Dish | Meal | Scale | Energy | Protein | TotalFat | Carb\n")
	fmt.Fprintf(&buf, "____ | ____ | _____ | ______ | _______ | ________ | ____\n")
	for _, d := range plan.Dishes {
		fmt.Fprintf(&buf, "%s | %s | %.2f | %s\n", d.Name, d.Meal, d.Scale(), finals(p, d))
	}

	r := plan.Report
	fmt.Fprintf(&buf, "\n--- Nutrients ---\n")
	fmt.Fprintf(&buf, "Nutrient | Target | Achieved | Deviation | Weight\n")
	fmt.Fprintf(&buf, "________ | ______ | ________ | _________ | ______\n")
	for _, line := range r.Nutrients {
		buf.WriteString(nutrientRow(p, line))
	}

	if len(r.Meals) > 0 {
		fmt.Fprintf(&buf, "\n--- Meals ---\n")
		fmt.Fprintf(&buf, "Meal | Target | Achieved\n")
		fmt.Fprintf(&buf, "____ | ______ | ________\n")
		for _, line := range r.Meals {
			fmt.Fprintf(&buf, "%s | %s | %s\n", line.Meal, qty(p, line.TargetKcal, "kcal"), qty(p, line.AchievedKcal, "kcal"))
		}
	}

	fmt.Fprintf(&buf, "\nLoss: %.4f (one serving each: %.4f)\n", r.Loss, r.BaselineLoss)
	fmt.Fprintf(&buf, "Iterations: %d, converged: %t, fallback: %t\n", r.Iterations, r.Converged, r.Fallback)
	if len(r.Collapsed) > 0 {
		fmt.Fprintf(&buf, "Relaxed nutrients: %s\n", strings.Join(r.Collapsed, ", "))
	}
	writeList(&buf, "Notes", r.Notes)
	writeList(&buf, "Warnings", plan.Warnings)

	_, err := w.Write(buf.Bytes())
	return err
}

// PrettySubstitution writes the ranked candidates and the old-vs-best comparison.
func PrettySubstitution(w io.Writer, plan *planner.SubstitutionPlan) error {
	var buf bytes.Buffer
	p := message.NewPrinter(language.English)
	r := plan.Report

	fmt.Fprintf(&buf, "--- Substitutes for %s ---\n", plan.Old.Name)
	fmt.Fprintf(&buf, "Rank | Candidate | Scale | Energy | Protein | TotalFat | Carb | Loss\n")
	fmt.Fprintf(&buf, "____ | _________ | _____ | ______ | _______ | ________ | ____ | ____\n")
	for i, d := range plan.Candidates {
		fmt.Fprintf(&buf, "%d | %s | %.2f | %s | %s\n", i+1, d.Name, d.Scale(), finals(p, d), loss(d.Loss))
	}
	fmt.Fprintf(&buf, "Retrieved %d, excluded %d, scored %d, rejected %d, kept %d\n",
		r.Retrieved, r.Excluded, r.Scored, r.Rejected, r.Kept)

	if plan.Best != nil {
		fmt.Fprintf(&buf, "\n--- %s -> %s (scale %.2f) ---\n", plan.Old.Name, r.Best, r.BestScale)
		fmt.Fprintf(&buf, "Nutrient | Old | New | Deviation\n")
		fmt.Fprintf(&buf, "________ | ___ | ___ | _________\n")
		for _, line := range r.Comparison {
			buf.WriteString(comparisonRow(p, line))
		}
	}
	writeList(&buf, "Notes", r.Notes)

	_, err := w.Write(buf.Bytes())
	return err
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// YAML writes v as YAML. Values go through their JSON encoding first so
// dish records keep the same field names in both formats.
func YAML(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding YAML output: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("encoding YAML output: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding YAML output: %w", err)
	}
	return enc.Close()
}

func nutrientRow(p *message.Printer, line optimization.NutrientLine) string {
	deviation := qty(p, line.Deviation, line.Unit)
	if line.Deviation > 0 {
		deviation = "+" + deviation
	}
	return fmt.Sprintf("%s | %s | %s | %s | %g%s\n",
		line.Nutrient, qty(p, line.Target, line.Unit), qty(p, line.Achieved, line.Unit), deviation,
		line.Weight, flag(line.Warning))
}

func comparisonRow(p *message.Printer, line optimization.ComparisonLine) string {
	return fmt.Sprintf("%s | %s | %s | %+.1f%%%s\n",
		line.Nutrient, qty(p, mathutil.RoundInt(line.Old), line.Unit), qty(p, mathutil.RoundInt(line.New), line.Unit),
		line.Deviation*100, flag(line.Warning))
}

func qty(p *message.Printer, v int, unit string) string {
	return p.Sprintf("%d %s", v, unit)
}

func finals(p *message.Printer, d nutrition.Dish) string {
	v := d.Final
	if !d.Annotated {
		r := d.Realized()
		for i := range v {
			v[i] = mathutil.RoundInt(r[i])
		}
	}
	cols := make([]string, nutrition.NumMacros)
	for i := range cols {
		cols[i] = qty(p, v[i], nutrition.MacroUnits[i])
	}
	return strings.Join(cols, " | ")
}

func loss(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}

func flag(warning bool) string {
	if warning {
		return " !"
	}
	return ""
}

func writeList(buf *bytes.Buffer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(buf, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(buf, "  - %s\n", item)
	}
}
