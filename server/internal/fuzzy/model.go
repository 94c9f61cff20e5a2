package fuzzy

import (
	"fmt"
	"math"

	"github.com/fuzzymachine/efficiency/pkg/fault"
	"github.com/fuzzymachine/efficiency/pkg/types"
)

// DefaultResolution is the number of samples taken across the output domain
// when the definition does not set one.
const DefaultResolution = 1001

// Input variable names. Each one binds to a field of types.Measurement.
const (
	VarDailyProduction     = "daily_production"
	VarErrorMargin         = "error_margin"
	VarMaintenanceInterval = "maintenance_interval"
	VarStandbyTime         = "standby_time"
	VarEnergyConsumption   = "energy_consumption"
)

// inputFields maps input variable names to their measurement accessor.
var inputFields = map[string]func(types.Measurement) float64{
	VarDailyProduction:     func(m types.Measurement) float64 { return m.DailyProduction },
	VarErrorMargin:         func(m types.Measurement) float64 { return m.ErrorMargin },
	VarMaintenanceInterval: func(m types.Measurement) float64 { return m.MaintenanceInterval },
	VarStandbyTime:         func(m types.Measurement) float64 { return m.StandbyTime },
	VarEnergyConsumption:   func(m types.Measurement) float64 { return m.EnergyConsumption },
}

// Term is a named piecewise-linear membership function.
// Points holds 3 (triangle) or 4 (trapezoid) non-decreasing breakpoints.
type Term struct {
	Name   string    `yaml:"name" json:"name"`
	Points []float64 `yaml:"points" json:"points"`
}

// Variable is a linguistic variable: a numeric domain and its terms.
type Variable struct {
	Name  string  `yaml:"name" json:"name"`
	Min   float64 `yaml:"min" json:"min"`
	Max   float64 `yaml:"max" json:"max"`
	Terms []Term  `yaml:"terms" json:"terms"`
}

// Rule is one Mamdani rule. If is the antecedent expression, Then names a
// term of the output variable. A nil Weight means 1; an explicit weight must
// lie in (0, 1].
type Rule struct {
	If     string   `yaml:"if" json:"if"`
	Then   string   `yaml:"then" json:"then"`
	Weight *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`

	antecedent node
	weight     float64
}

// String renders the rule in IF/THEN form.
func (r Rule) String() string {
	return "IF " + r.If + " THEN " + r.Then
}

// Definition is the declarative form of a rule base, usually read from YAML.
type Definition struct {
	Inputs     []Variable `yaml:"inputs"`
	Output     Variable   `yaml:"output"`
	Rules      []Rule     `yaml:"rules"`
	Resolution int        `yaml:"resolution"`
	Fallback   float64    `yaml:"fallback"`
}

// Model is a validated, immutable rule base.
type Model struct {
	inputs     []Variable
	output     Variable
	rules      []Rule
	resolution int
	fallback   float64

	// xs are the output-domain sample points; shapes holds each output
	// term's degree at every sample.
	xs     []float64
	shapes map[string][]float64
}

// NewModel validates def and builds a Model from it.
func NewModel(def Definition) (*Model, error) {
	if len(def.Inputs) == 0 {
		return nil, fault.Configuration("fuzzy: no input variables declared")
	}

	inputs := make([]Variable, 0, len(def.Inputs))
	seen := make(map[string]bool, len(def.Inputs))
	for _, v := range def.Inputs {
		if _, ok := inputFields[v.Name]; !ok {
			return nil, fault.Configuration("fuzzy: input %q does not name a measurement field", v.Name)
		}
		if seen[v.Name] {
			return nil, fault.Configuration("fuzzy: input %q declared twice", v.Name)
		}
		seen[v.Name] = true
		if err := validateVariable(v); err != nil {
			return nil, err
		}
		inputs = append(inputs, cloneVariable(v))
	}
	for name := range inputFields {
		if !seen[name] {
			return nil, fault.Configuration("fuzzy: input %q is not declared", name)
		}
	}

	if def.Output.Name == "" {
		return nil, fault.Configuration("fuzzy: output variable is missing")
	}
	if seen[def.Output.Name] {
		return nil, fault.Configuration("fuzzy: output %q clashes with an input", def.Output.Name)
	}
	if err := validateVariable(def.Output); err != nil {
		return nil, err
	}

	m := &Model{
		inputs:     inputs,
		output:     cloneVariable(def.Output),
		resolution: def.Resolution,
		fallback:   def.Fallback,
	}
	if m.resolution == 0 {
		m.resolution = DefaultResolution
	}
	if m.resolution < 2 {
		return nil, fault.Configuration("fuzzy: resolution %d must be at least 2", m.resolution)
	}
	if m.fallback < m.output.Min || m.fallback > m.output.Max || math.IsNaN(m.fallback) {
		return nil, fault.Configuration("fuzzy: fallback %g outside output domain [%g, %g]",
			m.fallback, m.output.Min, m.output.Max)
	}

	if len(def.Rules) == 0 {
		return nil, fault.Configuration("fuzzy: rule base is empty")
	}
	m.rules = make([]Rule, 0, len(def.Rules))
	for i, r := range def.Rules {
		built, err := m.buildRule(r)
		if err != nil {
			return nil, fault.Wrap(err, fault.KindConfiguration, ruleLabel(i, r))
		}
		m.rules = append(m.rules, built)
	}

	m.sampleOutput()
	return m, nil
}

// Inputs returns a copy of the input variables in declaration order.
func (m *Model) Inputs() []Variable {
	out := make([]Variable, len(m.inputs))
	for i, v := range m.inputs {
		out[i] = cloneVariable(v)
	}
	return out
}

// Output returns a copy of the output variable.
func (m *Model) Output() Variable { return cloneVariable(m.output) }

// Rules returns a copy of the rule list.
func (m *Model) Rules() []Rule {
	out := make([]Rule, len(m.rules))
	for i, r := range m.rules {
		w := r.weight
		r.Weight = &w
		out[i] = r
	}
	return out
}

// Resolution is the number of output-domain samples used by the centroid.
func (m *Model) Resolution() int { return m.resolution }

// Fallback is the score returned when no rule fires.
func (m *Model) Fallback() float64 { return m.fallback }

// Membership returns the degree of x in term of variable. It is 0 outside the
// variable's domain.
func (m *Model) Membership(variable, term string, x float64) (float64, error) {
	v, ok := m.variable(variable)
	if !ok {
		return 0, fault.Configuration("fuzzy: unknown variable %q", variable)
	}
	t, ok := v.term(term)
	if !ok {
		return 0, fault.Configuration("fuzzy: variable %q has no term %q", variable, term)
	}
	if x < v.Min || x > v.Max || math.IsNaN(x) {
		return 0, nil
	}
	return t.Degree(x), nil
}

// Degree evaluates the term's shape at x. Values outside the first and last
// breakpoint have degree 0; values on the flat top have degree 1.
func (t Term) Degree(x float64) float64 {
	a, b, c, d := t.corners()
	switch {
	case x < a || x > d:
		return 0
	case x >= b && x <= c:
		return 1
	case x < b:
		return (x - a) / (b - a)
	default:
		return (d - x) / (d - c)
	}
}

// corners expands a triangle to a degenerate trapezoid.
func (t Term) corners() (a, b, c, d float64) {
	if len(t.Points) == 3 {
		return t.Points[0], t.Points[1], t.Points[1], t.Points[2]
	}
	return t.Points[0], t.Points[1], t.Points[2], t.Points[3]
}

func (v Variable) term(name string) (Term, bool) {
	for _, t := range v.Terms {
		if t.Name == name {
			return t, true
		}
	}
	return Term{}, false
}

func (m *Model) variable(name string) (Variable, bool) {
	if name == m.output.Name {
		return m.output, true
	}
	for _, v := range m.inputs {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

func (m *Model) buildRule(r Rule) (Rule, error) {
	r.weight = 1
	if r.Weight != nil {
		if w := *r.Weight; !(w > 0 && w <= 1) {
			return Rule{}, fault.Configuration("weight %g outside (0, 1]", w)
		}
		r.weight = *r.Weight
	}
	w := r.weight
	r.Weight = &w
	if _, ok := m.output.term(r.Then); !ok {
		return Rule{}, fault.Configuration("consequent %q is not a term of %q", r.Then, m.output.Name)
	}

	ant, err := parseAntecedent(r.If)
	if err != nil {
		return Rule{}, fault.Wrap(err, fault.KindConfiguration, "parse antecedent")
	}
	var refErr error
	ant.leaves(func(variable, term string) {
		if refErr != nil {
			return
		}
		v, ok := m.inputVariable(variable)
		if !ok {
			refErr = fault.Configuration("undefined variable %q", variable)
			return
		}
		if _, ok := v.term(term); !ok {
			refErr = fault.Configuration("undefined term %q of variable %q", term, variable)
		}
	})
	if refErr != nil {
		return Rule{}, refErr
	}

	r.antecedent = ant
	return r, nil
}

func (m *Model) inputVariable(name string) (Variable, bool) {
	for _, v := range m.inputs {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

func (m *Model) sampleOutput() {
	n := m.resolution
	step := (m.output.Max - m.output.Min) / float64(n-1)
	m.xs = make([]float64, n)
	for i := range m.xs {
		m.xs[i] = m.output.Min + float64(i)*step
	}
	m.xs[n-1] = m.output.Max

	m.shapes = make(map[string][]float64, len(m.output.Terms))
	for _, t := range m.output.Terms {
		mu := make([]float64, n)
		for i, x := range m.xs {
			mu[i] = t.Degree(x)
		}
		m.shapes[t.Name] = mu
	}
}

func validateVariable(v Variable) error {
	if v.Name == "" {
		return fault.Configuration("fuzzy: variable without a name")
	}
	if !(v.Min < v.Max) {
		return fault.Configuration("fuzzy: variable %q has empty domain [%g, %g]", v.Name, v.Min, v.Max)
	}
	if len(v.Terms) == 0 {
		return fault.Configuration("fuzzy: variable %q declares no terms", v.Name)
	}
	names := make(map[string]bool, len(v.Terms))
	for _, t := range v.Terms {
		if t.Name == "" {
			return fault.Configuration("fuzzy: variable %q has a term without a name", v.Name)
		}
		if names[t.Name] {
			return fault.Configuration("fuzzy: variable %q declares term %q twice", v.Name, t.Name)
		}
		names[t.Name] = true
		if len(t.Points) != 3 && len(t.Points) != 4 {
			return fault.Configuration("fuzzy: %s.%s needs 3 or 4 breakpoints, got %d", v.Name, t.Name, len(t.Points))
		}
		for i, p := range t.Points {
			if math.IsNaN(p) || p < v.Min || p > v.Max {
				return fault.Configuration("fuzzy: %s.%s breakpoint %g outside domain [%g, %g]",
					v.Name, t.Name, p, v.Min, v.Max)
			}
			if i > 0 && p < t.Points[i-1] {
				return fault.Configuration("fuzzy: %s.%s breakpoints are not non-decreasing: %v",
					v.Name, t.Name, t.Points)
			}
		}
	}
	return nil
}

func cloneVariable(v Variable) Variable {
	terms := make([]Term, len(v.Terms))
	for i, t := range v.Terms {
		terms[i] = Term{Name: t.Name, Points: append([]float64(nil), t.Points...)}
	}
	v.Terms = terms
	return v
}

func ruleLabel(i int, r Rule) string {
	return fmt.Sprintf("fuzzy: rule %d (%s)", i+1, r)
}
