package fuzzy

import (
	"math"
	"strings"
	"testing"

	"github.com/fuzzymachine/efficiency/pkg/fault"
)

// almostEqual reports whether a and b differ by less than 1e-9.
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func weight(v float64) *float64 { return &v }

func mustDefault(t *testing.T) *Model {
	t.Helper()
	m, err := NewModel(DefaultDefinition())
	if err != nil {
		t.Fatalf("NewModel(default): %v", err)
	}
	return m
}

func TestDefaultDefinition_Loads(t *testing.T) {
	m := mustDefault(t)
	if got := len(m.Inputs()); got != 5 {
		t.Errorf("inputs = %d, want 5", got)
	}
	if m.Output().Name != "efficiency_score" {
		t.Errorf("output = %q", m.Output().Name)
	}
	if m.Resolution() != DefaultResolution {
		t.Errorf("resolution = %d", m.Resolution())
	}
	if m.Fallback() != 0 {
		t.Errorf("fallback = %v, want 0", m.Fallback())
	}
}

func TestTermDegree(t *testing.T) {
	tri := Term{Name: "medium", Points: []float64{300, 500, 700}}
	trap := Term{Name: "low", Points: []float64{0, 0, 200, 400}}
	cases := []struct {
		term Term
		x    float64
		want float64
	}{
		{tri, 299, 0},
		{tri, 300, 0},
		{tri, 400, 0.5},
		{tri, 500, 1},
		{tri, 650, 0.25},
		{tri, 700, 0},
		{tri, 900, 0},
		{trap, 0, 1},
		{trap, 200, 1},
		{trap, 300, 0.5},
		{trap, 400, 0},
	}
	for _, tc := range cases {
		if got := tc.term.Degree(tc.x); !almostEqual(got, tc.want) {
			t.Errorf("%s.Degree(%v) = %v, want %v", tc.term.Name, tc.x, got, tc.want)
		}
	}
}

func TestMembership_BoundedAndZeroOutsideDomain(t *testing.T) {
	m := mustDefault(t)
	vars := append(m.Inputs(), m.Output())
	for _, v := range vars {
		span := v.Max - v.Min
		for _, term := range v.Terms {
			for i := 0; i <= 500; i++ {
				x := v.Min + span*float64(i)/500
				d, err := m.Membership(v.Name, term.Name, x)
				if err != nil {
					t.Fatalf("Membership(%s, %s): %v", v.Name, term.Name, err)
				}
				if d < 0 || d > 1 {
					t.Fatalf("%s.%s(%v) = %v outside [0,1]", v.Name, term.Name, x, d)
				}
			}
			for _, x := range []float64{v.Min - 1, v.Max + 1, v.Min - span} {
				d, _ := m.Membership(v.Name, term.Name, x)
				if d != 0 {
					t.Errorf("%s.%s(%v) = %v outside domain, want 0", v.Name, term.Name, x, d)
				}
			}
		}
	}
}

func TestMembership_UnknownNames(t *testing.T) {
	m := mustDefault(t)
	if _, err := m.Membership("humidity", "low", 1); !fault.Is(err, fault.KindConfiguration) {
		t.Errorf("unknown variable err = %v", err)
	}
	if _, err := m.Membership(VarErrorMargin, "huge", 1); !fault.Is(err, fault.KindConfiguration) {
		t.Errorf("unknown term err = %v", err)
	}
}

func TestNewModel_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Definition)
		want   string
	}{
		{"undefined variable", func(d *Definition) {
			d.Rules = append(d.Rules, Rule{If: "humidity IS low", Then: "good"})
		}, `undefined variable "humidity"`},
		{"undefined term", func(d *Definition) {
			d.Rules = append(d.Rules, Rule{If: "error_margin IS tiny", Then: "good"})
		}, `undefined term "tiny"`},
		{"undefined consequent", func(d *Definition) {
			d.Rules = append(d.Rules, Rule{If: "error_margin IS low", Then: "superb"})
		}, `consequent "superb"`},
		{"non-monotonic breakpoints", func(d *Definition) {
			d.Inputs[0].Terms[1].Points = []float64{500, 300, 700}
		}, "not non-decreasing"},
		{"too many breakpoints", func(d *Definition) {
			d.Inputs[0].Terms[1].Points = []float64{1, 2, 3, 4, 5}
		}, "needs 3 or 4 breakpoints"},
		{"breakpoint outside domain", func(d *Definition) {
			d.Inputs[1].Terms[0].Points = []float64{-1, 0, 2, 5}
		}, "outside domain"},
		{"empty domain", func(d *Definition) {
			d.Inputs[2].Max = d.Inputs[2].Min
		}, "empty domain"},
		{"unknown input field", func(d *Definition) {
			d.Inputs[3].Name = "humidity"
		}, "does not name a measurement field"},
		{"missing input", func(d *Definition) {
			d.Inputs = d.Inputs[:4]
		}, "is not declared"},
		{"weight above one", func(d *Definition) {
			d.Rules[0].Weight = weight(1.5)
		}, "weight"},
		{"explicit zero weight", func(d *Definition) {
			d.Rules[0].Weight = weight(0)
		}, "weight 0 outside"},
		{"NaN weight", func(d *Definition) {
			d.Rules[0].Weight = weight(math.NaN())
		}, "weight"},
		{"parse error", func(d *Definition) {
			d.Rules[0].If = "error_margin IS low AND"
		}, "parse antecedent"},
		{"no rules", func(d *Definition) {
			d.Rules = nil
		}, "rule base is empty"},
		{"fallback outside output", func(d *Definition) {
			d.Fallback = 150
		}, "fallback"},
		{"resolution too small", func(d *Definition) {
			d.Resolution = 1
		}, "resolution"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := DefaultDefinition()
			tc.mutate(&def)
			_, err := NewModel(def)
			if err == nil {
				t.Fatal("NewModel succeeded, want configuration error")
			}
			if !fault.Is(err, fault.KindConfiguration) {
				t.Errorf("kind = %q, want configuration", fault.KindOf(err))
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %q, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestModel_AccessorsReturnCopies(t *testing.T) {
	m := mustDefault(t)
	in := m.Inputs()
	in[0].Terms[0].Points[0] = 999
	if m.Inputs()[0].Terms[0].Points[0] == 999 {
		t.Error("Inputs() exposes internal state")
	}
}

func TestParseDefinition_BadYAML(t *testing.T) {
	if _, err := ParseDefinition([]byte("inputs: [")); !fault.Is(err, fault.KindConfiguration) {
		t.Errorf("err = %v, want configuration fault", err)
	}
}

func TestLoadDefinition_MissingFile(t *testing.T) {
	if _, err := LoadDefinition(t.TempDir() + "/nope.yaml"); !fault.Is(err, fault.KindConfiguration) {
		t.Errorf("err = %v, want configuration fault", err)
	}
}

func TestRuleWeight_OmittedDefaultsToOne(t *testing.T) {
	parsed, err := ParseDefinition([]byte(`
rules:
  - if: error_margin IS low
    then: good
  - if: error_margin IS high
    then: bad
    weight: 0.4
  - if: error_margin IS medium
    then: medium
    weight: 0
`))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}

	def := DefaultDefinition()
	def.Rules = parsed.Rules[:2]
	m, err := NewModel(def)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	rules := m.Rules()
	if rules[0].Weight == nil || *rules[0].Weight != 1 {
		t.Errorf("omitted weight = %v, want 1", rules[0].Weight)
	}
	if rules[1].Weight == nil || *rules[1].Weight != 0.4 {
		t.Errorf("explicit weight = %v, want 0.4", rules[1].Weight)
	}

	// weight: 0 in YAML is a typo, not a request for the default.
	def.Rules = parsed.Rules
	if _, err := NewModel(def); !fault.Is(err, fault.KindConfiguration) {
		t.Errorf("zero weight: err = %v, want configuration fault", err)
	}
}

func TestRuleWeight_AccessorDoesNotAlias(t *testing.T) {
	m := mustDefault(t)
	*m.Rules()[0].Weight = 0.01
	if got := *m.Rules()[0].Weight; got != 1 {
		t.Errorf("weight after mutating copy = %v, want 1", got)
	}
}
