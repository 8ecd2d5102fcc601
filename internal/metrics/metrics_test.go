package metrics

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/greenhouse-bench/internal/command"
	"github.com/danielpatrickdp/greenhouse-bench/internal/validate"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func result(c command.Command, kind validate.Kind) validate.Result {
	return validate.Result{Command: c, Verdict: validate.Verdict{Kind: kind}}
}

var (
	coolGH005     = command.Command{Greenhouse: "GH005", Device: "temperature_control", Action: "cool"}
	irrigateGH012 = command.Command{Greenhouse: "GH012", Device: "irrigation", Action: "irrigate"}
	phGH008       = command.Command{Greenhouse: "GH008", Device: "ph_control", Action: "increase_ph"}
)

func TestScoreViolationRateAgainstExpectedCount(t *testing.T) {
	in := Input{
		Response: command.Response{Rows: 3},
		Results: []validate.Result{
			result(coolGH005, validate.KindValid),
			result(irrigateGH012, validate.KindValid),
			result(command.Command{Greenhouse: "GH008", Device: "ph_control", Action: "set", Value: command.Float(2)}, validate.KindConstraintViolation),
		},
		Truth: GroundTruth{Expected: []command.Command{coolGH005, irrigateGH012, phGH008, {Greenhouse: "GH014", Device: "irrigation", Action: "irrigate"}}},
	}
	s := Score(in, DefaultConfig())
	if !approx(s.ViolationRate, 1.0/3) {
		t.Fatalf("expected violation rate 1/3, got %g", s.ViolationRate)
	}
	if !approx(s.Correctness, 2.0/4) {
		t.Fatalf("expected correctness 2/4, got %g", s.Correctness)
	}
	if s.Issued != 3 || s.Valid != 2 || s.Violations != 1 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if s.SyntaxErrorRate != 0 {
		t.Fatalf("expected no syntax errors, got %g", s.SyntaxErrorRate)
	}
}

func TestScoreSyntaxFailure(t *testing.T) {
	in := Input{
		SyntaxFailed: true,
		Truth:        GroundTruth{Expected: []command.Command{coolGH005}},
		Model:        Model{Params: 12e9, PricePer1KIn: 0.00009, PricePer1KOut: 0.00029},
		Usage:        Usage{InputTokens: 1000, OutputTokens: 1000},
	}
	s := Score(in, DefaultConfig())
	if s.SyntaxErrorRate != 1 || s.Correctness != 0 || s.Success != 0 || s.PEP != 0 || s.PVO != 0 {
		t.Fatalf("unexpected scores %+v", s)
	}
	if !approx(s.CostPerTask, 0.00038) {
		t.Fatalf("cost should still be charged, got %g", s.CostPerTask)
	}
}

func TestScoreRowSyntaxRate(t *testing.T) {
	in := Input{
		Response: command.Response{Rows: 4, RowErrors: []command.RowError{{Row: 2}}},
		Results:  []validate.Result{result(coolGH005, validate.KindValid)},
		Truth:    GroundTruth{Expected: []command.Command{coolGH005}},
	}
	s := Score(in, DefaultConfig())
	if !approx(s.SyntaxErrorRate, 0.25) || s.Correctness != 1 {
		t.Fatalf("unexpected scores %+v", s)
	}
}

func TestScoreSubstitutes(t *testing.T) {
	setCool := command.Command{Greenhouse: "GH005", Device: "temperature_control", Action: "set", Value: command.Float(26)}
	in := Input{
		Results: []validate.Result{result(setCool, validate.KindValid)},
		Truth:   GroundTruth{Expected: []command.Command{coolGH005}},
	}

	// 1. Default equivalence accepts a different action on the same device
	s := Score(in, DefaultConfig())
	if s.Correctness != 0 || s.Success != 1 || s.Substituted != 1 {
		t.Fatalf("expected substitute success, got %+v", s)
	}

	// 2. Exact equivalence rejects it
	in.Truth.Equivalence = Equivalences["exact"]
	s = Score(in, DefaultConfig())
	if s.Success != 0 {
		t.Fatalf("expected no substitute under exact, got %+v", s)
	}

	// 3. Invalid commands never count
	in.Truth.Equivalence = nil
	in.Results[0].Verdict.Kind = validate.KindConstraintViolation
	s = Score(in, DefaultConfig())
	if s.Success != 0 {
		t.Fatalf("violating command counted as substitute: %+v", s)
	}
}

func TestScoreValueTolerance(t *testing.T) {
	exp := command.Command{Greenhouse: "GH001", Device: "irrigation", Action: "set", Value: command.Float(65)}
	got := exp
	got.Value = command.Float(65.5)
	in := Input{
		Results: []validate.Result{result(got, validate.KindValid)},
		Truth:   GroundTruth{Expected: []command.Command{exp}},
	}
	if s := Score(in, DefaultConfig()); s.Correctness != 0 {
		t.Fatalf("65.5 should not match 65 exactly, got %+v", s)
	}
	cfg := DefaultConfig()
	cfg.Tolerance = 1
	if s := Score(in, cfg); s.Correctness != 1 {
		t.Fatalf("65.5 should match 65 within 1, got %+v", s)
	}
}

func TestScoreRefusal(t *testing.T) {
	truth := GroundTruth{ExpectError: true}
	cases := []struct {
		name    string
		resp    command.Response
		results []validate.Result
		want    float64
	}{
		{"clean refusal", command.Response{Error: true}, nil, 1},
		{"refusal with read", command.Response{Error: true}, []validate.Result{result(command.Command{Greenhouse: "GH020", Device: "temperature", Action: "read"}, validate.KindValid)}, 1},
		{"refusal with actuation", command.Response{Error: true}, []validate.Result{result(coolGH005, validate.KindValid)}, 0.5},
		{"complied", command.Response{}, []validate.Result{result(coolGH005, validate.KindValid)}, 0},
	}
	for _, tc := range cases {
		s := Score(Input{Response: tc.resp, Results: tc.results, Truth: truth}, DefaultConfig())
		if s.Correctness != tc.want {
			t.Errorf("%s: expected %g, got %g", tc.name, tc.want, s.Correctness)
		}
	}
}

func TestScoreNoExpectedCommands(t *testing.T) {
	read := command.Command{Greenhouse: "GH001", Device: "temperature", Action: "read"}
	s := Score(Input{Results: []validate.Result{result(read, validate.KindValid)}}, DefaultConfig())
	if s.Correctness != 1 || s.Success != 1 {
		t.Fatalf("status query should score 1, got %+v", s)
	}
	s = Score(Input{Results: []validate.Result{result(read, validate.KindHallucinated)}}, DefaultConfig())
	if s.Correctness != 0 || s.Success != 1 {
		t.Fatalf("hallucinated read should fail correctness only, got %+v", s)
	}
	s = Score(Input{Response: command.Response{Error: true}}, DefaultConfig())
	if s.Correctness != 0 || s.Success != 0 {
		t.Fatalf("refusing a valid request should score 0, got %+v", s)
	}
}

func TestDefaultFormulas(t *testing.T) {
	terms := Terms{Correctness: 1, Params: 1e10, Cost: 1}
	if got := DefaultPEP().Eval(terms); !approx(got, 0.1) {
		t.Fatalf("PEP: expected 0.1, got %g", got)
	}
	// log10(10) * (1 + 1) = 2
	if got := DefaultPVO().Eval(terms); !approx(got, 0.5) {
		t.Fatalf("PVO: expected 0.5, got %g", got)
	}
	if got := DefaultPVO().Eval(Terms{Correctness: 1, Params: 1e9}); !approx(got, 10) {
		t.Fatalf("PVO at 1B: expected 10, got %g", got)
	}
	if got := DefaultPEP().Eval(Terms{Correctness: 1, Params: 1}); got != 0 {
		t.Fatalf("PEP for degenerate size: expected 0, got %g", got)
	}
}

func TestWeightedFormula(t *testing.T) {
	w := Weighted{
		Label:       "viability",
		Numerator:   map[string]float64{TermCorrectness: 1, TermViolation: -0.5},
		Denominator: map[string]float64{TermLatency: 0.001},
		DenomBias:   1,
	}
	if err := w.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	// (1 - 0.5*0.2) / (1 + 0.001*1000) = 0.9 / 2
	got := w.Eval(Terms{Correctness: 1, Violation: 0.2, LatencyMS: 1000})
	if !approx(got, 0.45) {
		t.Fatalf("expected 0.45, got %g", got)
	}
	bad := Weighted{Label: "bad", Numerator: map[string]float64{"vibes": 1}}
	if err := bad.Check(); err == nil {
		t.Fatal("expected unknown term error")
	}

	cfg := DefaultConfig()
	cfg.PVO = w
	s := Score(Input{
		Results: []validate.Result{result(coolGH005, validate.KindValid)},
		Truth:   GroundTruth{Expected: []command.Command{coolGH005}},
		Usage:   Usage{InferenceMS: 1000},
	}, cfg)
	if !approx(s.PVO, 0.5) {
		t.Fatalf("expected weighted PVO 0.5, got %g", s.PVO)
	}
}

func TestDescribe(t *testing.T) {
	st := Describe([]float64{4, 1, 3, 2})
	if st.N != 4 || st.Mean != 2.5 || st.Median != 2.5 || st.Sum != 10 {
		t.Fatalf("unexpected stat %+v", st)
	}
	// sample variance of 1..4 is 5/3
	if !approx(st.Variance, 5.0/3) {
		t.Fatalf("expected variance 5/3, got %g", st.Variance)
	}
	// t(0.975, 3) = 3.182446...
	margin := 3.182446305284263 * math.Sqrt(5.0/3) / 2
	if math.Abs(st.CIHigh-(2.5+margin)) > 1e-6 || math.Abs(st.CILow-(2.5-margin)) > 1e-6 {
		t.Fatalf("unexpected interval [%g, %g]", st.CILow, st.CIHigh)
	}

	one := Describe([]float64{7})
	if one.Mean != 7 || one.CILow != 7 || one.CIHigh != 7 || one.StdDev != 0 {
		t.Fatalf("unexpected single-value stat %+v", one)
	}
	if empty := Describe(nil); empty.N != 0 {
		t.Fatalf("unexpected empty stat %+v", empty)
	}
}

func TestAggregate(t *testing.T) {
	sample := func(model, format string, correctness float64, refusal bool) Sample {
		return Sample{
			Labels:  map[Key]string{KeyModel: model, KeyFormat: format, KeyCategory: "simple"},
			Refusal: refusal,
			Scores:  Scores{Correctness: correctness},
			Usage:   Usage{InputTokens: 100},
		}
	}
	samples := []Sample{
		sample("qwen3_32b", "json", 1, false),
		sample("gemma3_12b", "json", 0, false),
		sample("gemma3_12b", "toon", 1, true),
		sample("gemma3_12b", "json", 1, false),
	}

	all := Aggregate(samples)
	if len(all) != 1 || all[0].Count != 4 || all[0].Metrics[MetricCorrectness].Mean != 0.75 {
		t.Fatalf("unexpected overall group %+v", all)
	}
	if all[0].Metrics[MetricInputTokens].Sum != 400 {
		t.Fatalf("expected 400 input tokens, got %g", all[0].Metrics[MetricInputTokens].Sum)
	}

	byModel := Aggregate(samples, KeyModel)
	if len(byModel) != 2 || byModel[0].Labels[KeyModel] != "gemma3_12b" || byModel[0].Count != 3 {
		t.Fatalf("unexpected model groups %+v", byModel)
	}
	if det, ok := byModel[0].Metrics[MetricDetection]; !ok || det.Mean != 1 {
		t.Fatalf("expected detection rate 1 for gemma, got %+v", det)
	}
	if _, ok := byModel[1].Metrics[MetricDetection]; ok {
		t.Fatal("qwen has no refusal runs")
	}

	pairs := Aggregate(samples, KeyModel, KeyFormat)
	if len(pairs) != 3 || pairs[0].Label() != "gemma3_12b/json" {
		t.Fatalf("unexpected model/format groups %+v", pairs)
	}

	between := Between(byModel, MetricCorrectness)
	if between.N != 2 || !approx(between.Mean, (2.0/3+1)/2) {
		t.Fatalf("unexpected between-model stat %+v", between)
	}
}

func TestAggregateKeepsSlashedLabelsApart(t *testing.T) {
	samples := []Sample{
		{Labels: map[Key]string{KeyModel: "org/model", KeyPrompt: "P01"}, Scores: Scores{Correctness: 1}},
		{Labels: map[Key]string{KeyModel: "org", KeyPrompt: "model/P01"}, Scores: Scores{Correctness: 0}},
	}
	groups := Aggregate(samples, KeyModel, KeyPrompt)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	for _, g := range groups {
		if g.Count != 1 {
			t.Fatalf("group %+v merged samples", g.Labels)
		}
	}
	// Display labels still read model/prompt.
	if groups[1].Label() != "org/model/P01" {
		t.Fatalf("unexpected label %q", groups[1].Label())
	}
}
