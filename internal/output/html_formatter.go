package output

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"html/template"

	"github.com/rpgo/finplan/internal/domain"
)

// HTMLFormatter produces a standalone HTML report with a portfolio chart.
type HTMLFormatter struct{}

func (h HTMLFormatter) Name() string { return "html" }

//go:embed templates/report.html.tmpl
var htmlTemplateSource string

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"curr": FormatCurrency,
	"pct":  FormatPercentage,
	"age":  ageOrDash,
	"add":  func(i, j int) int { return i + j },
	"json": func(v interface{}) template.JS {
		b, _ := json.Marshal(v)
		return template.JS(b)
	},
}).Parse(htmlTemplateSource))

type chartSeries struct {
	Name   string    `json:"name"`
	Ages   []int     `json:"ages"`
	Values []float64 `json:"values"`
}

func (h HTMLFormatter) Format(results *domain.ScenarioComparison) ([]byte, error) {
	var buf bytes.Buffer
	rec := AnalyzeScenarios(results)

	assumptions := results.Assumptions
	if len(assumptions) == 0 {
		assumptions = DefaultAssumptions
	}

	series := make([]chartSeries, 0, len(results.Scenarios))
	for _, sc := range results.Scenarios {
		cs := chartSeries{Name: sc.Name}
		for _, p := range sc.Points {
			cs.Ages = append(cs.Ages, p.Age)
			cs.Values = append(cs.Values, p.PortfolioValue.Round(2).InexactFloat64())
		}
		series = append(series, cs)
	}

	data := struct {
		*domain.ScenarioComparison
		Recommendation Recommendation
		Assumptions    []string
		Chart          []chartSeries
	}{results, rec, assumptions, series}
	if err := htmlTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
