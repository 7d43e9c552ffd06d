// Package report renders study synopses and stores them.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/bioeq-design-server/internal/domain"
)

var samplingLabels = map[string]string{
	domain.SamplePredose: "Pre-dose",
	domain.SampleEarly:   "Early post-dose",
	domain.SamplePeak:    "Around Tmax",
	domain.SampleLate1:   "Elimination (1 x T1/2)",
	domain.SampleLate2:   "Elimination (3 x T1/2)",
	domain.SampleLate3:   "Elimination (5 x T1/2)",
}

const synopsisTemplate = `# Bioequivalence Study Synopsis: {{.Meta.INNEn}}

| | |
|---|---|
| Project | {{.Meta.ProjectID}} |
| Active substance | {{.Meta.INNEn}}{{with .Meta.INNRu}} ({{.}}){{end}} |
| Test product (T) | {{or .Meta.DrugNameT "not specified"}} |
| Reference product (R) | {{or .Meta.DrugNameR "not specified"}} |
| Dosage | {{or .Meta.Dosage "not specified"}} |
| Dosage form | {{or .Meta.Form "not specified"}} |

## Study design

- Design: **{{.Design.DesignType}}**
- Intra-subject CV: {{printf "%.1f" .Design.CVIntra}}%
- Power: {{printf "%.0f" (percent .Design.Power)}}%, alpha: {{printf "%.2f" .Design.Alpha}}
- Sample size (evaluable): {{.Design.SampleSize}}
- Recruitment size: {{.Design.RecruitmentSize}}{{if or .Design.DropoutRate .Design.ScreenFailRate}} (dropout {{printf "%.0f" .Design.DropoutRate}}%, screen failure {{printf "%.0f" .Design.ScreenFailRate}}%){{end}}
{{- with .Design.WashoutDays}}
- Washout period: {{printf "%.0f" (deref .)}} days
{{- end}}
- Randomization: {{.Design.RandomizationScheme}}

{{.Design.DesignExplanation}}
{{if .Sampling}}
## Blood sampling schedule

| Point | Time (h) |
|---|---|
{{- range .Sampling}}
| {{.Label}} | {{printf "%.2f" .Hours}} |
{{- end}}
{{end}}
{{- with .Compliance}}
## Regulatory check

Status: **{{.Status}}**
{{range .CriticalIssues}}
- Critical: {{.}}
{{- end}}
{{- range .Warnings}}
- Warning: {{.}}
{{- end}}
{{end}}`

var synopsis = template.Must(template.New("synopsis").Funcs(template.FuncMap{
	"percent": func(v float64) float64 { return v * 100 },
	"deref":   func(v *float64) float64 { return *v },
}).Parse(synopsisTemplate))

type samplingPoint struct {
	Label string
	Hours float64
}

// Renderer builds the study synopsis document.
type Renderer struct{}

// NewRenderer creates a renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Markdown renders the synopsis. Compliance is optional.
func (r *Renderer) Markdown(meta domain.ProjectMetadata, design *domain.DesignParameters, compliance *domain.ComplianceResult) (string, error) {
	if design == nil {
		return "", domain.ErrDesignNotYetGenerated
	}

	var sampling []samplingPoint
	for _, name := range domain.SamplingPointOrder {
		if hours, ok := design.SamplingPlan[name]; ok {
			sampling = append(sampling, samplingPoint{Label: samplingLabels[name], Hours: hours})
		}
	}

	var buf bytes.Buffer
	err := synopsis.Execute(&buf, struct {
		Meta       domain.ProjectMetadata
		Design     *domain.DesignParameters
		Compliance *domain.ComplianceResult
		Sampling   []samplingPoint
	}{meta, design, compliance, sampling})
	if err != nil {
		return "", fmt.Errorf("rendering synopsis: %w", err)
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// HTML converts a Markdown synopsis to a standalone HTML fragment.
func (r *Renderer) HTML(md string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return string(markdown.Render(doc, renderer))
}
