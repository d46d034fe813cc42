// Package report renders a persisted RunReport as an HTML page. It is a
// thin collaborator by design — prompt wording, the browser UI, and the
// SSE transport are all out of scope for this system; this package only
// owns turning a RunReport JSON value into a human-readable summary.
package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"

	"dagbench/pkg/orchestrator"
)

var templateFuncs = template.FuncMap{
	"mul100": func(f float64) float64 { return f * 100 },
}

var pageTemplate = template.Must(template.New("report").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Run Report: {{.Summary.DatasetName}}</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
table { border-collapse: collapse; margin-bottom: 1.5rem; }
td, th { border: 1px solid #ccc; padding: 0.4rem 0.8rem; text-align: left; }
.pass { color: #1a7f37; }
.fail { color: #c4341f; }
</style>
</head>
<body>
<h1>Run Report: {{.Summary.DatasetName}}</h1>
<p>{{.Summary.Timestamp.Format "2006-01-02 15:04:05"}}</p>
<table>
<tr><th>Total</th><th>Passed</th><th>Failed</th><th>Pass rate</th><th>Avg exec time (ms)</th><th>Total iterations</th></tr>
<tr>
<td>{{.Summary.Total}}</td>
<td>{{.Summary.Passed}}</td>
<td>{{.Summary.Failed}}</td>
<td>{{printf "%.1f%%" (mul100 .Summary.PassRate)}}</td>
<td>{{printf "%.2f" .Summary.AvgExecutionTimeMs}}</td>
<td>{{.Summary.TotalIterations}}</td>
</tr>
</table>

<h2>By difficulty</h2>
<table>
<tr><th>Level</th><th>Total</th><th>Passed</th><th>Failed</th><th>Pass rate</th></tr>
{{range $level, $bucket := .DifficultyBreakdown}}
<tr><td>{{$level}}</td><td>{{$bucket.Total}}</td><td>{{$bucket.Passed}}</td><td>{{$bucket.Failed}}</td><td>{{printf "%.1f%%" (mul100 $bucket.PassRate)}}</td></tr>
{{end}}
</table>

<h2>Questions</h2>
<table>
<tr><th>ID</th><th>Difficulty</th><th>Text</th><th>Iterations</th><th>Outcome</th></tr>
{{range .QuestionTraces}}
<tr>
<td>{{.Question.ID}}</td>
<td>{{.Question.DifficultyLevel}}</td>
<td>{{.Question.Text}}</td>
<td>{{.IterationCount}}</td>
<td>
{{if and .ExecutionResult .ExecutionResult.Success}}<span class="pass">passed</span>{{else}}<span class="fail">failed</span>{{end}}
</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

// LoadReport reads a persisted RunReport JSON file.
func LoadReport(path string) (*orchestrator.RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}
	var r orchestrator.RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report file: %w", err)
	}
	return &r, nil
}

// RenderHTML writes r as an HTML document to w.
func RenderHTML(w io.Writer, r *orchestrator.RunReport) error {
	return pageTemplate.Execute(w, r)
}
