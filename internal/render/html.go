package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/sethshoultes/invoice-generator/internal/export"
)

// HTMLContentType is the content type of the print preview.
const HTMLContentType = "text/html; charset=utf-8"

var bodyTemplate = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"align": func(a export.Align) string {
		switch a {
		case export.AlignCenter:
			return "center"
		case export.AlignRight:
			return "right"
		}
		return "left"
	},
}).Parse(`<div class="invoice">
<div class="issuer">
<h2>{{.Header.Name}}</h2>
{{with .Header.Address1}}<p>{{.}}</p>{{end}}
{{with .Header.Address2}}<p>{{.}}</p>{{end}}
{{with .Header.Phone}}<p>{{.}}</p>{{end}}
</div>
<h1>{{.Title}}</h1>
<p class="submitted">{{.SubmittedOn}}{{with .For}} <span class="for">For: {{.}}</span>{{end}}</p>
{{with .Period}}<p class="period">{{.}}</p>{{end}}
<table class="grid"><tr>
{{range .Grid}}<td>{{range .}}<p><strong>{{.Label}}</strong></p>{{range .Lines}}{{if .}}<p>{{.}}</p>{{end}}{{end}}{{end}}</td>
{{end}}</tr></table>
<table class="items">
<thead><tr>{{range .Table.Columns}}<th class="{{align .Align}}">{{.Title}}</th>{{end}}</tr></thead>
<tbody>
{{$cols := .Table.Columns}}{{range .Table.Rows}}<tr>{{range $i, $v := .}}<td class="{{align (index $cols $i).Align}}">{{$v}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
{{with .Table.Summary}}<p class="summary">{{.}}</p>{{end}}
<table class="totals">
{{range .Totals}}<tr{{if .Emphasis}} class="total"{{end}}><td>{{.Label}}</td><td class="right">{{.Value}}</td></tr>
{{end}}</table>
{{with .Notes}}<p class="notes">{{.}}</p>{{end}}
</div>`))

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Invoice</title>
<style>
body { font-family: Arial, sans-serif; color: #374151; margin: 2rem; }
h1 { color: #1e3a5f; font-size: 2.2rem; margin: 1rem 0 .5rem; }
h2 { color: #2563eb; margin: 0; }
p { margin: .2rem 0; }
table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
.items th { border-bottom: 2px solid #1e3a5f; padding: .4rem; }
.items td { border-bottom: 1px solid #e5e7eb; padding: .4rem; }
.grid td { vertical-align: top; }
.totals { width: 40%; margin-left: auto; border-top: 2px solid #1e3a5f; }
.total td { font-weight: bold; color: #db2777; font-size: 1.3rem; }
.left { text-align: left; } .center { text-align: center; } .right { text-align: right; }
.period, .notes { color: #6b7280; }
.notes { font-style: italic; margin-top: 2rem; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
`

const pageFoot = `
</body>
</html>
`

// HTML renders invoice documents as a printable HTML page.
type HTML struct {
	policy *bluemonday.Policy
}

// NewHTML creates an HTML renderer. The rendered body is passed through a
// user-content policy that keeps only layout markup and the class attribute.
func NewHTML() *HTML {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	return &HTML{policy: policy}
}

// Render lays out doc and returns a complete HTML page.
func (h *HTML) Render(doc *export.Document) ([]byte, error) {
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, doc); err != nil {
		return nil, fmt.Errorf("executing invoice template: %w", err)
	}

	var page bytes.Buffer
	page.WriteString(pageHead)
	page.Write(h.policy.SanitizeBytes(body.Bytes()))
	page.WriteString(pageFoot)
	return page.Bytes(), nil
}
