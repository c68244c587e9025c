package api

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

// Templates implements echo.Renderer over the dashboard page templates.
type Templates struct {
	t *template.Template
}

func NewTemplates() *Templates {
	return &Templates{t: template.Must(template.New("index").Parse(indexHTML))}
}

func (t *Templates) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.t.ExecuteTemplate(w, name, data)
}

const indexHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>Serie de Consolas</title>
<style>
body { font-family: sans-serif; margin: 1.5em; }
form { display: flex; gap: 1em; align-items: center; margin-bottom: 1em; }
select { font-size: 1.2em; padding: .2em; }
.slot { display: inline-block; width: 100%; vertical-align: top; }
.slot.half { width: 50%; }
.slot img { max-width: 100%; }
.notice { font-size: 2em; font-weight: bold; margin-top: 1em; }
</style>
</head>
<body>
<form method="post" action="/submit">
  <select name="console_serie" id="console_serie-list">
  {{- range .Families}}
    <option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
  {{- end}}
  </select>
  <select name="year" id="year-list">
  {{- range .Years}}
    <option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
  {{- end}}
  </select>
  <button type="submit" id="submit-button">Submit</button>
</form>
<div id="description">{{.Description}}</div>
{{- if .Notice}}
<div class="notice"><h1>{{.Notice}}</h1></div>
{{- else}}
{{- range .Slots}}
<div class="slot{{if .Half}} half{{end}}" id="{{.ID}}"><img src="{{.Src}}" alt="{{.Title}}"></div>
{{- end}}
{{- end}}
<h3 id="footer">Elaborado por Piero Yahir Curay Chacon - Julio 2022</h3>
</body>
</html>
`
