package render

import "html/template"

const stylesheet = `
body { margin: 0; font-family: "Inter", "Helvetica Neue", Arial, sans-serif; font-size: 11pt; color: #1f2933; }
.cv-preview-wrapper { display: flex; justify-content: center; }
.cv-preview-wrapper--modal { background: #ffffff; }
.cv-preview { width: 794px; aspect-ratio: 210 / 297; background: #ffffff; box-sizing: border-box; padding: 32px; }
.cv-preview-body { display: grid; grid-template-columns: 1fr 2fr; gap: 24px; }
.cv-preview-block-title { font-size: 13pt; text-transform: uppercase; border-bottom: 1px solid #cbd2d9; margin: 16px 0 8px; }
.cv-field { display: flex; gap: 6px; margin: 2px 0; }
.cv-field-label { font-weight: 600; }
.cv-field-value { white-space: pre-wrap; }
.cv-entry { margin-bottom: 8px; }
.cv-avatar img { width: 140px; height: 140px; object-fit: cover; border-radius: 50%; }
.cv-block--businesscard .cv-field-value { font-size: 16pt; }
.cv-unsupported { color: #9aa5b1; font-style: italic; }
@page { size: A4; margin: 0; }
`

const templateString = `
{{define "field"}}
<div class="cv-field cv-field--{{.Name}}">
  <span class="cv-field-label">{{.Label}}</span>
  {{if .ReadOnly}}
  <span class="cv-field-value">{{.Value}}</span>
  {{else if .Multiline}}
  <textarea name="{{.Name}}" placeholder="{{.Placeholder}}">{{.Value}}</textarea>
  {{else}}
  <input type="text" name="{{.Name}}" value="{{.Value}}" placeholder="{{.Placeholder}}">
  {{end}}
</div>
{{end}}

{{define "block"}}
<section class="cv-block cv-block--{{.Type}}{{if .ReadOnly}} cv-block--readonly{{end}}" data-block-id="{{.ID}}">
  {{if .ShowHeading}}<h3 class="cv-preview-block-title">{{.Title}}</h3>{{end}}
  {{if .Unsupported}}
  <div class="cv-unsupported">Unsupported block: {{.Type}}</div>
  {{end}}
  {{if .Avatar}}
  <div class="cv-avatar{{if .Uploading}} cv-avatar--uploading{{end}}">
    {{if .Image}}<img src="{{.Image}}" alt="{{.Title}}">{{end}}
    {{if not .ReadOnly}}
    <input type="file" name="file" accept="image/*"{{if .Uploading}} disabled{{end}}>
    {{end}}
  </div>
  {{end}}
  {{range .Fields}}{{template "field" .}}{{end}}
  {{if .List}}
  <div class="cv-entries" data-list="{{.ListField}}">
    {{range .Entries}}
    <div class="cv-entry" data-entry-id="{{.ID}}">
      {{range .Fields}}{{template "field" .}}{{end}}
      {{if not $.ReadOnly}}<button type="button" data-action="remove-entry" data-entry-id="{{.ID}}">Remove</button>{{end}}
    </div>
    {{end}}
    {{if not .ReadOnly}}<button type="button" data-action="add-entry">Add</button>{{end}}
  </div>
  {{end}}
</section>
{{end}}

{{define "preview"}}
<div class="cv-preview-wrapper{{if .Modal}} cv-preview-wrapper--modal{{end}}">
  <div id="a4-container" class="cv-preview" style="aspect-ratio: 210 / 297">
    <div class="cv-preview-body">
      <div class="cv-preview-column-left">
        {{range .Left}}{{template "block" .}}{{end}}
      </div>
      <div class="cv-preview-column-right">
        {{range .Right}}{{template "block" .}}{{end}}
      </div>
    </div>
  </div>
</div>
{{end}}

{{define "document"}}<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>{{.Styles}}</style>
</head>
<body>
{{template "preview" .Preview}}
</body>
</html>
{{end}}

{{define "panel"}}
<div class="layout-editor">
  <div class="layout-editor-scroll">
    {{range .Zones}}
    <div class="layout-column{{if .Hover}} layout-column--over{{end}}" data-zone="{{.ID}}">
      <h3 class="layout-column-title">{{.Title}}</h3>
      <div class="layout-column-list" data-drop-target="{{.ID}}">
        {{range .Blocks}}
        <div class="sortable-block{{if .Selected}} sortable-block--selected{{end}}{{if .Dragging}} sortable-block--dragging{{end}}" data-block-id="{{.ID}}" data-zone="{{.Zone}}" draggable="true">{{.Title}}</div>
        {{end}}
      </div>
    </div>
    {{end}}
  </div>
</div>
{{end}}

{{define "overlay"}}
<div class="drag-overlay sortable-block sortable-block--dragging" data-block-id="{{.ID}}">{{.Title}}</div>
{{end}}
`

var templates = template.Must(template.New("cv").Parse(templateString))
