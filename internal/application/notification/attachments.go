package notification

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"text/template"

	"github.com/tidwall/gjson"

	"github.com/ahrav/operino-hub/internal/domain/operino"
)

const (
	postmanName   = "postman.json"
	workspaceName = "workspace.md"
)

var funcs = template.FuncMap{
	// js renders a value as a JSON literal.
	"js": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}

var postmanTmpl = template.Must(template.New(postmanName).Funcs(funcs).Parse(`{
  "info": {
    "name": {{ js (printf "Operino %s" .Config.operino_name) }},
    "description": {{ js (printf "Requests against the %s domain" .Config.domain) }},
    "schema": "https://schema.getpostman.com/json/collection/v2.1.0/collection.json"
  },
  "auth": {
    "type": "basic",
    "basic": [
      {"key": "username", "value": {{ js .Config.username }}, "type": "string"},
      {"key": "password", "value": {{ js .Config.password }}, "type": "string"}
    ]
  },
  "variable": [
    {"key": "baseUrl", "value": {{ js .Config.base_url }}},
    {"key": "subjectNamespace", "value": {{ js .SubjectNamespace }}}
  ],
  "item": [
    {
      "name": "List templates",
      "request": {"method": "GET", "url": "{{"{{"}}baseUrl{{"}}"}}/rest/v1/template"}
    },
    {
      "name": "Find EHR by subject",
      "request": {
        "method": "GET",
        "url": "{{"{{"}}baseUrl{{"}}"}}/rest/v1/ehr?subjectId=9990000001&subjectNamespace={{"{{"}}subjectNamespace{{"}}"}}"
      }
    },
    {
      "name": "Query compositions",
      "request": {
        "method": "POST",
        "header": [{"key": "Content-Type", "value": "application/json"}],
        "url": "{{"{{"}}baseUrl{{"}}"}}/rest/v1/query",
        "body": {"mode": "raw", "raw": {{ js "{\"aql\":\"select c/name/value from EHR e contains COMPOSITION c limit 10\"}" }}}
      }
    }
  ]
}
`))

var workspaceTmpl = template.Must(template.New(workspaceName).Parse(`# {{ .Config.operino_name }}

Your Operino workspace is ready.

| Setting | Value |
|---------|-------|
| Domain | {{ .Config.domain }} |
| System ID | {{ .Config.system_id }} |
| Owner | {{ .Config.display_name }} |
| Username | {{ .Config.username }} |
| API | {{ .Config.base_url }} |
{{- if .ExplorerURL }}
| Explorer | {{ .ExplorerURL }} |
{{- end }}

{{ if .Seeded -}}
The domain was seeded with {{ .Seeded }} synthetic patients.
{{- else -}}
The domain contains no patient data.
{{- end }}

Import the attached postman.json to start querying the repository.
`))

type attachmentData struct {
	Config           map[string]string
	SubjectNamespace string
	ExplorerURL      string
	Seeded           int
}

// renderAttachments builds the postman collection and the markdown summary.
func renderAttachments(d attachmentData) ([]operino.Attachment, error) {
	var postman bytes.Buffer
	if err := postmanTmpl.Execute(&postman, d); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", postmanName, err)
	}
	if !gjson.ValidBytes(postman.Bytes()) {
		return nil, errors.New("generated postman collection is not valid json")
	}

	var md bytes.Buffer
	if err := workspaceTmpl.Execute(&md, d); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", workspaceName, err)
	}

	return []operino.Attachment{
		{Name: postmanName, ContentType: "application/json", Content: postman.Bytes()},
		{Name: workspaceName, ContentType: "text/markdown", Content: md.Bytes()},
	}, nil
}
