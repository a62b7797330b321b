// Package dashboard renders the live queue view to markdown.
package dashboard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/creatorshive/arrisd/internal/arris"
)

// Formatter renders a LiveStatus snapshot into .arris/dashboard.md.
// Everything it shows is already anonymized by the service.
type Formatter struct {
	arrisDir string
}

func NewFormatter(arrisDir string) *Formatter {
	return &Formatter{arrisDir: arrisDir}
}

// Path returns the dashboard file location.
func (f *Formatter) Path() string {
	return filepath.Join(f.arrisDir, "dashboard.md")
}

// Render formats the live status as markdown.
func (f *Formatter) Render(ls arris.LiveStatus) (string, error) {
	tmpl, err := template.New("dashboard").Parse(dashboardTemplate)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var output strings.Builder
	if err := tmpl.Execute(&output, ls); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return output.String(), nil
}

// WriteFile renders and atomically replaces dashboard.md.
func (f *Formatter) WriteFile(ls arris.LiveStatus) error {
	formatted, err := f.Render(ls)
	if err != nil {
		return err
	}

	dashboardPath := f.Path()
	tmpPath := dashboardPath + ".tmp"

	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	if _, err := tmpFile.WriteString(formatted); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write dashboard: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dashboardPath); err != nil {
		return fmt.Errorf("replace dashboard file: %w", err)
	}
	return nil
}

const dashboardTemplate = `# ARRIS Queue Dashboard

> Auto-generated at {{ .Timestamp.Format "2006-01-02 15:04:05 MST" }}. Do not edit manually.

## Queue Statistics

| Metric | Value |
|--------|-------|
| Fast lane queued | {{ .Stats.FastQueued }} |
| Standard lane queued | {{ .Stats.StandardQueued }} |
| Processing | {{ .Stats.Processing }} |
| Total completed | {{ .Stats.TotalCompleted }} |
| Fast avg (s) | {{ printf "%.1f" .Stats.Fast.AvgSeconds }} |
| Standard avg (s) | {{ printf "%.1f" .Stats.Standard.AvgSeconds }} |

## Currently Processing

{{ if .Processing -}}
| Creator | Proposal | Priority | Started |
|---------|----------|----------|---------|
{{ range .Processing -}}
| {{ .CreatorName }} | {{ .ProposalTitle }} | {{ .Priority }} | {{ if .StartedAt }}{{ .StartedAt.Format "15:04:05" }}{{ else }}-{{ end }} |
{{ end -}}
{{ else -}}
_Nothing in flight._
{{ end }}

## Up Next

| Position | Creator | Proposal | Priority |
|----------|---------|----------|----------|
{{ range .NextFast -}}
| {{ .QueuePosition }} | {{ .CreatorName }} | {{ .ProposalTitle }} | {{ .Priority }} |
{{ end -}}
{{ range .NextStandard -}}
| {{ .QueuePosition }} | {{ .CreatorName }} | {{ .ProposalTitle }} | {{ .Priority }} |
{{ else -}}
{{ if not .NextFast }}| _Queue empty_ | - | - | - |
{{ end -}}
{{ end }}

## Recent Activity

{{ if .RecentActivity -}}
| Time | Event | Creator | Proposal |
|------|-------|---------|----------|
{{ range .RecentActivity -}}
| {{ .CreatedAt.Format "15:04:05" }} | {{ .Type }} | {{ .CreatorName }} | {{ .ProposalTitle }} |
{{ end -}}
{{ else -}}
_No recent activity._
{{ end }}

---
_Last updated: {{ .Timestamp.Format "2006-01-02 15:04:05 MST" }}_
`
