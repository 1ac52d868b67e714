package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/mozilla/appservices-decision/internal/pipeline"
	"github.com/mozilla/appservices-decision/internal/taskcluster"
)

// theme keeps the plan styling in one place.
type theme struct {
	Title   lipgloss.Style
	Created lipgloss.Style
	Reused  lipgloss.Style
	Dim     lipgloss.Style
	Name    lipgloss.Style
}

func newTheme() theme {
	return theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#874BFD")).
			Padding(0, 1),
		Created: lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Reused:  lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Name:    lipgloss.NewStyle().Bold(true),
	}
}

type planView struct {
	TaskFor string     `json:"taskFor" yaml:"task_for"`
	GitRef  string     `json:"gitRef,omitempty" yaml:"git_ref,omitempty"`
	Created int        `json:"created" yaml:"created"`
	Tasks   []taskView `json:"tasks" yaml:"tasks"`
}

type taskView struct {
	Name         string   `json:"name" yaml:"name"`
	TaskID       string   `json:"taskId" yaml:"task_id"`
	IndexPath    string   `json:"indexPath,omitempty" yaml:"index_path,omitempty"`
	Reused       bool     `json:"reused" yaml:"reused"`
	WorkerType   string   `json:"workerType,omitempty" yaml:"worker_type,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Routes       []string `json:"routes,omitempty" yaml:"routes,omitempty"`
}

func viewOf(p *pipeline.Plan) planView {
	v := planView{
		TaskFor: string(p.TaskFor),
		GitRef:  p.GitRef,
		Created: p.Created(),
		Tasks:   make([]taskView, 0, len(p.Tasks)),
	}
	for _, s := range p.Tasks {
		t := taskView{
			Name:      s.Name,
			TaskID:    s.TaskID,
			IndexPath: s.IndexPath,
			Reused:    s.Reused,
		}
		if d := s.Definition; d != nil {
			t.WorkerType = d.WorkerType
			t.Dependencies = d.Dependencies
			t.Scopes = d.Scopes
			t.Routes = d.Routes
		}
		v.Tasks = append(v.Tasks, t)
	}
	return v
}

// renderPlan renders p as text, json or yaml.
func renderPlan(p *pipeline.Plan, format string) (string, error) {
	v := viewOf(p)
	switch strings.ToLower(format) {
	case "", "text":
		return renderText(v, newTheme()), nil
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", fmt.Errorf("render plan JSON: %w", err)
		}
		return string(data) + "\n", nil
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("render plan YAML: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func renderText(v planView, th theme) string {
	var b strings.Builder
	title := th.Title.Render("Decision plan")
	fmt.Fprintf(&b, "%s %s %s\n", title, v.TaskFor, th.Dim.Render(v.GitRef))
	fmt.Fprintf(&b, "%d task(s), %d created, %d reused\n\n", len(v.Tasks), v.Created, len(v.Tasks)-v.Created)

	for _, t := range v.Tasks {
		state := th.Created.Render("created")
		if t.Reused {
			state = th.Reused.Render("reused ")
		}
		fmt.Fprintf(&b, "%s %s %s\n", state, th.Name.Render(t.Name), th.Dim.Render(t.TaskID))
		if t.IndexPath != "" {
			fmt.Fprintf(&b, "        index:      %s\n", t.IndexPath)
		}
		if t.WorkerType != "" {
			fmt.Fprintf(&b, "        worker:     %s\n", t.WorkerType)
		}
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(&b, "        depends on: %s\n", strings.Join(t.Dependencies, ", "))
		}
		for _, s := range t.Scopes {
			fmt.Fprintf(&b, "        scope:      %s\n", s)
		}
	}
	return b.String()
}

// renderSummary is the short report printed by run.
func renderSummary(p *pipeline.Plan) string {
	var b strings.Builder
	for _, s := range p.Tasks {
		state := "created"
		if s.Reused {
			state = "reused"
		}
		fmt.Fprintf(&b, "%-7s %s %s\n", state, s.TaskID, s.Name)
	}
	fmt.Fprintf(&b, "%d task(s), %d created\n", len(p.Tasks), p.Created())
	return b.String()
}

func renderTaskGroup(rootURL string, list *taskcluster.TaskGroupList) string {
	var b strings.Builder
	fmt.Fprintf(&b, "task group %s on %s: %d task(s)\n", list.TaskGroupID, rootURL, len(list.Tasks))
	for _, e := range list.Tasks {
		fmt.Fprintf(&b, "  %s %s\n", e.TaskID, e.Task.Metadata.Name)
	}
	return b.String()
}
