package decision

import (
	"encoding/json"
	"path"
	"regexp"
	"strings"
)

// Image is the docker image of a task: either a plain reference or an
// artifact of another task.
type Image struct {
	Ref string

	TaskID string
	Path   string
}

// MarshalJSON renders the docker-worker image field.
func (i Image) MarshalJSON() ([]byte, error) {
	if i.TaskID == "" {
		return json.Marshal(i.Ref)
	}
	return json.Marshal(map[string]string{
		"type":   "task-image",
		"path":   i.Path,
		"taskId": i.TaskID,
	})
}

// Artifact is one published file of a docker-worker task.
type Artifact struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Expires string `json:"expires"`
}

// WorkerPayload is the docker-worker payload.
type WorkerPayload struct {
	Image      Image               `json:"image"`
	MaxRunTime int                 `json:"maxRunTime"`
	Command    []string            `json:"command"`
	Env        map[string]string   `json:"env,omitempty"`
	Cache      map[string]string   `json:"cache,omitempty"`
	Features   map[string]bool     `json:"features,omitempty"`
	Artifacts  map[string]Artifact `json:"artifacts,omitempty"`
}

// buildWorkerPayload renders the payload. artifactExpires is the value put
// in each artifact's expires field.
func (t Task) buildWorkerPayload(env map[string]string, artifactExpires string) WorkerPayload {
	p := WorkerPayload{
		Image:      t.Image,
		MaxRunTime: t.MaxRunTimeMinutes * 60,
		Command: []string{
			"/bin/bash", "--login", "-x", "-e", "-c",
			deindent(strings.Join(t.Scripts, "\n")),
		},
	}
	if len(env) > 0 {
		p.Env = env
	}
	if len(t.Caches) > 0 {
		p.Cache = t.Caches
	}
	if len(t.Features) > 0 {
		p.Features = t.Features
	}
	if len(t.Artifacts) > 0 {
		p.Artifacts = make(map[string]Artifact, len(t.Artifacts))
		for _, a := range t.Artifacts {
			p.Artifacts["public/"+path.Base(a)] = Artifact{
				Type:    "file",
				Path:    a,
				Expires: artifactExpires,
			}
		}
	}
	return p
}

var indentPattern = regexp.MustCompile(`\n[ \t]+`)

// deindent collapses the leading spaces of every line to one.
func deindent(s string) string {
	return strings.TrimSpace(indentPattern.ReplaceAllString(s, "\n "))
}
