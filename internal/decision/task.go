package decision

import (
	"maps"
	"slices"
)

// Defaults of a fresh task that the configuration does not override.
const (
	DefaultDockerImage       = "ubuntu:bionic-20180821"
	DefaultMaxRunTimeMinutes = 30
)

// Task is a declarative description of one docker-worker task.
//
// Tasks are values. Every With* method returns a modified copy and never
// touches the receiver, so a shared template such as the Linux build task
// can be extended any number of times.
//
// Empty scheduler, provisioner, worker type and offsets are filled from
// the session configuration when the task is submitted.
type Task struct {
	Name        string
	Description string

	SchedulerID   string
	ProvisionerID string
	WorkerType    string

	DeadlineIn                string
	ExpiresIn                 string
	IndexAndArtifactsExpireIn string

	Dependencies []string
	Scopes       []string
	Routes       []string
	Extra        map[string]any

	Image             Image
	MaxRunTimeMinutes int
	Scripts           []string
	Env               map[string]string
	Caches            map[string]string
	Features          map[string]bool
	Artifacts         []string

	// Dockerfile, when set, replaces Image at submission time by an image
	// built from this file in its own (indexed) task.
	Dockerfile string
	// WithRepo was applied: the git checkout variables are added at
	// submission time from the decision environment.
	Repo bool
}

// NewTask returns a task with the given name and default image and run time.
func NewTask(name string) Task {
	return Task{
		Name:              name,
		Image:             Image{Ref: DefaultDockerImage},
		MaxRunTimeMinutes: DefaultMaxRunTimeMinutes,
	}
}

// clone deep-copies the collections so the copy can be modified freely.
func (t Task) clone() Task {
	t.Dependencies = slices.Clone(t.Dependencies)
	t.Scopes = slices.Clone(t.Scopes)
	t.Routes = slices.Clone(t.Routes)
	t.Scripts = slices.Clone(t.Scripts)
	t.Artifacts = slices.Clone(t.Artifacts)
	t.Extra = maps.Clone(t.Extra)
	t.Env = maps.Clone(t.Env)
	t.Caches = maps.Clone(t.Caches)
	t.Features = maps.Clone(t.Features)
	return t
}

func (t Task) WithDescription(d string) Task {
	t = t.clone()
	t.Description = d
	return t
}

func (t Task) WithSchedulerID(id string) Task {
	t = t.clone()
	t.SchedulerID = id
	return t
}

func (t Task) WithProvisionerID(id string) Task {
	t = t.clone()
	t.ProvisionerID = id
	return t
}

func (t Task) WithWorkerType(wt string) Task {
	t = t.clone()
	t.WorkerType = wt
	return t
}

func (t Task) WithDeadlineIn(offset string) Task {
	t = t.clone()
	t.DeadlineIn = offset
	return t
}

func (t Task) WithExpiresIn(offset string) Task {
	t = t.clone()
	t.ExpiresIn = offset
	return t
}

// WithIndexAndArtifactsExpireIn sets how long artifacts and index entries
// outlive the task's creation.
func (t Task) WithIndexAndArtifactsExpireIn(offset string) Task {
	t = t.clone()
	t.IndexAndArtifactsExpireIn = offset
	return t
}

// WithDependencies appends upstream task IDs.
func (t Task) WithDependencies(taskIDs ...string) Task {
	t = t.clone()
	t.Dependencies = append(t.Dependencies, taskIDs...)
	return t
}

func (t Task) WithScopes(scopes ...string) Task {
	t = t.clone()
	t.Scopes = append(t.Scopes, scopes...)
	return t
}

func (t Task) WithRoutes(routes ...string) Task {
	t = t.clone()
	t.Routes = append(t.Routes, routes...)
	return t
}

func (t Task) WithExtra(extra map[string]any) Task {
	t = t.clone()
	if t.Extra == nil {
		t.Extra = make(map[string]any, len(extra))
	}
	maps.Copy(t.Extra, extra)
	return t
}

func (t Task) WithDockerImage(ref string) Task {
	t = t.clone()
	t.Image = Image{Ref: ref}
	t.Dockerfile = ""
	return t
}

func (t Task) WithMaxRunTimeMinutes(m int) Task {
	t = t.clone()
	t.MaxRunTimeMinutes = m
	return t
}

// WithScript appends a script fragment; fragments run in order.
func (t Task) WithScript(script string) Task {
	t = t.clone()
	t.Scripts = append(t.Scripts, script)
	return t
}

// WithEarlyScript prepends a script fragment.
func (t Task) WithEarlyScript(script string) Task {
	t = t.clone()
	t.Scripts = append([]string{script}, t.Scripts...)
	return t
}

// WithEnv merges env into the task environment; later values win.
func (t Task) WithEnv(env map[string]string) Task {
	t = t.clone()
	if t.Env == nil {
		t.Env = make(map[string]string, len(env))
	}
	maps.Copy(t.Env, env)
	return t
}

// WithCaches merges named worker caches (name to mount path).
func (t Task) WithCaches(caches map[string]string) Task {
	t = t.clone()
	if t.Caches == nil {
		t.Caches = make(map[string]string, len(caches))
	}
	maps.Copy(t.Caches, caches)
	return t
}

// WithFeatures enables docker-worker features such as taskclusterProxy.
func (t Task) WithFeatures(names ...string) Task {
	t = t.clone()
	if t.Features == nil {
		t.Features = make(map[string]bool, len(names))
	}
	for _, n := range names {
		t.Features[n] = true
	}
	return t
}

// WithArtifacts appends file paths inside the container to publish.
func (t Task) WithArtifacts(paths ...string) Task {
	t = t.clone()
	t.Artifacts = append(t.Artifacts, paths...)
	return t
}

// WithRepo makes the task start with a checkout of the commit under test.
func (t Task) WithRepo() Task {
	t = t.WithEarlyScript(checkoutScript)
	t.Repo = true
	return t
}

// WithDockerfile makes the task run in the image built from path. The
// file name must end in ".dockerfile".
func (t Task) WithDockerfile(path string) Task {
	t = t.clone()
	t.Dockerfile = path
	return t
}

const checkoutScript = `
    git init repo
    cd repo
    git fetch --quiet --tags "$GIT_URL" "$GIT_REF"
    git reset --hard "$GIT_SHA"
`
