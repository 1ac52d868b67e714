package decision

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildersDoNotMutateReceiver(t *testing.T) {
	base := NewTask("base").
		WithEnv(map[string]string{"A": "1"}).
		WithScopes("scope-a").
		WithCaches(map[string]string{"cache": "/cache"}).
		WithFeatures("dind").
		WithArtifacts("/a.txt").
		WithScript("echo base")

	derived := base.
		WithEnv(map[string]string{"A": "2", "B": "3"}).
		WithScopes("scope-b").
		WithCaches(map[string]string{"other": "/other"}).
		WithFeatures("taskclusterProxy").
		WithArtifacts("/b.txt").
		WithScript("echo derived").
		WithDependencies("dep")

	assert.Equal(t, map[string]string{"A": "1"}, base.Env)
	assert.Equal(t, []string{"scope-a"}, base.Scopes)
	assert.Equal(t, map[string]string{"cache": "/cache"}, base.Caches)
	assert.Equal(t, map[string]bool{"dind": true}, base.Features)
	assert.Equal(t, []string{"/a.txt"}, base.Artifacts)
	assert.Equal(t, []string{"echo base"}, base.Scripts)
	assert.Empty(t, base.Dependencies)

	assert.Equal(t, map[string]string{"A": "2", "B": "3"}, derived.Env)
	assert.Equal(t, []string{"scope-a", "scope-b"}, derived.Scopes)
	assert.Len(t, derived.Caches, 2)
	assert.Len(t, derived.Features, 2)
	assert.Equal(t, []string{"/a.txt", "/b.txt"}, derived.Artifacts)
	assert.Equal(t, []string{"echo base", "echo derived"}, derived.Scripts)
	assert.Equal(t, []string{"dep"}, derived.Dependencies)
}

func TestSiblingsShareNoBackingArray(t *testing.T) {
	// Appending to a slice with spare capacity must not leak between copies.
	base := NewTask("base").WithScopes("a", "b", "c")
	x := base.WithScopes("x")
	y := base.WithScopes("y")

	assert.Equal(t, []string{"a", "b", "c", "x"}, x.Scopes)
	assert.Equal(t, []string{"a", "b", "c", "y"}, y.Scopes)
}

func TestNewTaskDefaults(t *testing.T) {
	task := NewTask("lint")
	assert.Equal(t, "lint", task.Name)
	assert.Equal(t, Image{Ref: DefaultDockerImage}, task.Image)
	assert.Equal(t, DefaultMaxRunTimeMinutes, task.MaxRunTimeMinutes)
	assert.False(t, task.Repo)
}

func TestWithRepoPrependsCheckout(t *testing.T) {
	task := NewTask("build").WithScript("make").WithRepo()

	require.Len(t, task.Scripts, 2)
	assert.Equal(t, checkoutScript, task.Scripts[0])
	assert.Equal(t, "make", task.Scripts[1])
	assert.True(t, task.Repo)
}

func TestWithEarlyScript(t *testing.T) {
	task := NewTask("t").WithScript("second").WithEarlyScript("first")
	assert.Equal(t, []string{"first", "second"}, task.Scripts)
}

func TestWithDockerImageClearsDockerfile(t *testing.T) {
	task := NewTask("t").WithDockerfile("docker/build.dockerfile")
	assert.Equal(t, "docker/build.dockerfile", task.Dockerfile)

	task = task.WithDockerImage("alpine:3")
	assert.Empty(t, task.Dockerfile)
	assert.Equal(t, Image{Ref: "alpine:3"}, task.Image)
}

func TestDeindent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"spaces", "\n    a\n    b\n", "a\n b"},
		{"tabs", "\n\t\ta\n\t\tb\n\t", "a\n b"},
		{"flat", "a\nb", "a\nb"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deindent(tt.in))
		})
	}
}

func TestBuildWorkerPayload(t *testing.T) {
	task := NewTask("t").
		WithMaxRunTimeMinutes(60).
		WithScript(`
			./scripts/build.sh
			tar -czf /build/repo/target.tar.gz libs
		`).
		WithArtifacts("/build/repo/target.tar.gz", "/build/sccache.log").
		WithFeatures("taskclusterProxy").
		WithCaches(map[string]string{"cargo": "/root/.cargo"})

	p := task.buildWorkerPayload(map[string]string{"TERM": "dumb"}, "2026-02-01T00:00:00.000Z")

	assert.Equal(t, 3600, p.MaxRunTime)
	assert.Equal(t, []string{
		"/bin/bash", "--login", "-x", "-e", "-c",
		"./scripts/build.sh\n tar -czf /build/repo/target.tar.gz libs",
	}, p.Command)
	assert.Equal(t, map[string]Artifact{
		"public/target.tar.gz": {Type: "file", Path: "/build/repo/target.tar.gz", Expires: "2026-02-01T00:00:00.000Z"},
		"public/sccache.log":   {Type: "file", Path: "/build/sccache.log", Expires: "2026-02-01T00:00:00.000Z"},
	}, p.Artifacts)
	assert.Equal(t, map[string]bool{"taskclusterProxy": true}, p.Features)
	assert.Equal(t, map[string]string{"cargo": "/root/.cargo"}, p.Cache)
	assert.Equal(t, map[string]string{"TERM": "dumb"}, p.Env)
}

func TestWorkerPayloadOmitsEmptyCollections(t *testing.T) {
	p := NewTask("t").WithScript("true").buildWorkerPayload(nil, "")
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.ElementsMatch(t, []string{"image", "maxRunTime", "command"}, keys(fields))
	assert.Equal(t, DefaultDockerImage, fields["image"])
}

func TestImageMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Image{Ref: "ubuntu:bionic"})
	require.NoError(t, err)
	assert.JSONEq(t, `"ubuntu:bionic"`, string(data))

	data, err = json.Marshal(Image{TaskID: "abc", Path: "public/image.tar.lz4"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"task-image","taskId":"abc","path":"public/image.tar.lz4"}`, string(data))
}

func TestExpandDockerfile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, contents string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
		return p
	}

	write("base.dockerfile", "FROM ubuntu:bionic\nRUN apt-get update")
	write("rust.dockerfile", "#include base.dockerfile\nRUN curl https://sh.rustup.rs | sh")
	build := write("build.dockerfile", "#include rust.dockerfile\nRUN cargo --version\n")

	got, err := ExpandDockerfile(build)
	require.NoError(t, err)
	assert.Equal(t,
		"FROM ubuntu:bionic\nRUN apt-get update\nRUN curl https://sh.rustup.rs | sh\nRUN cargo --version\n",
		string(got))

	plain := write("plain.dockerfile", "FROM scratch\n")
	got, err = ExpandDockerfile(plain)
	require.NoError(t, err)
	assert.Equal(t, "FROM scratch\n", string(got))
}

func TestExpandDockerfileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ExpandDockerfile(filepath.Join(dir, "missing.dockerfile"))
	assert.Error(t, err)

	loop := filepath.Join(dir, "loop.dockerfile")
	require.NoError(t, os.WriteFile(loop, []byte("#include loop.dockerfile\n"), 0o644))
	_, err = ExpandDockerfile(loop)
	assert.ErrorContains(t, err, "nested deeper")

	empty := filepath.Join(dir, "empty.dockerfile")
	require.NoError(t, os.WriteFile(empty, []byte("#include \nFROM x"), 0o644))
	_, err = ExpandDockerfile(empty)
	assert.ErrorContains(t, err, "empty #include")
}

func TestDockerImageName(t *testing.T) {
	name, err := dockerImageName("automation/taskcluster/docker/build.dockerfile")
	require.NoError(t, err)
	assert.Equal(t, "build", name)

	_, err = dockerImageName("Dockerfile")
	assert.Error(t, err)
	_, err = dockerImageName(".dockerfile")
	assert.Error(t, err)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
