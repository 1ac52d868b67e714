package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozilla/appservices-decision/internal/config"
)

func testSettings() Settings {
	return SettingsFromConfig(config.Defaults())
}

func TestSettingsFromConfig(t *testing.T) {
	s := testSettings()
	assert.Equal(t, "application-services-r", s.WorkerType)
	assert.Equal(t, "1 month", s.BuildArtifactsExpireIn)
	assert.Equal(t, 60, s.MaxRunTimeMinutes)
	assert.Equal(t, "40G", s.SccacheCacheSize)
	assert.Equal(t, "automation/taskcluster/docker/build.dockerfile", s.Dockerfile)
}

func TestLinuxBuildTask(t *testing.T) {
	task := LinuxBuildTask(testSettings(), "x")

	assert.Equal(t, "application-services-r", task.WorkerType)
	assert.Equal(t, []string{"docker-worker:cache:application-services-*"}, task.Scopes)
	assert.Equal(t, map[string]string{
		"application-services-cargo-registry": "/root/.cargo/registry",
		"application-services-cargo-git":      "/root/.cargo/git",
		"application-services-sccache":        "/root/.cache/sccache",
		"application-services-gradle":         "/root/.gradle",
	}, task.Caches)
	assert.Equal(t, "1 month", task.IndexAndArtifactsExpireIn)
	assert.Equal(t, []string{"/build/sccache.log"}, task.Artifacts)
	assert.Equal(t, 60, task.MaxRunTimeMinutes)
	assert.Equal(t, "automation/taskcluster/docker/build.dockerfile", task.Dockerfile)
	assert.True(t, task.Repo)
	assert.Equal(t, map[string]string{
		"RUST_BACKTRACE":       "1",
		"RUSTFLAGS":            "-Dwarnings",
		"CARGO_INCREMENTAL":    "0",
		"TERM":                 "dumb",
		"CCACHE":               "sccache",
		"RUSTC_WRAPPER":        "sccache",
		"SCCACHE_IDLE_TIMEOUT": "1200",
		"SCCACHE_CACHE_SIZE":   "40G",
		"SCCACHE_ERROR_LOG":    "/build/sccache.log",
		"RUST_LOG":             "sccache=info",
	}, task.Env)
}

func TestLibsBuilders(t *testing.T) {
	android := AndroidLibs(testSettings())
	assert.Equal(t, "Android libs (all architectures): build", android.Name)
	assert.Equal(t, []string{"/build/sccache.log", "/build/repo/target.tar.gz"}, android.Artifacts)
	require.Len(t, android.Scripts, 2)
	assert.Contains(t, android.Scripts[1], "./scripts/taskcluster-android.sh")
	assert.Contains(t, android.Scripts[1], "tar -czf /build/repo/target.tar.gz libs/android")

	desktop := DesktopLinuxLibs(testSettings())
	assert.Equal(t, "Desktop libs (Linux): build", desktop.Name)
	require.Len(t, desktop.Scripts, 2)
	assert.Contains(t, desktop.Scripts[1], "pushd libs && ./build-all.sh desktop && popd")
	assert.Contains(t, desktop.Scripts[1], "libs/desktop")
}

func TestAndroidArm32(t *testing.T) {
	task := AndroidArm32(testSettings(), "libs-task")

	assert.Equal(t, "Android (all architectures): build", task.Name)
	assert.Equal(t, []string{"libs-task"}, task.Dependencies)
	assert.Equal(t, "libs-task", task.Env["BUILD_TASK_ID"])
	assert.Equal(t, "0", task.Env["CARGO_INCREMENTAL"])
	assert.Len(t, task.Artifacts, 4)
	assert.Contains(t, task.Artifacts, "/build/repo/components/places/android/library/build/outputs/aar/places-release.aar")
	assert.NotContains(t, task.Scopes, PublishScope)
	assert.Empty(t, task.Features)
}

func TestAndroidArm32Release(t *testing.T) {
	task := AndroidArm32Release(testSettings(), "libs-task")

	assert.Equal(t, "Android (all architectures): build and release", task.Name)
	assert.Equal(t, []string{"libs-task"}, task.Dependencies)
	assert.Contains(t, task.Scopes, PublishScope)
	assert.Equal(t, map[string]bool{"taskclusterProxy": true}, task.Features)
	require.Len(t, task.Scripts, 3)
	assert.Contains(t, task.Scripts[2], "fetch-bintray-api-key.py")
	assert.Contains(t, task.Scripts[2], `-PvcsTag="${GIT_SHA}"`)
}

func TestBuildersShareNoState(t *testing.T) {
	s := testSettings()
	_ = AndroidArm32Release(s, "a")
	plain := AndroidArm32(s, "b")
	assert.NotContains(t, plain.Scopes, PublishScope)
	assert.Equal(t, "b", plain.Env["BUILD_TASK_ID"])
}
