package pipeline

import (
	"maps"
	"path/filepath"

	"github.com/mozilla/appservices-decision/internal/config"
	"github.com/mozilla/appservices-decision/internal/decision"
)

// Index namespaces of the deduplicated library builds. The libs/ tree
// hash is appended.
const (
	AndroidLibsNamespace      = "build.libs.android"
	DesktopLinuxLibsNamespace = "build.libs.desktop.linux"

	// LibsDir is the source subtree the library builds depend on.
	LibsDir = "libs"

	// PublishScope grants the release task access to the bintray credentials.
	PublishScope = "secrets:get:project/application-services/publish"
)

// Settings is everything the job builders read. It is derived from the
// configuration once per run.
type Settings struct {
	WorkerType             string
	BuildArtifactsExpireIn string
	MaxRunTimeMinutes      int
	SccacheCacheSize       string
	// Dockerfile is the image definition of every Linux build task.
	Dockerfile string
}

// SettingsFromConfig derives builder settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		WorkerType:             cfg.WorkerType,
		BuildArtifactsExpireIn: cfg.Expiry.BuildArtifacts,
		MaxRunTimeMinutes:      cfg.Build.MaxRunTimeMinutes,
		SccacheCacheSize:       cfg.Build.SccacheCacheSize,
		Dockerfile:             filepath.Join(cfg.RepoRoot, cfg.DockerDir, "build.dockerfile"),
	}
}

// BuildEnv is set for every build task.
func BuildEnv() map[string]string {
	return map[string]string{
		"RUST_BACKTRACE":    "1",
		"RUSTFLAGS":         "-Dwarnings",
		"CARGO_INCREMENTAL": "0",
	}
}

// LinuxBuildEnv is set for Linux build tasks on top of BuildEnv.
func LinuxBuildEnv(sccacheCacheSize string) map[string]string {
	return map[string]string{
		// Keeps Gradle output readable in the task log.
		"TERM":                 "dumb",
		"CCACHE":               "sccache",
		"RUSTC_WRAPPER":        "sccache",
		"SCCACHE_IDLE_TIMEOUT": "1200",
		"SCCACHE_CACHE_SIZE":   sccacheCacheSize,
		"SCCACHE_ERROR_LOG":    "/build/sccache.log",
		"RUST_LOG":             "sccache=info",
	}
}

// LinuxBuildCaches are the docker-worker caches shared by build tasks.
func LinuxBuildCaches() map[string]string {
	return map[string]string{
		"application-services-cargo-registry": "/root/.cargo/registry",
		"application-services-cargo-git":      "/root/.cargo/git",
		"application-services-sccache":        "/root/.cache/sccache",
		"application-services-gradle":         "/root/.gradle",
	}
}

var androidArtifacts = []string{
	"/build/repo/fxa-client/sdks/android/library/build/outputs/aar/fxaclient-release.aar",
	"/build/repo/logins-api/android/library/build/outputs/aar/logins-release.aar",
	"/build/repo/components/places/android/library/build/outputs/aar/places-release.aar",
}

const androidBuildScript = `
	./automation/taskcluster/curl-artifact.sh ${BUILD_TASK_ID} target.tar.gz | tar -xz
	./gradlew --no-daemon clean :fxa-client-library:assembleRelease :logins-library:assembleRelease :places-library:assembleRelease
`

// LinuxBuildTask is the template every build task starts from.
func LinuxBuildTask(s Settings, name string) decision.Task {
	env := BuildEnv()
	maps.Copy(env, LinuxBuildEnv(s.SccacheCacheSize))
	return decision.NewTask(name).
		WithWorkerType(s.WorkerType).
		WithScopes("docker-worker:cache:application-services-*").
		WithCaches(LinuxBuildCaches()).
		WithIndexAndArtifactsExpireIn(s.BuildArtifactsExpireIn).
		WithArtifacts("/build/sccache.log").
		WithMaxRunTimeMinutes(s.MaxRunTimeMinutes).
		WithDockerfile(s.Dockerfile).
		WithEnv(env).
		WithRepo()
}

// AndroidLibs builds the native libraries for every Android architecture.
func AndroidLibs(s Settings) decision.Task {
	return LinuxBuildTask(s, "Android libs (all architectures): build").
		WithScript(`
			./scripts/taskcluster-android.sh
			tar -czf /build/repo/target.tar.gz libs/android
		`).
		WithArtifacts("/build/repo/target.tar.gz")
}

// DesktopLinuxLibs builds the native libraries for desktop Linux.
func DesktopLinuxLibs(s Settings) decision.Task {
	return LinuxBuildTask(s, "Desktop libs (Linux): build").
		WithScript(`
			pushd libs && ./build-all.sh desktop && popd
			tar -czf /build/repo/target.tar.gz libs/desktop
		`).
		WithArtifacts("/build/repo/target.tar.gz")
}

// AndroidArm32 assembles the Android components against the libraries
// built by libsTaskID.
func AndroidArm32(s Settings, libsTaskID string) decision.Task {
	return LinuxBuildTask(s, "Android (all architectures): build").
		WithEnv(map[string]string{"BUILD_TASK_ID": libsTaskID}).
		WithDependencies(libsTaskID).
		WithScript(androidBuildScript).
		WithArtifacts(androidArtifacts...)
}

// AndroidArm32Release is AndroidArm32 plus publishing to bintray.
func AndroidArm32Release(s Settings, libsTaskID string) decision.Task {
	return LinuxBuildTask(s, "Android (all architectures): build and release").
		WithEnv(map[string]string{"BUILD_TASK_ID": libsTaskID}).
		WithDependencies(libsTaskID).
		WithScript(androidBuildScript).
		WithScript(`
			python automation/taskcluster/release/fetch-bintray-api-key.py
			./gradlew bintrayUpload --debug -PvcsTag="${GIT_SHA}"
		`).
		WithArtifacts(androidArtifacts...).
		WithScopes(PublishScope).
		WithFeatures("taskclusterProxy")
}
