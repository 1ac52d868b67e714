// Package pipeline decides which CI tasks run for a trigger and submits them.
//
// A decision run receives a trigger (the TASK_FOR value plus the git ref
// being built) and turns it into a small graph of docker-worker tasks:
//   - github-pull-request: Android libs, desktop Linux libs, then the
//     Android build depending on the Android libs
//   - github-push of a branch: the same graph as a pull request
//   - github-push of a tag: the libs tasks, then the Android build that
//     also publishes the release
//
// Library builds are deduplicated through the index: their key embeds a
// hash of the libs/ source tree, so an unchanged tree reuses the task of
// an earlier run. The final Android task is always created anew.
//
// Error handling:
//   - Unknown TASK_FOR → *ConfigError wrapping ErrUnknownTaskFor, before
//     anything is submitted
//   - Source hashing failure → returned, nothing submitted
//   - Task service failure → returned as is, with the task name as context
//
// Submission is sequential and synchronous. Retries are left to the task
// service.
package pipeline
