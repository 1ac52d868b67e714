// Package webhook starts decision tasks from GitHub webhook deliveries.
//
// It plays the part of the hosted GitHub integration for the local task
// service: a signed delivery becomes a decision task in the queue, carrying
// TASK_FOR and the git coordinates of the commit to build.
//
// # Security Model
//
// - HMAC-SHA256 signatures verified using crypto/subtle (constant-time comparison)
// - Body size limits enforced before parsing
// - No signature details leaked in error responses (always generic 403)
// - Request logging excludes payloads
//
// # Events
//
//	X-GitHub-Event  action                        TASK_FOR
//	pull_request    opened, synchronize, reopened github-pull-request
//	push            (not a branch deletion)       github-push
//
// Anything else, including ping, is acknowledged with 204 and ignored.
//
// # Error Responses
//
// - 400 Bad Request: Payload is not a valid event of its declared type
// - 403 Forbidden: Invalid or missing signature (no details)
// - 413 Payload Too Large: Body exceeds max_body_size
// - 500 Internal Server Error: The decision task could not be stored
package webhook
