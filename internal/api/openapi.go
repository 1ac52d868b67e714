package api

// buildOpenAPIDoc describes the routes of the server.
func buildOpenAPIDoc(authenticated bool, webhookPaths []string) map[string]any {
	resp := func(codes ...string) map[string]any {
		out := map[string]any{}
		for _, c := range codes {
			out[c] = map[string]any{"description": statusText[c]}
		}
		return out
	}
	param := func(name string) []any {
		return []any{map[string]any{"name": name, "in": "path", "required": true, "schema": map[string]any{"type": "string"}}}
	}

	create := map[string]any{
		"operationId": "createTask",
		"summary":     "Create a task and index it under its index.* routes",
		"parameters":  param("taskId"),
		"responses":   resp("200", "400", "409"),
	}
	if authenticated {
		create["security"] = []any{map[string]any{"BearerAuth": []string{}}}
	}

	paths := map[string]any{
		"/healthz": map[string]any{"get": map[string]any{"operationId": "healthz", "responses": resp("200")}},
		"/api/queue/v1/task/{taskId}": map[string]any{
			"put": create,
			"get": map[string]any{"operationId": "task", "parameters": param("taskId"), "responses": resp("200", "404")},
		},
		"/api/queue/v1/task-group/{taskGroupId}/list": map[string]any{
			"get": map[string]any{"operationId": "listTaskGroup", "parameters": param("taskGroupId"), "responses": resp("200", "404")},
		},
		"/api/index/v1/task/{namespace}": map[string]any{
			"get": map[string]any{"operationId": "findTask", "parameters": param("namespace"), "responses": resp("200", "404")},
		},
		"/api/decisions": map[string]any{
			"get": map[string]any{"operationId": "listDecisions", "responses": resp("200", "400")},
		},
	}
	for _, path := range webhookPaths {
		paths[path] = map[string]any{
			"post": map[string]any{"operationId": "webhook", "responses": resp("202", "204", "400", "403", "413")},
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Application Services local task service",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{"type": "http", "scheme": "bearer"},
			},
		},
	}
}

var statusText = map[string]string{
	"200": "OK",
	"202": "Accepted",
	"204": "Ignored",
	"400": "Bad request",
	"403": "Forbidden",
	"404": "Not found",
	"409": "Conflict",
	"413": "Payload too large",
}
