package taskcluster

import "encoding/json"

// TaskDefinition is the body of a Queue createTask call.
type TaskDefinition struct {
	TaskGroupID   string          `json:"taskGroupId"`
	Dependencies  []string        `json:"dependencies"`
	SchedulerID   string          `json:"schedulerId"`
	ProvisionerID string          `json:"provisionerId"`
	WorkerType    string          `json:"workerType"`
	Created       string          `json:"created"`
	Deadline      string          `json:"deadline"`
	Expires       string          `json:"expires"`
	Metadata      Metadata        `json:"metadata"`
	Payload       json.RawMessage `json:"payload"`
	Scopes        []string        `json:"scopes,omitempty"`
	Routes        []string        `json:"routes,omitempty"`
	Extra         map[string]any  `json:"extra,omitempty"`
}

// Metadata describes a task for humans.
type Metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	Source      string `json:"source"`
}

// TaskStatus is the part of a createTask response we care about.
type TaskStatus struct {
	Status struct {
		TaskID      string `json:"taskId"`
		TaskGroupID string `json:"taskGroupId"`
		State       string `json:"state"`
	} `json:"status"`
}

// IndexedTask is the Index findTask response.
type IndexedTask struct {
	Namespace string `json:"namespace"`
	TaskID    string `json:"taskId"`
	Rank      int64  `json:"rank"`
	Expires   string `json:"expires"`
}

// TaskGroupEntry is one task listed in a task group.
type TaskGroupEntry struct {
	TaskID string         `json:"taskId"`
	Task   TaskDefinition `json:"task"`
}

// TaskGroupList is the response of listing a task group.
type TaskGroupList struct {
	TaskGroupID string           `json:"taskGroupId"`
	Tasks       []TaskGroupEntry `json:"tasks"`
}

// ErrorBody is the JSON error envelope returned by the services.
type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
