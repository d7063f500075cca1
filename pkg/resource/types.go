package resource

import (
	"net/url"

	"github.com/getmockd/odatad/pkg/entity"
	"github.com/getmockd/odatad/pkg/query"
)

// Action is the operation a request performs on an entity set.
type Action string

const (
	// ActionList reads a filtered, sorted and paged collection.
	ActionList Action = "list"
	// ActionGet reads a single entity by key.
	ActionGet Action = "get"
	// ActionCreate creates a new entity.
	ActionCreate Action = "create"
	// ActionReplace overwrites an entity (PUT semantics).
	ActionReplace Action = "replace"
	// ActionPatch merges the given properties into an entity (PATCH semantics).
	ActionPatch Action = "patch"
	// ActionDelete removes an entity by key.
	ActionDelete Action = "delete"
	// ActionLink binds a navigation property to another entity.
	ActionLink Action = "link"
)

// ResultStatus is the outcome of a bridge operation.
type ResultStatus int

const (
	StatusSuccess ResultStatus = iota
	StatusCreated
	StatusNoContent
	StatusNotFound
	StatusConflict
	StatusValidationError
	StatusError
)

var statusNames = map[ResultStatus]string{
	StatusSuccess:         "success",
	StatusCreated:         "created",
	StatusNoContent:       "no_content",
	StatusNotFound:        "not_found",
	StatusConflict:        "conflict",
	StatusValidationError: "validation_error",
	StatusError:           "error",
}

func (s ResultStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// LinkTarget is the body key naming the entity a link points to.
const LinkTarget = "@odata.id"

// OperationRequest is a transport-agnostic request against one entity set.
// Transports decode their wire format into this struct before calling
// Bridge.Execute.
type OperationRequest struct {
	// Set is the entity set name, e.g. "Orders".
	Set    string
	Action Action
	// Key identifies the entity for every action except list and create.
	Key int64
	// Navigation is the navigation property of a link request.
	Navigation string
	// Data is the decoded JSON body. Numbers should be json.Number.
	Data map[string]any
	// Query holds the system query options of list and get requests.
	Query url.Values
}

// OperationResult is the transport-agnostic outcome of a request.
type OperationResult struct {
	Status ResultStatus
	// Key is the key of the entity a write produced.
	Key int64
	// Entity is set for get, create, replace and patch.
	Entity entity.Record
	// List is set for list requests.
	List *query.Result
	// Error is the domain error. Nil on success.
	Error error
}
