package server

import (
	"net/http"
	"strings"
)

// Operation is the action a request resolves to.
type Operation int

const (
	OpInvalid Operation = iota
	OpNotFound
	OpList
	OpAppend
	OpDelete
	OpProbeGet
	OpProbeSet
	OpProbeDelete
)

func (op Operation) String() string {
	switch op {
	case OpList:
		return "list"
	case OpAppend:
		return "append"
	case OpDelete:
		return "delete"
	case OpProbeGet:
		return "kv_get"
	case OpProbeSet:
		return "kv_set"
	case OpProbeDelete:
		return "kv_delete"
	case OpNotFound:
		return "not_found"
	default:
		return "invalid"
	}
}

// requiresAuth reports whether the operation mutates or exposes raw storage.
// Listing and posting comments stay public.
func (op Operation) requiresAuth() bool {
	switch op {
	case OpDelete, OpProbeGet, OpProbeSet, OpProbeDelete:
		return true
	}
	return false
}

// isProbe reports whether the operation is a raw KV probe.
func (op Operation) isProbe() bool {
	return op == OpProbeGet || op == OpProbeSet || op == OpProbeDelete
}

// actions maps the ?action= values accepted by the legacy front ends.
var actions = map[string]Operation{
	"get":           OpList,
	"getComments":   OpList,
	"set":           OpAppend,
	"submitComment": OpAppend,
	"delete":        OpDelete,
	"deleteComment": OpDelete,
	"kvGet":         OpProbeGet,
	"kvSet":         OpProbeSet,
	"kvDelete":      OpProbeDelete,
}

// route is a resolved request: the operation and the comment id carried in
// the path, if any.
type route struct {
	op     Operation
	pathID string
}

// resolveOperation classifies r against basePath. An explicit ?action= wins
// over the method on the base path and on "/".
func resolveOperation(r *http.Request, basePath string, probesEnabled bool) route {
	path := r.URL.Path
	onBase := path == basePath || path == basePath+"/"

	if onBase || path == "/" {
		if action := r.URL.Query().Get("action"); action != "" {
			op, ok := actions[action]
			if !ok || (op.isProbe() && !probesEnabled) {
				return route{op: OpInvalid}
			}
			return route{op: op}
		}
		if !onBase {
			return route{op: OpInvalid}
		}
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			return route{op: OpList}
		case http.MethodPost:
			return route{op: OpAppend}
		}
		return route{op: OpInvalid}
	}

	if id, ok := strings.CutPrefix(path, strings.TrimSuffix(basePath, "/")+"/"); ok && id != "" && !strings.Contains(id, "/") {
		if r.Method == http.MethodDelete {
			return route{op: OpDelete, pathID: id}
		}
		return route{op: OpInvalid}
	}

	return route{op: OpNotFound}
}
