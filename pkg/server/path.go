package server

import (
	"strconv"
	"strings"

	"github.com/getmockd/odatad/pkg/entity"
)

type targetKind int

const (
	targetService targetKind = iota
	targetMetadata
	targetStats
	targetReset
	targetHealth
	targetCollection
	targetEntity
	targetRef
)

// target is a parsed request path.
type target struct {
	kind targetKind
	set  string
	key  int64
	nav  string
}

const refSegment = "$ref"

// parsePath resolves a URL path into a target. Entities are addressed as
// Set(key) or Set/key; links as <entity>/Nav/$ref. Only the shape is checked
// here, so an unknown set still parses.
func parsePath(path string) (target, error) {
	path = strings.Trim(path, "/")
	switch path {
	case "":
		return target{kind: targetService}, nil
	case "$metadata", "openapi.json":
		return target{kind: targetMetadata}, nil
	case "$stats":
		return target{kind: targetStats}, nil
	case "$reset":
		return target{kind: targetReset}, nil
	case "health":
		return target{kind: targetHealth}, nil
	}

	segs := strings.Split(path, "/")
	head := segs[0]
	rest := segs[1:]

	t := target{kind: targetCollection, set: head}
	if open := strings.IndexByte(head, '('); open >= 0 {
		if !strings.HasSuffix(head, ")") {
			return target{}, notFound(path)
		}
		key, err := parseKey(head[open+1 : len(head)-1])
		if err != nil {
			return target{}, err
		}
		t = target{kind: targetEntity, set: head[:open], key: key}
	} else if len(rest) > 0 {
		key, err := parseKey(rest[0])
		if err != nil {
			return target{}, err
		}
		t = target{kind: targetEntity, set: head, key: key}
		rest = rest[1:]
	}
	if t.set == "" {
		return target{}, notFound(path)
	}

	switch {
	case len(rest) == 0:
		return t, nil
	case t.kind == targetEntity && len(rest) == 2 && rest[1] == refSegment && rest[0] != "":
		t.kind = targetRef
		t.nav = rest[0]
		return t, nil
	default:
		return target{}, notFound(path)
	}
}

func parseKey(s string) (int64, error) {
	s = strings.TrimSpace(s)
	// Keys may be written Id=5 as well as 5.
	s = strings.TrimPrefix(s, entity.KeyProperty+"=")
	key, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, entity.Invalidf(entity.KeyProperty, "key must be an integer, got %q", s)
	}
	return key, nil
}

// notFound reports a path that addresses nothing. The path is reported as
// the set so the error names what the client asked for.
func notFound(path string) error {
	return &entity.NotFoundError{Set: "/" + path}
}
