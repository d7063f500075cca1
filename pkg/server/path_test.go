package server

import (
	"testing"

	"github.com/getmockd/odatad/pkg/entity"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		path string
		want target
	}{
		{"/", target{kind: targetService}},
		{"", target{kind: targetService}},
		{"/$metadata", target{kind: targetMetadata}},
		{"/openapi.json", target{kind: targetMetadata}},
		{"/$stats", target{kind: targetStats}},
		{"/$reset", target{kind: targetReset}},
		{"/health", target{kind: targetHealth}},
		{"/Orders", target{kind: targetCollection, set: "Orders"}},
		{"/Orders/", target{kind: targetCollection, set: "Orders"}},
		{"/Orders(3)", target{kind: targetEntity, set: "Orders", key: 3}},
		{"/Orders(Id=3)", target{kind: targetEntity, set: "Orders", key: 3}},
		{"/Orders/3", target{kind: targetEntity, set: "Orders", key: 3}},
		{"/Orders(-1)", target{kind: targetEntity, set: "Orders", key: -1}},
		{"/Orders/0", target{kind: targetEntity, set: "Orders", key: 0}},
		{"/Orders(3)/Customer/$ref", target{kind: targetRef, set: "Orders", key: 3, nav: "Customer"}},
		{"/Customers/2/Orders/$ref", target{kind: targetRef, set: "Customers", key: 2, nav: "Orders"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := parsePath(tt.path)
			if err != nil {
				t.Fatalf("parsePath(%q) error = %v", tt.path, err)
			}
			if got != tt.want {
				t.Errorf("parsePath(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestParsePath_Errors(t *testing.T) {
	tests := []struct {
		path string
		code entity.ErrorCode
	}{
		{"/Orders(3", entity.CodeNotFound},
		{"/(3)", entity.CodeNotFound},
		{"/Orders(3)/Customer", entity.CodeNotFound},
		{"/Orders(3)/Customer/$value", entity.CodeNotFound},
		{"/Orders(3)//$ref", entity.CodeNotFound},
		{"/Orders(x)", entity.CodeInvalidInput},
		{"/Orders(1.5)", entity.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := parsePath(tt.path)
			if err == nil {
				t.Fatalf("parsePath(%q) expected error", tt.path)
			}
			if got := entity.CodeOf(err); got != tt.code {
				t.Errorf("CodeOf() = %s, want %s", got, tt.code)
			}
		})
	}
}
