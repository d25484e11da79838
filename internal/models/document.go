package models

import (
	"time"
)

// Document is a registered design-document tree. The tree is the parser
// collaborator's output, stored read-only and keyed by a server-issued id.
type Document struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Root      *LayerNode `json:"root"`
	CreatedAt time.Time  `json:"created_at"`
}

// DocumentSummary is the listing row for a registered document.
type DocumentSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RegisterDocumentRequest registers a parsed layer tree.
type RegisterDocumentRequest struct {
	Name string     `json:"name" binding:"required"`
	Root *LayerNode `json:"root" binding:"required"`
}

// ResolveRequest asks the resolver to locate a container group by name
// inside a registered document.
type ResolveRequest struct {
	Name string `json:"name"`
}

// ResolveResponse carries the resolver outcome. MatchedID/MatchedName are
// set when any match tier succeeded, including EMPTY_GROUP.
type ResolveResponse struct {
	Status      ResolveStatus `json:"status"`
	Message     string        `json:"message"`
	MatchedID   string        `json:"matched_id,omitempty"`
	MatchedName string        `json:"matched_name,omitempty"`
	ChildCount  int           `json:"child_count"`
}
