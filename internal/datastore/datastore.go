// Package datastore defines the minimal contract the backup subsystem needs
// from a document datastore, plus the implementations this repository ships.
package datastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rowjay/docbackup/internal/document"
)

// Datastore is the collaborator backed up and restored by backup.Manager.
type Datastore interface {
	// ListCollections returns collection names in a stable order.
	ListCollections(ctx context.Context) ([]string, error)
	GetAllDocuments(ctx context.Context, collection string) ([]document.Document, error)
	DeleteAllDocuments(ctx context.Context, collection string) error
	InsertMany(ctx context.Context, collection string, docs []document.Document) error
}

// ValidateCollectionName rejects names that cannot be used as an artifact
// file name or as a key prefix.
func ValidateCollectionName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("collection name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid collection name: %q", name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("invalid collection name: %q", name)
	}
	return nil
}
