// Package storage defines the persistence interfaces for option records.
package storage

import (
	"context"
	"errors"

	"github.com/covenant-network/option-layer/internal/app/domain/option"
)

var (
	// ErrNotFound is returned when no record exists for the instance.
	ErrNotFound = errors.New("option not found")

	// ErrExists is returned when creating an instance whose slot is occupied.
	ErrExists = errors.New("option already exists")

	// ErrRetired is returned when creating an instance whose record was
	// already executed or burned. A deleted slot is never reused.
	ErrRetired = errors.New("option instance retired")
)

// Record pairs an instance ID with its persisted state.
type Record struct {
	ID    string       `json:"id"`
	State option.State `json:"state"`
}

// OptionStore persists at most one option record per instance ID.
type OptionStore interface {
	// CreateOption initialises the record slot for id. It fails with
	// ErrExists when the slot is occupied and ErrRetired when the
	// instance was already deleted.
	CreateOption(ctx context.Context, id string, st option.State) error

	// GetOption loads the record for id, or ErrNotFound.
	GetOption(ctx context.Context, id string) (option.State, error)

	// UpdateOption replaces the record for id, or fails with ErrNotFound.
	UpdateOption(ctx context.Context, id string, st option.State) error

	// DeleteOption removes the record and retires the instance ID.
	DeleteOption(ctx context.Context, id string) error

	// ListOptions returns all live records sorted by instance ID.
	ListOptions(ctx context.Context) ([]Record, error)
}
