// Package service provides the business logic for the dispatch table API
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/involucelate/chef/internal/table"
	"github.com/involucelate/chef/pkg/node"
)

var (
	// ErrTableNotFound is returned when a dispatch table is not found
	ErrTableNotFound = errors.New("table not found")
	// ErrKeyNotFound is returned when a key has no registrations in the table
	ErrKeyNotFound = errors.New("key not found")
	// ErrNoMatch is returned when no registration matches the supplied attributes
	ErrNoMatch = errors.New("no registration matched")
	// ErrNotReady is returned while configured tables are still loading
	ErrNotReady = errors.New("dispatch tables not loaded yet")
	// ErrInvalidAttributes is returned when an attributes document cannot be parsed
	ErrInvalidAttributes = errors.New("invalid attributes document")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go DispatchService

// DispatchService defines the interface for dispatch table operations
type DispatchService interface {
	// CheckReadiness checks if the service is ready to serve requests
	CheckReadiness(ctx context.Context) error

	// Resolve returns the highest-priority value registered under key
	// whose filters match the supplied attributes
	Resolve(ctx context.Context, key string, opts ...Option[ResolveOptions]) (*Resolution, error)

	// Candidates returns every matching value for key, highest priority first
	Candidates(ctx context.Context, key string, opts ...Option[CandidatesOptions]) ([]Candidate, error)

	// Register adds a single registration to a table at runtime
	Register(ctx context.Context, opts ...Option[RegisterOptions]) (*RegisterResult, error)

	// DeleteCanonical removes the canonical registrations for key whose
	// value equals the given value, returning how many matchers remain
	DeleteCanonical(ctx context.Context, key string, value any, opts ...Option[DeleteCanonicalOptions]) (int, error)

	// Keys returns the registered keys of a table in sorted order
	Keys(ctx context.Context, opts ...Option[KeysOptions]) ([]string, error)

	// ListTables returns summary information for every loaded table
	ListTables(ctx context.Context) ([]TableInfo, error)

	// ReplaceTable atomically swaps the named table for one built from
	// doc, returning the number of registrations applied
	ReplaceTable(ctx context.Context, name string, doc *table.Document) (int, error)
}

// Resolution is the outcome of a successful Resolve call
type Resolution struct {
	// Table is the table the value was resolved from
	Table string `json:"table"`

	// Key is the resolved key
	Key string `json:"key"`

	// Value is the registered payload of the winning matcher
	Value any `json:"value"`

	// Specificity is the winning matcher's filter specificity score
	Specificity int `json:"specificity"`

	// Canonical reports whether the winning matcher carries a truthy
	// canonical flag
	Canonical bool `json:"canonical"`
}

// Candidate is one entry of a Candidates result
type Candidate struct {
	// Value is the registered payload
	Value any `json:"value"`

	// Specificity is the matcher's filter specificity score
	Specificity int `json:"specificity"`

	// Canonical reports whether the matcher carries a truthy canonical flag
	Canonical bool `json:"canonical"`

	// Filters holds the matcher's non-empty filter dimensions
	Filters map[string][]string `json:"filters,omitempty"`
}

// ConflictAdvisory describes a registration that collided with an
// existing one carrying a different value
type ConflictAdvisory struct {
	// NewValue is the value of the incoming registration
	NewValue any `json:"newValue"`

	// ExistingValue is the value of the registration it collided with
	ExistingValue any `json:"existingValue"`
}

// RegisterResult reports the outcome of a Register call
type RegisterResult struct {
	// Table is the table the entry was registered into
	Table string `json:"table"`

	// Key is the registered key
	Key string `json:"key"`

	// Matchers is the number of matchers stored under the key afterwards
	Matchers int `json:"matchers"`

	// Conflict is set when the registration collided with an existing
	// equivalent registration carrying a different value
	Conflict *ConflictAdvisory `json:"conflict,omitempty"`

	// DeprecatedFilters lists legacy filter spellings used by the entry
	DeprecatedFilters []string `json:"deprecatedFilters,omitempty"`
}

// TableInfo is summary information about one loaded table
type TableInfo struct {
	// Name is the table name
	Name string `json:"name"`

	// Type describes where the table came from (git, http, file or api)
	Type string `json:"type"`

	// Version is the version string of the last applied document
	Version string `json:"version,omitempty"`

	// KeyCount is the number of distinct keys in the table
	KeyCount int `json:"keyCount"`

	// EntryCount is the number of matchers across all keys
	EntryCount int `json:"entryCount"`

	// UpdatedAt is when the table was last replaced or modified
	UpdatedAt time.Time `json:"updatedAt"`
}

// Option is a function that sets an option for the ResolveOptions,
// CandidatesOptions, RegisterOptions, DeleteCanonicalOptions, or
// KeysOptions
type Option[
	T ResolveOptions | CandidatesOptions | RegisterOptions |
		DeleteCanonicalOptions | KeysOptions,
] func(*T) error

// ResolveOptions is the options for the Resolve operation
type ResolveOptions struct {
	Table     string
	Node      *node.Node
	Canonical *bool
}

// CandidatesOptions is the options for the Candidates operation
type CandidatesOptions struct {
	Table     string
	Node      *node.Node
	Canonical *bool
}

// RegisterOptions is the options for the Register operation
type RegisterOptions struct {
	Table string
	Entry *table.Entry
}

// DeleteCanonicalOptions is the options for the DeleteCanonical operation
type DeleteCanonicalOptions struct {
	Table string
}

// KeysOptions is the options for the Keys operation
type KeysOptions struct {
	Table string
}

// WithTable sets the target table for the Resolve, Candidates,
// Register, DeleteCanonical, or Keys operation
func WithTable[
	T ResolveOptions | CandidatesOptions | RegisterOptions |
		DeleteCanonicalOptions | KeysOptions,
](
	tableName string,
) Option[T] {
	return func(o *T) error {
		if tableName == "" {
			return fmt.Errorf("invalid table name: %s", tableName)
		}
		switch o := any(o).(type) {
		case *ResolveOptions:
			o.Table = tableName
		case *CandidatesOptions:
			o.Table = tableName
		case *RegisterOptions:
			o.Table = tableName
		case *DeleteCanonicalOptions:
			o.Table = tableName
		case *KeysOptions:
			o.Table = tableName
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
		return nil
	}
}

// WithNode sets the dispatch context for the Resolve or Candidates
// operation. Without it the lookup matches every registration.
func WithNode[T ResolveOptions | CandidatesOptions](n *node.Node) Option[T] {
	return func(o *T) error {
		if n == nil {
			return fmt.Errorf("node is required")
		}
		switch o := any(o).(type) {
		case *ResolveOptions:
			o.Node = n
		case *CandidatesOptions:
			o.Node = n
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
		return nil
	}
}

// WithAttributes builds the dispatch context from a raw attributes
// JSON document for the Resolve or Candidates operation
func WithAttributes[T ResolveOptions | CandidatesOptions](data []byte) Option[T] {
	return func(o *T) error {
		n, err := node.FromJSON(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAttributes, err)
		}
		switch o := any(o).(type) {
		case *ResolveOptions:
			o.Node = n
		case *CandidatesOptions:
			o.Node = n
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
		return nil
	}
}

// WithCanonical restricts the Resolve or Candidates operation to
// matchers whose canonical flag truthiness equals canonical
func WithCanonical[T ResolveOptions | CandidatesOptions](canonical bool) Option[T] {
	return func(o *T) error {
		c := canonical
		switch o := any(o).(type) {
		case *ResolveOptions:
			o.Canonical = &c
		case *CandidatesOptions:
			o.Canonical = &c
		default:
			return fmt.Errorf("invalid option type: %T", o)
		}
		return nil
	}
}

// WithEntry sets the entry for the Register operation
func WithEntry(entry *table.Entry) Option[RegisterOptions] {
	return func(o *RegisterOptions) error {
		if entry == nil {
			return fmt.Errorf("entry is required")
		}
		if entry.Key == "" {
			return fmt.Errorf("entry key is required")
		}
		o.Entry = entry
		return nil
	}
}
