package core

import "context"

// SchemaStore persists schema registry entries. Stores may be shared by
// several processes; Update is the only read-modify-write operation.
type SchemaStore interface {
	// Load returns the entry for name, or nil if none exists.
	Load(ctx context.Context, name string) (*RegistryEntry, error)
	// Save writes the entry for name.
	Save(ctx context.Context, name string, entry RegistryEntry) error
	// Update calls fn with the current entry for name (nil if none) and
	// saves the entry it returns. No other writer can change the entry for
	// name between the read and the write. A nil result saves nothing.
	Update(ctx context.Context, name string, fn func(current *RegistryEntry) (*RegistryEntry, error)) error
	// List returns every entry keyed by dataset name.
	List(ctx context.Context) (map[string]RegistryEntry, error)
}

// SchemaHistory is implemented by stores that keep every registered version.
type SchemaHistory interface {
	History(ctx context.Context, name string) ([]SchemaVersion, error)
}

// SchemaVersion is one historical version of a dataset schema.
type SchemaVersion struct {
	Dataset    string `json:"dataset"`
	Version    string `json:"version"`
	Schema     Schema `json:"schema"`
	RecordedAt string `json:"recorded_at"`
}

// LineageStore is an append-only log of lineage records.
type LineageStore interface {
	// Append adds one record. Prior records are never rewritten.
	Append(ctx context.Context, rec LineageRecord) error
	// ReadAll returns every record in append order.
	ReadAll(ctx context.Context) ([]LineageRecord, error)
}
