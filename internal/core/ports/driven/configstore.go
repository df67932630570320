package driven

// ConfigStore holds flat, dotted-key settings ("edgar.user_agent").
// Values come back as the backend decoded them; TOML integers arrive as
// int64 and durations as strings. Typed reads belong to the caller.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	// Set stores a value and persists it.
	Set(key string, value any) error

	// Keys lists the stored keys in sorted order.
	Keys() []string

	Save() error
	Load() error

	// Path is where the store persists, or a marker for in-memory stores.
	Path() string
}
