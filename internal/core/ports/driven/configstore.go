package driven

// ConfigStore is flat key/value configuration addressed with dotted keys
// such as "sync.batch_size". Typed getters return the zero value when a key
// is missing or holds another type.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set stores value and persists it immediately.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path is where the configuration is persisted.
	Path() string
}
