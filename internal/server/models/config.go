package models

// ConfigEntry is a key/value row of the config table.
type ConfigEntry struct {
	Key   string
	Value string
}
