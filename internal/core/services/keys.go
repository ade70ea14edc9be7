package services

import "fmt"

// Keys builds storage keys under a common prefix.
type Keys struct {
	Prefix string
}

func (k Keys) key(parts ...string) string {
	key := k.Prefix
	for _, p := range parts {
		if key == "" {
			key = p
			continue
		}
		key = fmt.Sprintf("%s:%s", key, p)
	}
	return key
}

// Cases is the key holding a client's saved case journal.
func (k Keys) Cases(clientID string) string { return k.key("cases", clientID) }

// DarkMode is the key holding a client's theme preference.
func (k Keys) DarkMode(clientID string) string { return k.key("prefs", clientID, "dark_mode") }

// Job is the key holding an ingestion job record.
func (k Keys) Job(id string) string { return k.key("jobs", id) }
