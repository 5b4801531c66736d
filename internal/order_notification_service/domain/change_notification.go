package domain

import "strings"

// ChangeNotification is a raw row-level change as delivered by the database,
// either through the notify trigger or a database webhook. Both use the same
// envelope: type is INSERT, UPDATE or DELETE.
type ChangeNotification struct {
	Type            string         `json:"type" validate:"required,oneof=INSERT UPDATE DELETE"`
	Table           string         `json:"table" validate:"required"`
	Schema          string         `json:"schema"`
	Record          map[string]any `json:"record"`
	OldRecord       map[string]any `json:"old_record"`
	CommitTimestamp string         `json:"commit_timestamp,omitempty"`
}

// Canonicalize upper-cases the operation type so validation and adaptation
// agree on "insert" and "INSERT".
func (n *ChangeNotification) Canonicalize() {
	n.Type = strings.ToUpper(strings.TrimSpace(n.Type))
}
