package eventbus

// Topics published inside the server.
const (
	EventSettingsUpdated   = "settings:updated"
	EventSettingsReset     = "settings:reset"
	EventRegistryRefreshed = "registry:refreshed"

	EventConnectionOpened = "connection:opened"
	EventConnectionClosed = "connection:closed"
)

// SettingsEventData carries the applied settings after a mutation.
type SettingsEventData struct {
	Op           string      `json:"op"`
	Settings     interface{} `json:"settings"`
	NeedsRebuild bool        `json:"needs_rebuild"`
}

// RegistryEventData carries the differences found by a rescan.
type RegistryEventData struct {
	Report interface{} `json:"report"`
}

type ConnectionEventData struct {
	SessionID  string `json:"session_id"`
	ClientID   string `json:"client_id,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	Active     int    `json:"active"`
}
