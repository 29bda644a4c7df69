package domain

// PresenceStats is a point-in-time view of live state.
type PresenceStats struct {
	OnlineUsers int
	Connections int
	Rooms       int
}
