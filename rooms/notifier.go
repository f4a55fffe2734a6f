package rooms

// Notifier delivers a named event to one connected socket. The transport
// layer implements it; tests substitute a recording fake. The registry
// builds every payload before sending, so a slow or dead socket can never
// leave the room in a half-mutated state.
type Notifier interface {
	SendTo(socketID string, event string, data any)
}
