package ports

// Listener defines the lifecycle of a network-facing component
type Listener interface {
	// Start starts the listener
	Start() error

	// Stop stops the listener
	Stop() error
}
