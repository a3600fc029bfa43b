package domain

// Channel is a live push transport handle owned by the connection registry.
// Write returns an error when the peer is broken or too slow; the registry
// responds by evicting the connection, never by surfacing the error.
type Channel interface {
	Write(payload []byte) error
	Close() error
}
