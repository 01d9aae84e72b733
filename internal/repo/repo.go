package repo

// Store is the full surface a backend adapter implements.
type Store interface {
	TargetStore
	StatStore
	SslStore
	NotificationStore
	Close() error
}
