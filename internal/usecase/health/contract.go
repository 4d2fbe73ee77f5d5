package health

import "context"

// StorePinger checks record store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// CachePinger checks cache backend availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}
