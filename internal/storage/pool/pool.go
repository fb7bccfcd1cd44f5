// Package pool keeps backend connections keyed by connection string so that
// repositories can resolve a connection on every operation without paying
// for a new handshake each time.
package pool

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"
)

// OpenFunc opens a new connection for the given key.
type OpenFunc[C any] func(ctx context.Context, key string) (C, error)

// CloseFunc releases a connection.
type CloseFunc[C any] func(conn C) error

// Pool caches one connection per key. Concurrent first opens for the same key
// share a single OpenFunc call.
type Pool[C any] struct {
	open  OpenFunc[C]
	close CloseFunc[C]

	mu     sync.RWMutex
	conns  map[string]C
	closed bool
	sf     singleflight.Group
}

// ErrClosed is returned by Get after Close.
var ErrClosed = eris.New("connection pool is closed")

// New constructs a pool. close may be nil when connections need no cleanup.
func New[C any](open OpenFunc[C], close CloseFunc[C]) *Pool[C] {
	return &Pool[C]{
		open:  open,
		close: close,
		conns: make(map[string]C),
	}
}

// Get returns the cached connection for key or opens one.
func (p *Pool[C]) Get(ctx context.Context, key string) (C, error) {
	var zero C

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return zero, ErrClosed
	}
	if conn, ok := p.conns[key]; ok {
		p.mu.RUnlock()
		return conn, nil
	}
	p.mu.RUnlock()

	value, err, _ := p.sf.Do(key, func() (any, error) {
		p.mu.RLock()
		if conn, ok := p.conns[key]; ok {
			p.mu.RUnlock()
			return conn, nil
		}
		p.mu.RUnlock()

		conn, err := p.open(ctx, key)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			if p.close != nil {
				_ = p.close(conn)
			}
			return nil, ErrClosed
		}
		p.conns[key] = conn
		return conn, nil
	})
	if err != nil {
		return zero, err
	}

	return value.(C), nil
}

// Evict closes and forgets the connection for key, if any.
func (p *Pool[C]) Evict(key string) error {
	p.mu.Lock()
	conn, ok := p.conns[key]
	delete(p.conns, key)
	p.mu.Unlock()

	if !ok || p.close == nil {
		return nil
	}
	return p.close(conn)
}

// Len reports the number of cached connections.
func (p *Pool[C]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns)
}

// Close releases every cached connection. Further Get calls fail with ErrClosed.
func (p *Pool[C]) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]C)
	p.closed = true
	p.mu.Unlock()

	if p.close == nil {
		return nil
	}

	var errs []error
	for key, conn := range conns {
		if err := p.close(conn); err != nil {
			errs = append(errs, eris.Wrapf(err, "closing connection %s", key))
		}
	}
	return errors.Join(errs...)
}
