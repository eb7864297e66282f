// Package wallet models the facts a wallet-connection library hands to the
// session layer: which account is connected, on which chain, and a way to
// ask the user to sign a message.
package wallet

import (
	"strings"
	"sync"
)

// Connection is a point-in-time view of the connected wallet.
type Connection struct {
	Address     string
	ChainID     int64
	Connections int
}

// IsConnected reports whether an account is available through at least one
// active connection.
func (c Connection) IsConnected() bool {
	return c.Address != "" && c.Connections > 0
}

// Ready reports whether every fact a sign-in challenge needs is present.
func (c Connection) Ready() bool {
	return c.IsConnected() && c.ChainID != 0
}

// SameAccount compares addresses case-insensitively.
func (c Connection) SameAccount(other Connection) bool {
	return strings.EqualFold(c.Address, other.Address)
}

// Provider holds the current Connection and fans changes out to listeners.
// Listeners run synchronously on the goroutine that made the change.
type Provider struct {
	mu        sync.RWMutex
	conn      Connection
	nextID    int
	listeners map[int]func(Connection)
}

// NewProvider starts disconnected.
func NewProvider() *Provider {
	return &Provider{listeners: make(map[int]func(Connection))}
}

// Current returns the latest connection facts.
func (p *Provider) Current() Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.conn
}

// Subscribe registers fn for every subsequent change. The returned function
// removes the listener.
func (p *Provider) Subscribe(fn func(Connection)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Connect replaces the connection with a single active one.
func (p *Provider) Connect(address string, chainID int64) {
	p.Set(Connection{Address: address, ChainID: chainID, Connections: 1})
}

// SwitchAccount keeps the chain and connection list but changes the account.
func (p *Provider) SwitchAccount(address string) {
	conn := p.Current()
	conn.Address = address
	p.Set(conn)
}

// SwitchChain keeps the account but changes the chain.
func (p *Provider) SwitchChain(chainID int64) {
	conn := p.Current()
	conn.ChainID = chainID
	p.Set(conn)
}

// Disconnect drops every connection.
func (p *Provider) Disconnect() {
	p.Set(Connection{})
}

// Set publishes conn. Unchanged values are not re-broadcast.
func (p *Provider) Set(conn Connection) {
	p.mu.Lock()
	if p.conn == conn {
		p.mu.Unlock()
		return
	}
	p.conn = conn
	fns := make([]func(Connection), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(conn)
	}
}
