// Package peer implements the peer registry: a table of known hosts with
// downtime bookkeeping, grounded on the liveness/handshake pattern found
// in the reference node's API client (status-then-connect handshake,
// downtime recorded on request failure, peers pruned on network
// mismatch).
package peer

import (
	"sort"
	"sync"
	"time"
)

// Entry is one tracked peer.
type Entry struct {
	Host     string
	Downtime int
	LastSeen time.Time
}

// Registry tracks known peers and their liveness.
type Registry struct {
	mu                sync.Mutex
	peers             map[string]*Entry
	maxPeers          int
	downtimeThreshold int // number of recorded failures before a peer is considered offline
}

// New creates an empty Registry. maxPeers bounds GetAllPeers;
// downtimeThreshold is how many consecutive recorded downtimes a peer
// tolerates before being excluded from broadcasts.
func New(maxPeers, downtimeThreshold int) *Registry {
	return &Registry{
		peers:             make(map[string]*Entry),
		maxPeers:          maxPeers,
		downtimeThreshold: downtimeThreshold,
	}
}

// AddPeer upserts host into the registry, resetting its downtime.
func (r *Registry) AddPeer(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[host]
	if !ok {
		e = &Entry{Host: host}
		r.peers[host] = e
	}
	e.Downtime = 0
	e.LastSeen = time.Now()
}

// GetPeer returns the entry for host, or nil if unknown.
func (r *Registry) GetPeer(host string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peers[host]
}

// RemovePeer drops host from the registry entirely, used when a peer is
// found to be on an incompatible network.
func (r *Registry) RemovePeer(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, host)
}

// RecordDowntime increments host's downtime counter.
func (r *Registry) RecordDowntime(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[host]
	if !ok {
		e = &Entry{Host: host}
		r.peers[host] = e
	}
	e.Downtime++
}

// ResetDowntime clears host's downtime counter on any successful
// interaction.
func (r *Registry) ResetDowntime(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.peers[host]; ok {
		e.Downtime = 0
		e.LastSeen = time.Now()
	}
}

// IsOnline reports whether host's downtime is below the threshold.
func (r *Registry) IsOnline(host string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[host]
	if !ok {
		return false
	}
	return e.Downtime < r.downtimeThreshold
}

// GetPeersCount returns the number of peers currently considered online.
func (r *Registry) GetPeersCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.peers {
		if e.Downtime < r.downtimeThreshold {
			n++
		}
	}
	return n
}

// GetAllPeers returns up to maxPeers online peer hosts, preferring
// lowest downtime first.
func (r *Registry) GetAllPeers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	online := make([]*Entry, 0, len(r.peers))
	for _, e := range r.peers {
		if e.Downtime < r.downtimeThreshold {
			online = append(online, e)
		}
	}
	sort.Slice(online, func(i, j int) bool { return online[i].Downtime < online[j].Downtime })
	if len(online) > r.maxPeers {
		online = online[:r.maxPeers]
	}
	hosts := make([]string, len(online))
	for i, e := range online {
		hosts[i] = e.Host
	}
	return hosts
}
