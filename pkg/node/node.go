package node

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ryandielhenn/seirnet/pkg/history"
	"github.com/ryandielhenn/seirnet/pkg/seir"
)

// Node serves one simulator over HTTP. Requests that touch the simulator are
// serialized.
type Node struct {
	mu   sync.Mutex
	sim  *seir.Simulator
	hist *history.Log

	id      string
	addr    string
	log     *zap.Logger
	publish func(seir.Stats)

	peerMu sync.RWMutex
	peers  map[string]string
}

type Option func(*Node)

func WithLogger(l *zap.Logger) Option {
	return func(n *Node) { n.log = l }
}

// WithPublisher sets a hook called with fresh stats after every request that
// changes the simulation.
func WithPublisher(fn func(seir.Stats)) Option {
	return func(n *Node) { n.publish = fn }
}

// NewNode wraps sim. hist should already be attached to sim as an observer
// so that /history sees each simulated day.
func NewNode(sim *seir.Simulator, hist *history.Log, id, addr string, opts ...Option) *Node {
	n := &Node{
		sim:     sim,
		hist:    hist,
		id:      id,
		addr:    addr,
		log:     zap.NewNop(),
		publish: func(seir.Stats) {},
		peers:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.publish(sim.Stats())
	return n
}

// SetPeers replaces the known set of other simulators.
func (n *Node) SetPeers(peers map[string]string) {
	n.peerMu.Lock()
	defer n.peerMu.Unlock()
	n.peers = make(map[string]string, len(peers))
	for id, addr := range peers {
		if id == n.id {
			continue
		}
		n.peers[id] = NormalizeHostPort(addr, "8080")
	}
}

func (n *Node) Peers() map[string]string {
	n.peerMu.RLock()
	defer n.peerMu.RUnlock()
	out := make(map[string]string, len(n.peers))
	for k, v := range n.peers {
		out[k] = v
	}
	return out
}

func (n *Node) ID() string   { return n.id }
func (n *Node) Addr() string { return n.addr }
