package solana

import (
	"sync"

	"github.com/gagliardetto/solana-go/rpc"
)

// rpcPool rotates over a set of RPC endpoints round-robin. Combined with the
// retry wrapper this gives endpoint failover: each retry attempt lands on the
// next endpoint in the list.
type rpcPool struct {
	clients []*rpc.Client

	mu    sync.Mutex
	index int
}

func newRPCPool(rpcURLs []string) *rpcPool {
	clients := make([]*rpc.Client, 0, len(rpcURLs))
	for _, rpcURL := range rpcURLs {
		clients = append(clients, rpc.New(rpcURL))
	}
	return &rpcPool{clients: clients}
}

func (p *rpcPool) next() *rpc.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	client := p.clients[p.index]
	p.index = (p.index + 1) % len(p.clients)
	return client
}
