package solana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCPoolRoundRobin(t *testing.T) {
	pool := newRPCPool([]string{
		"https://rpc-1.example.com",
		"https://rpc-2.example.com",
		"https://rpc-3.example.com",
	})
	require.Len(t, pool.clients, 3)

	first := pool.next()
	second := pool.next()
	third := pool.next()
	assert.NotSame(t, first, second)
	assert.NotSame(t, second, third)

	// The cycle wraps back to the first client.
	assert.Same(t, first, pool.next())
	assert.Same(t, second, pool.next())
}

func TestRPCPoolSingleEndpoint(t *testing.T) {
	pool := newRPCPool([]string{"https://rpc.example.com"})

	first := pool.next()
	assert.Same(t, first, pool.next())
}
