package dial

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
)

// DefaultDialTimeout is a default timeout for dialing a client.
const DefaultDialTimeout = 1 * time.Minute
const defaultRetryCount = 30
const defaultRetryTime = 2 * time.Second
const defaultConnectTimeout = 10 * time.Second

// Clients bundles the views of one RPC connection.
// Proofs need gethclient for eth_getProof, everything else goes through ethclient.
type Clients struct {
	RPC   *rpc.Client
	Eth   *ethclient.Client
	Proof *gethclient.Client
}

func (c *Clients) Close() {
	c.RPC.Close()
}

// DialEthClientWithTimeout attempts to dial the provider using the provided
// URL. If the dial doesn't complete within timeout, this method will return an error.
func DialEthClientWithTimeout(ctx context.Context, timeout time.Duration, log log.Logger, url string) (*ethclient.Client, error) {
	c, err := DialClientsWithTimeout(ctx, timeout, log, url)
	if err != nil {
		return nil, err
	}
	return c.Eth, nil
}

// DialClientsWithTimeout dials url with backoff and wraps the connection in all client views.
func DialClientsWithTimeout(ctx context.Context, timeout time.Duration, log log.Logger, url string) (*Clients, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := dialRPCClientWithBackoff(ctx, log, url, defaultRetryCount, defaultRetryTime)
	if err != nil {
		return nil, err
	}
	return &Clients{
		RPC:   c,
		Eth:   ethclient.NewClient(c),
		Proof: gethclient.New(c),
	}, nil
}

// Dials a JSON-RPC endpoint repeatedly, with a backoff, until a client connection is established.
func dialRPCClientWithBackoff(ctx context.Context, log log.Logger, addr string, attempts uint, delay time.Duration) (*rpc.Client, error) {
	return retry.DoWithData(
		func() (*rpc.Client, error) {
			return dialRPCClient(ctx, addr)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("Failed to dial RPC, retrying", "addr", addr, "attempt", n+1, "err", err)
		}),
	)
}

// Dials a JSON-RPC endpoint once, and checks it answers.
func dialRPCClient(ctx context.Context, addr string) (*rpc.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	c, err := rpc.DialContext(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial address (%s): %w", addr, err)
	}
	var chainID string
	if err := c.CallContext(ctx, &chainID, "eth_chainId"); err != nil {
		c.Close()
		return nil, fmt.Errorf("address unavailable (%s): %w", addr, err)
	}
	return c, nil
}
