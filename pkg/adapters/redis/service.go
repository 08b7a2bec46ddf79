package redis

import (
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/domain"
)

// ServiceFactory returns a lazy bench service that connects to the Redis
// server named by the addrKey configuration value on first access.
// The client is closed with the run context.
func ServiceFactory(addrKey string) bench.ServiceFactory {
	return func(c *bench.Context) (any, error) {
		addr := c.Config.String(addrKey)
		if addr == "" {
			return nil, domain.Configf("redis", "configuration key %q is not set", addrKey)
		}
		client := backend.NewClient(&backend.Options{Addr: addr})
		if err := client.Ping(c).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
		}
		c.Logger.Debug("Connected to redis", "addr", addr)
		return client, nil
	}
}
