// File: cmd/proxy.go
package cmd

import (
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/observability"
	"github.com/kimday0326/boj-editor/internal/proxy"
	"github.com/kimday0326/boj-editor/internal/ratelimit"
)

func newProxyCmd() *cobra.Command {
	proxyCmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run the rate-limited execution proxy",
		Long: `Serves POST /execute, forwarding code-execution requests from the editor
extension to the Piston API with the server-held API key attached. Requests
are origin-gated and rate limited per client IP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := config.Get()

			var store ratelimit.Store
			if cfg.Proxy.Redis.Enabled {
				client := redis.NewClient(&redis.Options{Addr: cfg.Proxy.Redis.Addr})
				defer client.Close()
				if err := client.Ping(ctx).Err(); err != nil {
					return err
				}
				store = ratelimit.NewRedisStore(client)
				logger.Info("Using Redis rate-limit store", zap.String("addr", cfg.Proxy.Redis.Addr))
			} else {
				store = ratelimit.NewMemoryStore()
			}

			limiter := ratelimit.NewLimiter(store, cfg.Proxy.RateLimit.Requests, cfg.Proxy.RateLimit.Window, logger)
			srv := proxy.NewServer(logger, cfg.Proxy, limiter)
			return srv.ListenAndServe(ctx)
		},
	}
	return proxyCmd
}
