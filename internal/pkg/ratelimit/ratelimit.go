// Package ratelimit provides the shared Redis-backed request limiter used on
// the public API surface. Counters live in Redis so limits hold across
// instances and survive restarts.
package ratelimit

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/beatmarkt/BeatMarkt/internal/pkg/cache"
	"github.com/beatmarkt/BeatMarkt/internal/pkg/env"
)

var (
	store     fiber.Storage
	storeOnce sync.Once
)

// Storage returns the limiter's Redis storage, database 1 (the cache client
// uses database 0). Connection details come from the cache client so both
// always point at the same server.
func Storage() fiber.Storage {
	storeOnce.Do(func() {
		host := "localhost"
		port := 6379
		password := env.GetEnv("CACHE_PASSWORD", "")
		if cacheClient := cache.GetClient(); cacheClient != nil {
			addr := cacheClient.Options().Addr
			if h, p, err := net.SplitHostPort(addr); err == nil {
				host = h
				if v, err := strconv.Atoi(p); err == nil {
					port = v
				}
			}
			if p := cacheClient.Options().Password; p != "" {
				password = p
			}
		}

		store = redis.New(redis.Config{
			Host:     host,
			Port:     port,
			Password: password,
			Database: 1,
			Reset:    false,
		})
	})
	return store
}

// New builds a limiter middleware over the shared storage. keyGen decides
// what a "caller" is; nil falls back to the connection address.
func New(max int, window time.Duration, keyGen func(*fiber.Ctx) string) fiber.Handler {
	if keyGen == nil {
		keyGen = func(c *fiber.Ctx) string { return c.IP() }
	}
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   window,
		Storage:      Storage(),
		KeyGenerator: keyGen,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests, slow down",
			})
		},
	})
}
