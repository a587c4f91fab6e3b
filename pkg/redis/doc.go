// Package redis establishes and health-checks the shared Redis connection
// backing the rate-limit counters.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	store := ratelimit.NewRedisStore(client)
package redis
