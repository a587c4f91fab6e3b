// Package config loads environment-backed configuration structs.
//
// Values come from process environment variables, optionally seeded from a
// .env file in the working directory. Struct fields carry caarlos0/env tags:
//
//	type BrokerConfig struct {
//		URL       string        `env:"AMQP_URL,required"`
//		Heartbeat time.Duration `env:"AMQP_HEARTBEAT" envDefault:"60s"`
//	}
//
//	var cfg BrokerConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// MustLoad panics on failure and suits required startup configuration.
package config
