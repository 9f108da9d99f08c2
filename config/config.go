// Package config declares the banking stage's configuration surface (spec
// §6) and parses it from the command line via go-flags, mirroring the
// teacher's CLI glue style.
package config

import (
	"github.com/jessevdk/go-flags"
	"github.com/vivekjami/banking-stage/cost"
	"github.com/vivekjami/banking-stage/scheduler"
)

// DefaultNumWorkers is used when NumWorkers is left at zero.
const DefaultNumWorkers = 4

// DefaultBufferCapacity is the non-vote buffer cap (spec §6).
const DefaultBufferCapacity = 500_000

// Config is the banking stage's entire recognized option set (spec §6: "the
// only recognized options").
type Config struct {
	NumWorkers          int    `long:"num-workers" description:"number of non-vote consume workers" default:"4"`
	SchedulerKind       string `long:"scheduler-kind" description:"priority_graph or greedy" default:"greedy"`
	MaxBlockCU          uint64 `long:"max-block-cu" description:"block compute ceiling" default:"48000000"`
	MaxVoteCU           uint64 `long:"max-vote-cu" description:"vote-lane compute ceiling" default:"36000000"`
	MaxAccountCU        uint64 `long:"max-account-cu" description:"per-account compute ceiling" default:"12000000"`
	MaxAccountDataBlock uint64 `long:"max-account-data-block" description:"block-scope loaded-data ceiling" default:"100000000"`
	MaxAccountDataTotal uint64 `long:"max-account-data-total" description:"global loaded-data ceiling" default:"300000000"`
	BufferCapacity      int    `long:"buffer-capacity" description:"non-vote buffer capacity" default:"500000"`
	StatusSenderEnabled bool   `long:"status-sender-enabled" description:"emit transaction status batches"`
}

// Default returns a Config populated with the spec's default ceilings.
func Default() *Config {
	limits := cost.DefaultLimits()
	return &Config{
		NumWorkers:          DefaultNumWorkers,
		SchedulerKind:       string(scheduler.KindGreedy),
		MaxBlockCU:          limits.MaxBlockCU,
		MaxVoteCU:           limits.MaxVoteCU,
		MaxAccountCU:        limits.MaxAccountCU,
		MaxAccountDataBlock: limits.MaxAccountDataBlock,
		MaxAccountDataTotal: limits.MaxAccountDataTotal,
		BufferCapacity:      DefaultBufferCapacity,
	}
}

// Parse parses args (typically os.Args[1:]) into a Config seeded with the
// spec's defaults.
func Parse(args []string) (*Config, error) {
	cfg := Default()
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Limits projects the cost ceilings out of Config.
func (c *Config) Limits() cost.Limits {
	return cost.Limits{
		MaxBlockCU:          c.MaxBlockCU,
		MaxVoteCU:           c.MaxVoteCU,
		MaxAccountCU:        c.MaxAccountCU,
		MaxAccountDataBlock: c.MaxAccountDataBlock,
		MaxAccountDataTotal: c.MaxAccountDataTotal,
	}
}

// Kind projects SchedulerKind out of Config as a scheduler.Kind.
func (c *Config) Kind() scheduler.Kind {
	return scheduler.Kind(c.SchedulerKind)
}
