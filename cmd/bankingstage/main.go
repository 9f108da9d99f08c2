// Command bankingstage parses the banking stage's configuration surface and
// initializes logging. It does not itself connect to a ledger, a PoH
// recorder, or a network: those are the embedding validator process's job
// (spec §1 Non-goals) and are supplied to bankingstage.New by whatever
// process links this module in.
package main

import (
	"fmt"
	"os"

	"github.com/vivekjami/banking-stage/config"
	"github.com/vivekjami/banking-stage/logger"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing command-line arguments: %s\n", err)
		os.Exit(1)
	}

	logger.InitLogRotators("logs/bankingstage.log", "logs/bankingstage_err.log")
	logger.SetLogLevels("info")

	log, _ := logger.Get(logger.SubsystemTags.CNFG)
	log.Infof("banking stage configured: %d workers, %s scheduler, max_block_cu=%d",
		cfg.NumWorkers, cfg.SchedulerKind, cfg.MaxBlockCU)
	log.Infof("waiting to be wired to a bank, PoH recorder, and packet channels by the embedding process")
}
