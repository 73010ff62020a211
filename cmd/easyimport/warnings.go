package main

import (
	"log"

	"github.com/djlord-it/easy-import/internal/config"
)

// logConfigWarnings flags configurations that run but lose guarantees.
func logConfigWarnings(cfg *config.Config) {
	if cfg.DatabaseURL == "" {
		log.Println("easyimport: WARNING [P0]: DATABASE_URL not set; execution history is lost on restart and replicas cannot see each other's runs")
	}

	if cfg.DatabaseURL != "" && !cfg.LeaderElectionEnabled {
		log.Println("easyimport: WARNING [P0]: LEADER_ELECTION_ENABLED=false; every replica fires the schedule with its own userJob timestamp, so each launches a separate import")
	}

	if !cfg.ReconcileEnabled {
		log.Println("easyimport: WARNING [P1]: RECONCILE_ENABLED=false; executions left STARTED by a crash are never abandoned")
	}

	if !cfg.MetricsEnabled {
		log.Println("easyimport: WARNING [P1]: METRICS_ENABLED=false; launch failures are visible in logs only")
	}

	if cfg.ImportSecret == "" {
		log.Println("easyimport: INFO: IMPORT_SECRET not set; import requests are signed with an empty key")
	}
}
