package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/lingodesk/lingodesk/internal/pkg/database"
	"github.com/lingodesk/lingodesk/internal/pkg/env"
	"github.com/lingodesk/lingodesk/internal/pkg/integrity"
)

func main() {
	fix := flag.Bool("fix", false, "create placeholder companies for orphaned subscriptions")
	flag.Parse()

	env.SetupEnvFile()
	database.SetupDatabase()

	verifier := integrity.NewVerifierFromDB(database.GetDB())
	report, err := verifier.Run(context.Background(), *fix)
	if err != nil {
		log.Fatalf("Integrity verification failed: %v", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}
	os.Stdout.Write(append(out, '\n'))

	if !report.Clean() {
		os.Exit(1)
	}
}
