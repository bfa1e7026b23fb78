// Command registrar_probe queries the registrar endpoints directly with the
// configured signing secrets, so connectivity and matching problems can be
// diagnosed without a running server or a sync pass.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-sync/internal/registrar"
	"github.com/noah-isme/sma-roster-sync/pkg/config"
)

func main() {
	var (
		courseNumber string
		sectionID    string
		semester     string
		timeout      time.Duration
	)

	flag.StringVar(&courseNumber, "course", "", "registrar course number to list sections for")
	flag.StringVar(&sectionID, "section", "", "section ID to fetch the roster of")
	flag.StringVar(&semester, "semester", "", "semester override, defaults to REGISTRAR_SEMESTER")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	flag.Parse()

	if courseNumber == "" && sectionID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if semester == "" {
		semester = cfg.Registrar.Semester
	}
	cfg.Registrar.Timeout = timeout

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	client := registrar.NewClient(cfg.Registrar, logger)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if courseNumber != "" {
		sections, err := client.Sections(ctx, courseNumber, semester)
		if err != nil {
			log.Fatalf("sections query failed: %v", err)
		}
		if err := enc.Encode(sections); err != nil {
			log.Fatalf("encode sections: %v", err)
		}
	}

	if sectionID != "" {
		students, err := client.Roster(ctx, sectionID)
		if err != nil {
			log.Fatalf("roster query failed: %v", err)
		}
		if err := enc.Encode(students); err != nil {
			log.Fatalf("encode roster: %v", err)
		}
	}
}
