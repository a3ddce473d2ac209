package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lead-pipeline/internal/app"
	"lead-pipeline/internal/common/config"
	errs "lead-pipeline/internal/common/errors"
	"lead-pipeline/internal/common/logger"
	"lead-pipeline/internal/intelligence"
	"lead-pipeline/internal/models"
	"lead-pipeline/internal/scoring"

	"github.com/fatih/color"
)

var (
	configPath = flag.String("config", "", "Config file (defaults to configs/config.yaml lookup)")
	userID     = flag.String("user", "", "User the search is billed to")
	query      = flag.String("query", "", "Text query, e.g. \"padarias\"")
	category   = flag.String("category", "", "Provider place type")
	city       = flag.String("city", "", "City for location bias")
	state      = flag.String("state", "", "State for location bias")
	country    = flag.String("country", "", "Country for location bias")
	radiusKm   = flag.Float64("radius", 0, "Bias radius in km")
	hasWebsite = flag.String("website", "", "Website filter: yes, no or empty")
	hasPhone   = flag.String("phone", "", "Phone filter: yes, no or empty")
	maxPlaces  = flag.Int("max", 0, "Walk pages up to this many places (0 = one page)")
	topN       = flag.Int("top", 20, "Rows to print")
	report     = flag.String("report", "", "Also print a report: competitor or market")
	asJSON     = flag.Bool("json", false, "Print JSON instead of a table")
)

func main() {
	flag.Parse()

	if *userID == "" || *query == "" {
		fmt.Fprintln(os.Stderr, "usage: prospect -user <id> -query <text> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewStructured("warn", "console", "stderr")

	pipeline, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	req := models.SearchRequest{
		TextQuery:  *query,
		Category:   *category,
		City:       *city,
		State:      *state,
		Country:    *country,
		RadiusKm:   *radiusKm,
		HasWebsite: *hasWebsite,
		HasPhone:   *hasPhone,
	}
	identity := models.Identity{UserID: *userID}

	var found []models.PlaceRecord
	source := models.SourceExternal
	if *maxPlaces > 0 {
		res, err := pipeline.Search.RunSearchAllPages(ctx, req, identity, *maxPlaces)
		if err != nil {
			return err
		}
		found = res.Places
	} else {
		res, err := pipeline.Search.RunSearch(ctx, req, identity)
		if err != nil {
			return err
		}
		found = res.Places
		switch {
		case res.FromCache:
			source = models.SourceCache
		case res.FromLocalDB:
			source = models.SourceLocalDB
		}
	}

	ranked := scoring.ScoreAndRankPlaces(found, *topN)
	if *asJSON {
		return json.NewEncoder(os.Stdout).Encode(ranked)
	}
	renderTable(os.Stdout, ranked, source)

	subject := intelligence.Subject{Query: *query, Category: *category, City: *city, State: *state, Country: *country, RadiusKm: *radiusKm}
	attr := models.Attribution{UserID: *userID}
	if account, err := pipeline.Store.GetAccount(ctx, *userID); err == nil && account != nil {
		attr.WorkspaceID = account.WorkspaceID
	}
	switch *report {
	case "":
	case "competitor":
		r, err := pipeline.Intelligence.CompetitorReport(ctx, subject, attr, 10)
		if err != nil {
			return err
		}
		renderAnalysis(os.Stdout, "Competitors", r.Degraded, r.Analysis.Summary, r.Analysis.Recommendations)
	case "market":
		r, err := pipeline.Intelligence.MarketReport(ctx, subject, attr)
		if err != nil {
			return err
		}
		renderAnalysis(os.Stdout, "Market", r.Degraded, r.Analysis.Summary, r.Analysis.Trends)
	default:
		return fmt.Errorf("unknown report %q", *report)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFromFile(*configPath)
	}
	return config.Load()
}

func describe(err error) string {
	if stdErr, ok := errs.AsStandard(err); ok {
		return fmt.Sprintf("%s (%s)", stdErr.Message, stdErr.Code)
	}
	return err.Error()
}
