package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/aprendices-roster/internal/models"
	"github.com/noah-isme/aprendices-roster/internal/repository"
	"github.com/noah-isme/aprendices-roster/internal/service"
	"github.com/noah-isme/aprendices-roster/pkg/config"
)

type probeResult struct {
	Records       int
	WithoutCohort int
	Incomplete    int
	Cohorts       []models.CohortSummary
	Duration      time.Duration
}

func main() {
	var (
		feedURL       string
		timeout       time.Duration
		cohort        string
		maxIncomplete float64
	)

	flag.StringVar(&feedURL, "url", config.DefaultRosterURL, "Roster feed URL")
	flag.DurationVar(&timeout, "timeout", 15*time.Second, "HTTP client timeout")
	flag.StringVar(&cohort, "ficha", "", "Print the statistics of one ficha")
	flag.Float64Var(&maxIncomplete, "max-incomplete", 0.05, "Fail when the share of incomplete records exceeds this ratio")
	flag.Parse()

	repo := repository.NewRosterRepository(feedURL, nil, timeout, nil)

	start := time.Now()
	records, err := repo.Fetch(context.Background())
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}

	result := summarize(records, time.Since(start))
	printReport(feedURL, result)

	if cohort != "" {
		stats, ok := service.CohortStatistics(records, cohort)
		if !ok {
			fmt.Printf("Ficha %s: no records\n", cohort)
			os.Exit(1)
		}
		printStatistics(stats)
	}

	if result.Records == 0 {
		os.Exit(1)
	}
	ratio := float64(result.Incomplete) / float64(result.Records)
	if ratio > maxIncomplete {
		fmt.Printf("Incomplete ratio %.3f exceeds %.3f\n", ratio, maxIncomplete)
		os.Exit(1)
	}
}

func summarize(records []models.Record, d time.Duration) probeResult {
	result := probeResult{Records: len(records), Cohorts: service.UniqueCohorts(records), Duration: d}
	for _, record := range records {
		if !record.HasCohort() {
			result.WithoutCohort++
		}
		if !record.IsComplete() {
			result.Incomplete++
		}
	}
	return result
}

func printReport(feedURL string, res probeResult) {
	fmt.Println("Roster Feed Probe")
	fmt.Println("=================")
	fmt.Printf("Feed: %s (%s)\n", feedURL, res.Duration)
	fmt.Printf("Records: %d | Without ficha: %d | Incomplete: %d\n", res.Records, res.WithoutCohort, res.Incomplete)
	fmt.Printf("Fichas: %d\n", len(res.Cohorts))
	for _, cohort := range res.Cohorts {
		fmt.Printf("  %s\n", service.CohortOptionLabel(cohort))
	}
}

func printStatistics(stats *models.CohortStatistics) {
	fmt.Printf("Ficha %s - %s\n", stats.Info.Code, stats.Info.ProgramName)
	fmt.Printf("  Total: %d\n", stats.Total)
	for status, count := range stats.CountsByStatus {
		fmt.Printf("  %s: %d\n", status, count)
	}
}
