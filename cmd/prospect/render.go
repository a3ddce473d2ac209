package main

import (
	"fmt"
	"io"
	"strings"

	"lead-pipeline/internal/models"
	"lead-pipeline/internal/scoring"

	"github.com/fatih/color"
)

var (
	header = color.New(color.FgCyan, color.Bold)
	high   = color.New(color.FgGreen, color.Bold)
	medium = color.New(color.FgYellow)
	low    = color.New(color.FgWhite)
	dim    = color.New(color.Faint)
)

func scoreColor(score int) *color.Color {
	switch {
	case score >= 70:
		return high
	case score >= 40:
		return medium
	default:
		return low
	}
}

// flags lists the opportunity factors that fired, shortest first.
func flags(f models.ScoreFactors) string {
	var out []string
	if f.NoWebsite {
		out = append(out, "no-site")
	}
	if f.NoPhone {
		out = append(out, "no-phone")
	}
	if f.LowRating {
		out = append(out, "low-rating")
	}
	if f.FewReviews {
		out = append(out, "few-reviews")
	}
	if f.BelowMedianReviews {
		out = append(out, "below-median")
	}
	if f.MobilePhone {
		out = append(out, "mobile")
	}
	return strings.Join(out, ",")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func renderTable(w io.Writer, ranked scoring.Result, source string) {
	header.Fprintf(w, "%-4s %-5s %-36s %-6s %-7s %s\n", "#", "SCORE", "NAME", "RATING", "REVIEWS", "SIGNALS")
	for _, p := range ranked.Scored {
		scoreColor(p.Score).Fprintf(w, "%-4d %-5d ", p.Rank, p.Score)
		fmt.Fprintf(w, "%-36s %-6.1f %-7d %s\n", truncate(p.Name, 36), p.Rating, p.ReviewCount, flags(p.Factors))
	}
	dim.Fprintf(w, "%d places from %s, median reviews %d, average rating %.1f\n",
		len(ranked.Scored), source, ranked.MedianReviews, ranked.AvgRating)
}

func renderAnalysis(w io.Writer, title string, degraded bool, summary string, points []string) {
	fmt.Fprintln(w)
	header.Fprintln(w, title)
	if degraded {
		medium.Fprintln(w, "(analysis unavailable, showing a placeholder)")
	}
	fmt.Fprintln(w, summary)
	for _, p := range points {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}
