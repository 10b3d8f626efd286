package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/dmbp/licitaflix/internal/db"
	"github.com/jedib0t/go-pretty/v6/table"
)

func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT p.name, p.active, p.search_today, p.total_matches, p.last_run_at,
			(SELECT COUNT(*) FROM search_terms t WHERE t.profile_id = p.id AND t.active)
		FROM profiles p ORDER BY p.last_run_at DESC NULLS LAST LIMIT 20
	`)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Profile", "Active", "Daily", "Terms", "Matches", "Last Run"})

	for rows.Next() {
		var name string
		var active, daily bool
		var matches, terms int
		var lastRunAt *time.Time

		if err := rows.Scan(&name, &active, &daily, &matches, &lastRunAt, &terms); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}

		lastRun := "never"
		if lastRunAt != nil {
			lastRun = lastRunAt.Format("2006-01-02 15:04")
		}

		t.AppendRow(table.Row{name, active, daily, terms, matches, lastRun})
	}
	t.Render()
}
