package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/export"
	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
	"github.com/Carbocoon/SteelPriceCrawler/view/htmlview"
	"github.com/Carbocoon/SteelPriceCrawler/walker"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	replaySite  *string
	replayOut   *string
	replayLimit *int
)

func init() {
	replaySite = replayCmd.Flags().String("site", "haoganghui", "The site schema to read the pages with.")
	replayOut = replayCmd.Flags().String("out", "", "Directory to write CSV and JSONL exports to.")
	replayLimit = replayCmd.Flags().Int("limit", 20, "Rows to print; 0 prints none.")
	rootCmd.AddCommand(replayCmd)
}

var replayCmd = &cobra.Command{
	Use:   "replay <page.html>... [--site <name>] [--out <dir>]",
	Short: "Extracts records from saved page sources without a browser.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sites, err := loadSites(cfg.Sites)
		if err != nil {
			return err
		}
		sc, ok := sites.Get(*replaySite)
		if !ok {
			return fmt.Errorf("unknown site %q", *replaySite)
		}

		ctx := cmd.Context()
		sink := walker.LogSink{}
		recs := []models.Record{}
		for i, path := range args {
			v, err := htmlview.FromFile(path)
			if err != nil {
				return err
			}
			snap, err := walker.Extract(ctx, v, sc, sink)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			slog.Info("page replayed", "file", path, "page", i+1, "records", len(snap.Records), "text_fallback", snap.Fallback)
			recs = append(recs, snap.Records...)
		}

		printRecords(sc, recs, *replayLimit)
		printStats(export.Summarize(recs, sc))

		if *replayOut != "" {
			files, err := export.Save(*replayOut, sc.Name, sc.FieldNames(), recs, time.Now())
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Println(f)
			}
		}
		return nil
	},
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func printRecords(sc *schema.Schema, recs []models.Record, limit int) {
	if limit <= 0 || len(recs) == 0 {
		return
	}
	fields := sc.FieldNames()
	t := newTable()

	header := table.Row{"#"}
	for _, f := range fields {
		header = append(header, f)
	}
	t.AppendHeader(header)

	for i, rec := range recs {
		if i == limit {
			break
		}
		row := table.Row{i + 1}
		for _, f := range fields {
			row = append(row, rec[f])
		}
		t.AppendRow(row)
	}
	if len(recs) > limit {
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d more", len(recs)-limit)})
	}
	t.Render()
}

func printStats(st export.Stats) {
	t := newTable()
	t.AppendHeader(table.Row{"Records", "Priced", "Mean", "Median", "Min", "Max"})
	t.AppendRow(table.Row{
		st.Count,
		st.PriceCount,
		fmt.Sprintf("%.2f", st.Mean),
		fmt.Sprintf("%.2f", st.Median),
		fmt.Sprintf("%.2f", st.Min),
		fmt.Sprintf("%.2f", st.Max),
	})
	t.Render()

	if len(st.TopNames) == 0 {
		return
	}
	names := newTable()
	names.AppendHeader(table.Row{"Product", "Records"})
	for _, nc := range st.TopNames {
		names.AppendRow(table.Row{nc.Name, nc.Count})
	}
	names.Render()
}
