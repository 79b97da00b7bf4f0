package main

import (
	"strings"
	"time"

	"github.com/Carbocoon/SteelPriceCrawler/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historySite  *string
	historyLimit *int
)

func init() {
	historySite = historyCmd.Flags().String("site", "", "Only list runs of this site.")
	historyLimit = historyCmd.Flags().Int("limit", 20, "Number of runs to list.")
	rootCmd.AddCommand(sitesCmd, historyCmd)
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Lists the site schemas that can be crawled.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		sites, err := loadSites(cfg.Sites)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Name", "Title", "Entry URL", "Fields"})
		for _, sc := range sites.List() {
			t.AppendRow(table.Row{sc.Name, sc.Title, sc.EntryURL, strings.Join(sc.FieldNames(), ", ")})
		}
		t.Render()
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [--site <name>] [--limit <n>]",
	Short: "Lists finished crawl runs from the history database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(cmd.Context(), *historySite, *historyLimit)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"ID", "Site", "Stop", "Pages", "Records", "Started", "Took"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.ID,
				r.Site,
				r.StopReason,
				r.Pages,
				r.Count,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
			})
		}
		t.Render()
		return nil
	},
}
