// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gimi9/geocode-web/export"
	"github.com/gimi9/geocode-web/history"
	"github.com/gimi9/geocode-web/spatial"
	"github.com/spf13/cobra"
)

var historyOptions struct {
	session    string
	limit      int
	format     string
	output     string
	resolution int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Access the stored batches",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the stored batches, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		repo, closeHistory, err := requireHistory()
		if err != nil {
			return err
		}
		defer closeHistory()

		recs, err := repo.ListBatches(cmd.Context(), historyOptions.session, historyOptions.limit)
		if err != nil {
			return err
		}

		a, b, c, d := strings.Repeat("─", 6), strings.Repeat("─", 19), strings.Repeat("─", 8), strings.Repeat("─", 30)
		fmt.Printf("╭─%6s─┬─%-19s─┬─%-8s─┬─%-30s╮\n", a, b, c, d)
		fmt.Printf("│ %6s │ %-19s │ %-8s │ %-30s│\n", "Id", "Created", "Source", "Name")
		fmt.Printf("├─%6s─┼─%-19s─┼─%-8s─┼─%-30s┤\n", a, b, c, d)

		for _, rec := range recs {
			fmt.Printf("│ %6d │ %-19s │ %-8s │ %-30s│\n",
				rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), rec.Source, rec.Name)
		}

		fmt.Printf("╰─%6s─┴─%-19s─┴─%-8s─┴─%-30s╯\n", a, b, c, d)

		return nil
	},
}

func batchArg(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid batch id %q", args[0])
	}

	return id, nil
}

func loadRecord(cmd *cobra.Command, args []string) (*history.Record, error) {
	id, err := batchArg(args)
	if err != nil {
		return nil, err
	}

	repo, closeHistory, err := requireHistory()
	if err != nil {
		return nil, err
	}
	defer closeHistory()

	return repo.GetBatch(cmd.Context(), id)
}

var historyExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Exports a stored batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(historyOptions.format)
		if err != nil {
			return err
		}

		rec, err := loadRecord(cmd, args)
		if err != nil {
			return err
		}

		return writeExport(format, rec.Name, historyOptions.output, rec.Batch.Results)
	},
}

var historyPublishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Uploads an export of a stored batch and prints its download link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(historyOptions.format)
		if err != nil {
			return err
		}

		rec, err := loadRecord(cmd, args)
		if err != nil {
			return err
		}

		store, err := openArchive(cmd.Context())
		if err != nil {
			return err
		}

		results := rec.Batch.Results

		d, err := export.Encode(format, rec.Name, results, export.Features(results))
		if err != nil {
			return err
		}

		published, err := store.Publish(cmd.Context(), d)
		if err != nil {
			return err
		}

		fmt.Println(published.URL)

		return nil
	},
}

var historyCellsCmd = &cobra.Command{
	Use:   "cells <id>",
	Short: "Counts the located results of a stored batch per H3 cell",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := batchArg(args)
		if err != nil {
			return err
		}

		res := historyOptions.resolution
		if res < 1 || res > spatial.MaxCellResolution {
			return fmt.Errorf("resolution must be between 1 and %d", spatial.MaxCellResolution)
		}

		repo, closeHistory, err := requireHistory()
		if err != nil {
			return err
		}
		defer closeHistory()

		cells, err := repo.CellCounts(cmd.Context(), id, res)
		if err != nil {
			return err
		}

		for _, c := range cells {
			fmt.Printf("%s\t%d\n", c.Cell, c.Count)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyExportCmd, historyPublishCmd, historyCellsCmd)

	historyListCmd.Flags().StringVar(&historyOptions.session, "session", "", "only batches of this session")
	historyListCmd.Flags().IntVar(&historyOptions.limit, "limit", 20, "maximum number of batches")

	for _, c := range []*cobra.Command{historyExportCmd, historyPublishCmd} {
		c.Flags().StringVarP(&historyOptions.format, "format", "f", string(export.CSV), "csv, json, geojson or kml")
	}

	historyExportCmd.Flags().StringVarP(&historyOptions.output, "output", "o", "-", "output file or directory, - for stdout")
	historyCellsCmd.Flags().IntVar(&historyOptions.resolution, "res", 5, "H3 resolution")
}
