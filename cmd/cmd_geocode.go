// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gimi9/geocode-web/export"
	"github.com/gimi9/geocode-web/geocode"
	"github.com/gimi9/geocode-web/history"
	"github.com/gimi9/geocode-web/viewer"
	"github.com/mattn/go-isatty"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

var geocodeOptions struct {
	format      string
	output      string
	chunkSize   int
	concurrency int
	save        bool
	trace       bool
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode [file...]",
	Short: "Geocodes the addresses of the given files, one per line, or stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(geocodeOptions.format)
		if err != nil {
			return err
		}

		text, err := readInput(args)
		if err != nil {
			return err
		}

		var trace io.Writer
		if geocodeOptions.trace {
			trace = os.Stderr
		}

		batch, err := geocodeAll(cmd.Context(), newGeocoder(trace), text)
		if err != nil {
			return err
		}

		summary := viewer.Summarize(batch)
		zap.L().Info("geocoded",
			zap.Int("located", batch.Located()),
			zap.String("time", summary.Text),
			zap.String("success", summary.SuccessLabel),
			zap.String("failed", summary.FailureLabel),
		)

		if geocodeOptions.save {
			if err := saveBatch(cmd.Context(), batch, text, exportName(args)); err != nil {
				return err
			}
		}

		return writeExport(format, exportName(args), geocodeOptions.output, batch.Results)
	},
}

// readInput concatenates the given files, or stdin when there are none.
func readInput(paths []string) (string, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", eris.Wrap(err, "reading stdin")
		}

		return decodeInput(data)
	}

	parts := make([]string, 0, len(paths))

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", eris.Wrapf(err, "reading %s", p)
		}

		text, err := decodeInput(data)
		if err != nil {
			return "", eris.Wrapf(err, "decoding %s", p)
		}

		parts = append(parts, strings.TrimRight(text, "\r\n"))
	}

	return strings.Join(parts, "\n"), nil
}

// decodeInput returns data as text. Input that is not valid UTF-8 is read
// as CP949, the usual encoding of Korean spreadsheets exported as text.
func decodeInput(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte(export.BOM))
	if utf8.Valid(data) {
		return string(data), nil
	}

	out, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return "", eris.Wrap(err, "decoding cp949")
	}

	return string(out), nil
}

// geocodeAll splits text into backend sized queries and runs them
// concurrently, merging the batches in input order.
func geocodeAll(ctx context.Context, g geocode.Geocoder, text string) (*geocode.Batch, error) {
	chunks := geocode.Chunk(geocode.NormalizeQuery(text), geocodeOptions.chunkSize)
	if len(chunks) == 0 {
		return nil, geocode.ErrEmptyQuery
	}

	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(chunks),
			progressbar.OptionSetDescription("Geocoding"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	batches := make([]*geocode.Batch, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(geocodeOptions.concurrency, 1))

	for i, chunk := range chunks {
		eg.Go(func() error {
			b, err := g.Geocode(egCtx, chunk)
			if err != nil {
				return eris.Wrapf(err, "geocoding chunk %d", i+1)
			}

			batches[i] = b

			if bar != nil {
				_ = bar.Add(1)
			}

			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := &geocode.Batch{}
	for _, b := range batches {
		merged.Merge(b)
	}

	return merged, nil
}

func saveBatch(ctx context.Context, batch *geocode.Batch, query, name string) error {
	repo, closeHistory, err := requireHistory()
	if err != nil {
		return err
	}
	defer closeHistory()

	id, err := repo.SaveBatch(ctx, &history.Record{
		Session: "cli",
		Source:  string(viewer.SourceQuery),
		Name:    name,
		Query:   query,
		Batch:   batch,
	})
	if err != nil {
		return err
	}

	zap.L().Info("stored batch", zap.Int64("id", id))

	return nil
}

// exportName is the base name of the first input file, or the default
// export name for stdin.
func exportName(args []string) string {
	if len(args) == 0 {
		return export.DefaultName
	}

	base := filepath.Base(args[0])

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// writeExport writes results to stdout when output is "-", to output when
// it is a file and to name plus the format extension inside output when it
// is a directory. Files start with a byte order mark.
func writeExport(format export.Format, name, output string, results []*geocode.Result) error {
	features := export.Features(results)

	if output == "-" || output == "" {
		return export.Write(os.Stdout, format, results, features)
	}

	d, err := export.Encode(format, name, results, features)
	if err != nil {
		return err
	}

	if info, err := os.Stat(output); err == nil && info.IsDir() {
		output = filepath.Join(output, d.Filename)
	}

	if err := os.WriteFile(output, d.Body, 0o644); err != nil {
		return eris.Wrapf(err, "writing %s", output)
	}

	zap.L().Info("exported", zap.String("path", output), zap.Int("results", len(results)))

	return nil
}

func init() {
	rootCmd.AddCommand(geocodeCmd)

	flags := geocodeCmd.Flags()
	flags.StringVarP(&geocodeOptions.format, "format", "f", string(export.CSV), "csv, json, geojson or kml")
	flags.StringVarP(&geocodeOptions.output, "output", "o", "-", "output file or directory, - for stdout")
	flags.IntVar(&geocodeOptions.chunkSize, "chunk-size", geocode.LinesLimit, "addresses per backend query")
	flags.IntVar(&geocodeOptions.concurrency, "concurrency", 4, "backend queries in flight")
	flags.BoolVar(&geocodeOptions.save, "save", false, "store the batch in the batch store")
	flags.BoolVar(&geocodeOptions.trace, "trace", false, "dump backend requests and responses to stderr")
}
