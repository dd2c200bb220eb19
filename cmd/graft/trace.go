package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/graft/manifest"
	"github.com/chazu/graft/trace"
)

var (
	traceFile  string
	traceLimit int
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Print recorded calls.",
	Long: "`trace` reads the calls recorded by a cbor or sqlite sink. " +
		"Without --file it uses the sink configured in graft.toml.",
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, path := cfg.Trace.Sink, cfg.TracePath()
		if traceFile != "" {
			path = traceFile
			sink = manifest.SinkSQLite
			if ext := strings.ToLower(filepath.Ext(path)); ext == ".cbor" {
				sink = manifest.SinkCBOR
			}
		}

		var events []trace.Event
		switch sink {
		case manifest.SinkCBOR:
			all, err := trace.ReadCBORFile(path)
			if err != nil {
				return err
			}
			// newest first, like the SQLite query
			for i := len(all) - 1; i >= 0 && (traceLimit <= 0 || len(events) < traceLimit); i-- {
				events = append(events, all[i])
			}
		case manifest.SinkSQLite:
			db, err := trace.OpenSQLite(cmd.Context(), path, 0)
			if err != nil {
				return err
			}
			defer db.Close()
			events, err = db.Query(cmd.Context(), traceLimit)
			if err != nil {
				return err
			}
		default:
			return errors.New("no persistent trace sink configured; pass --file")
		}
		return printEvents(cmd.OutOrStdout(), events)
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVarP(&traceFile, "file", "f", "", "trace file (.cbor or SQLite database)")
	traceCmd.Flags().IntVarP(&traceLimit, "limit", "l", 20, "number of calls to print, 0 for all")
}

func printEvents(out io.Writer, events []trace.Event) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tTARGET\tKIND\tARGS\tDURATION\tERROR")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.Start.Format(time.RFC3339Nano), ev.Target, ev.Kind,
			strings.Join(ev.Args, ", "), ev.Duration, ev.Err)
	}
	return w.Flush()
}
