package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"git.home.luguber.info/inful/assetmanifest/internal/config"
	"git.home.luguber.info/inful/assetmanifest/internal/eventstore"
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Output string `arg:"" optional:"" help:"Only list this manifest path" type:"path"`
	Limit  int    `short:"n" help:"Number of records to show" default:"10"`
	Diff   bool   `short:"d" help:"Show what changed against the previous record of the same file"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return errors.ConfigError("manifest history is not enabled").WithContext("config", root.Config).Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	limit := h.Limit
	if h.Diff && limit > 0 {
		// One extra record to diff the oldest listed one against.
		limit++
	}
	records, err := store.List(g.context(), h.Output, limit)
	if err != nil {
		return err
	}
	return writeHistory(g.out(), records, h.Limit, h.Diff)
}

func writeHistory(w io.Writer, records []eventstore.Record, limit int, diff bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, r := range records {
		if limit > 0 && i >= limit {
			break
		}
		status := "complete"
		if !r.Complete {
			status = "partial"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d entries\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.PassID, r.OutputPath, r.Entries, status, r.Hash)
		if !diff {
			continue
		}
		prev := previousOf(records[i+1:], r.OutputPath)
		if err := writeDelta(tw, prev, r); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func previousOf(older []eventstore.Record, outputPath string) *eventstore.Record {
	for i := range older {
		if older[i].OutputPath == outputPath {
			return &older[i]
		}
	}
	return nil
}

func writeDelta(w io.Writer, prev *eventstore.Record, cur eventstore.Record) error {
	next, err := cur.Manifest()
	if err != nil {
		return err
	}
	var d eventstore.Delta
	if prev == nil {
		d = eventstore.Diff(nil, next)
	} else {
		old, err := prev.Manifest()
		if err != nil {
			return err
		}
		d = eventstore.Diff(old, next)
	}
	if d.Empty() {
		_, _ = fmt.Fprintln(w, "\t(unchanged)")
		return nil
	}
	for _, e := range d.Added {
		_, _ = fmt.Fprintf(w, "\t+ %s\t%s\n", e.Name, e.Value)
	}
	for _, c := range d.Changed {
		_, _ = fmt.Fprintf(w, "\t~ %s\t%s -> %s\n", c.Name, c.Previous, c.Current)
	}
	for _, e := range d.Removed {
		_, _ = fmt.Fprintf(w, "\t- %s\t%s\n", e.Name, e.Value)
	}
	return nil
}
