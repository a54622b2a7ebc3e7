package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xonecas/outline/internal/document"
	"github.com/xonecas/outline/internal/outline"
	"github.com/xonecas/outline/internal/selection"
	"github.com/xonecas/outline/internal/store"
	"github.com/xonecas/outline/internal/symbolfile"
	"github.com/xonecas/outline/internal/watch"
)

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <file>",
		Short: "Print the fully expanded outline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			t, err := a.tree(cmd.Context(), path)
			if err != nil {
				return err
			}
			return a.printer.Tree(t)
		},
	}
}

func newRootsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "roots <file>",
		Short: "List top-level symbols",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			t, err := a.tree(cmd.Context(), path)
			if err != nil {
				return err
			}
			return a.printer.Symbols(t, t.Roots())
		},
	}
}

func newChildrenCmd(a *app) *cobra.Command {
	var nth int
	cmd := &cobra.Command{
		Use:   "children <file> <qualified-name>",
		Short: "List the direct children of a symbol",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			t, err := a.tree(cmd.Context(), path)
			if err != nil {
				return err
			}
			parent, err := pick(t, args[1], nth)
			if err != nil {
				return err
			}
			return a.printer.Symbols(t, t.Children(parent))
		},
	}
	cmd.Flags().IntVar(&nth, "nth", 0, "which match to use when the name is duplicated (0-based)")
	return cmd
}

func newSelectCmd(a *app) *cobra.Command {
	var (
		nth     int
		context int
	)
	cmd := &cobra.Command{
		Use:   "select <file> <qualified-name>",
		Short: "Select a symbol's name inside its declaration and show it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			doc, err := document.Open(path)
			if err != nil {
				return err
			}
			t, err := a.tree(cmd.Context(), path)
			if err != nil {
				return err
			}
			s, err := pick(t, args[1], nth)
			if err != nil {
				return err
			}
			a.printer.SetContext(context)
			doc.SetRevealFunc(a.printer.RevealFunc(args[0]))
			_, err = selection.New(doc).Select(s)
			return err
		},
	}
	cmd.Flags().IntVar(&nth, "nth", 0, "which match to use when the name is duplicated (0-based)")
	cmd.Flags().IntVarP(&context, "context", "C", 2, "lines shown around the selection")
	return cmd
}

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Write the catalog as an " + symbolfile.Suffix + " document",
		Long:  "Writes the catalog in the format the file provider reads. Redirect it to <file>" + symbolfile.Suffix + " to pin an outline.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			cat, _, err := a.fetch(cmd.Context(), path)
			if err != nil {
				return err
			}
			return symbolfile.Encode(a.out, cat)
		},
	}
}

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Record catalogs in the snapshot store",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			return a.openStore()
		},
	}

	save := &cobra.Command{
		Use:   "save <file>",
		Short: "Fetch and record the catalog of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			cat, name, err := a.fetch(cmd.Context(), path)
			if err != nil {
				return err
			}
			id, err := a.store.Save(store.HashContent(data), name, cat)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "snapshot %d: %s (%d symbols, %s)\n", id, path, cat.Len(), name)
			return nil
		},
	}

	ls := &cobra.Command{
		Use:   "ls [file]",
		Short: "List recorded snapshots, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				p, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				path = p
			}
			snaps, err := a.store.List(path)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tPROVIDER\tSYMBOLS\tHASH\tFILE")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
					s.ID, s.Created.Format(time.DateTime), s.Provider, s.Count, s.Hash[:12], s.Path)
			}
			return tw.Flush()
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id int64
			if _, err := fmt.Sscan(args[0], &id); err != nil {
				return fmt.Errorf("invalid snapshot id %q", args[0])
			}
			return a.store.Delete(id)
		},
	}

	cmd.AddCommand(save, ls, rm)
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Reprint the outline whenever the file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := absPath(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := a.registry().Provider(a.cfg.Provider)
			w, err := watch.New(path, p, watch.WithDebounce(debounce), watch.WithDocument(document.New("")))
			if err != nil {
				return err
			}
			defer w.Stop()

			err = w.Run(ctx, func(u watch.Update) {
				fmt.Fprintf(a.out, "── %s  %s\n", args[0], time.Now().Format(time.TimeOnly))
				if u.Err != nil {
					fmt.Fprintf(a.out, "error: %v\n", u.Err)
					return
				}
				if err := a.printer.Tree(outline.New(u.Catalog)); err != nil {
					fmt.Fprintf(a.out, "error: %v\n", err)
				}
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before rebuilding")
	return cmd
}

func newProvidersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "providers [file]",
		Short: "List symbol providers, or show which one a file would use",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.registry()
			if len(args) == 0 {
				for _, name := range reg.List() {
					fmt.Fprintln(a.out, name)
				}
				return nil
			}
			src, err := reg.Resolve(a.cfg.Provider, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, src.Name())
			return nil
		},
	}
}
