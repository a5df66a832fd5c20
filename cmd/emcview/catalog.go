package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/banshee-data/emcview/internal/catalog"
)

func newCatalogCmd(o *rootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Record and inspect index layouts",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", filepath.Join("data", "catalog.db"), "path to the catalog database")

	openStore := func() (*catalog.Store, error) {
		if err := o.fsys.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
		return catalog.Open(dbPath)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save",
		Short: "Record the layout of the configured index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(o)
			if err != nil {
				return err
			}
			defer s.Close()

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := store.SaveSession(catalog.FromView(s.cfg.Path, s.cfg.BlacklistFile, s.view))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tFRAMES\tVALID\tCONFIG")
			for _, sess := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					sess.ID, humanize.Time(sess.CreatedAt), sess.TotalFrames, sess.ValidFrames, sess.ConfigPath)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show the layout of a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Session(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s\n", sess.ID)
			fmt.Fprintf(out, "config:  %s\n", sess.ConfigPath)
			fmt.Fprintf(out, "created: %s\n", sess.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "frames:  %d (%d excluded)\n", sess.TotalFrames, sess.ExcludedFrames())
			if sess.BlacklistPath != "" {
				fmt.Fprintf(out, "blacklist: %s\n", sess.BlacklistPath)
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tFIRST\tFRAMES\tGEOMETRY\tPATH")
			for _, sp := range sess.Sources {
				fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%s\n", sp.Source, sp.First, sp.Count, sp.GeometryIndex, sp.Path)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			return store.DeleteSession(args[0])
		},
	})

	return cmd
}
