// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/stacksnap/internal/audit"
	"github.com/tomtom215/stacksnap/internal/container"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/snapshot"
	"github.com/tomtom215/stacksnap/internal/store"
	"github.com/tomtom215/stacksnap/internal/triplestore"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "snapctl",
		Short:         "Offline debugging tools for Stacksnap snapshots",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newBudgetCmd(),
		newNQuadsCmd(),
		newManifestCmd(),
		newChecksumCmd(),
		newPlanCmd(),
		newAuditCmd(),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newBudgetCmd() *cobra.Command {
	var ceiling, interval int
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Compute the container poll attempt budget for a request ceiling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := container.ComputeBudget(ceiling, interval)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), b)
		},
	}
	cmd.Flags().IntVar(&ceiling, "ceiling", 0, "execution ceiling in seconds (0 = unlimited)")
	cmd.Flags().IntVar(&interval, "interval", container.DefaultSleepIntervalSeconds, "sleep interval in seconds")
	return cmd
}

func newNQuadsCmd() *cobra.Command {
	var stats bool
	cmd := &cobra.Command{
		Use:   "nquads [results.json]",
		Short: "Convert a saved SPARQL JSON result set to N-Quads",
		Long: `Reads a SPARQL 1.1 JSON SELECT result with ?s ?p ?o ?g bindings from
the named file, or stdin when no file is given, and writes N-Quads to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close() //nolint:errcheck // read-only
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			text, st, err := triplestore.ConvertToNQuads(data)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(cmd.OutOrStdout(), text); err != nil {
				return err
			}
			if stats {
				return writeJSON(cmd.ErrOrStderr(), st)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "print conversion statistics to stderr")
	return cmd
}

func newManifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect bag manifests",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <manifest.json>",
		Short: "Parse and validate a bag manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m, err := snapshot.ParseAndValidateManifest(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "manifest ok: %s, %d content types, %d mapping entries\n",
				m.SnapshotMachineName, len(m.Files.ContentFiles), len(m.Mapping))
			return nil
		},
	})
	return cmd
}

func newChecksumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checksum",
		Short: "Work with SHA-256 checksum files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <archive> <checksum-file>",
		Short: "Verify an archive against its checksum file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := snapshot.VerifyFile(snapshot.OSFS{}, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  OK\n", digest)
			return nil
		},
	})
	return cmd
}

func newPlanCmd() *cobra.Command {
	var (
		owner, machine, bundle string
		root, subpath, baseURL string
		ts                     int64
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the storage paths a snapshot component would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if owner == "" || machine == "" {
				return fmt.Errorf("--owner and --machine are required")
			}
			if ts == 0 {
				ts = time.Now().Unix()
			}
			b := models.ParseBundle(bundle)
			if !b.IsRegistered() {
				b, _ = models.BundleForTypeTag(bundle)
			}
			if !b.IsRegistered() {
				return fmt.Errorf("unknown bundle %q", bundle)
			}
			storage := snapshot.Storage{PrivateRoot: root, SnapshotSubpath: subpath, PublicURLBase: baseURL}
			p, err := storage.SafePlan(owner, machine, ts, b)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "snapshot owner")
	cmd.Flags().StringVar(&machine, "machine", "", "component machine name")
	cmd.Flags().StringVar(&bundle, "bundle", string(models.BundleMariaDB), "bundle name or type tag")
	cmd.Flags().StringVar(&root, "private-root", "/data/private", "private storage root")
	cmd.Flags().StringVar(&subpath, "subpath", "snapshots", "snapshot directory under the private root")
	cmd.Flags().StringVar(&baseURL, "public-url", "", "public URL base for bag downloads")
	cmd.Flags().Int64Var(&ts, "timestamp", 0, "unix timestamp (default now)")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var (
		storePath, root, subpath string
		grace                    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run a read-only integrity audit against an entity store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := store.Open(store.Config{Path: storePath})
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // read-only use

			storage := snapshot.Storage{PrivateRoot: root, SnapshotSubpath: subpath}
			auditor, err := audit.New(db, storage, snapshot.OSFS{}, audit.Config{GracePeriod: grace})
			if err != nil {
				return err
			}
			report, res := auditor.Audit(context.Background())
			if res.Failed() {
				return res.Err()
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "/data/stacksnap/store", "entity store directory")
	cmd.Flags().StringVar(&root, "private-root", "/data/private", "private storage root")
	cmd.Flags().StringVar(&subpath, "subpath", "snapshots", "snapshot directory under the private root")
	cmd.Flags().DurationVar(&grace, "grace", audit.DefaultGracePeriod, "age below which pseudo snapshots are kept")
	return cmd
}
