// fieldproc drives the template field engine from the command line: generate
// a field mapping for a document, replace fields from a filled-in mapping,
// clear leftover placeholders, or serve the engine as MCP tools over stdio.
//
// Documents are opened through the in-memory reference engine; deployments
// with a real rendering engine build their own binary around the same
// commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pdffield/editor"
	"pdffield/engine"
	"pdffield/extract"
	"pdffield/mapping"
	"pdffield/mcpserver"
	"pdffield/memdoc"
	"pdffield/observability"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldproc: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	eng   engine.Engine
	log   observability.Logger
	zlog  *zap.Logger
	debug bool
}

func newRootCmd() *cobra.Command {
	a := &app{eng: memdoc.New()}

	root := &cobra.Command{
		Use:           "fieldproc",
		Short:         "Locate and replace coordinate-keyed template fields in documents",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zlog, err := observability.NewZapLogger(a.debug)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.zlog = zlog
			a.log = observability.Zap(zlog)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.zlog != nil {
				_ = a.zlog.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newReplaceCmd(a))
	root.AddCommand(newClearCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

func newGenerateCmd(a *app) *cobra.Command {
	var (
		output      string
		filterColor string
	)
	cmd := &cobra.Command{
		Use:   "generate <document>",
		Short: "Write a mapping file listing every template field and its key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := editor.Open(a.eng, args[0], editor.WithLogger(a.log))
			if err != nil {
				return err
			}
			defer session.Close()

			runs, err := session.FindTemplates(extract.Options{
				Color:          filterColor,
				SortByPosition: true,
			})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				return fmt.Errorf("no template fields found in %s", args[0])
			}
			if err := mapping.Write(output, runs); err != nil {
				return err
			}

			unique := make(map[string]struct{})
			for _, run := range runs {
				unique[run.Text] = struct{}{}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d fields (%d unique texts)\n", output, len(runs), len(unique))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "mapping.yaml", "mapping file to write")
	cmd.Flags().StringVar(&filterColor, "filter-color", "", `keep only fields of a color class ("red")`)
	return cmd
}

func newReplaceCmd(a *app) *cobra.Command {
	var mappingPath string
	cmd := &cobra.Command{
		Use:   "replace <document>",
		Short: "Replace template fields using a filled-in mapping file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			replacements, err := mapping.Load(mappingPath)
			if err != nil {
				return err
			}
			if len(replacements) == 0 {
				return fmt.Errorf("mapping file %s has no replacement values", mappingPath)
			}

			session, err := editor.Open(a.eng, args[0], editor.WithLogger(a.log))
			if err != nil {
				return err
			}
			defer session.Close()

			report, err := session.ReplaceTemplates(replacements, engine.RGB{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d of %d replacements\n", report.Applied, report.Requested)
			for _, skipped := range report.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped %s: %s\n", skipped.Key, skipped.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "mapping.yaml", "mapping file with replacement values")
	return cmd
}

func newClearCmd(a *app) *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "clear <document>",
		Short: "Remove unresolved placeholders left in the document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := editor.Open(a.eng, args[0], editor.WithLogger(a.log))
			if err != nil {
				return err
			}
			defer session.Close()

			count, err := session.RemoveTemplates(pattern)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d placeholder runs\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "placeholder pattern (default {{...}})")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine as MCP tools on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := mcpserver.New(a.eng, mcpserver.WithLogger(a.log))
			return srv.Run(cmd.Context())
		},
	}
}
