package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/command"
	"github.com/mesh-intelligence/tabula/internal/logging"
	"github.com/mesh-intelligence/tabula/internal/scheme"
)

func newImportCmd(flags *rootFlags) *cobra.Command {
	var create bool
	cmd := &cobra.Command{
		Use:   "import <scheme> <rows.jsonl>",
		Short: "Append rows from a JSONL file, inferring types for new columns",
		Long: "Each line of the file is a JSON object mapping attribute names to values.\n" +
			"Columns the scheme lacks are added with a type inferred from their values.\n" +
			"Either every row is imported or none is.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, flags)
			if err != nil {
				return err
			}
			defer s.close()

			columns, rows, err := s.store.ReadRows(args[1])
			if err != nil {
				return userError(err)
			}

			var sc *scheme.Scheme
			if create && !s.reg.SchemeExists(args[0]) {
				sc, err = apply(ctx, s, command.CreateScheme(s.cmdCtx, args[0], ""))
			} else {
				sc, err = s.scheme(args[0])
			}
			if err != nil {
				return err
			}

			progress := logging.NewProgressLogger(s.logger)
			n, err := apply(ctx, s, command.ImportEntries(s.cmdCtx, sc, columns, rows, progress))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries into %s\n", n, sc.Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "create the scheme when it does not exist")
	return cmd
}

func newExportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export <scheme> <out.jsonl>",
		Short: "Write a scheme and its entries to a JSONL file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				if err := s.store.ExportJSONL(cmd.Context(), sc, args[1]); err != nil {
					return sysError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d entries from %s to %s\n", sc.Len(), sc.Name(), args[1])
				return nil
			})
		},
	}
}
