package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tabula/internal/command"
	"github.com/mesh-intelligence/tabula/internal/scheme"
)

func newSchemeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheme",
		Short: "Create, inspect and delete schemes",
	}
	cmd.AddCommand(
		newSchemeCreateCmd(flags),
		newSchemeListCmd(flags),
		newSchemeShowCmd(flags),
		newSchemeDeleteCmd(flags),
		newSchemeLoadCmd(flags),
	)
	return cmd
}

func newSchemeCreateCmd(flags *rootFlags) *cobra.Command {
	var (
		attrs      []string
		identifier string
		location   string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty scheme",
		Example: `  tabula scheme create Items --attr Id:Integer --attr Name:Text --id Id
  tabula scheme create Loot --attr "Item:Reference<Items.Id>"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]scheme.AttributeSpec, 0, len(attrs))
			for _, a := range attrs {
				spec, err := parseAttr(a)
				if err != nil {
					return userError(err)
				}
				spec.Identifier = spec.Name == identifier
				specs = append(specs, spec)
			}

			ctx := cmd.Context()
			s, err := openSession(ctx, flags)
			if err != nil {
				return err
			}
			defer s.close()

			sc, err := apply(ctx, s, command.CreateScheme(s.cmdCtx, args[0], location, specs...))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created scheme %s with %d attributes\n", sc.Name(), len(sc.Attributes()))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "attribute as Name:Type[=default] (repeatable)")
	cmd.Flags().StringVar(&identifier, "id", "", "attribute to designate as identifier")
	cmd.Flags().StringVar(&location, "location", "", "manifest location (default: <slug>.jsonl)")
	return cmd
}

func newSchemeListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded schemes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				views := []schemeView{}
				for _, sc := range s.reg.Schemes() {
					loc, _ := s.reg.Location(sc.Name())
					views = append(views, viewOf(sc, loc, nil))
				}
				return writeJSON(out, views)
			}
			for _, sc := range s.reg.Schemes() {
				loc, _ := s.reg.Location(sc.Name())
				fmt.Fprintf(out, "%s\t%d attributes\t%d entries\t%s\n", sc.Name(), len(sc.Attributes()), sc.Len(), loc)
			}
			return nil
		},
	}
}

func newSchemeShowCmd(flags *rootFlags) *cobra.Command {
	var (
		sortBy string
		desc   bool
		attrs  bool
	)
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a scheme's entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer s.close()

			sc, err := s.scheme(args[0])
			if err != nil {
				return err
			}
			entries, err := sc.GetEntries(parseSort(sortBy, desc))
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			if flags.jsonMode {
				loc, _ := s.reg.Location(sc.Name())
				return writeJSON(out, viewOf(sc, loc, entries))
			}
			if attrs {
				renderAttributes(out, sc)
				return nil
			}
			renderEntries(out, sc, entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&sortBy, "sort", "", "attribute to sort by (prefix with - for descending)")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().BoolVar(&attrs, "attributes", false, "list attributes instead of entries")
	return cmd
}

func newSchemeDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a scheme and its stored data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, flags)
			if err != nil {
				return err
			}
			defer s.close()

			if _, err := s.scheme(args[0]); err != nil {
				return err
			}
			if _, err := apply(ctx, s, command.DeleteScheme(s.cmdCtx, args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted scheme %s\n", args[0])
			return nil
		},
	}
}

func newSchemeLoadCmd(flags *rootFlags) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "load <file.jsonl>",
		Short: "Load a scheme from a file written by export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, flags)
			if err != nil {
				return err
			}
			defer s.close()

			sc, err := s.store.ReadScheme(ctx, args[0])
			if err != nil {
				return userError(err)
			}
			for _, err := range sc.ResolveReferences(ctx, s.cmdCtx.Env) {
				s.logger.Warn("unresolved reference in loaded scheme", zap.Error(err))
			}
			sc.MarkDirty()
			if _, err := apply(ctx, s, command.LoadScheme(s.cmdCtx, sc, "", overwrite)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded scheme %s (%d entries)\n", sc.Name(), sc.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace a loaded scheme of the same name")
	return cmd
}
