package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/command"
	"github.com/mesh-intelligence/tabula/internal/scheme"
	"github.com/mesh-intelligence/tabula/pkg/types"
)

func newEntryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Add, edit, delete and reorder entries",
		Long: "Entries are addressed by their position as printed by 'scheme show',\n" +
			"or by identifier value with --id.",
	}
	cmd.AddCommand(
		newEntryAddCmd(flags),
		newEntrySetCmd(flags),
		newEntryDeleteCmd(flags),
		newEntryMoveCmd(flags),
		newEntrySwapCmd(flags),
	)
	return cmd
}

// findEntry resolves ref as an identifier value when byID is set and as
// an index otherwise.
func findEntry(ctx context.Context, s *session, sc *scheme.Scheme, ref string, byID bool) (*scheme.Entry, error) {
	if byID {
		a := sc.IdentifierAttribute()
		if a == nil {
			return nil, userError(fmt.Errorf("%w: %s has no identifier attribute", types.ErrNotIdentifier, sc.Name()))
		}
		value, err := a.Type().Convert(ctx, s.cmdCtx.Env, ref)
		if err != nil {
			return nil, userError(err)
		}
		e, err := sc.FindEntry(a.Name(), value)
		if err != nil {
			return nil, userError(err)
		}
		return e, nil
	}
	i, err := parseIndex(ref)
	if err != nil {
		return nil, userError(err)
	}
	e, err := sc.EntryAt(i)
	if err != nil {
		return nil, userError(err)
	}
	return e, nil
}

func newEntryAddCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "add <scheme> [attribute=value ...]",
		Short:   "Append an entry",
		Example: "  tabula entry add Items Id=3 Name=Shield",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(args[1:])
			if err != nil {
				return userError(err)
			}
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				e, err := apply(cmd.Context(), s, command.AddEntry(s.cmdCtx, sc, values))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added entry %d to %s\n", sc.IndexOf(e), sc.Name())
				return nil
			})
		},
	}
}

func newEntrySetCmd(flags *rootFlags) *cobra.Command {
	var byID bool
	cmd := &cobra.Command{
		Use:   "set <scheme> <entry> <attribute>=<value>",
		Short: "Set one value; identifier changes follow into references",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			assignment, err := parseAssignments(args[2:])
			if err != nil {
				return userError(err)
			}
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				e, err := findEntry(cmd.Context(), s, sc, args[1], byID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for attr, value := range assignment {
					if id := sc.IdentifierAttribute(); id != nil && id.Name() == attr {
						n, err := apply(cmd.Context(), s, command.UpdateIdentifier(s.cmdCtx, sc, e.Value(attr), value))
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "updated %s.%s; %d references followed\n", sc.Name(), attr, n)
						continue
					}
					if _, err := apply(cmd.Context(), s, command.SetValue(s.cmdCtx, sc, e, attr, value)); err != nil {
						return err
					}
					fmt.Fprintf(out, "set %s.%s\n", sc.Name(), attr)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "address the entry by identifier value")
	return cmd
}

func newEntryDeleteCmd(flags *rootFlags) *cobra.Command {
	var byID bool
	cmd := &cobra.Command{
		Use:   "delete <scheme> <entry>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				e, err := findEntry(cmd.Context(), s, sc, args[1], byID)
				if err != nil {
					return err
				}
				i, err := apply(cmd.Context(), s, command.DeleteEntry(s.cmdCtx, sc, e))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted entry %d from %s\n", i, sc.Name())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "address the entry by identifier value")
	return cmd
}

func newEntryMoveCmd(flags *rootFlags) *cobra.Command {
	var byID bool
	cmd := &cobra.Command{
		Use:   "move <scheme> <entry> <index>",
		Short: "Move an entry, shifting the ones between",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseIndex(args[2])
			if err != nil {
				return userError(err)
			}
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				e, err := findEntry(cmd.Context(), s, sc, args[1], byID)
				if err != nil {
					return err
				}
				from, err := apply(cmd.Context(), s, command.MoveEntry(s.cmdCtx, sc, e, target))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "moved entry %d to %d\n", from, target)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&byID, "id", false, "address the entry by identifier value")
	return cmd
}

func newEntrySwapCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "swap <scheme> <i> <j>",
		Short: "Exchange two entries",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[1])
			if err != nil {
				return userError(err)
			}
			j, err := parseIndex(args[2])
			if err != nil {
				return userError(err)
			}
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				if _, err := apply(cmd.Context(), s, command.SwapEntries(s.cmdCtx, sc, i, j)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "swapped entries %d and %d\n", i, j)
				return nil
			})
		},
	}
}
