package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tabula/internal/command"
	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
)

func newAttrCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attr",
		Short: "Add, rename, convert and remove attributes",
	}
	cmd.AddCommand(
		newAttrAddCmd(flags),
		newAttrRenameCmd(flags),
		newAttrConvertCmd(flags),
		newAttrRemoveCmd(flags),
		newAttrIdentifierCmd(flags),
		newAttrMoveCmd(flags),
	)
	return cmd
}

// withScheme opens a session, looks up the named scheme and runs fn.
func withScheme(cmd *cobra.Command, flags *rootFlags, name string, fn func(s *session, sc *scheme.Scheme) error) error {
	s, err := openSession(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer s.close()
	sc, err := s.scheme(name)
	if err != nil {
		return err
	}
	return fn(s, sc)
}

func newAttrAddCmd(flags *rootFlags) *cobra.Command {
	var (
		def        string
		identifier bool
		meta       scheme.Meta
	)
	cmd := &cobra.Command{
		Use:   "add <scheme> <name> <type>",
		Short: "Add an attribute; existing entries take its default",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := datatype.ParseType(args[2])
			if err != nil {
				return userError(err)
			}
			spec := scheme.AttributeSpec{Name: args[1], Type: t, Identifier: identifier, Meta: meta}
			if cmd.Flags().Changed("default") {
				spec.Default = def
			}
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				a, err := apply(cmd.Context(), s, command.AddAttribute(s.cmdCtx, sc, spec))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s.%s %s\n", sc.Name(), a.Name(), a.Type().Name())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&def, "default", "", "default value")
	cmd.Flags().BoolVar(&identifier, "identifier", false, "designate as the identifier")
	cmd.Flags().StringVar(&meta.Description, "description", "", "description")
	cmd.Flags().IntVar(&meta.Width, "width", 0, "display width")
	cmd.Flags().BoolVar(&meta.Hidden, "hidden", false, "hide from show")
	return cmd
}

func newAttrRenameCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <scheme> <old> <new>",
		Short: "Rename an attribute and every reference that targets it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				if _, err := apply(cmd.Context(), s, command.RenameAttribute(s.cmdCtx, sc, args[1], args[2])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "renamed %s.%s to %s\n", sc.Name(), args[1], args[2])
				return nil
			})
		},
	}
}

func newAttrConvertCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <scheme> <name> <type>",
		Short: "Change an attribute's type, converting every value",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := datatype.ParseType(args[2])
			if err != nil {
				return userError(err)
			}
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				a, err := apply(cmd.Context(), s, command.ConvertAttributeType(s.cmdCtx, sc, args[1], t))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "converted %s.%s to %s\n", sc.Name(), a.Name(), a.Type().Name())
				return nil
			})
		},
	}
}

func newAttrRemoveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <scheme> <name>",
		Short: "Remove an attribute and its values",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				if _, err := apply(cmd.Context(), s, command.RemoveAttribute(s.cmdCtx, sc, args[1])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s.%s\n", sc.Name(), args[1])
				return nil
			})
		},
	}
}

func newAttrIdentifierCmd(flags *rootFlags) *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "identifier <scheme> [name]",
		Short: "Designate the identifier attribute",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			if name == "" && !clear {
				return userError(fmt.Errorf("name an attribute or pass --clear"))
			}
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				prev, err := apply(cmd.Context(), s, command.SetIdentifier(s.cmdCtx, sc, name))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case name == "":
					fmt.Fprintf(out, "cleared identifier of %s\n", sc.Name())
				case prev == "" || prev == name:
					fmt.Fprintf(out, "identifier of %s is %s\n", sc.Name(), name)
				default:
					fmt.Fprintf(out, "identifier of %s moved from %s to %s\n", sc.Name(), prev, name)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the identifier designation")
	return cmd
}

func newAttrMoveCmd(flags *rootFlags) *cobra.Command {
	var swap bool
	cmd := &cobra.Command{
		Use:   "move <scheme> <name> <index>",
		Short: "Move an attribute to a new column position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseIndex(args[2])
			if err != nil {
				return userError(err)
			}
			return withScheme(cmd, flags, args[0], func(s *session, sc *scheme.Scheme) error {
				if swap {
					from := sc.AttributeIndex(args[1])
					if from < 0 {
						_, err := sc.Attribute(args[1])
						return userError(err)
					}
					_, err := apply(cmd.Context(), s, command.SwapAttributes(s.cmdCtx, sc, from, target))
					return err
				}
				_, err := apply(cmd.Context(), s, command.MoveAttribute(s.cmdCtx, sc, args[1], target))
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&swap, "swap", false, "swap with the attribute at index instead of shifting")
	return cmd
}
