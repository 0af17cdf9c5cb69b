package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/mesh-intelligence/tabula/internal/datatype"
	"github.com/mesh-intelligence/tabula/internal/scheme"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// visibleColumns returns the attributes shown by default.
func visibleColumns(sc *scheme.Scheme) []*scheme.Attribute {
	var out []*scheme.Attribute
	for _, a := range sc.Attributes() {
		if !a.Meta().Hidden {
			out = append(out, a)
		}
	}
	return out
}

// renderEntries writes entries as a table. Terminals get a styled
// lipgloss table; pipes get tab-separated lines with a header.
func renderEntries(w io.Writer, sc *scheme.Scheme, entries []*scheme.Entry) {
	cols := visibleColumns(sc)
	headers := make([]string, len(cols)+1)
	headers[0] = "#"
	for i, a := range cols {
		headers[i+1] = a.Name()
		if a.IsIdentifier() {
			headers[i+1] += "*"
		}
	}
	rows := make([][]string, len(entries))
	for i, e := range entries {
		row := make([]string, len(cols)+1)
		row[0] = fmt.Sprint(sc.IndexOf(e))
		for j, a := range cols {
			row[j+1] = cell(datatype.Format(e.Value(a.Name())), a.Meta().Width)
		}
		rows[i] = row
	}

	if !isTerminal(w) {
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle.PaddingRight(2)
			case col == 0:
				return mutedStyle.PaddingRight(2).Align(lipgloss.Right)
			default:
				return cellStyle
			}
		}).
		Rows(rows...)
	fmt.Fprintln(w, tbl.Render())
}

// cell truncates s to width runes when width is positive.
func cell(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// renderAttributes writes a scheme's attribute list.
func renderAttributes(w io.Writer, sc *scheme.Scheme) {
	for i, a := range sc.Attributes() {
		flags := ""
		if a.IsIdentifier() {
			flags = " identifier"
		}
		if a.Meta().Hidden {
			flags += " hidden"
		}
		fmt.Fprintf(w, "%d\t%s\t%s%s\n", i, a.Name(), a.Type().Name(), flags)
	}
}

// schemeView is the JSON rendering of a scheme.
type schemeView struct {
	Name       string           `json:"name"`
	Location   string           `json:"location,omitempty"`
	Attributes []attributeView  `json:"attributes"`
	Entries    []map[string]any `json:"entries,omitempty"`
}

type attributeView struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Default    any         `json:"default,omitempty"`
	Identifier bool        `json:"identifier,omitempty"`
	Meta       scheme.Meta `json:"meta"`
}

func viewOf(sc *scheme.Scheme, location string, entries []*scheme.Entry) schemeView {
	v := schemeView{Name: sc.Name(), Location: location}
	for _, a := range sc.Attributes() {
		v.Attributes = append(v.Attributes, attributeView{
			Name:       a.Name(),
			Type:       a.Type().Name(),
			Default:    datatype.Encode(a.Default()),
			Identifier: a.IsIdentifier(),
			Meta:       a.Meta(),
		})
	}
	for _, e := range entries {
		row := make(map[string]any, len(v.Attributes))
		for _, a := range sc.Attributes() {
			row[a.Name()] = datatype.Encode(e.Value(a.Name()))
		}
		v.Entries = append(v.Entries, row)
	}
	return v
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
