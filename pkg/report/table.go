package report

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	isatty "github.com/mattn/go-isatty"
)

// ShouldColorize resolves a "yes", "no" or "auto" color setting.
func ShouldColorize(wantColor string) bool {
	switch wantColor {
	case "yes":
		return true
	case "no":
		return false
	default:
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
}

// Table is a two column key/value table.
type Table struct {
	writer table.Writer
	output io.Writer
}

func newTable(out io.Writer, fancy bool) *Table {
	t := table.NewWriter()

	colorOptions := table.ColorOptions{}
	box := table.StyleBoxDefault

	if fancy {
		colorOptions.Header = text.Colors{text.Italic}
		colorOptions.Border = text.Colors{text.FgHiBlack}
		colorOptions.Separator = text.Colors{text.FgHiBlack}
		box = table.StyleBoxRounded
	}

	t.SetStyle(table.Style{
		Box:     box,
		Color:   colorOptions,
		Format:  table.FormatOptions{},
		HTML:    table.DefaultHTMLOptions,
		Options: table.OptionsDefault,
		Title:   table.TitleOptionsDefault,
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	return &Table{writer: t, output: out}
}

func (t *Table) SetTitle(title string) {
	t.writer.SetTitle(title)
}

func (t *Table) SetHeaders(key, value string) {
	t.writer.AppendHeader(table.Row{key, value})
}

func (t *Table) AddRow(key, value string) {
	t.writer.AppendRow(table.Row{key, value})
}

func (t *Table) Render() {
	fmt.Fprintln(t.output, t.writer.Render())
}
