package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns align right; wide
// free-text columns wrap at maxWidth; paint colours a cell from its value
// when the output is a terminal.
type column struct {
	title    string
	numeric  bool
	maxWidth int
	paint    func(cell string) text.Colors
}

func col(title string) column { return column{title: title} }

func numCol(title string) column { return column{title: title, numeric: true} }

func wideCol(title string, width int) column { return column{title: title, maxWidth: width} }

func statusCol(title string) column { return column{title: title, paint: bookStatusColors} }

func flagsCol(title string) column { return column{title: title, paint: bookFlagColors} }

func renderTable(columns []column, rows [][]string, colorize bool) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c.title
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, c := range columns {
		cfg := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if c.numeric {
			cfg.Align = text.AlignRight
		}
		if c.maxWidth > 0 {
			cfg.WidthMax = c.maxWidth
			cfg.WidthMaxEnforcer = text.WrapSoft
		}
		if colorize && c.paint != nil {
			cfg.Transformer = paintTransformer(c.paint)
		}
		configs = append(configs, cfg)
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

func paintTransformer(paint func(string) text.Colors) text.Transformer {
	return func(val any) string {
		cell := fmt.Sprint(val)
		if colors := paint(cell); len(colors) > 0 {
			return colors.Sprint(cell)
		}
		return cell
	}
}

// bookStatusColors matches the status palette used by `pagepass status`.
func bookStatusColors(status string) text.Colors {
	switch status {
	case "available":
		return text.Colors{text.FgGreen}
	case "borrowed":
		return text.Colors{text.FgBlue}
	case "in_transit":
		return text.Colors{text.FgYellow}
	case "off_shelf":
		return text.Colors{text.Faint}
	default:
		return nil
	}
}

func bookFlagColors(flags string) text.Colors {
	if containsFlag(flags, "overdue") {
		return text.Colors{text.FgRed, text.Bold}
	}
	if containsFlag(flags, "recalled") || containsFlag(flags, "shelve-off") {
		return text.Colors{text.FgYellow}
	}
	return nil
}

func batchResultColors(result string) text.Colors {
	switch result {
	case "closed":
		return text.Colors{text.FgGreen}
	case "error":
		return text.Colors{text.FgRed}
	default:
		return nil
	}
}
