package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

type tableSpec struct {
	headers []string
	aligns  []columnAlignment
	rows    [][]string
	// footer is rendered below the rows when non-empty.
	footer []string
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	return tableSpec{headers: headers, rows: rows, aligns: aligns}.render()
}

func (s tableSpec) render() string {
	columns := len(s.headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault

	tw.AppendHeader(toRow(s.headers, columns))
	for _, row := range s.rows {
		tw.AppendRow(toRow(row, columns))
	}
	if len(s.footer) > 0 {
		tw.AppendFooter(toRow(s.footer, columns))
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(s.aligns) && s.aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignFooter: align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

func toRow(values []string, columns int) table.Row {
	row := make(table.Row, columns)
	for i := range columns {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
