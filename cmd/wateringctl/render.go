package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/wateringctl/wateringctl/pkg/device"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func renderEntries(entries []device.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		kind, size := "file", humanize.IBytes(uint64(max(e.Size, 0)))
		if e.IsDirectory {
			kind, size = "dir", "-"
		}
		rows = append(rows, []string{e.BaseName(), kind, size})
	}
	return renderTable([]string{"Name", "Type", "Size"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
}

func renderValves(valves []device.Valve, colorize bool) string {
	rows := make([][]string, 0, len(valves))
	for _, v := range valves {
		state := "off"
		switch {
		case v.Disabled:
			state = colored("disabled", ansiYellow, colorize)
		case v.State:
			state = colored("on", ansiGreen, colorize)
		}
		rows = append(rows, []string{fmt.Sprint(v.Identifier), v.Alias, state, v.Timer})
	}
	return renderTable([]string{"ID", "Alias", "State", "Timer"}, rows, []columnAlignment{alignRight})
}

func renderDay(day device.Weekday, d device.Day, colorize bool) string {
	rows := make([][]string, 0, len(d.Intervals))
	for _, iv := range d.Intervals {
		if iv.IsEmpty() {
			continue
		}
		state := ""
		switch {
		case iv.Disabled:
			state = colored("disabled", ansiYellow, colorize)
		case iv.Active:
			state = colored("active", ansiGreen, colorize)
		}
		rows = append(rows, []string{
			fmt.Sprint(iv.Index),
			iv.Start,
			iv.End,
			iv.Duration().String(),
			fmt.Sprint(iv.Identifier),
			state,
		})
	}
	title := string(day)
	if d.Disabled {
		title += " (disabled)"
	}
	return title + "\n" + renderTable(
		[]string{"#", "Start", "End", "Duration", "Valve", "State"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	)
}

func renderEvent(ev device.Event, colorize bool) string {
	line := string(ev.Type)
	if len(ev.Args) > 0 {
		line += " " + strings.Join(ev.Args, " ")
	}
	return colored(line, ansiBlue, colorize)
}

func colored(s, color string, colorize bool) string {
	if !colorize {
		return s
	}
	return color + s + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newProgress returns a percent sink drawing a bar on w, or a no-op sink
// when w is not a terminal.
func newProgress(w io.Writer, description string) (func(percent int), func()) {
	if !shouldColorize(w) {
		return func(int) {}, func() {}
	}
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	set := func(percent int) {
		if percent < 0 {
			return
		}
		_ = bar.Set(percent)
	}
	done := func() {
		_ = bar.Finish()
	}
	return set, done
}
