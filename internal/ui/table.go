package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/muurk/upnpdiscover/internal/description"
	"github.com/muurk/upnpdiscover/internal/discovery"
	"github.com/muurk/upnpdiscover/internal/ssdp"
)

// Table renders rows under headers. Columns after the second are muted.
func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(PrimaryColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col >= 2:
				return TableMutedCellStyle
			default:
				return TableCellStyle
			}
		}).
		Render()
}

// EntryTable renders SSDP entries, with expiry relative to now
func EntryTable(entries []*ssdp.Entry, now time.Time) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.SearchTarget(),
			orDash(e.Location()),
			orDash(e.Server()),
			expiresIn(e, now),
		})
	}
	return Table([]string{"SEARCH TARGET", "LOCATION", "SERVER", "EXPIRES"}, rows) + "\n" +
		FooterStyle.Render(countLine(len(entries), "entry", "entries"))
}

// DeviceTable renders device summaries
func DeviceTable(devices []*discovery.Device) string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{
			d.Name(),
			orDash(d.Manufacturer),
			orDash(d.ModelName),
			orDash(ShortType(d.DeviceType)),
			d.Location,
		})
	}
	return Table([]string{"NAME", "MANUFACTURER", "MODEL", "TYPE", "LOCATION"}, rows) + "\n" +
		FooterStyle.Render(countLine(len(devices), "device", "devices"))
}

// DescriptionTree renders a description as an indented outline with keys
// in sorted order
func DescriptionTree(d description.Description) string {
	if d.Empty() {
		return FooterStyle.Render("(empty description)")
	}
	var b strings.Builder
	writeTree(&b, map[string]any(d), 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeTree(b *strings.Builder, v any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := t[k]
			if s, ok := child.(string); ok {
				fmt.Fprintf(b, "%s%s %s\n", indent, HeaderParamKeyStyle.UnsetPaddingLeft().Render(k+":"), s)
				continue
			}
			fmt.Fprintf(b, "%s%s\n", indent, HeaderParamKeyStyle.UnsetPaddingLeft().Render(k+":"))
			writeTree(b, child, depth+1)
		}
	case []any:
		for _, item := range t {
			fmt.Fprintf(b, "%s-\n", indent)
			writeTree(b, item, depth+1)
		}
	default:
		fmt.Fprintf(b, "%s%v\n", indent, t)
	}
}

// ShortType trims the "urn:schemas-upnp-org:device:" prefix from a device
// or service type
func ShortType(t string) string {
	for _, kind := range []string{":device:", ":service:"} {
		if i := strings.Index(t, kind); i >= 0 {
			return t[i+len(kind):]
		}
	}
	return t
}

func expiresIn(e *ssdp.Entry, now time.Time) string {
	exp, ok := e.Expires()
	if !ok {
		return "-"
	}
	left := exp.Sub(now).Round(time.Second)
	if left <= 0 {
		return "expired"
	}
	return left.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func countLine(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}
