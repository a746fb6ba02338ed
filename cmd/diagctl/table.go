package main

import (
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"diagflow/pkg/models"
)

func filterKind(msgs []*models.Message, kind models.Kind) []*models.Message {
	out := msgs[:0:0]
	for _, m := range msgs {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func writeMessagesTable(w io.Writer, msgs []*models.Message) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
		{Number: 5, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: 60},
	})

	tw.AppendHeader(table.Row{"Timestamp", "Kind", "Scope", "Text", "Origin"})

	for _, m := range msgs {
		tw.AppendRow(table.Row{
			m.Timestamp.Format(time.RFC3339),
			string(m.Kind),
			scopeLabel(m.Scope),
			escapeNewlines(m.Text),
			m.Origin.MethodKey(),
		})
	}

	if len(msgs) == 0 {
		tw.AppendRow(table.Row{"-", "-", "-", "(no messages)", "-"})
	}

	_ = tw.Render()
	return nil
}

func scopeLabel(s *models.Scope) string {
	if s == nil {
		return "-"
	}
	return s.Name
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}
