package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"codexmate/internal/core"
	"codexmate/internal/util"
	"codexmate/internal/version"
)

var (
	styleHeader    = lipgloss.NewStyle().Bold(true)
	styleTabSel    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleGreen     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleSel       = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	styleMuted     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleKey       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	styleStatusOK  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleStatusErr = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

const (
	minCol = 6
	maxCol = 48
)

func (m model) View() string {
	return m.renderTop() + "\n" + m.renderTabs() + "\n" + m.renderTable() + m.renderDetail() + "\n" + m.help()
}

func (m model) renderTop() string {
	left := styleHeader.Render(version.Name) + " " + styleMuted.Render(version.Version)
	codex := "codex " + m.ver
	if !m.verInst {
		codex = styleMuted.Render(codex)
	}
	st := m.status
	stStyle := styleStatusOK
	ls := strings.ToLower(st)
	if strings.Contains(ls, "failed") || strings.Contains(ls, "error") || strings.Contains(ls, "not found") {
		stStyle = styleStatusErr
	}
	leftRaw := version.Name + " " + version.Version + " | codex " + m.ver
	if m.width > 0 && runeLen(leftRaw+" | Status: "+st) > m.width {
		avail := m.width - runeLen("Status: ")
		if avail < 8 {
			avail = 8
		}
		return left + " | " + codex + "\nStatus: " + stStyle.Render(truncate(st, avail))
	}
	return left + " | " + codex + " | Status: " + stStyle.Render(st)
}

func runeLen(s string) int { return len([]rune(s)) }

func (m model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, t := range m.tabs {
		label := fmt.Sprintf("[%d] %s (%d)", i+1, t.title, len(t.rows))
		if i == m.active {
			label = styleTabSel.Render(label)
		}
		parts = append(parts, label)
	}
	return strings.Join(parts, "  ")
}

// computeWidths sizes each column to its widest cell within [minCol, maxCol]
// and shrinks the last column to fit the terminal.
func (m model) computeWidths(t tab) []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = runeLen(h)
	}
	for _, r := range t.rows {
		for i, c := range r.cells {
			if i < len(widths) && runeLen(c) > widths[i] {
				widths[i] = runeLen(c)
			}
		}
	}
	for i := range widths {
		widths[i] = max(minCol, min(widths[i], maxCol))
	}
	if m.width > 0 && len(widths) > 0 {
		// "│ " + " │ " between cells + " │"
		total := 4 + 3*(len(widths)-1)
		for _, w := range widths {
			total += w
		}
		if over := total - m.width; over > 0 {
			last := len(widths) - 1
			widths[last] = max(minCol, widths[last]-over)
		}
	}
	return widths
}

func (m model) renderTable() string {
	t := m.tabs[m.active]
	widths := m.computeWidths(t)
	seg := func(w int) string { return strings.Repeat("─", w+2) }
	border := func(left, mid, right string) string {
		var b strings.Builder
		b.WriteString(left)
		for i, w := range widths {
			b.WriteString(seg(w))
			if i < len(widths)-1 {
				b.WriteString(mid)
			} else {
				b.WriteString(right)
			}
		}
		return b.String() + "\n"
	}
	line := func(cells []string, style func(i int, s string) string) string {
		out := make([]string, len(widths))
		for i, w := range widths {
			c := ""
			if i < len(cells) {
				c = cells[i]
			}
			c = truncate(c, w)
			c += strings.Repeat(" ", w-runeLen(c))
			out[i] = style(i, c)
		}
		return "│ " + strings.Join(out, " │ ") + " │\n"
	}

	var out strings.Builder
	out.WriteString(border("╭", "┬", "╮"))
	out.WriteString(line(t.headers, func(_ int, s string) string { return styleHeader.Render(s) }))
	out.WriteString(border("├", "┼", "┤"))
	if len(t.rows) == 0 {
		out.WriteString(line([]string{"(none)"}, func(_ int, s string) string { return styleMuted.Render(s) }))
	}
	for i, r := range t.rows {
		sel := i == t.index
		active := r.active
		out.WriteString(line(r.cells, func(_ int, s string) string {
			switch {
			case sel:
				return styleSel.Render(s)
			case active:
				return styleGreen.Render(s)
			}
			return s
		}))
	}
	out.WriteString(border("╰", "┴", "╯"))
	return out.String()
}

func (m model) renderDetail() string {
	var b strings.Builder
	sel, ok := m.selected()
	if ok && m.m == modeTable {
		b.WriteString(styleHeader.Render("\nDetails") + "\n")
		switch m.tabs[m.active].id {
		case tabProviders:
			b.WriteString(fmt.Sprintf("Name: %s\n", sel.key))
			b.WriteString(fmt.Sprintf("Base URL: %s  Wire API: %s\n", sel.cells[2], sel.cells[3]))
			key := m.creds[sel.key].SecretKey
			if key == "" {
				b.WriteString("Key: (none)\n")
			} else {
				b.WriteString(fmt.Sprintf("Key: %s\n", util.Mask(key)))
			}
		case tabServers:
			b.WriteString(fmt.Sprintf("Command: %s %s\n", sel.cells[1], sel.cells[2]))
		case tabProjects:
			b.WriteString(fmt.Sprintf("Path: %s\nTrust: %s\n", sel.cells[0], sel.cells[1]))
		}
	}
	switch m.m {
	case modeForm:
		if m.editing == "" {
			b.WriteString("\nAdd Provider:\n")
			b.WriteString("Name:     " + m.form[fName].View() + "\n")
		} else {
			b.WriteString("\nEdit Provider " + m.editing + ":\n")
		}
		b.WriteString("Base URL: " + m.form[fURL].View() + "\n")
		b.WriteString("Wire API: " + m.form[fWire].View() + "\n")
		b.WriteString("Key:      " + m.form[fKey].View() + "\n")
	case modeKey:
		b.WriteString("\nSet " + core.SecretKeyField + " for " + m.keyFor + ":\n")
		b.WriteString(m.keyIn.View() + "\n")
	case modeConfirmDel:
		b.WriteString("\nConfirm Delete:\n")
		b.WriteString(fmt.Sprintf("%s: %s\n", m.tabs[m.active].title, m.delName))
		if m.tabs[m.active].id == tabProviders {
			b.WriteString("Press 'y' to confirm, 'F' to force delete the active provider, 'n' or 'Esc' to cancel.\n")
		} else {
			b.WriteString("Press 'y' to confirm, 'n' or 'Esc' to cancel.\n")
		}
	}
	if m.formErr != "" && (m.m == modeForm || m.m == modeKey) {
		b.WriteString(styleStatusErr.Render(m.formErr) + "\n")
	}
	return b.String()
}

func keyHint(b *strings.Builder, key, label string) {
	b.WriteString(styleKey.Render("[" + key + "]"))
	b.WriteString(" " + label + "  ")
}

func (m model) help() string {
	var b strings.Builder
	switch m.m {
	case modeForm, modeKey:
		keyHint(&b, "Tab", "Next")
		keyHint(&b, "Enter", "Save")
		keyHint(&b, "Esc", "Cancel")
		return strings.TrimRight(b.String(), " ")
	case modeConfirmDel:
		keyHint(&b, "y", "Yes")
		if m.tabs[m.active].id == tabProviders {
			keyHint(&b, "F", "Force")
		}
		keyHint(&b, "n/Esc", "Cancel")
		return strings.TrimRight(b.String(), " ")
	}
	b.WriteString("View: ")
	keyHint(&b, "1-3/Tab", "Switch")
	b.WriteString("\nActions: ")
	keyHint(&b, "↑/↓", "Move")
	switch m.tabs[m.active].id {
	case tabProviders:
		keyHint(&b, "Enter", "Activate")
		keyHint(&b, "a", "Add")
		keyHint(&b, "e", "Edit")
		keyHint(&b, "s", "Set key")
	case tabServers:
		keyHint(&b, "c", "Add context7")
	case tabProjects:
		keyHint(&b, "t", "Trust cwd")
	}
	keyHint(&b, "d", "Delete")
	keyHint(&b, "r", "Reload")
	keyHint(&b, "q", "Quit")
	return strings.TrimRight(b.String(), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
