// Package ui is the bubbletea terminal UI over the node manager.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"codexmate/internal/core"
	"codexmate/internal/logger"
	"codexmate/internal/node"
	"codexmate/internal/watch"
)

type tabID int

const (
	tabProviders tabID = iota
	tabServers
	tabProjects
)

type row struct {
	key    string // provider name, server name or project path
	cells  []string
	active bool
}

type tab struct {
	id      tabID
	title   string
	headers []string
	rows    []row
	index   int
}

type mode int

const (
	modeTable mode = iota
	modeForm
	modeKey
	modeConfirmDel
)

// provider form fields
const (
	fName = iota
	fURL
	fWire
	fKey
	fieldCount
)

type model struct {
	ctx   context.Context
	mgr   *node.Manager
	watch *watch.Watcher

	tabs   []tab
	active int
	m      mode

	// provider form; editing is empty while adding
	form    [fieldCount]textinput.Model
	focus   int
	editing string
	formErr string

	keyIn   textinput.Model
	keyFor  string
	delName string

	creds map[string]core.Credential

	status string
	width  int
	height int

	ver     string
	verInst bool
	verAt   time.Time
}

func newModel(ctx context.Context, mgr *node.Manager, w *watch.Watcher) model {
	m := model{ctx: ctx, mgr: mgr, watch: w, m: modeTable, ver: "…", verInst: true}
	for i := range m.form {
		m.form[i] = textinput.New()
	}
	m.form[fName].Placeholder = "name"
	m.form[fURL].Placeholder = "https://..."
	m.form[fWire].Placeholder = core.DefaultWireAPI
	m.form[fKey].Placeholder = "(optional)"
	m.form[fKey].EchoMode = textinput.EchoPassword
	m.keyIn = textinput.New()
	m.keyIn.Placeholder = "sk-..."
	m.keyIn.EchoMode = textinput.EchoPassword
	m.tabs = []tab{
		{id: tabProviders, title: "providers", headers: []string{"Active", "Name", "Base URL", "Wire API", "Key"}},
		{id: tabServers, title: "mcp servers", headers: []string{"Name", "Command", "Args"}},
		{id: tabProjects, title: "projects", headers: []string{"Path", "Trust"}},
	}
	m.status = "Loaded"
	m.reload()
	return m
}

// reload rereads everything from disk, keeping each tab's cursor in range.
func (m *model) reload() {
	m.creds = m.mgr.AllCredentials(m.ctx)

	nodes, err := m.mgr.List(m.ctx)
	m.noteLoadErr(err)
	var provRows []row
	for _, n := range nodes {
		mark := ""
		if n.IsActive {
			mark = "*"
		}
		key := "-"
		if n.HasCredential {
			key = "yes"
		}
		var p core.Provider
		if n.Provider != nil {
			p = *n.Provider
		}
		provRows = append(provRows, row{
			key:    n.Name,
			active: n.IsActive,
			cells:  []string{mark, n.Name, p.BaseURL, p.WireAPI, key},
		})
	}
	m.setRows(tabProviders, provRows)

	servers, err := m.mgr.Servers(m.ctx)
	m.noteLoadErr(err)
	var srvRows []row
	for _, s := range servers {
		srvRows = append(srvRows, row{key: s.Name, cells: []string{s.Name, s.Command, strings.Join(s.Args, " ")}})
	}
	m.setRows(tabServers, srvRows)

	projects, err := m.mgr.Projects(m.ctx)
	m.noteLoadErr(err)
	var projRows []row
	for _, p := range projects {
		projRows = append(projRows, row{key: p.Path, cells: []string{p.Path, p.TrustLevel}})
	}
	m.setRows(tabProjects, projRows)
}

func (m *model) setRows(id tabID, rows []row) {
	t := &m.tabs[id]
	t.rows = rows
	if t.index >= len(rows) {
		t.index = len(rows) - 1
	}
	if t.index < 0 {
		t.index = 0
	}
}

func (m *model) noteLoadErr(err error) {
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		m.status = "config.toml not found; add a provider to create it"
	default:
		m.status = "load failed: " + err.Error()
	}
}

func (m *model) focusRow(id tabID, key string) {
	t := &m.tabs[id]
	for i, r := range t.rows {
		if r.key == key {
			t.index = i
			return
		}
	}
}

func (m model) selected() (row, bool) {
	t := m.tabs[m.active]
	if len(t.rows) == 0 {
		return row{}, false
	}
	return t.rows[t.index], true
}

func (m model) Init() tea.Cmd {
	return tea.Batch(versionCmd(m.ctx), waitForChange(m.watch))
}

// changedMsg reports that a managed file changed on disk.
type changedMsg struct{ path string }

func waitForChange(w *watch.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-w.Changes()
		if !ok {
			return nil
		}
		return changedMsg{path: p}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch m.m {
		case modeTable:
			return m.updateTableKey(msg)
		case modeForm:
			return m.updateFormKey(msg)
		case modeKey:
			return m.updateKeyKey(msg)
		case modeConfirmDel:
			return m.updateConfirmKey(msg)
		}
	case verMsg:
		m.ver, m.verInst, m.verAt = msg.text, msg.installed, msg.at
		return m, nil
	case changedMsg:
		// forms keep their input; the next reload picks the change up
		if m.m == modeTable {
			m.reload()
			m.status = "reloaded: " + msg.path
		}
		return m, waitForChange(m.watch)
	}
	return m, nil
}

func (m model) refreshVersion() tea.Cmd {
	if time.Since(m.verAt) < versionTTL {
		return nil
	}
	return versionCmd(m.ctx)
}

func (m model) updateTableKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := &m.tabs[m.active]
	switch msg.String() {
	case "up", "k":
		if t.index > 0 {
			t.index--
		}
	case "down", "j":
		if t.index < len(t.rows)-1 {
			t.index++
		}
	case "1", "2", "3":
		m.active = int(msg.Runes[0] - '1')
	case "tab":
		m.active = (m.active + 1) % len(m.tabs)
	case "r":
		m.status = "Loaded"
		m.reload()
		return m, m.refreshVersion()
	case "enter":
		sel, ok := m.selected()
		if !ok || t.id != tabProviders {
			return m, nil
		}
		if sel.active {
			m.status = "already active: " + sel.key
			return m, nil
		}
		if err := m.mgr.Switch(m.ctx, sel.key); err != nil {
			m.status = "switch failed: " + err.Error()
			return m, nil
		}
		m.reload()
		m.status = "switched to " + sel.key
	case "a":
		if t.id == tabProviders {
			m.openForm(nil)
		}
	case "e":
		sel, ok := m.selected()
		if !ok || t.id != tabProviders {
			return m, nil
		}
		nodes, err := m.mgr.List(m.ctx)
		if err != nil {
			m.noteLoadErr(err)
			return m, nil
		}
		for _, n := range nodes {
			if n.Name == sel.key {
				p := n.Provider
				if p == nil {
					// credential only: the record is created on save
					p = &core.Provider{Name: n.Name}
				}
				m.openForm(p)
				break
			}
		}
	case "s":
		sel, ok := m.selected()
		if !ok || t.id != tabProviders {
			return m, nil
		}
		m.m = modeKey
		m.keyFor = sel.key
		m.formErr = ""
		m.keyIn.SetValue("")
		m.keyIn.Focus()
	case "c":
		if t.id != tabServers {
			return m, nil
		}
		if err := m.mgr.AddContext7(m.ctx); err != nil {
			m.status = "add failed: " + err.Error()
			return m, nil
		}
		m.reload()
		m.focusRow(tabServers, node.Context7Name)
		m.status = "added " + node.Context7Name
	case "t":
		if t.id != tabProjects {
			return m, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			m.status = "trust failed: " + err.Error()
			return m, nil
		}
		if err := m.mgr.TrustProject(m.ctx, wd, core.DefaultTrustLevel); err != nil {
			m.status = "trust failed: " + err.Error()
			return m, nil
		}
		m.reload()
		m.focusRow(tabProjects, wd)
		m.status = "trusted " + wd
	case "d":
		sel, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.m = modeConfirmDel
		m.delName = sel.key
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// openForm prepares the provider form; p is nil when adding.
func (m *model) openForm(p *core.Provider) {
	m.m = modeForm
	m.formErr = ""
	for i := range m.form {
		m.form[i].SetValue("")
		m.form[i].Blur()
	}
	m.editing = ""
	m.focus = fName
	if p != nil {
		m.editing = p.Name
		m.form[fName].SetValue(p.Name)
		m.form[fURL].SetValue(p.BaseURL)
		m.form[fWire].SetValue(p.WireAPI)
		m.focus = fURL
	}
	m.form[m.focus].Focus()
}

func (m *model) nextField() {
	m.form[m.focus].Blur()
	m.focus = (m.focus + 1) % fieldCount
	if m.editing != "" && m.focus == fName {
		m.focus = fURL
	}
	m.form[m.focus].Focus()
}

func (m model) updateFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		m.nextField()
	case "enter":
		name := m.editing
		if name == "" {
			name = strings.TrimSpace(m.form[fName].Value())
		}
		fields := map[string]any{core.FieldBaseURL: strings.TrimSpace(m.form[fURL].Value())}
		if w := strings.TrimSpace(m.form[fWire].Value()); w != "" {
			fields[core.FieldWireAPI] = w
		}
		if _, err := m.mgr.Upsert(m.ctx, name, fields, m.form[fKey].Value()); err != nil {
			m.formErr = err.Error()
			return m, nil
		}
		m.m = modeTable
		m.reload()
		m.focusRow(tabProviders, name)
		m.status = "saved " + name
	case "esc":
		m.m = modeTable
	default:
		var cmd tea.Cmd
		m.form[m.focus], cmd = m.form[m.focus].Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateKeyKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if err := m.mgr.SetCredential(m.ctx, m.keyFor, m.keyIn.Value()); err != nil {
			m.formErr = err.Error()
			return m, nil
		}
		m.m = modeTable
		m.reload()
		m.status = "stored key for " + m.keyFor
	case "esc":
		m.m = modeTable
	default:
		var cmd tea.Cmd
		m.keyIn, cmd = m.keyIn.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.status = m.delete(false)
	case "F":
		m.status = m.delete(true)
	case "n", "esc", "q":
		m.status = "cancelled"
	default:
		return m, nil
	}
	m.m = modeTable
	m.delName = ""
	m.reload()
	return m, nil
}

// delete removes the pending entry from the active tab and returns a status
// line.
func (m model) delete(force bool) string {
	var err error
	switch m.tabs[m.active].id {
	case tabProviders:
		err = m.mgr.Delete(m.ctx, m.delName, force)
	case tabServers:
		err = m.mgr.DeleteServer(m.ctx, m.delName)
	case tabProjects:
		err = m.mgr.DeleteProject(m.ctx, m.delName)
	}
	if err != nil {
		return "delete failed: " + err.Error()
	}
	return fmt.Sprintf("deleted %s", m.delName)
}

// Run starts the TUI and blocks until it exits. Managed files are watched so
// edits made elsewhere show up without a manual reload.
func Run(ctx context.Context, mgr *node.Manager) error {
	log := logger.FromContext(ctx)
	w, err := watch.New(log, mgr.Settings().Path(), mgr.Credentials().Path(), mgr.Auth().Path())
	if err != nil {
		log.Warn("live reload disabled", "error", err)
		w = nil
	} else {
		defer w.Close()
	}
	p := tea.NewProgram(newModel(ctx, mgr, w), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
