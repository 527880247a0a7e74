package panel

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"go-beats/debug"
	"go-beats/sequencer"
	"go-beats/store"
	"go-beats/widgets"
)

type inputMode int

const (
	inputNone inputMode = iota
	inputNewProject
	inputRenameProject
	inputRenameSave
	inputNamedSave
)

// Projects saves and loads sessions: projects on the left, the selected
// project's saves on the right, newest first
type Projects struct {
	ctx *Context

	// Cached listing
	projects []string
	saves    []store.SaveInfo

	projectIdx int
	saveIdx    int
	column     int // 0=projects, 1=saves

	mode inputMode
	form *widgets.Form

	// Confirmation dialog
	confirmMsg    string
	confirmAction func()
}

func NewProjects(ctx *Context) *Projects {
	p := &Projects{ctx: ctx}
	p.Refresh()
	return p
}

func (p *Projects) Name() string { return "projects" }

func (p *Projects) Capturing() bool {
	return p.form != nil || p.confirmAction != nil
}

// Refresh reloads the project and save lists from disk
func (p *Projects) Refresh() {
	if p.ctx.Store == nil {
		return
	}
	projects, err := p.ctx.Store.ListProjects()
	if err != nil {
		debug.Warn("store", err)
	}
	p.projects = projects
	p.projectIdx = clampIndex(p.projectIdx, len(p.projects))

	p.saves = nil
	if name := p.selectedProject(); name != "" {
		saves, err := p.ctx.Store.ListSaves(name)
		if err != nil {
			debug.Warn("store", err, "project", name)
		}
		p.saves = saves
	}
	p.saveIdx = clampIndex(p.saveIdx, len(p.saves))
	if len(p.saves) == 0 {
		p.column = 0
	}
}

func (p *Projects) selectedProject() string {
	if p.projectIdx < 0 || p.projectIdx >= len(p.projects) {
		return ""
	}
	return p.projects[p.projectIdx]
}

func (p *Projects) selectedSave() (store.SaveInfo, bool) {
	if p.saveIdx < 0 || p.saveIdx >= len(p.saves) {
		return store.SaveInfo{}, false
	}
	return p.saves[p.saveIdx], true
}

// selectProject points the cursor at a project by folder name
func (p *Projects) selectProject(name string) {
	for i, n := range p.projects {
		if n == name {
			p.projectIdx = i
			p.Refresh()
			return
		}
	}
}

func (p *Projects) status(format string, args ...any) {
	p.ctx.Bus.Status(fmt.Sprintf(format, args...))
}

func (p *Projects) fail(what string, err error) {
	debug.Warn("store", err, "op", what)
	p.status("%s failed: %v", what, err)
}

func (p *Projects) HandleKey(msg tea.KeyMsg) tea.Cmd {
	if p.ctx.Store == nil {
		return nil
	}
	key := msg.String()

	if p.confirmAction != nil {
		switch key {
		case "y", "Y":
			p.confirmAction()
			p.confirmAction = nil
			p.Refresh()
		case "n", "N", "esc", "q":
			p.confirmAction = nil
		}
		return nil
	}
	if p.form != nil {
		return p.handleForm(msg)
	}

	switch key {
	case "h", "left":
		p.column = 0
	case "l", "right":
		if len(p.saves) > 0 {
			p.column = 1
		}
	case "j", "down", "k", "up", "g", "home", "G", "end":
		if p.column == 0 {
			if i := moveIndex(p.projectIdx, len(p.projects), key); i != p.projectIdx {
				p.projectIdx = i
				p.saveIdx = 0
				p.Refresh()
			}
		} else {
			p.saveIdx = moveIndex(p.saveIdx, len(p.saves), key)
		}
	case "enter", " ":
		p.loadSelected()
	case "s":
		p.save("")
	case "S":
		p.openForm(inputNamedSave, "Name this save", "")
	case "n":
		p.openForm(inputNewProject, "New project name", "")
	case "r":
		if p.column == 0 && len(p.projects) > 0 {
			p.openForm(inputRenameProject, "Rename project to", p.selectedProject())
		} else if save, ok := p.selectedSave(); ok && p.column == 1 {
			p.openForm(inputRenameSave, "Name this save", save.Name)
		}
	case "d", "x":
		p.deleteSelected()
	}
	return nil
}

func (p *Projects) openForm(mode inputMode, label, value string) {
	p.mode = mode
	p.form = widgets.NewForm(label, []widgets.Field{{Key: "name", Label: "Name", Value: value}})
}

func (p *Projects) handleForm(msg tea.KeyMsg) tea.Cmd {
	res, cmd := p.form.HandleKey(msg)
	switch res {
	case widgets.FormCancelled:
		p.form = nil
		p.mode = inputNone
	case widgets.FormSubmitted:
		name := strings.TrimSpace(p.form.Value("name"))
		mode := p.mode
		p.form = nil
		p.mode = inputNone
		p.commitInput(mode, name)
	}
	return cmd
}

func (p *Projects) commitInput(mode inputMode, name string) {
	st := p.ctx.Store
	switch mode {
	case inputNewProject:
		if name == "" {
			return
		}
		if err := st.CreateProject(name); err != nil {
			p.fail("create project", err)
			return
		}
		p.ctx.Project = store.ProjectName(name)
		p.Refresh()
		p.selectProject(p.ctx.Project)
		p.status("project %s", p.ctx.Project)
	case inputRenameProject:
		old := p.selectedProject()
		if name == "" || old == "" {
			return
		}
		if err := st.RenameProject(old, name); err != nil {
			p.fail("rename project", err)
			return
		}
		renamed := store.ProjectName(name)
		if p.ctx.Project == old {
			p.ctx.Project = renamed
		}
		p.Refresh()
		p.selectProject(renamed)
	case inputRenameSave:
		// an empty name removes the name
		save, ok := p.selectedSave()
		if !ok {
			return
		}
		if _, err := st.RenameSave(p.selectedProject(), save.Filename, name); err != nil {
			p.fail("rename save", err)
			return
		}
		p.Refresh()
	case inputNamedSave:
		p.save(name)
	}
}

// save writes the session into the current project
func (p *Projects) save(name string) {
	project := p.ctx.Project
	if project == "" {
		project = store.DefaultProject
	}
	file, err := p.ctx.Store.Save(project, name, p.ctx.Manager.Session())
	if err != nil {
		p.fail("save", err)
		return
	}
	p.ctx.Project = store.ProjectName(project)
	p.Refresh()
	p.selectProject(p.ctx.Project)
	p.saveIdx = 0
	p.status("saved %s/%s", p.ctx.Project, file)
}

func (p *Projects) loadSelected() {
	project := p.selectedProject()
	if project == "" {
		return
	}
	filename := ""
	if save, ok := p.selectedSave(); ok && p.column == 1 {
		filename = save.Filename
	}

	sess, err := p.ctx.Store.Load(project, filename)
	if errors.Is(err, store.ErrNoSaves) {
		p.ctx.Project = project
		p.status("project %s has no saves yet", project)
		return
	}
	if err != nil {
		p.fail("load", err)
		return
	}
	p.ctx.Manager.SetSession(sess)
	p.ctx.Project = project
	p.status("loaded %s", project)
}

func (p *Projects) deleteSelected() {
	st := p.ctx.Store
	if p.column == 0 {
		name := p.selectedProject()
		if name == "" {
			return
		}
		p.confirmMsg = fmt.Sprintf("Delete project '%s' and all saves?", name)
		p.confirmAction = func() {
			if err := st.DeleteProject(name); err != nil {
				p.fail("delete project", err)
				return
			}
			if p.ctx.Project == name {
				p.ctx.Project = ""
			}
		}
		return
	}

	save, ok := p.selectedSave()
	if !ok {
		return
	}
	project := p.selectedProject()
	p.confirmMsg = fmt.Sprintf("Delete save '%s'?", save.Label())
	p.confirmAction = func() {
		if err := st.DeleteSave(project, save.Filename); err != nil {
			p.fail("delete save", err)
		}
	}
}

func (p *Projects) HandlePad(row, col int) {
	if row < 0 || row > 7 || col < 0 || col > 7 {
		return
	}
	idx := (7-row)*4 + col%4
	if col < 4 {
		if idx < len(p.projects) {
			p.projectIdx = idx
			p.column = 0
			p.saveIdx = 0
			p.Refresh()
		}
		return
	}
	if idx < len(p.saves) {
		p.saveIdx = idx
		p.column = 1
	}
}

func (p *Projects) View() string {
	th := p.ctx.Theme
	var out strings.Builder

	project := p.ctx.Project
	if project == "" {
		project = "(none)"
	}
	out.WriteString(th.Title("PROJECTS  " + project))
	out.WriteString("\n\n")

	if p.ctx.Store == nil {
		out.WriteString(th.Dim("  no projects directory"))
		return out.String()
	}

	if p.confirmAction != nil {
		out.WriteString(p.confirmMsg)
		out.WriteString("\n\n  [y] Yes    [n] No\n")
		return out.String()
	}
	if p.form != nil {
		out.WriteString(p.form.View())
		return out.String()
	}

	out.WriteString(th.Dim(fmt.Sprintf("%-26s%s", "Projects", "Saves")))
	out.WriteString("\n")

	const maxRows = 12
	rows := min(maxRows, max(1, len(p.projects), len(p.saves)))
	for row := 0; row < rows; row++ {
		left := ""
		if row < len(p.projects) {
			left = listCell(p.projects[row], row == p.projectIdx, p.column == 0, 20)
		}
		out.WriteString(fmt.Sprintf("%-26s", left))

		if row < len(p.saves) {
			save := p.saves[row]
			display := save.Timestamp.Format("01-02 15:04")
			if save.Name != "" {
				display += " " + save.Name
			}
			out.WriteString(listCell(display, row == p.saveIdx, p.column == 1, 24))
		}
		out.WriteString("\n")
	}
	if len(p.projects) == 0 {
		out.WriteString(th.Dim("  (no projects yet)"))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(keyHelp(
		widgets.KeyBinding{Key: "h / l", Desc: "switch columns"},
		widgets.KeyBinding{Key: "j / k", Desc: "navigate list"},
		widgets.KeyBinding{Key: "enter", Desc: "load selected"},
		widgets.KeyBinding{Key: "s / S", Desc: "save / save with name"},
		widgets.KeyBinding{Key: "n", Desc: "new project"},
		widgets.KeyBinding{Key: "r", Desc: "rename"},
		widgets.KeyBinding{Key: "d", Desc: "delete"},
	))
	return out.String()
}

// listCell prefixes the selected entry with > in the focused column and *
// in the other one
func listCell(s string, selected, focused bool, width int) string {
	prefix := "  "
	if selected {
		prefix = "* "
		if focused {
			prefix = "> "
		}
	}
	return prefix + truncate(s, width)
}

func (p *Projects) RenderLEDs() []sequencer.LEDState {
	c := paletteLEDs(p.ctx.Theme)
	leds := make([]sequencer.LEDState, 0, 64)
	for i := 0; i < 32; i++ {
		row, col := 7-i/4, i%4
		left, right := c.dim, c.dim
		if i < len(p.projects) {
			left = c.on
			if i == p.projectIdx && p.column == 0 {
				left = c.sel
			}
		}
		if i < len(p.saves) {
			right = c.play
			if i == p.saveIdx && p.column == 1 {
				right = c.sel
			}
		}
		leds = append(leds,
			sequencer.LEDState{Row: row, Col: col, Color: left},
			sequencer.LEDState{Row: row, Col: col + 4, Color: right},
		)
	}
	return leds
}

func (p *Projects) HelpLayout() widgets.LaunchpadLayout {
	c := paletteLEDs(p.ctx.Theme)
	var layout widgets.LaunchpadLayout
	for i := 0; i < 32; i++ {
		row, col := 7-i/4, i%4
		layout.Grid[row][col] = widgets.PadConfig{Color: c.dim}
		layout.Grid[row][col+4] = widgets.PadConfig{Color: c.dim}
		if i < len(p.projects) {
			layout.Grid[row][col] = widgets.PadConfig{Color: c.on, Tooltip: p.projects[i]}
		}
		if i < len(p.saves) {
			layout.Grid[row][col+4] = widgets.PadConfig{Color: c.play, Tooltip: p.saves[i].Label()}
		}
	}
	return layout
}
