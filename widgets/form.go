package widgets

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Field is one row of a Form
type Field struct {
	Key   string
	Label string
	Value string

	// Min and Max bound numeric fields; a field is numeric when Max > Min
	Min, Max int
}

func (f Field) numeric() bool {
	return f.Max > f.Min
}

// FormResult is what a key press did to the form
type FormResult int

const (
	FormEditing FormResult = iota
	FormSubmitted
	FormCancelled
)

// Form edits a fixed set of fields with text inputs. tab/shift+tab (or
// up/down) move between fields, enter submits, esc cancels.
type Form struct {
	Title  string
	fields []Field
	inputs []textinput.Model
	focus  int
	err    string
}

func NewForm(title string, fields []Field) *Form {
	f := &Form{Title: title, fields: fields}
	f.inputs = make([]textinput.Model, 0, len(fields))
	labelWidth := 0
	for _, fl := range fields {
		labelWidth = max(labelWidth, len(fl.Label))
	}
	for i, fl := range fields {
		inp := textinput.New()
		inp.Prompt = fmt.Sprintf("%-*s ", labelWidth+1, fl.Label+":")
		inp.SetValue(fl.Value)
		inp.CharLimit = 64
		if fl.numeric() {
			inp.CharLimit = 4
		}
		if i == 0 {
			inp.Focus()
		}
		f.inputs = append(f.inputs, inp)
	}
	return f
}

// Focused returns the key of the focused field
func (f *Form) Focused() string {
	if len(f.fields) == 0 {
		return ""
	}
	return f.fields[f.focus].Key
}

// HandleKey feeds a key to the focused input
func (f *Form) HandleKey(msg tea.KeyMsg) (FormResult, tea.Cmd) {
	if len(f.inputs) == 0 {
		return FormCancelled, nil
	}
	switch msg.String() {
	case "esc":
		return FormCancelled, nil
	case "tab", "down":
		f.move(1)
		return FormEditing, nil
	case "shift+tab", "up":
		f.move(-1)
		return FormEditing, nil
	case "enter":
		if err := f.validate(); err != nil {
			f.err = err.Error()
			return FormEditing, nil
		}
		return FormSubmitted, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	f.err = ""
	return FormEditing, cmd
}

func (f *Form) move(dir int) {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + dir + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

func (f *Form) validate() error {
	for i, fl := range f.fields {
		if !fl.numeric() {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(f.inputs[i].Value()))
		if err != nil || v < fl.Min || v > fl.Max {
			return fmt.Errorf("%s must be %d-%d", fl.Label, fl.Min, fl.Max)
		}
	}
	return nil
}

// Value returns a field's text
func (f *Form) Value(key string) string {
	for i, fl := range f.fields {
		if fl.Key == key {
			return strings.TrimSpace(f.inputs[i].Value())
		}
	}
	return ""
}

// Int returns a numeric field's value, clamped to its range
func (f *Form) Int(key string) int {
	for i, fl := range f.fields {
		if fl.Key != key {
			continue
		}
		v, _ := strconv.Atoi(strings.TrimSpace(f.inputs[i].Value()))
		if fl.numeric() {
			v = max(fl.Min, min(v, fl.Max))
		}
		return v
	}
	return 0
}

// Err is the last validation error, if any
func (f *Form) Err() string {
	return f.err
}

func (f *Form) View() string {
	lines := make([]string, 0, len(f.inputs)+3)
	if f.Title != "" {
		lines = append(lines, lipgloss.NewStyle().Bold(true).Render(f.Title))
	}
	for _, in := range f.inputs {
		lines = append(lines, in.View())
	}
	if f.err != "" {
		lines = append(lines, "! "+f.err)
	}
	lines = append(lines, "", "enter: save  esc: cancel  tab: next field")
	return strings.Join(lines, "\n")
}
