package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"go-beats/audio"
	"go-beats/bus"
	"go-beats/config"
	"go-beats/debug"
	"go-beats/midi"
	"go-beats/panel"
	"go-beats/sequencer"
	"go-beats/store"
	"go-beats/theme"
	"go-beats/transport"
	"go-beats/tui"
)

func main() {
	configPath := flag.StringP("config", "c", "", "config file (default ~/.config/go-beats/config.toml)")
	debugLog := flag.BoolP("debug", "d", false, "write the debug log")
	project := flag.StringP("project", "p", "", "load the latest save of a project")
	startPanel := flag.String("panel", "", "panel to focus at start")
	flag.Parse()

	if err := run(*configPath, *debugLog, *project, *startPanel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, debugLog bool, project, startPanel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debugLog || cfg.Log.Debug {
		if err := debug.Enable(cfg.Log.Path, cfg.Log.Level); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
		defer debug.Disable()
	}

	th := theme.New(theme.LoadPalette(cfg.UI.Palette))
	b := bus.New()

	opts := transportOptions(cfg)
	if c, ok := opts.Notes.(io.Closer); ok {
		defer c.Close()
	}
	clock := transport.Setup(opts)
	defer clock.Cleanup()
	if err := clock.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "transport unavailable: %v\n", err)
	}

	manager := sequencer.NewManager(sequencer.Options{
		Bus:         b,
		Clock:       clock,
		DefaultPort: cfg.Output.Port,
	})
	defer manager.Close()
	manager.SetTempo(cfg.Transport.Tempo)
	manager.StartRuntime()

	// Create MIDI device manager (handles hot-plug)
	deviceMgr := midi.NewDeviceManager()
	for _, c := range cfg.AutoConnectControllers() {
		if c.Type == config.ControllerKeyboard {
			deviceMgr.AddKeyboard(c.PortName, c.InputChannel)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go deviceMgr.Run(ctx)

	st := store.New(cfg.ProjectsDir)
	pctx := &panel.Context{
		Manager: manager,
		Bus:     b,
		Theme:   th,
		Devices: deviceMgr,
		Store:   st,
	}
	if project != "" {
		loadProject(pctx, project)
	}

	panelName := cfg.UI.Panel
	if startPanel != "" {
		panelName = startPanel
	}
	m := tui.NewModel(tui.Options{
		Context:      pctx,
		Devices:      deviceMgr,
		Background:   cfg.UI.Background,
		Panel:        panelName,
		SnapshotPath: filepath.Join(filepath.Dir(cfg.ProjectsDir), "launchpad.png"),
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

// transportOptions maps the config onto the clock. An "internal" metronome
// clicks through the audio device, "off" is silent and anything else names
// a MIDI output.
func transportOptions(cfg *config.Config) transport.Options {
	tc := cfg.Transport
	opts := transport.Options{
		PPQ:   tc.PPQ,
		Tempo: tc.Tempo,
		Loop:  tc.Loop,
		Metronome: transport.Metronome{
			Channel:  uint8(tc.MetronomeChannel - 1),
			Note:     uint8(tc.MetronomeNote),
			Velocity: uint8(tc.MetronomeVelocity),
		},
		ClockOut: tc.ClockOut,
		Logger:   debug.Logger(),
	}

	switch tc.Metronome {
	case "", "off":
	case "internal":
		click, err := audio.NewClick(0)
		if err != nil {
			debug.Warn("audio", err)
			break
		}
		opts.Notes = click
	default:
		opts.Output = tc.Metronome
	}
	return opts
}

func loadProject(pctx *panel.Context, name string) {
	sess, err := pctx.Store.Load(name, "")
	switch {
	case errors.Is(err, store.ErrNoSaves):
		pctx.Project = store.ProjectName(name)
	case err != nil:
		debug.Warn("store", err, "project", name)
		fmt.Fprintf(os.Stderr, "load %s: %v\n", name, err)
	default:
		pctx.Manager.SetSession(sess)
		pctx.Project = store.ProjectName(name)
	}
}
