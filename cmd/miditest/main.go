// Command miditest checks the MIDI and audio plumbing without the TUI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-beats/audio"
	"go-beats/debug"
	"go-beats/midi"
	"go-beats/transport"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		listPorts()
	case "poll":
		pollDevices()
	case "clock":
		err = runClock(arg(2, ""))
	case "refbar":
		if len(os.Args) < 3 {
			usage()
			return
		}
		err = writeRefBar(os.Args[2], arg(3, ""))
	case "click":
		err = playClick()
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func arg(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list              - List all MIDI ports")
	fmt.Println("  poll              - Watch controllers come and go")
	fmt.Println("  clock [PORT]      - Run the transport for two bars, clicking on PORT")
	fmt.Println("  refbar FILE [BPM] - Write the reference bar as a MIDI file")
	fmt.Println("  click             - Play four clicks on the audio device")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func pollDevices() {
	fmt.Println("Watching for device changes. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dm := midi.NewDeviceManager()
	go dm.Run(ctx)

	for ev := range dm.Events() {
		at := time.Now().Format("15:04:05")
		switch ev.Type {
		case midi.DeviceConnected:
			fmt.Printf("[%s] connected %s (%s)\n", at, ev.Controller.ID(), ev.Controller.Type())
		case midi.DeviceDisconnected:
			fmt.Printf("[%s] disconnected %s\n", at, ev.ID)
		case midi.OutputsChanged:
			fmt.Printf("[%s] outputs: %v\n", at, ev.Outputs)
		}
	}
}

// runClock plays two bars and prints every beat the sink sees
func runClock(port string) error {
	opts := transport.DefaultOptions()
	opts.Output = port
	opts.Logger = debug.Logger()

	t := transport.Setup(opts)
	defer t.Cleanup()
	if err := t.Err(); err != nil {
		return err
	}

	done := make(chan struct{})
	ppq := int64(t.PPQ())
	t.OnClock(func(p transport.Pulse) {
		if p.Count%ppq == 0 {
			fmt.Printf("beat %d  pulse %3d  %s\n", p.Count/ppq+1, p.Index, p.Time.Format("15:04:05.000"))
		}
		if p.Count == 8*ppq-1 {
			close(done)
		}
	})

	fmt.Printf("clock at %.0f bpm, %d ppq\n", t.Tempo(), t.PPQ())
	t.Start()
	if !t.Running() {
		return fmt.Errorf("transport did not start")
	}
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		return fmt.Errorf("clock stalled")
	}
	t.Stop()
	return nil
}

func writeRefBar(path, bpm string) error {
	tempo := transport.DefaultTempo
	if bpm != "" {
		v, err := strconv.ParseFloat(bpm, 64)
		if err != nil {
			return fmt.Errorf("tempo %q: %w", bpm, err)
		}
		if v <= 0 {
			return fmt.Errorf("tempo %q: must be above 0", bpm)
		}
		tempo = v
	}

	seq, err := transport.BuildReferenceBar(transport.DefaultPPQ, transport.DefaultMetronome)
	if err != nil {
		return err
	}
	sm, err := seq.SMF(tempo)
	if err != nil {
		return err
	}
	if err := sm.WriteFile(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("wrote %s: %d ticks at %.0f bpm\n", path, seq.Length(), tempo)
	return nil
}

func playClick() error {
	click, err := audio.NewClick(0)
	if err != nil {
		return err
	}
	defer click.Close()

	m := transport.DefaultMetronome
	for beat := 0; beat < 4; beat++ {
		note := m.Note
		if beat == 0 {
			note += 5
		}
		if err := click.Send(gomidi.NoteOn(m.Channel, note, m.Velocity)); err != nil {
			return err
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil
}
