// Package monitor renders a live PPG trace from a running simulator in
// the terminal and lets the user switch scenarios from the keyboard.
package monitor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/alinrajpoot/max30102-simulator/max30102/model"
	"github.com/alinrajpoot/max30102-simulator/max30102/waveform"
)

const (
	frameTime    = time.Second / 30
	headerHeight = 4
	footerHeight = 2
)

// Monitor is a terminal client: it connects to the simulator, consumes
// the sample stream and draws a scrolling waveform with live vitals.
type Monitor struct {
	address string
	conn    net.Conn
	screen  tcell.Screen
	running bool

	latest  waveform.Point
	history []int
	samples chan waveform.Point

	scenarios []string
	logger    *slog.Logger
}

// New creates a monitor for the simulator at the given address.
func New(address string, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		address:   address,
		samples:   make(chan waveform.Point, 256),
		scenarios: model.ScenarioNames(),
		logger:    logger,
	}
}

// Run connects, initializes the terminal and blocks until the user
// quits or the stream ends.
func (m *Monitor) Run() error {
	conn, err := net.Dial("tcp", m.address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", m.address, err)
	}
	m.conn = conn
	defer conn.Close()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	m.screen = screen
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	m.running = true
	go m.readStream()

	events := make(chan tcell.Event, 16)
	go func() {
		for m.running {
			events <- screen.PollEvent()
		}
	}()

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	for m.running {
		select {
		case point := <-m.samples:
			m.latest = point
			m.history = append(m.history, point.IRPPG)
		case ev := <-events:
			m.handleEvent(ev)
		case <-ticker.C:
			m.draw()
		}
	}
	return nil
}

// readStream decodes the line-delimited sample stream. Welcome and
// command-response messages are recognized by their type tag and logged
// rather than plotted.
func (m *Monitor) readStream() {
	scanner := bufio.NewScanner(m.conn)
	for scanner.Scan() {
		var tagged struct {
			Type string `json:"type"`
		}
		raw := scanner.Bytes()
		if err := json.Unmarshal(raw, &tagged); err != nil {
			continue
		}
		if tagged.Type != "" {
			m.logger.Debug("server message", "type", tagged.Type)
			continue
		}

		var point waveform.Point
		if err := json.Unmarshal(raw, &point); err != nil {
			continue
		}
		select {
		case m.samples <- point:
		default: // drop when the renderer falls behind
		}
	}
	m.running = false
}

func (m *Monitor) handleEvent(ev tcell.Event) {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		m.screen.Sync()
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
			m.running = false
		case ev.Rune() >= '1' && ev.Rune() <= '9':
			index := int(ev.Rune() - '1')
			if index < len(m.scenarios) {
				m.sendScenario(m.scenarios[index])
			}
		case ev.Rune() == 'r':
			m.sendCommand(map[string]any{"command": "reset"})
		}
	}
}

func (m *Monitor) sendScenario(name string) {
	m.sendCommand(map[string]any{"command": "set_scenario", "scenario": name})
}

func (m *Monitor) sendCommand(cmd map[string]any) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return
	}
	if _, err := m.conn.Write(append(payload, '\n')); err != nil {
		m.logger.Warn("failed to send command", "error", err)
	}
}

// draw renders the vitals header, the scrolling IR trace and the key
// help line.
func (m *Monitor) draw() {
	width, height := m.screen.Size()
	m.screen.Clear()

	bold := tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	dim := tcell.StyleDefault.Foreground(tcell.ColorGray)
	trace := tcell.StyleDefault.Foreground(tcell.ColorGreen)

	m.drawText(0, 0, bold, "MAX30102 Simulator Monitor")
	m.drawText(0, 1, tcell.StyleDefault, fmt.Sprintf(
		"HR %5.1f bpm   SpO2 %5.1f %%   rate %d Hz",
		m.latest.HeartRate, m.latest.SpO2, m.latest.SampleRate))
	m.drawText(0, 2, tcell.StyleDefault, fmt.Sprintf(
		"activity: %-10s condition: %s", m.latest.Activity, m.latest.Condition))

	plotHeight := height - headerHeight - footerHeight
	if plotHeight > 2 && width > 0 {
		m.drawTrace(headerHeight, width, plotHeight, trace)
	}

	for i, name := range m.scenarios {
		if i >= 9 {
			break
		}
		m.drawText(i*16, height-2, dim, fmt.Sprintf("[%d] %s", i+1, truncate(name, 13)))
	}
	m.drawText(0, height-1, dim, "[r] reset   [q] quit")

	m.screen.Show()
}

// drawTrace plots the most recent IR samples, one column each, scaled to
// the visible min/max.
func (m *Monitor) drawTrace(top, width, height int, style tcell.Style) {
	if len(m.history) > width {
		m.history = m.history[len(m.history)-width:]
	}
	if len(m.history) == 0 {
		return
	}

	lo, hi := m.history[0], m.history[0]
	for _, v := range m.history {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	for x, v := range m.history {
		y := top + (height-1)*(hi-v)/span
		m.screen.SetContent(x, y, '•', nil, style)
	}
}

func (m *Monitor) drawText(x, y int, style tcell.Style, text string) {
	for i, r := range text {
		m.screen.SetContent(x+i, y, r, nil, style)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
