// Package server exposes the simulated sensor over TCP: it owns the
// peripheral, runs the sample broadcast loop and dispatches client
// commands.
package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alinrajpoot/max30102-simulator/max30102/device"
	"github.com/alinrajpoot/max30102-simulator/max30102/model"
	"github.com/alinrajpoot/max30102-simulator/max30102/waveform"
)

// acceptTimeout bounds each Accept wait so shutdown is observed within
// one period.
const acceptTimeout = time.Second

// DefaultBroadcastInterval paces the sample broadcast loop.
const DefaultBroadcastInterval = time.Millisecond

// Server streams sensor samples to every connected client and applies
// inbound commands to the physiological model and the peripheral. It
// exclusively owns one Device/Model/Generator triple; a single mutex
// serializes the connection set and all state mutation.
type Server struct {
	host string
	port int

	mu       sync.Mutex
	listener *net.TCPListener
	clients  map[net.Conn]struct{}
	running  atomic.Bool
	wg       sync.WaitGroup

	dev      *device.Device
	model    *model.Model
	gen      *waveform.Generator
	interval time.Duration

	logger *slog.Logger
}

// Option configures a Server at construction.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithBroadcastInterval sets the pacing of the sample broadcast loop.
func WithBroadcastInterval(interval time.Duration) Option {
	return func(s *Server) { s.interval = interval }
}

// WithComponents injects a pre-built peripheral triple, replacing the
// defaults.
func WithComponents(dev *device.Device, m *model.Model, gen *waveform.Generator) Option {
	return func(s *Server) {
		s.dev = dev
		s.model = m
		s.gen = gen
	}
}

// New creates a server that will listen on host:port once started.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:     host,
		port:     port,
		clients:  make(map[net.Conn]struct{}),
		interval: DefaultBroadcastInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dev == nil {
		s.dev = device.New(device.WithLogger(s.logger))
	}
	if s.model == nil {
		s.model = model.New(model.WithLogger(s.logger))
	}
	if s.gen == nil {
		s.gen = waveform.New(s.model, waveform.WithLogger(s.logger))
	}
	return s
}

// Start binds the listening socket and launches the accept and broadcast
// loops. A bind failure is the only fatal error the server produces.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.running.Store(true)
	s.logger.Info("simulator server started", "addr", listener.Addr().String())

	s.wg.Add(2)
	go s.acceptLoop()
	go s.broadcastLoop()
	return nil
}

// Addr returns the bound listener address, or empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Running reports whether the server loops are active.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Stop shuts the server down: the loops observe the flag at their next
// iteration boundary, the listener closes, and every client connection
// is closed under the same lock the broadcast loop uses, so no
// connection is mid-send while being torn down.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[net.Conn]struct{})
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("simulator server stopped")
}

// ApplyScenario switches the physiological model to a named scenario,
// under the same lock the broadcast loop uses.
func (s *Server) ApplyScenario(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.SetScenario(name)
}

// acceptLoop registers incoming connections and greets each with the
// current model snapshot. Accept waits are bounded so the loop notices
// shutdown.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for s.running.Load() {
		s.listener.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := s.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if s.running.Load() {
				s.logger.Error("error accepting client", "error", err)
			}
			continue
		}

		s.logger.Info("client connected", "remote", conn.RemoteAddr().String())
		s.register(conn)
	}
}

// register adds a connection to the active set, sends the welcome
// message and starts the per-connection command reader.
func (s *Server) register(conn net.Conn) {
	s.mu.Lock()
	s.clients[conn] = struct{}{}
	snapshot := s.model.Snapshot()
	s.mu.Unlock()

	s.send(conn, welcomeMessage{
		Type:    "welcome",
		Message: "Connected to MAX30102 Simulator",
		Config:  snapshot,
	})

	s.wg.Add(1)
	go s.readCommands(conn)
}

// broadcastLoop generates one sample per tick, pushes it through the
// peripheral FIFO and fans the decoded payload out to every client.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for s.running.Load() {
		<-ticker.C
		s.broadcastTick()
	}
}

// broadcastTick runs one generate/push/drain/fan-out cycle. Every client
// registered at tick time receives the identical payload; connections
// whose send fails are removed after the full pass.
func (s *Server) broadcastTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	point := s.gen.Next()
	s.dev.PushSample(clampSample(point.RedPPG), clampSample(point.IRPPG))

	// Drain through the FIFO so the payload carries what a bus master
	// would have read back, 18-bit clamp included.
	if samples := s.dev.ReadFIFOSamples(1); len(samples) > 0 {
		point.RedPPG = int(samples[0].Red)
		point.IRPPG = int(samples[0].IR)
	}

	if len(s.clients) == 0 {
		return
	}

	payload, err := json.Marshal(point)
	if err != nil {
		s.logger.Error("error encoding data point", "error", err)
		return
	}
	payload = append(payload, '\n')

	var dead []net.Conn
	for conn := range s.clients {
		if _, err := conn.Write(payload); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		delete(s.clients, conn)
		conn.Close()
		s.logger.Info("client disconnected")
	}
}

// readCommands consumes newline-delimited commands from one connection
// until it closes or the server stops.
func (s *Server) readCommands(conn net.Conn) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(conn)
	for s.running.Load() && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.handleCommand(conn, line)
	}
	s.remove(conn)
}

// handleCommand parses one command line and replies to the originating
// connection. Malformed input and unknown commands are reported to that
// client only; nothing here is fatal to the server or to other clients.
func (s *Server) handleCommand(conn net.Conn, line string) {
	var req commandRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.send(conn, errorMessage{
			Type:    "error",
			Message: fmt.Sprintf("Invalid JSON: %v", err),
		})
		return
	}

	s.logger.Info("received command", "command", req.Command)

	s.mu.Lock()
	resp := s.dispatch(req)
	s.mu.Unlock()

	s.send(conn, resp)
}

// dispatch executes a parsed command against the model and peripheral.
// Callers hold the state lock.
func (s *Server) dispatch(req commandRequest) commandResponse {
	resp := commandResponse{Type: "command_response", Command: req.Command, Success: true}

	switch req.Command {
	case "set_parameters":
		if violations := model.ValidateParameters(req.Parameters); len(violations) > 0 {
			resp.Success = false
			resp.Error = strings.Join(violations, "; ")
			break
		}
		if err := s.model.UpdateParameters(req.Parameters); err != nil {
			resp.Success = false
			resp.Error = err.Error()
			break
		}
		state := s.model.Snapshot()
		resp.NewState = &state

	case "set_scenario":
		name := req.Scenario
		if name == "" {
			name = "normal_resting"
		}
		if err := s.model.SetScenario(name); err != nil {
			resp.Success = false
			resp.Error = err.Error()
			break
		}
		resp.Scenario = name
		state := s.model.Snapshot()
		resp.NewState = &state

	case "get_status":
		resp.Status = &statusReport{
			ClientsConnected: len(s.clients),
			ModelState:       s.model.Snapshot(),
			SensorStatus:     s.dev.Status(),
		}

	case "reset":
		s.model.Reset()
		s.dev.Reset()
		state := s.model.Snapshot()
		resp.NewState = &state

	default:
		resp.Success = false
		resp.Error = fmt.Sprintf("Unknown command: %s", req.Command)
	}

	return resp
}

// send writes one JSON line to a connection. A failure here does not
// remove the client; the next broadcast pass will.
func (s *Server) send(conn net.Conn, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("error encoding message", "error", err)
		return
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		s.logger.Warn("failed to send to client", "error", err)
	}
}

// remove drops a connection from the active set and closes it.
func (s *Server) remove(conn net.Conn) {
	s.mu.Lock()
	_, present := s.clients[conn]
	delete(s.clients, conn)
	s.mu.Unlock()

	conn.Close()
	if present {
		s.logger.Info("client disconnected", "remote", conn.RemoteAddr().String())
	}
}

// clampSample floors a generated channel value at zero before the 18-bit
// conversion; heavy noise can push the raw signal negative.
func clampSample(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
