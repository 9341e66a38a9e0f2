package gateway

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"aura/wellness-agent/internal/engine"

	"go.uber.org/zap"
)

// Lines can carry a full settings blob or rule list; keep the read buffer
// comfortably above that.
const maxLineSize = 1 << 20

// Gateway bridges the line-delimited JSON protocol to the engine: one command
// object per input line, one event object per output line. Stdin EOF means
// the host process is gone, which is treated as a shutdown request.
type Gateway struct {
	in     io.Reader
	logger *zap.Logger

	outMu sync.Mutex
	out   *json.Encoder
}

func New(in io.Reader, out io.Writer, logger *zap.Logger) *Gateway {
	return &Gateway{
		in:     in,
		logger: logger,
		out:    json.NewEncoder(out),
	}
}

// Emit writes one event as a JSON line. Safe to call from any goroutine.
func (g *Gateway) Emit(ev engine.Event) {
	g.outMu.Lock()
	defer g.outMu.Unlock()
	if err := g.out.Encode(ev); err != nil {
		g.logger.Error("Failed to write event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// Start reads commands until EOF on a background goroutine, forwarding each
// to submit. Malformed lines produce an error event instead of killing the
// reader.
func (g *Gateway) Start(submit func(engine.Command)) {
	go g.readLoop(submit)
}

func (g *Gateway) readLoop(submit func(engine.Command)) {
	scanner := bufio.NewScanner(g.in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var cmd engine.Command
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			g.logger.Warn("Dropping malformed command", zap.Error(err))
			g.Emit(engine.Event{Type: engine.EventError, Data: map[string]any{
				"message": "malformed command: " + err.Error(),
			}})
			continue
		}
		if cmd.Cmd == "" {
			g.Emit(engine.Event{Type: engine.EventError, Data: map[string]any{
				"message": "command missing cmd field",
			}})
			continue
		}
		submit(cmd)
	}

	if err := scanner.Err(); err != nil {
		g.logger.Error("Command stream read failed", zap.Error(err))
	} else {
		g.logger.Info("Command stream closed, requesting shutdown")
	}
	submit(engine.Command{Cmd: engine.CmdShutdown})
}
