package command

import (
	"fmt"

	"github.com/cjeanneret/IntakeArm/internal/debug"
)

// logging is embedded by commands to print uniform BEGIN/END lines.
type logging struct {
	name         string
	clock        Clock
	startMs      int64
	finishReason string
}

func (l *logging) logCommandStart(params string) {
	l.startMs = l.clock.NowMillis()
	l.finishReason = ""
	debug.Command("BEGIN", l.name, params)
}

// setFinishReason records why the command is about to end. Only the first
// reason of an activation is kept.
func (l *logging) setFinishReason(reason string) {
	if l.finishReason == "" {
		l.finishReason = reason
	}
}

func (l *logging) logCommandEnd(interrupted bool, extra string) {
	phase := "END"
	if interrupted {
		phase = "INTERRUPTED"
	}
	detail := fmt.Sprintf("after %d ms", l.clock.NowMillis()-l.startMs)
	if l.finishReason != "" {
		detail = l.finishReason + ", " + detail
	}
	if extra != "" {
		detail += ", " + extra
	}
	debug.Command(phase, l.name, detail)
}
