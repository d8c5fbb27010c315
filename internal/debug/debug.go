package debug

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (command start/end, configuration)
	LevelLive    = 2 // Live info (state transitions, regime changes)
	LevelVerbose = 3 // Verbose (per-tick control values)
	LevelTrace   = 4 // Trace (GPIO, PWM, I2C, very low level)
)

var (
	level  int
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (command begin/end, reasons)
// 2 = live info (state transitions, regime changes)
// 3 = verbose (per-tick error, regime, output)
// 4 = trace (GPIO, PWM pulses, encoder reads)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New(os.Stdout, "[IntakeArm] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects log output (e.g. to also feed the web status stream).
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("═══════════════════════════════════════")
		logger.Printf("  %s", title)
		logger.Printf("═══════════════════════════════════════")
	}
}

// Command prints a command lifecycle line (level 1).
// phase is BEGIN, END or INTERRUPTED.
func Command(phase, name, detail string) {
	if level >= LevelInfo && logger != nil {
		if detail == "" {
			logger.Printf("[CMD] %s %s", phase, name)
			return
		}
		logger.Printf("[CMD] %s %s: %s", phase, name, detail)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Transition prints a state machine transition (level 2).
func Transition(what string, from, to fmt.Stringer) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] %s: %s -> %s", what, from, to)
	}
}

// Speed prints a motor speed command (level 2).
func Speed(motor string, speed float64) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Motor %s: speed %+.3f", motor, speed)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// Tick prints one control tick (level 3).
func Tick(errDeg float64, regime fmt.Stringer, output float64) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] tick: error=%+.2f° regime=%s output=%+.3f", errDeg, regime, output)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] %s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Step %d: %s", num, description)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, GPIO).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[GPIO] %s pin=%d value=%v", operation, pin, value)
	}
}

// PWM prints a PWM pulse write (level 4).
func PWM(backend string, channel int, widthUs int64) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[PWM] %s channel=%d pulse=%dus", backend, channel, widthUs)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}
