package heap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the debug switches of a Safepoint. The zero value is the
// release configuration.
type Config struct {
	// Checks enables the assertions that are too expensive to keep on in
	// production, such as refusing to park inside a region that disallows
	// garbage collection.
	Checks bool

	// LockGraph records the order in which parked guards acquire locks, see
	// Safepoint.LockOrder.
	LockGraph bool

	// Verbose prints a line for every park, unpark and stop.
	Verbose bool
}

// DebugEnv is the environment variable read by ConfigFromEnv.
const DebugEnv = "PARKDEBUG"

// ErrUnknownDebugVar is returned by ParseDebug for keys it does not know.
var ErrUnknownDebugVar = errors.New("unknown debug variable")

type dbgVar struct {
	name  string
	value func(c *Config) *bool
}

var dbgvars = []dbgVar{
	{"checks", func(c *Config) *bool { return &c.Checks }},
	{"lockgraph", func(c *Config) *bool { return &c.LockGraph }},
	{"verbose", func(c *Config) *bool { return &c.Verbose }},
}

// ParseDebug parses a comma-separated list of key=value settings, for example
// "checks=1,lockgraph=1". Values are integers; non-zero enables the switch.
func ParseDebug(s string) (Config, error) {
	var c Config
	for p := s; p != ""; {
		field := ""
		i := strings.Index(p, ",")
		if i < 0 {
			field, p = p, ""
		} else {
			field, p = p[:i], p[i+1:]
		}
		if field == "" {
			continue
		}
		i = strings.Index(field, "=")
		if i < 0 {
			return Config{}, fmt.Errorf("debug setting %q: missing '='", field)
		}
		key, value := field[:i], field[i+1:]
		n, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("debug setting %q: %w", key, err)
		}
		found := false
		for _, v := range dbgvars {
			if v.name == key {
				*v.value(&c) = n != 0
				found = true
			}
		}
		if !found {
			return Config{}, fmt.Errorf("debug setting %q: %w", key, ErrUnknownDebugVar)
		}
	}
	return c, nil
}

// ConfigFromEnv parses the PARKDEBUG environment variable.
func ConfigFromEnv() (Config, error) {
	return ParseDebug(os.Getenv(DebugEnv))
}

// String formats c the way ParseDebug accepts it.
func (c Config) String() string {
	var b strings.Builder
	for i, v := range dbgvars {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(v.name)
		if *v.value(&c) {
			b.WriteString("=1")
		} else {
			b.WriteString("=0")
		}
	}
	return b.String()
}
