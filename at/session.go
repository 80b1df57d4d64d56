package at

import (
	"fmt"
	"strings"
)

// Session describes the line framing the modem is currently using. It is
// never read from the modem directly: the parser infers it from traffic and
// the dispatcher applies framing commands once they complete, since they only
// take effect on the next command.
type Session struct {
	Echo    bool
	CRC     bool
	Verbose bool
	Quiet   bool
}

// DefaultSession returns the modem factory framing.
func DefaultSession() Session {
	return Session{Echo: true, Verbose: true}
}

// Apply updates the session after cmd completed successfully.
func (s *Session) Apply(cmd string) {
	cmd = strings.ToUpper(StripCommand(cmd))
	switch cmd {
	case CmdEchoOff:
		s.Echo = false
	case CmdEchoOn:
		s.Echo = true
	case CmdVerboseOff:
		s.Verbose = false
	case CmdVerboseOn:
		s.Verbose = true
	case CmdQuietOff:
		s.Quiet = false
	case CmdFactoryDefaults:
		*s = DefaultSession()
	}
	switch {
	case strings.Contains(cmd, DirectiveCRCOn):
		s.CRC = true
	case strings.Contains(cmd, "%CRC=0"):
		s.CRC = false
	}
}

func (s Session) String() string {
	return fmt.Sprintf("E%d V%d Q%d CRC=%d", b2i(s.Echo), b2i(s.Verbose), b2i(s.Quiet), b2i(s.CRC))
}

// ParseConfigReport parses the active configuration line of an AT&V report,
// e.g. "E1 Q0 V1 CRC=0".
func ParseConfigReport(line string) (Session, error) {
	var s Session
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return s, fmt.Errorf("malformed configuration report %q", line)
	}
	for _, f := range fields {
		f = strings.ToUpper(f)
		on := strings.HasSuffix(f, "1")
		switch {
		case strings.HasPrefix(f, "CRC="):
			s.CRC = on
		case strings.HasPrefix(f, "E"):
			s.Echo = on
		case strings.HasPrefix(f, "Q"):
			s.Quiet = on
		case strings.HasPrefix(f, "V"):
			s.Verbose = on
		default:
			return s, fmt.Errorf("unknown configuration field %q", f)
		}
	}
	return s, nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
