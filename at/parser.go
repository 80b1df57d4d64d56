package at

import (
	"strings"
)

// MaxLineLength bounds a single buffered line. Base64 encoded MT messages
// are the longest legitimate lines.
const MaxLineLength = 16 * 1024

type EventType int

const (
	EventNone        EventType = iota
	EventEcho                  // command echo, stripped
	EventEmptyLine             // bare <cr><lf>, confirms verbose framing
	EventLine                  // intermediate response line
	EventResult                // verbose or numeric result code
	EventCRC                   // *HHHH checksum suffix
	EventUnsolicited           // line received with no command outstanding
	EventOverflow              // line exceeded MaxLineLength and was dropped
)

func (t EventType) String() string {
	switch t {
	case EventEcho:
		return "echo"
	case EventEmptyLine:
		return "empty"
	case EventLine:
		return "line"
	case EventResult:
		return "result"
	case EventCRC:
		return "crc"
	case EventUnsolicited:
		return "unsolicited"
	case EventOverflow:
		return "overflow"
	}
	return "none"
}

// Event is a classified line produced by the Parser.
type Event struct {
	Type EventType
	// Text is the trimmed line content. Unsolicited lines are passed
	// unmodified, including their terminators. CRC events carry the four
	// hex digits without the prefix.
	Text string
	// Terminal marks the event that completes the outstanding command.
	Terminal bool
}

// Parser is a byte at a time state machine that frames modem output. It is
// not safe for concurrent use; a connection owns exactly one Parser.
//
// While a command is expected, lines are classified as echo, response,
// result or CRC suffix, updating the inferred Session as a side effect.
// Otherwise every <lf> terminated line is reported as unsolicited.
type Parser struct {
	session Session
	command string // as written, including any CRC frame
	base    string // upper-case command without CRC frame
	buf     []byte
	raw     strings.Builder
}

// NewParser returns a parser idle in unsolicited mode.
func NewParser(session Session) *Parser {
	return &Parser{session: session}
}

// Session returns the currently inferred line framing.
func (p *Parser) Session() Session {
	return p.session
}

// SetSession overrides the inferred framing.
func (p *Parser) SetSession(s Session) {
	p.session = s
}

// Expect switches to command-response mode for the command text as it was
// written to the modem.
func (p *Parser) Expect(cmd string) {
	p.command = cmd
	p.base = strings.ToUpper(StripCommand(cmd))
	p.buf = p.buf[:0]
	p.raw.Reset()
}

// Idle switches to unsolicited mode.
func (p *Parser) Idle() {
	p.command = ""
	p.base = ""
	p.buf = p.buf[:0]
	p.raw.Reset()
}

// Expecting reports whether a command response is being parsed.
func (p *Parser) Expecting() bool {
	return p.command != ""
}

// ResponseText returns every byte of the current response except the echo
// and the CRC line, which is the text the modem's checksum covers.
func (p *Parser) ResponseText() string {
	return p.raw.String()
}

// CRCExpected reports whether a checksum line must follow the verbose
// result of the current command.
func (p *Parser) CRCExpected() bool {
	return p.session.CRC || strings.Contains(p.base, DirectiveCRCOn)
}

// Feed consumes one byte. pending reports whether more received bytes are
// already waiting, which distinguishes a numeric result code terminated by
// a bare <cr> from a <cr> whose <lf> is still in flight.
func (p *Parser) Feed(b byte, pending bool) (Event, bool) {
	p.buf = append(p.buf, b)
	if len(p.buf) > MaxLineLength {
		dropped := string(p.buf[:32])
		p.buf = p.buf[:0]
		return Event{Type: EventOverflow, Text: dropped}, true
	}

	if p.command == "" {
		if b != '\n' {
			return Event{}, false
		}
		line := string(p.buf)
		p.buf = p.buf[:0]
		if strings.TrimSpace(line) == "" {
			return Event{}, false
		}
		return Event{Type: EventUnsolicited, Text: line}, true
	}

	switch b {
	case '\r':
		return p.carriageReturn(pending)
	case '\n':
		return p.lineFeed()
	}
	return Event{}, false
}

func (p *Parser) carriageReturn(pending bool) (Event, bool) {
	if len(p.buf) == len(p.command)+1 && string(p.buf[:len(p.command)]) == p.command {
		p.session.Echo = p.base != CmdEchoOff
		p.buf = p.buf[:0]
		return Event{Type: EventEcho, Text: p.command}, true
	}
	content := strings.TrimSpace(string(p.buf))
	if content == "" || pending || !isDigits(content) {
		return Event{}, false
	}
	if p.session.Verbose && p.base != CmdVerboseOff {
		// <cr> of a verbose line with a delayed <lf>
		return Event{}, false
	}
	p.raw.Write(p.buf)
	p.buf = p.buf[:0]
	return Event{Type: EventResult, Text: content, Terminal: true}, true
}

func (p *Parser) lineFeed() (Event, bool) {
	line := string(p.buf)
	content := strings.TrimSpace(line)
	p.buf = p.buf[:0]

	switch {
	case content == "":
		p.session.Verbose = true
		p.raw.WriteString(line)
		return Event{Type: EventEmptyLine}, true

	case Classify(content) == TypeCRC:
		p.session.CRC = true
		return Event{Type: EventCRC, Text: content[len(CRCPrefix):], Terminal: true}, true

	case IsResult(content):
		p.raw.WriteString(line)
		return Event{Type: EventResult, Text: content, Terminal: !p.CRCExpected()}, true

	default:
		p.raw.WriteString(line)
		return Event{Type: EventLine, Text: content}, true
	}
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
