package twin

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"i4.energy/across/idpgw/at"
)

// Format is the payload representation used on the AT interface.
type Format int

const (
	FormatText   Format = 1
	FormatHex    Format = 2
	FormatBase64 Format = 3
)

func (f Format) Valid() bool {
	return f >= FormatText && f <= FormatBase64
}

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatHex:
		return "hex"
	case FormatBase64:
		return "base64"
	}
	return "Format(" + strconv.Itoa(int(f)) + ")"
}

// Priority of a message; MO messages use 1 (high) to 4 (low).
type Priority int

const (
	PriorityMT Priority = iota
	PriorityHigh
	PriorityMediumHigh
	PriorityMediumLow
	PriorityLow
)

// MOState is the modem's state of a mobile originated message.
type MOState int

const (
	MOUnavailable MOState = 0
	MOReady       MOState = 4
	MOSending     MOState = 5
	MOComplete    MOState = 6
	MOFailed      MOState = 7
)

func (s MOState) Terminal() bool {
	return s == MOComplete || s == MOFailed
}

func (s MOState) String() string {
	switch s {
	case MOUnavailable:
		return "UNAVAILABLE"
	case MOReady:
		return "TX_READY"
	case MOSending:
		return "TX_SENDING"
	case MOComplete:
		return "TX_COMPLETE"
	case MOFailed:
		return "TX_FAILED"
	}
	return "MOState(" + strconv.Itoa(int(s)) + ")"
}

func (s MOState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MTState is the modem's state of a mobile terminated message.
type MTState int

const (
	MTUnavailable MTState = 0
	MTComplete    MTState = 2
	MTRetrieved   MTState = 3
)

func (s MTState) String() string {
	switch s {
	case MTUnavailable:
		return "UNAVAILABLE"
	case MTComplete:
		return "RX_COMPLETE"
	case MTRetrieved:
		return "RX_RETRIEVED"
	}
	return "MTState(" + strconv.Itoa(int(s)) + ")"
}

func (s MTState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Message is a SIN/MIN framed payload. Payload excludes both framing bytes.
type Message struct {
	Name     string   `json:"name,omitempty"`
	SIN      uint8    `json:"sin"`
	MIN      uint8    `json:"min"`
	Priority Priority `json:"priority,omitempty"`
	Format   Format   `json:"format,omitempty"`
	Payload  []byte   `json:"payload"`
}

// Size is the over-the-air size including SIN and MIN.
func (m Message) Size() int {
	return 2 + len(m.Payload)
}

// MaxMOSize is the largest MO message the modem accepts, SIN included.
const MaxMOSize = 6400

func (m Message) validateMO() error {
	switch {
	case m.SIN < 16:
		return fmt.Errorf("%w: SIN %d is reserved", ErrInvalidMessage, m.SIN)
	case m.Priority < PriorityHigh || m.Priority > PriorityLow:
		return fmt.Errorf("%w: priority %d not in 1..4", ErrInvalidMessage, m.Priority)
	case !m.Format.Valid():
		return fmt.Errorf("%w: format %d", ErrInvalidMessage, m.Format)
	case m.Size() > MaxMOSize:
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidMessage, m.Size(), MaxMOSize)
	}
	return nil
}

// EncodePayload renders data in the given AT representation. Text escapes
// anything outside printable ASCII, the quote and the backslash as \XX.
func EncodePayload(data []byte, f Format) (string, error) {
	switch f {
	case FormatText:
		var b strings.Builder
		for _, c := range data {
			if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
				b.WriteByte(c)
				continue
			}
			fmt.Fprintf(&b, "\\%02X", c)
		}
		return b.String(), nil
	case FormatHex:
		return strings.ToUpper(hex.EncodeToString(data)), nil
	case FormatBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return "", fmt.Errorf("%w: format %d", ErrInvalidMessage, f)
}

// DecodePayload reverses EncodePayload. Surrounding quotes on text are
// removed and odd length hex is zero padded.
func DecodePayload(s string, f Format) ([]byte, error) {
	switch f {
	case FormatText:
		s = unquote(s)
		out := make([]byte, 0, len(s))
		for i := 0; i < len(s); i++ {
			if s[i] == '\\' && i+2 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
					out = append(out, byte(v))
					i += 2
					continue
				}
			}
			out = append(out, s[i])
		}
		return out, nil
	case FormatHex:
		if len(s)%2 != 0 {
			s = "0" + s
		}
		return hex.DecodeString(s)
	case FormatBase64:
		return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	}
	return nil, fmt.Errorf("%w: format %d", ErrInvalidMessage, f)
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// moCommand builds the AT%MGRT submission for msg under queueName.
func moCommand(queueName string, msg Message) (string, error) {
	data, err := EncodePayload(msg.Payload, msg.Format)
	if err != nil {
		return "", err
	}
	if msg.Format == FormatText {
		data = `"` + data + `"`
	}
	return fmt.Sprintf(`AT%%MGRT="%s",%d,%d.%d,%d,%s`,
		queueName, msg.Priority, msg.SIN, msg.MIN, msg.Format, data), nil
}

// queueName derives a modem queue name from the last eight digits of the
// unix time, bumped past any name still outstanding.
func queueName(now time.Time, taken func(string) bool) string {
	v := now.Unix() % 1e8
	for {
		name := fmt.Sprintf("%08d", v)
		if !taken(name) {
			return name
		}
		v = (v + 1) % 1e8
	}
}

// MOStatus is one line of AT%MGRS.
type MOStatus struct {
	Name     string  `json:"name"`
	Number   string  `json:"number"`
	Priority int     `json:"priority"`
	SIN      int     `json:"sin"`
	State    MOState `json:"state"`
	Size     int     `json:"size"`
	Sent     int     `json:"sent"`
}

// MTStatus is one line of AT%MGFN.
type MTStatus struct {
	Name     string  `json:"name"`
	Number   string  `json:"number"`
	Priority int     `json:"priority"`
	SIN      int     `json:"sin"`
	State    MTState `json:"state"`
	Length   int     `json:"length"`
	Received int     `json:"received"`
}

// MTMessage is a retrieved mobile terminated message.
type MTMessage struct {
	Message
	QueueName string    `json:"queueName"`
	Number    string    `json:"number"`
	Received  time.Time `json:"received"`
}

// splitFields splits a prefixed response into n comma separated fields;
// the last field keeps any embedded commas.
func splitFields(line, prefix string, n int) ([]string, error) {
	if !strings.HasPrefix(strings.TrimSpace(line), prefix) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedResponse, line)
	}
	rest := at.TrimPrefix(line, prefix)
	fields := strings.SplitN(rest, ",", n)
	if len(fields) != n {
		return nil, fmt.Errorf("%w: %q has %d fields", ErrMalformedResponse, line, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	fields[0] = unquote(fields[0])
	return fields, nil
}

func atoiAll(fields []string, dst ...*int) error {
	for i, p := range dst {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return fmt.Errorf("%w: field %d %q", ErrMalformedResponse, i, fields[i])
		}
		*p = v
	}
	return nil
}

func parseMOStatus(line string) (MOStatus, error) {
	var s MOStatus
	f, err := splitFields(line, at.PrefixMOState, 7)
	if err != nil {
		return s, err
	}
	s.Name, s.Number = f[0], f[1]
	var state int
	err = atoiAll(f[2:], &s.Priority, &s.SIN, &state, &s.Size, &s.Sent)
	s.State = MOState(state)
	return s, err
}

func parseMTStatus(line string) (MTStatus, error) {
	var s MTStatus
	f, err := splitFields(line, at.PrefixMTList, 7)
	if err != nil {
		return s, err
	}
	s.Name, s.Number = f[0], f[1]
	var state int
	err = atoiAll(f[2:], &s.Priority, &s.SIN, &state, &s.Length, &s.Received)
	s.State = MTState(state)
	return s, err
}

// parseMTMessage decodes an AT%MGFG response. The modem omits the SIN from
// the data, so the first data byte is the MIN.
func parseMTMessage(line string) (MTMessage, error) {
	var m MTMessage
	f, err := splitFields(line, at.PrefixMTGet, 8)
	if err != nil {
		return m, err
	}
	var priority, sin, state, length, format int
	if err := atoiAll(f[2:7], &priority, &sin, &state, &length, &format); err != nil {
		return m, err
	}
	if sin < 0 || sin > 255 {
		return m, fmt.Errorf("%w: SIN %d", ErrMalformedResponse, sin)
	}
	data, err := DecodePayload(f[7], Format(format))
	if err != nil {
		return m, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	m.QueueName = f[0]
	m.Number = f[1]
	m.SIN = uint8(sin)
	m.Priority = Priority(priority)
	m.Format = Format(format)
	if len(data) > 0 {
		m.MIN = data[0]
		m.Payload = data[1:]
	}
	return m, nil
}

// pendingMO tracks a submitted message until it reaches a terminal state.
type pendingMO struct {
	msg       Message
	queueName string
	submitted time.Time
	state     MOState
	// listed is set once a %MGRS poll reported the message
	listed bool
	done   func(MOResult)
}

// MOResult reports the terminal state of an MO message.
type MOResult struct {
	Name      string        `json:"name"`
	QueueName string        `json:"queueName"`
	SIN       uint8         `json:"sin"`
	MIN       uint8         `json:"min"`
	State     MOState       `json:"state"`
	Size      int           `json:"size"`
	Latency   time.Duration `json:"latency"`
}

// pendingMT tracks a complete message waiting to be retrieved.
type pendingMT struct {
	status     MTStatus
	received   time.Time
	retrieving bool
	done       []func(MTMessage, error)
}
