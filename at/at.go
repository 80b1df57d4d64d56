package at

import "strings"

const (
	// Terminal Control
	CR   = "\r"
	LF   = "\n"
	CRLF = "\r\n"

	// CRCPrefix introduces the checksum appended to commands and responses
	// when CRC framing is enabled (S64 default '*').
	CRCPrefix = "*"

	// Verbose Result Codes
	OK    = "OK"
	ERROR = "ERROR"

	// Numeric Result Codes (verbose off)
	CodeOK    = "0"
	CodeError = "4"
)

// Commands
const (
	CmdAt              = "AT"
	CmdRestoreNVM      = "ATZ"
	CmdFactoryDefaults = "AT&F"
	CmdSaveNVM         = "AT&W"
	CmdConfigReport    = "AT&V"
	CmdEchoOff         = "ATE0"
	CmdEchoOn          = "ATE1"
	CmdVerboseOff      = "ATV0"
	CmdVerboseOn       = "ATV1"
	CmdQuietOff        = "ATQ0"
	CmdQuietOn         = "ATQ1"
	CmdCRCOn           = "AT%CRC=1"
	CmdCRCOff          = "AT%CRC=0"
	CmdMobileID        = "AT+GSN"
	CmdVersion         = "AT+GMR"
	CmdUTC             = "AT%UTC"

	// S80 holds the last error code; S61 mirrors quiet mode.
	CmdLastError  = "ATS80?"
	CmdQuietQuery = "ATS61?"

	// Trace class 3 subclass 1: index 22 is the satellite control state and
	// index 15 the C/N0 x100.
	CmdSatStatus = "ATS90=3 S91=1 S92=1 S122? S116?"

	CmdMOState       = "AT%MGRS"
	CmdMOList        = "AT%MGRL"
	CmdMTList        = "AT%MGFN"
	CmdNotifyControl = "ATS88?"
	CmdNotifyStatus  = "ATS89?"

	// DirectiveCRCOn is matched anywhere in a command line; the response to
	// such a command already carries a CRC suffix.
	DirectiveCRCOn = "%CRC=1"
)

// Response prefixes
const (
	PrefixMobileID = "+GSN:"
	PrefixVersion  = "+GMR:"
	PrefixMOState  = "%MGRS:"
	PrefixMOList   = "%MGRL:"
	PrefixMTList   = "%MGFN:"
	PrefixMTGet    = "%MGFG:"
	PrefixGNSS     = "%GPS:"
	PrefixUTC      = "%UTC:"
)

type ResponseType int

const (
	TypeFinal ResponseType = iota // OK, ERROR, numeric codes
	TypeCRC                       // *HHHH checksum suffix
	TypeData                      // Intermediate command output (%MGRS: ...)
)

// Classify identifies the nature of a trimmed modem output line.
func Classify(line string) ResponseType {
	switch {
	case IsResult(line):
		return TypeFinal
	case strings.HasPrefix(line, CRCPrefix) && len(line) == 5:
		return TypeCRC
	default:
		return TypeData
	}
}

// IsResult reports whether the trimmed line is a verbose result code.
func IsResult(line string) bool {
	return line == OK || line == ERROR
}

// IsErrorResult reports whether a result code, verbose or numeric, signals
// a failed command.
func IsErrorResult(result string) bool {
	result = strings.TrimSpace(result)
	return result != OK && result != CodeOK
}

// StripCommand removes a trailing CRC suffix and surrounding whitespace from
// a command line.
func StripCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if i := strings.LastIndex(cmd, CRCPrefix); i >= 0 && len(cmd)-i == 5 {
		if isHex(cmd[i+1:]) {
			return cmd[:i]
		}
	}
	return cmd
}

// TrimPrefix removes a response prefix such as "%MGRS:" and surrounding
// whitespace.
func TrimPrefix(line, prefix string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), prefix))
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'F', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return s != ""
}
