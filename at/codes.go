package at

import "strconv"

// Result codes reported by S80 (last error) or as numeric results when
// verbose mode is off.
const (
	ResultOK                     = 0
	ResultError                  = 4
	ResultInvalidCRCSequence     = 100
	ResultUnknownCommand         = 101
	ResultInvalidParameters      = 102
	ResultMessageLengthExceeded  = 103
	ResultSystemError            = 105
	ResultQueueInsufficient      = 106
	ResultMessageNameInUse       = 107
	ResultTimeoutOccurred        = 108
	ResultUnavailable            = 109
	ResultWriteReadOnlyParameter = 112
)

var resultNames = map[int]string{
	ResultOK:                     "OK",
	ResultError:                  "ERROR",
	ResultInvalidCRCSequence:     "ERR_INVALID_CRC_SEQUENCE",
	ResultUnknownCommand:         "ERR_UNKNOWN_COMMAND",
	ResultInvalidParameters:      "ERR_INVALID_COMMAND_PARAMETERS",
	ResultMessageLengthExceeded:  "ERR_MESSAGE_LENGTH_EXCEEDS_FORMAT_SIZE",
	104:                          "ERR_RESERVED_104",
	ResultSystemError:            "ERR_SYSTEM_ERROR",
	ResultQueueInsufficient:      "ERR_QUEUE_INSUFFICIENT_RESOURCES",
	ResultMessageNameInUse:       "ERR_MESSAGE_NAME_ALREADY_IN_USE",
	ResultTimeoutOccurred:        "ERR_TIMEOUT_OCCURRED",
	ResultUnavailable:            "ERR_UNAVAILABLE",
	110:                          "ERR_RESERVED_110",
	111:                          "ERR_RESERVED_111",
	ResultWriteReadOnlyParameter: "ERR_ATTEMPT_TO_WRITE_READ_ONLY_PARAMETER",
}

// ResultName returns the human readable name of a result code.
func ResultName(code int) string {
	if name, ok := resultNames[code]; ok {
		return name
	}
	return "UNDEFINED_" + strconv.Itoa(code)
}
