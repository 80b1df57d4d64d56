package twin

import "strings"

// Notification is the event-notification bitmap of S88 (control) and S89
// (status). Bit 0 is the first flag; on the wire the register holds the
// decimal value of the bit string written most significant bit first.
type Notification uint16

const (
	NotifyGNSSFixNew Notification = 1 << iota
	NotifyMTReceived
	NotifyMOComplete
	NotifyNetworkRegistered
	NotifyModemReset
	NotifyJammingAntennaChange
	NotifyModemResetPending
	NotifyWakeupPeriodChanged
	NotifyUTCTimeSet
	NotifyGNSSFixTimeout
	NotifyEventCached
	NotifyPingAcknowledged

	notifyCount = iota
)

// NotifyAll has every defined flag set.
const NotifyAll Notification = 1<<notifyCount - 1

var notificationNames = [notifyCount]string{
	"gnss_fix_new",
	"message_mt_received",
	"message_mo_complete",
	"network_registered",
	"modem_reset",
	"jamming_antenna_change",
	"modem_reset_pending",
	"wakeup_period_changed",
	"utc_time_set",
	"gnss_fix_timeout",
	"event_cached",
	"network_ping_acknowledged",
}

// ParseNotification returns the flag with the given name.
func ParseNotification(name string) (Notification, bool) {
	for i, n := range notificationNames {
		if n == name {
			return 1 << i, true
		}
	}
	return 0, false
}

// Names lists the set flags in bit order.
func (n Notification) Names() []string {
	var out []string
	for i, name := range notificationNames {
		if n&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	return out
}

func (n Notification) String() string {
	return strings.Join(n.Names(), "|")
}

// Map expands the bitmap into name -> enabled for every defined flag.
func (n Notification) Map() map[string]bool {
	out := make(map[string]bool, notifyCount)
	for i, name := range notificationNames {
		out[name] = n&(1<<i) != 0
	}
	return out
}

// PackNotifications renders the S88/S89 register value. The modem reads the
// register as a bit string written most significant bit first, so the last
// flag leads and bit 0 (gnss_fix_new) is the rightmost digit; its decimal
// value is the flag set itself. Undefined bits are dropped.
func PackNotifications(n Notification) int {
	return int(n & NotifyAll)
}

// UnpackNotifications parses a register value. Bits beyond the defined
// flags are ignored.
func UnpackNotifications(value int) Notification {
	return Notification(uint16(value)) & NotifyAll
}
