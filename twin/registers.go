package twin

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Register numbers the twin reads or writes itself.
const (
	RegGNSSMode         = 39
	RegGNSSFixTimeout   = 41
	RegPowerMode        = 50
	RegWakeupInterval   = 51
	RegGNSSContinuous   = 55
	RegJammingStatus    = 56
	RegJammingIndicator = 57
	RegQuiet            = 61
	RegCRC              = 63
	RegLastError        = 80
	RegNotifyControl    = 88
	RegNotifyStatus     = 89
)

// RegisterDef is a fixed catalog entry describing one S-register.
type RegisterDef struct {
	Number      int
	Default     int
	ReadOnly    bool
	Min, Max    int
	Description string
}

func (d RegisterDef) Name() string {
	return "S" + strconv.Itoa(d.Number)
}

var catalog = func() map[int]RegisterDef {
	defs := []RegisterDef{
		{0, 0, true, 0, 255, "auto answer"},
		{3, 13, false, 1, 127, "command termination character"},
		{4, 10, false, 0, 127, "response formatting character"},
		{5, 8, false, 0, 127, "command line editing character"},
		{6, 0, true, 0, 255, "pause before dial"},
		{7, 0, true, 0, 255, "connection completion timeout"},
		{8, 0, true, 0, 255, "comma dial modifier time"},
		{10, 0, true, 0, 255, "automatic discovery delay"},
		{31, 80, false, 10, 250, "DOP threshold (x10)"},
		{32, 25, false, 1, 1000, "position accuracy threshold [m]"},
		{33, 0, false, 0, 8, "default dynamic platform model"},
		{34, 7, true, 0, 255, "Doppler dynamic platform model"},
		{35, 0, false, 0, 255, "static hold threshold [cm/s]"},
		{36, 0, false, -1, 480, "standby timeout [min]"},
		{37, 200, false, 1, 1000, "speed accuracy threshold"},
		{38, 1, true, 0, 255, "reserved"},
		{RegGNSSMode, 0, false, 0, 12, "GNSS mode"},
		{40, 0, false, 0, 60, "GNSS signal satellite detection timeout"},
		{RegGNSSFixTimeout, 180, false, 60, 1200, "GNSS fix timeout"},
		{42, 65535, false, 0, 65535, "GNSS augmentation systems"},
		{RegPowerMode, 0, false, 0, 9, "power mode"},
		{RegWakeupInterval, 0, false, 0, 10, "wakeup interval"},
		{52, 2500, true, 0, 2500, "reserved"},
		{53, 0, true, 0, 255, "satcom control"},
		{54, 0, true, 0, 255, "satcom status"},
		{RegGNSSContinuous, 0, false, 0, 30, "GNSS continuous mode"},
		{RegJammingStatus, 0, true, 0, 255, "GNSS jamming status"},
		{RegJammingIndicator, 0, true, 0, 255, "GNSS jamming indicator"},
		{60, 1, false, 0, 1, "echo"},
		{RegQuiet, 0, false, 0, 1, "quiet"},
		{62, 1, false, 0, 1, "verbose"},
		{RegCRC, 0, false, 0, 1, "CRC"},
		{64, 42, false, 0, 255, "prefix character of CRC sequence"},
		{70, 0, true, 0, 255, "reserved"},
		{71, 0, true, 0, 255, "reserved"},
		{RegLastError, 0, true, 0, 255, "last error code"},
		{81, 0, true, 0, 255, "most recent result code"},
		{85, 22, true, -128, 127, "temperature"},
		{RegNotifyControl, 0, false, 0, 65535, "event notification control"},
		{RegNotifyStatus, 0, true, 0, 65535, "event notification status"},
		{90, 0, false, 0, 7, "capture trace define - class"},
		{91, 0, false, 0, 31, "capture trace define - subclass"},
		{92, 0, false, 0, 255, "capture trace define - initiate"},
		{93, 0, true, 0, 255, "captured trace property - data size"},
		{94, 0, true, 0, 255, "captured trace property - signed indicator"},
		{95, 0, true, 0, 255, "captured trace property - mobile ID"},
		{96, 0, true, 0, 255, "captured trace property - timestamp"},
		{97, 0, true, 0, 255, "captured trace property - class"},
		{98, 0, true, 0, 255, "captured trace property - subclass"},
		{99, 0, true, 0, 255, "captured trace property - severity"},
	}
	m := make(map[int]RegisterDef, len(defs)+24)
	for _, d := range defs {
		m[d.Number] = d
	}
	for i := 0; i < 24; i++ {
		n := 100 + i
		m[n] = RegisterDef{n, 0, true, 0, 65535, "captured trace data " + strconv.Itoa(i)}
	}
	return m
}()

// LookupRegister returns the catalog entry for register n.
func LookupRegister(n int) (RegisterDef, bool) {
	d, ok := catalog[n]
	return d, ok
}

// ParseRegisterName accepts "S51", "s51" or "51".
func ParseRegisterName(name string) (int, error) {
	name = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "S")
	n, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownRegister, name)
	}
	if _, ok := catalog[n]; !ok {
		return 0, fmt.Errorf("%w: S%d", ErrUnknownRegister, n)
	}
	return n, nil
}

// ValidateWrite checks that value may be written to register n.
func ValidateWrite(n, value int) error {
	d, ok := catalog[n]
	switch {
	case !ok:
		return fmt.Errorf("%w: S%d", ErrUnknownRegister, n)
	case d.ReadOnly:
		return fmt.Errorf("%w: %s", ErrReadOnlyRegister, d.Name())
	case value < d.Min || value > d.Max:
		return fmt.Errorf("%w: %s=%d not in [%d, %d]", ErrRegisterRange, d.Name(), value, d.Min, d.Max)
	}
	return nil
}

// Registers mirrors the modem's S-registers. Unread registers hold their
// catalog default.
type Registers struct {
	values map[int]int
}

func NewRegisters() *Registers {
	r := &Registers{values: make(map[int]int, len(catalog))}
	r.Reset()
	return r
}

// Reset restores every register to its catalog default.
func (r *Registers) Reset() {
	for n, d := range catalog {
		r.values[n] = d.Default
	}
}

func (r *Registers) Get(n int) (int, bool) {
	v, ok := r.values[n]
	return v, ok
}

// Store records a value reported by the modem. Read-only registers are
// accepted since the modem owns them.
func (r *Registers) Store(n, value int) {
	if _, ok := catalog[n]; ok {
		r.values[n] = value
	}
}

// ParseReport folds the register line of an AT&V report into the mirror,
// e.g. "S0:000 S3:013 S4:010".
func (r *Registers) ParseReport(line string) error {
	for _, f := range strings.Fields(line) {
		name, value, ok := strings.Cut(f, ":")
		if !ok {
			return fmt.Errorf("malformed register field %q", f)
		}
		n, err := ParseRegisterName(name)
		if err != nil {
			continue
		}
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
		r.Store(n, v)
	}
	return nil
}

// NonDefault returns the registers whose mirrored value differs from the
// catalog default, in ascending order.
func (r *Registers) NonDefault() []int {
	var out []int
	keys := make([]int, 0, len(r.values))
	for n := range r.values {
		keys = append(keys, n)
	}
	slices.Sort(keys)
	for _, n := range keys {
		if r.values[n] != catalog[n].Default {
			out = append(out, n)
		}
	}
	return out
}

// Snapshot returns a copy keyed by register name.
func (r *Registers) Snapshot() map[string]int {
	out := make(map[string]int, len(r.values))
	for n, v := range r.values {
		out["S"+strconv.Itoa(n)] = v
	}
	return out
}
