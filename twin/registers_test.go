package twin

import (
	"errors"
	"testing"
)

func TestValidateWrite(t *testing.T) {
	tests := []struct {
		name  string
		reg   int
		value int
		want  error
	}{
		{"wakeup interval", RegWakeupInterval, 6, nil},
		{"wakeup out of range", RegWakeupInterval, 11, ErrRegisterRange},
		{"negative standby timeout", 36, -1, nil},
		{"fix timeout below range", RegGNSSFixTimeout, 59, ErrRegisterRange},
		{"last error is read only", RegLastError, 0, ErrReadOnlyRegister},
		{"notification status is read only", RegNotifyStatus, 1, ErrReadOnlyRegister},
		{"unknown register", 200, 0, ErrUnknownRegister},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWrite(tt.reg, tt.value)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseRegisterName(t *testing.T) {
	for _, name := range []string{"S51", "s51", "51", " S51 "} {
		n, err := ParseRegisterName(name)
		if err != nil || n != 51 {
			t.Errorf("ParseRegisterName(%q) = %d, %v", name, n, err)
		}
	}
	if _, err := ParseRegisterName("S1"); !errors.Is(err, ErrUnknownRegister) {
		t.Errorf("expected ErrUnknownRegister, got %v", err)
	}
	if _, err := ParseRegisterName("Sx"); !errors.Is(err, ErrUnknownRegister) {
		t.Errorf("expected ErrUnknownRegister, got %v", err)
	}
}

func TestRegistersParseReport(t *testing.T) {
	r := NewRegisters()
	if v, _ := r.Get(RegGNSSFixTimeout); v != 180 {
		t.Fatalf("expected default 180, got %d", v)
	}

	err := r.ParseReport("S0:000 S3:013 S4:010 S41:300 S51:003 S999:001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := r.Get(RegGNSSFixTimeout); v != 300 {
		t.Errorf("S41 = %d, want 300", v)
	}
	if v, _ := r.Get(RegWakeupInterval); v != 3 {
		t.Errorf("S51 = %d, want 3", v)
	}
	if got := r.NonDefault(); len(got) != 2 || got[0] != RegGNSSFixTimeout || got[1] != RegWakeupInterval {
		t.Errorf("NonDefault = %v", got)
	}
	if snap := r.Snapshot(); snap["S41"] != 300 {
		t.Errorf("snapshot S41 = %d", snap["S41"])
	}

	if err := r.ParseReport("S0=000"); err == nil {
		t.Error("expected error for malformed field")
	}

	r.Reset()
	if len(r.NonDefault()) != 0 {
		t.Error("expected defaults after Reset")
	}
}

func TestCatalogTraceData(t *testing.T) {
	for n := 100; n <= 123; n++ {
		d, ok := LookupRegister(n)
		if !ok || !d.ReadOnly {
			t.Fatalf("S%d missing or writable", n)
		}
	}
	if _, ok := LookupRegister(124); ok {
		t.Fatal("S124 should not exist")
	}
}
