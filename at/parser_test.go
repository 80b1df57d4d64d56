package at_test

import (
	"testing"

	"i4.energy/across/idpgw/at"
)

func feed(p *at.Parser, input string) []at.Event {
	var events []at.Event
	for i := 0; i < len(input); i++ {
		if ev, ok := p.Feed(input[i], i < len(input)-1); ok {
			events = append(events, ev)
		}
	}
	return events
}

func types(events []at.Event) []at.EventType {
	out := make([]at.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestParserCommandResponses(t *testing.T) {
	tests := []struct {
		name     string
		session  at.Session
		command  string
		input    string
		expected []at.EventType
		result   string
	}{
		{
			name:     "Echo with verbose OK",
			session:  at.DefaultSession(),
			command:  "ATZ",
			input:    "ATZ\r\r\nOK\r\n",
			expected: []at.EventType{at.EventEcho, at.EventEmptyLine, at.EventResult},
			result:   "OK",
		},
		{
			name:     "Echo off verbose ERROR",
			session:  at.Session{Verbose: true},
			command:  "AT%MGFG=\"FM01.01\",1",
			input:    "\r\nERROR\r\n",
			expected: []at.EventType{at.EventEmptyLine, at.EventResult},
			result:   "ERROR",
		},
		{
			name:     "Response line",
			session:  at.DefaultSession(),
			command:  "AT+GSN",
			input:    "AT+GSN\r\r\n+GSN: 01234567SKYEE3D\r\n\r\nOK\r\n",
			expected: []at.EventType{at.EventEcho, at.EventEmptyLine, at.EventLine, at.EventEmptyLine, at.EventResult},
			result:   "OK",
		},
		{
			name:     "Numeric result",
			session:  at.Session{Echo: true},
			command:  "ATZ",
			input:    "ATZ\r0\r",
			expected: []at.EventType{at.EventEcho, at.EventResult},
			result:   "0",
		},
		{
			name:     "Numeric result of verbose off command",
			session:  at.DefaultSession(),
			command:  "ATV0",
			input:    "ATV0\r0\r",
			expected: []at.EventType{at.EventEcho, at.EventResult},
			result:   "0",
		},
		{
			name:     "Numeric error after response line",
			session:  at.Session{},
			command:  "ATS80?",
			input:    "104\r\n4\r",
			expected: []at.EventType{at.EventLine, at.EventResult},
			result:   "4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := at.NewParser(tt.session)
			p.Expect(tt.command)
			events := feed(p, tt.input)

			got := types(events)
			if len(got) != len(tt.expected) {
				t.Fatalf("Expected events %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("Event %d: expected %v, got %v", i, tt.expected[i], got[i])
				}
			}

			last := events[len(events)-1]
			if !last.Terminal {
				t.Error("Expected last event to be terminal")
			}
			if last.Text != tt.result {
				t.Errorf("Expected result %q, got %q", tt.result, last.Text)
			}
			for _, ev := range events[:len(events)-1] {
				if ev.Terminal {
					t.Errorf("Unexpected terminal event %v before result", ev.Type)
				}
			}
		})
	}
}

func TestParserCRC(t *testing.T) {
	p := at.NewParser(at.Session{Echo: true, Verbose: true, CRC: true})
	cmd := at.AppendCRC("AT+GSN")
	p.Expect(cmd)

	events := feed(p, cmd+"\r\r\n+GSN: 01234567SKYEE3D\r\n\r\nOK\r\n*153D\r\n")
	if len(events) != 6 {
		t.Fatalf("Expected 6 events, got %v", types(events))
	}

	result := events[4]
	if result.Type != at.EventResult || result.Terminal {
		t.Errorf("Expected non-terminal result, got %+v", result)
	}

	crc := events[5]
	if crc.Type != at.EventCRC || !crc.Terminal || crc.Text != "153D" {
		t.Errorf("Unexpected CRC event %+v", crc)
	}
	if !at.ValidateCRC(p.ResponseText(), crc.Text) {
		t.Errorf("Response text %q failed CRC validation", p.ResponseText())
	}
	if !p.Session().CRC {
		t.Error("Expected CRC framing to be inferred")
	}
}

func TestParserEnableCRC(t *testing.T) {
	p := at.NewParser(at.DefaultSession())
	p.Expect("AT%CRC=1")

	if !p.CRCExpected() {
		t.Fatal("Expected CRC for enabling command")
	}

	events := feed(p, "AT%CRC=1\r\r\nOK\r\n*86C5\r\n")
	if got := types(events); len(got) != 4 || got[3] != at.EventCRC {
		t.Fatalf("Unexpected events %v", got)
	}
	if p.ResponseText() != "\r\nOK\r\n" {
		t.Errorf("Unexpected response text %q", p.ResponseText())
	}
}

func TestParserDelayedLineFeed(t *testing.T) {
	p := at.NewParser(at.DefaultSession())
	p.Expect("AT")

	events := feed(p, "AT\r\r\nOK\r")
	for _, ev := range events {
		if ev.Terminal {
			t.Fatalf("Unexpected terminal event %+v before <lf>", ev)
		}
	}

	ev, ok := p.Feed('\n', false)
	if !ok || ev.Type != at.EventResult || !ev.Terminal {
		t.Errorf("Expected terminal result, got %+v", ev)
	}
}

func TestParserSessionInference(t *testing.T) {
	p := at.NewParser(at.Session{})
	p.Expect("AT")
	feed(p, "AT\r\r\nOK\r\n")

	s := p.Session()
	if !s.Echo || !s.Verbose {
		t.Errorf("Expected echo and verbose to be inferred, got %s", s)
	}

	p.Expect("ATE0")
	feed(p, "ATE0\r\r\nOK\r\n")
	if p.Session().Echo {
		t.Error("Expected echo off after ATE0 echo")
	}
}

func TestParserUnsolicited(t *testing.T) {
	p := at.NewParser(at.DefaultSession())

	events := feed(p, "\r\nNOTIFY\r\n\r\n%GPS: $GPRMC\r\n")
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %v", types(events))
	}
	if events[0].Type != at.EventUnsolicited || events[0].Text != "NOTIFY\r\n" {
		t.Errorf("Unexpected event %+v", events[0])
	}
	if events[1].Text != "%GPS: $GPRMC\r\n" {
		t.Errorf("Unexpected event %+v", events[1])
	}

	p.Expect("AT")
	if !p.Expecting() {
		t.Error("Expected command mode")
	}
	p.Idle()
	if p.Expecting() {
		t.Error("Expected unsolicited mode")
	}
}

func TestParserOverflow(t *testing.T) {
	p := at.NewParser(at.DefaultSession())
	p.Expect("AT%MGFG=\"FM01.01\",3")

	var overflow bool
	for i := 0; i < at.MaxLineLength+1; i++ {
		if ev, ok := p.Feed('A', true); ok && ev.Type == at.EventOverflow {
			overflow = true
		}
	}
	if !overflow {
		t.Error("Expected overflow event")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input    string
		expected at.ResponseType
	}{
		{input: "OK", expected: at.TypeFinal},
		{input: "ERROR", expected: at.TypeFinal},
		{input: "*153D", expected: at.TypeCRC},
		{input: "%MGRS: \"BOOK\",1,2,128,6,10,10", expected: at.TypeData},
		{input: "+GSN: 01234567SKYEE3D", expected: at.TypeData},
	}
	for _, tt := range tests {
		if got := at.Classify(tt.input); got != tt.expected {
			t.Errorf("Classify(%q): expected %v, got %v", tt.input, tt.expected, got)
		}
	}
}
