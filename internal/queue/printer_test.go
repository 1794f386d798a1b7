package queue

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
}

func TestPrinterLogFormat(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{logOut: &out, evtOut: &bytes.Buffer{}, clock: fixedClock}

	p.Infof("hello %s", "world")
	got := out.String()
	if !strings.HasPrefix(got, "09:30:00 [INFO] hello world") {
		t.Errorf("log line = %q", got)
	}
}

func TestPrinterQuietSuppressesInfoOnly(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{logOut: &out, evtOut: &bytes.Buffer{}, quiet: true, clock: fixedClock}

	p.Debugf("debug")
	p.Infof("info")
	p.Warnf("warn")
	p.Errorf("error")

	got := out.String()
	if strings.Contains(got, "debug") || strings.Contains(got, "info") {
		t.Errorf("quiet mode leaked low-severity logs:\n%s", got)
	}
	if !strings.Contains(got, "warn") || !strings.Contains(got, "error") {
		t.Errorf("quiet mode dropped warnings or errors:\n%s", got)
	}
}

func TestPrinterEventJSONMode(t *testing.T) {
	var evts bytes.Buffer
	p := &Printer{logOut: &bytes.Buffer{}, evtOut: &evts, json: true, clock: fixedClock}

	p.Event(Event{Type: "item", Status: "ok", URL: "https://youtu.be/a?x=1&y=2"})

	var decoded Event
	if err := json.Unmarshal(evts.Bytes(), &decoded); err != nil {
		t.Fatalf("event is not valid JSON: %v\n%s", err, evts.String())
	}
	if decoded.Type != "item" || decoded.Status != "ok" {
		t.Errorf("decoded event = %+v", decoded)
	}
	if strings.Contains(evts.String(), `&`) {
		t.Error("event encoder escaped HTML characters")
	}
}

func TestPrinterEventOffByDefault(t *testing.T) {
	var evts bytes.Buffer
	p := &Printer{logOut: &bytes.Buffer{}, evtOut: &evts, clock: fixedClock}

	p.Event(Event{Type: "item"})
	if evts.Len() != 0 {
		t.Errorf("events emitted without JSON mode: %q", evts.String())
	}
}

func TestPrinterSummary(t *testing.T) {
	var out, evts bytes.Buffer
	p := &Printer{logOut: &out, evtOut: &evts, json: true, clock: fixedClock}

	p.Summary(Summary{Completed: 3, Total: 5, Aborted: true})

	if !strings.Contains(out.String(), "queue aborted: processed 3 of 5 items") {
		t.Errorf("summary log = %q", out.String())
	}
	var decoded Event
	if err := json.Unmarshal(evts.Bytes(), &decoded); err != nil {
		t.Fatalf("summary event: %v", err)
	}
	if decoded.Type != "summary" || decoded.Completed != 3 || decoded.Total != 5 || !decoded.Aborted {
		t.Errorf("summary event = %+v", decoded)
	}
}
