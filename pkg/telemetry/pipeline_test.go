// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

// ============================================================
// Test Helpers
// ============================================================

// scenarioChunk is a 12-value frame with the sentinel at 6 and sample 7 at 11
const scenarioChunk = "00 01 02 03 04 05 AB 07 08 09 0A 07"

// frameWithSample builds a 12-value frame carrying the sentinel and value
func frameWithSample(seq uint64, value byte) *Frame {
	values := []byte{0, 1, 2, 3, 4, 5, DefaultSentinelValue, 7, 8, 9, 10, value}
	return NewFrame(seq, values, time.Now())
}

type recordingPlot struct {
	mu      sync.Mutex
	redraws [][]float64
}

func (p *recordingPlot) Redraw(values []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]float64, len(values))
	copy(cp, values)
	p.redraws = append(p.redraws, cp)
}

func (p *recordingPlot) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.redraws)
}

type recordingStatus struct {
	mu       sync.Mutex
	messages []string
	errors   int
}

func (s *recordingStatus) Report(message string, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	if isError {
		s.errors++
	}
}

func (s *recordingStatus) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

// ============================================================
// Frame Layout Tests
// ============================================================

func TestFrameLayout_Matches(t *testing.T) {
	layout := DefaultFrameLayout()
	values, _ := DecodePairs([]byte(scenarioChunk))

	if !layout.Matches(values) {
		t.Error("expected scenario chunk to match")
	}
	if layout.Matches(values[:6]) {
		t.Error("expected 6 values to be too short for the sentinel")
	}

	values[6] = 0xAA
	if layout.Matches(values) {
		t.Error("expected wrong sentinel value to not match")
	}
}

func TestFrameLayout_PayloadTooShort(t *testing.T) {
	layout := DefaultFrameLayout()
	values := []byte{0, 0, 0, 0, 0, 0, 0xAB, 0, 0, 0, 0}

	if !layout.Matches(values) {
		t.Fatal("expected 11 values with sentinel to match")
	}
	if _, ok := layout.Payload(values); ok {
		t.Error("expected no payload with 11 values")
	}
}

func TestFrameLayout_Validate(t *testing.T) {
	if err := DefaultFrameLayout().Validate(); err != nil {
		t.Errorf("expected default layout to be valid, got %v", err)
	}
	bad := FrameLayout{SentinelOffset: -1}
	if err := bad.Validate(); err == nil {
		t.Error("expected negative sentinel offset to be rejected")
	}
	bad = FrameLayout{PayloadOffset: -3}
	if err := bad.Validate(); err == nil {
		t.Error("expected negative payload offset to be rejected")
	}
}

func TestFrameLayout_DetectCopiesValues(t *testing.T) {
	layout := DefaultFrameLayout()
	values, _ := DecodePairs([]byte(scenarioChunk))

	frame, ok := layout.Detect(3, values, time.Now())
	if !ok {
		t.Fatal("expected detection")
	}
	values[11] = 0x99
	if frame.Values()[11] != 0x07 {
		t.Errorf("expected frame to keep its own copy, got 0x%02X", frame.Values()[11])
	}
	if frame.Sequence() != 3 {
		t.Errorf("expected sequence 3, got %d", frame.Sequence())
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		values []byte
		first  []byte
		second []byte
	}{
		{[]byte{1, 2, 3, 4}, []byte{1, 2}, []byte{3, 4}},
		{[]byte{1, 2, 3, 4, 5}, []byte{1, 2}, []byte{3, 4, 5}},
		{[]byte{1}, []byte{}, []byte{1}},
		{[]byte{}, []byte{}, []byte{}},
	}

	for _, tt := range tests {
		first, second := Split(tt.values)
		if !bytes.Equal(first, tt.first) || !bytes.Equal(second, tt.second) {
			t.Errorf("Split(% X): expected (% X | % X), got (% X | % X)",
				tt.values, tt.first, tt.second, first, second)
		}
	}
}

// ============================================================
// Reassembler Tests
// ============================================================

func TestReassembler_ResetAtLimit(t *testing.T) {
	r := NewReassembler(200)

	n, reset := r.Append(make([]byte, 150))
	if n != 150 || reset {
		t.Fatalf("expected 150 buffered without reset, got %d reset=%v", n, reset)
	}

	n, reset = r.Append(make([]byte, 60))
	if n != 0 || !reset {
		t.Errorf("expected reset to 0 at 210, got %d reset=%v", n, reset)
	}
	if r.Resets() != 1 {
		t.Errorf("expected 1 reset, got %d", r.Resets())
	}
}

func TestReassembler_ExactLimitResets(t *testing.T) {
	r := NewReassembler(10)
	if n, reset := r.Append(make([]byte, 10)); n != 0 || !reset {
		t.Errorf("expected reset at exactly the limit, got %d reset=%v", n, reset)
	}
}

func TestReassembler_DefaultLimit(t *testing.T) {
	r := NewReassembler(0)
	if r.Limit() != DefaultAccumulationLimit {
		t.Errorf("expected default limit %d, got %d", DefaultAccumulationLimit, r.Limit())
	}
}

func TestReassembler_Snapshot(t *testing.T) {
	r := NewReassembler(10)
	r.Append([]byte{1, 2})
	r.Append([]byte{3})

	snap := r.Snapshot()
	if !bytes.Equal(snap, []byte{1, 2, 3}) {
		t.Errorf("expected [01 02 03], got % X", snap)
	}
	snap[0] = 9
	if r.Snapshot()[0] != 1 {
		t.Error("expected snapshot to be a copy")
	}
}

// ============================================================
// Series Tests
// ============================================================

func TestSeries_AppendOrder(t *testing.T) {
	s := NewSeries(0)
	for i := byte(0); i < 5; i++ {
		sample := s.Append(i*2, uint64(i), time.Now())
		if sample.Index != uint64(i) {
			t.Errorf("expected index %d, got %d", i, sample.Index)
		}
	}

	values := s.Values()
	expected := []float64{0, 2, 4, 6, 8}
	if len(values) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(values))
	}
	for i := range expected {
		if values[i] != expected[i] {
			t.Errorf("index %d: expected %v, got %v", i, expected[i], values[i])
		}
	}
}

func TestSeries_Window(t *testing.T) {
	s := NewSeries(3)
	for i := byte(1); i <= 5; i++ {
		s.Append(i, 0, time.Now())
	}

	if s.Len() != 3 {
		t.Errorf("expected 3 retained samples, got %d", s.Len())
	}
	if s.Total() != 5 {
		t.Errorf("expected 5 total samples, got %d", s.Total())
	}
	snap := s.Snapshot()
	if snap[0].Value != 3 || snap[0].Index != 2 {
		t.Errorf("expected oldest retained sample 3 at index 2, got %d at %d", snap[0].Value, snap[0].Index)
	}
	last, ok := s.Last()
	if !ok || last.Value != 5 {
		t.Errorf("expected last sample 5, got %d (ok=%v)", last.Value, ok)
	}
}

func TestSeries_Empty(t *testing.T) {
	s := NewSeries(0)
	if _, ok := s.Last(); ok {
		t.Error("expected no last sample")
	}
	if len(s.Values()) != 0 {
		t.Error("expected no values")
	}
}

// ============================================================
// Processor Tests
// ============================================================

func TestProcessor_ScenarioSample(t *testing.T) {
	plot := &recordingPlot{}
	var shown string
	p := NewProcessor(ProcessorConfig{
		Layout:  DefaultFrameLayout(),
		Plot:    plot,
		Display: DisplayFunc(func(text string) { shown = text }),
	})

	values, _ := DecodePairs([]byte(scenarioChunk))
	frame, ok := DefaultFrameLayout().Detect(1, values, time.Now())
	if !ok {
		t.Fatal("expected scenario chunk to be detected")
	}

	res, err := p.Process(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sample == nil || res.Sample.Value != 7 {
		t.Fatalf("expected sample 7, got %+v", res.Sample)
	}
	if shown != "7 V" {
		t.Errorf("expected display %q, got %q", "7 V", shown)
	}
	if plot.count() != 1 {
		t.Errorf("expected 1 redraw, got %d", plot.count())
	}
	if len(res.FirstHalf) != 6 || len(res.SecondHalf) != 6 {
		t.Errorf("expected 6|6 halves, got %d|%d", len(res.FirstHalf), len(res.SecondHalf))
	}
}

func TestProcessor_ShortFrameNoSample(t *testing.T) {
	plot := &recordingPlot{}
	p := NewProcessor(ProcessorConfig{Layout: DefaultFrameLayout(), Plot: plot})

	frame := NewFrame(1, []byte{0, 0, 0, 0, 0, 0, 0xAB, 0, 0, 0, 0}, time.Now())
	res, err := p.Process(frame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Sample != nil {
		t.Errorf("expected no sample, got %+v", res.Sample)
	}
	if plot.count() != 0 {
		t.Errorf("expected no redraw, got %d", plot.count())
	}
	if p.Series().Len() != 0 {
		t.Errorf("expected empty series, got %d", p.Series().Len())
	}
}

func TestProcessor_ConcurrentDispatch(t *testing.T) {
	const frames = 200
	plot := &recordingPlot{}
	var forwarded sync.Map
	p := NewProcessor(ProcessorConfig{
		Layout: DefaultFrameLayout(),
		Plot:   plot,
		Forwarders: []SampleForwarder{ForwardFunc(func(s Sample) {
			forwarded.Store(s.Index, s.Value)
		})},
	})

	for i := 0; i < frames; i++ {
		p.Dispatch(frameWithSample(uint64(i), byte(i)))
	}
	p.Wait()

	if p.Series().Len() != frames {
		t.Errorf("expected %d samples, got %d", frames, p.Series().Len())
	}
	if plot.count() != frames {
		t.Errorf("expected %d redraws, got %d", frames, plot.count())
	}

	// each redraw sees exactly one more sample than the previous one
	plot.mu.Lock()
	for i, redraw := range plot.redraws {
		if len(redraw) != i+1 {
			t.Errorf("redraw %d: expected %d values, got %d", i, i+1, len(redraw))
			break
		}
	}
	plot.mu.Unlock()

	seen := make(map[byte]bool)
	for _, s := range p.Series().Snapshot() {
		if seen[s.Value] {
			t.Errorf("sample %d stored twice", s.Value)
		}
		seen[s.Value] = true
	}

	count := 0
	forwarded.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count != frames {
		t.Errorf("expected %d forwarded samples, got %d", frames, count)
	}
}

func TestProcessor_PanicReported(t *testing.T) {
	status := &recordingStatus{}
	stats := NewStatistics()
	p := NewProcessor(ProcessorConfig{
		Layout:  DefaultFrameLayout(),
		Display: DisplayFunc(func(string) { panic("display gone") }),
		Status:  status,
		Stats:   stats,
	})

	_, err := p.Process(frameWithSample(9, 1))
	if err == nil {
		t.Fatal("expected error from panicking sink")
	}
	if !strings.Contains(status.last(), "display gone") {
		t.Errorf("expected status to carry the panic, got %q", status.last())
	}
	if stats.Snapshot().ProcessFaults != 1 {
		t.Errorf("expected 1 process fault, got %d", stats.Snapshot().ProcessFaults)
	}

	if !p.mu.TryLock() {
		t.Fatal("processor lock still held after panic")
	}
	p.mu.Unlock()
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Counters(t *testing.T) {
	s := NewStatistics()
	s.RecordChunk(36, 12, 1)
	s.RecordChunk(10, 5, 0)
	s.RecordBufferReset()
	s.RecordFrame()
	s.RecordSample()
	s.RecordLogFault()

	snap := s.Snapshot()
	if snap.Chunks != 2 || snap.Bytes != 46 || snap.Values != 17 {
		t.Errorf("unexpected chunk counters: %+v", snap)
	}
	if snap.DecodeFaults != 1 || snap.BufferResets != 1 || snap.Frames != 1 || snap.Samples != 1 {
		t.Errorf("unexpected event counters: %+v", snap)
	}
	if snap.TotalFaults() != 2 {
		t.Errorf("expected 2 total faults, got %d", snap.TotalFaults())
	}
	if !strings.HasPrefix(s.String(), "=== Statistics (") {
		t.Error("expected statistics banner")
	}

	s.Reset()
	if s.Snapshot().Chunks != 0 {
		t.Error("expected counters cleared by Reset")
	}
}

// ============================================================
// Transcript Tests
// ============================================================

func TestTranscript_Lines(t *testing.T) {
	tr := NewTranscript()
	tr.Append("first\r\nsecond\r\n")
	tr.Append("third")

	lines := tr.Lines()
	expected := []string{"first", "second", "third"}
	if len(lines) != len(expected) {
		t.Fatalf("expected %d lines, got %d: %q", len(expected), len(lines), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], lines[i])
		}
	}

	tail := tr.Tail(2)
	if len(tail) != 2 || tail[1] != "third" {
		t.Errorf("expected last two lines, got %q", tail)
	}
}
