package vast

import (
	"fmt"
	"strings"
)

// LineSpan is an inclusive range of zero-based line numbers in emitted text.
type LineSpan struct {
	Start int64
	End   int64
}

func (s LineSpan) String() string { return fmt.Sprintf("(%d, %d)", s.Start, s.End) }

// partialLineSpans is the span bookkeeping of one node while emission is in
// flight: completed spans plus at most one open start.
type partialLineSpans struct {
	completed    []LineSpan
	hangingStart *int64
}

func (p *partialLineSpans) String() string {
	parts := make([]string, len(p.completed))
	for i, s := range p.completed {
		parts[i] = s.String()
	}
	out := "[" + strings.Join(parts, ", ")
	if p.hangingStart != nil {
		out += fmt.Sprintf("; %d", *p.hangingStart)
	}
	return out + "]"
}

// LineInfo records which lines of the emitted file each node produced.
// Emitters call Start and End around a node's text and Increase for every
// newline written. A nil *LineInfo is valid everywhere and records nothing.
type LineInfo struct {
	currentLine int64
	spans       map[Node]*partialLineSpans
}

// NewLineInfo returns an empty recorder positioned at line zero.
func NewLineInfo() *LineInfo {
	return &LineInfo{spans: map[Node]*partialLineSpans{}}
}

// Start opens a span for node at the current line. Starting a node that
// already has an open span is a caller bug.
func (li *LineInfo) Start(node Node) {
	if li == nil {
		return
	}
	p, ok := li.spans[node]
	if !ok {
		p = &partialLineSpans{}
		li.spans[node] = p
	}
	if p.hangingStart != nil {
		panic("LineInfo.Start called twice in a row on the same node")
	}
	line := li.currentLine
	p.hangingStart = &line
}

// End closes the open span of node at the current line.
func (li *LineInfo) End(node Node) {
	if li == nil {
		return
	}
	p, ok := li.spans[node]
	if !ok {
		panic("LineInfo.End called without corresponding Start")
	}
	if p.hangingStart == nil {
		panic("LineInfo.End called twice in a row on the same node")
	}
	p.completed = append(p.completed, LineSpan{Start: *p.hangingStart, End: li.currentLine})
	p.hangingStart = nil
}

// Increase advances the current line number by delta newlines.
func (li *LineInfo) Increase(delta int64) {
	if li == nil {
		return
	}
	li.currentLine += delta
}

// LookupNode returns the completed spans of node, or false if the node was
// never emitted or still has an open span.
func (li *LineInfo) LookupNode(node Node) ([]LineSpan, bool) {
	if li == nil {
		return nil, false
	}
	p, ok := li.spans[node]
	if !ok || p.hangingStart != nil {
		return nil, false
	}
	return p.completed, true
}

func numberOfNewlines(s string) int64 {
	return int64(strings.Count(s, "\n"))
}
