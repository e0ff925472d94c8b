package document

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/persistorai/assetmig/internal/models"
)

// EventKind identifies a structural event of the document grammar.
type EventKind int

// Event kinds.
const (
	StreamStart EventKind = iota
	DocumentStart
	MappingStart
	MappingEnd
	SequenceStart
	SequenceEnd
	Scalar
	DocumentEnd
	StreamEnd
)

var eventNames = [...]string{
	StreamStart:   "stream start",
	DocumentStart: "document start",
	MappingStart:  "mapping start",
	MappingEnd:    "mapping end",
	SequenceStart: "sequence start",
	SequenceEnd:   "sequence end",
	Scalar:        "scalar",
	DocumentEnd:   "document end",
	StreamEnd:     "stream end",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one structural event. Tag is set only for explicitly tagged
// collections and scalars. Null marks scalars that resolve to null, such as
// "~" or an empty value.
type Event struct {
	Kind  EventKind
	Tag   string
	Value string
	Null  bool
	Line  int
}

type readerState int

const (
	stateStart readerState = iota
	stateEntries
	stateDone
)

// EventReader produces structural events for the first document of a stream.
//
// When the document is a block mapping, top-level entries are read from the
// underlying stream one at a time, only when the consumer asks for events
// past the previous entry. A consumer that stops early leaves the remainder of
// the stream unread and unparsed. Anchors are resolved within a single
// top-level entry only. Other document shapes are parsed in one go.
type EventReader struct {
	src   *lineSource
	queue []Event
	state readerState
	tag   string
}

// NewEventReader returns a reader over r.
func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{src: newLineSource(r)}
}

// Next consumes and returns the next event.
func (r *EventReader) Next() (Event, error) {
	ev, err := r.Peek()
	if err != nil {
		return Event{}, err
	}
	r.queue = r.queue[1:]
	return ev, nil
}

// Peek returns the next event without consuming it.
func (r *EventReader) Peek() (Event, error) {
	for len(r.queue) == 0 {
		if r.state == stateDone {
			return Event{}, fmt.Errorf("%w: read past end of stream", models.ErrParse)
		}
		if err := r.fill(); err != nil {
			r.state = stateDone
			r.queue = nil
			return Event{}, err
		}
	}
	return r.queue[0], nil
}

// Expect consumes the next event and fails unless it is of the given kind.
func (r *EventReader) Expect(kind EventKind) (Event, error) {
	ev, err := r.Next()
	if err != nil {
		return Event{}, err
	}
	if ev.Kind != kind {
		return Event{}, models.ErrParseAt(ev.Line, "expected %s, got %s", kind, ev.Kind)
	}
	return ev, nil
}

// Allow consumes the next event only if it is of the given kind.
func (r *EventReader) Allow(kind EventKind) (Event, bool, error) {
	ev, err := r.Peek()
	if err != nil {
		return Event{}, false, err
	}
	if ev.Kind != kind {
		return Event{}, false, nil
	}
	r.queue = r.queue[1:]
	return ev, true, nil
}

// Skip consumes one complete value: a scalar, or a mapping or sequence with
// everything nested in it.
func (r *EventReader) Skip() error {
	ev, err := r.Next()
	if err != nil {
		return err
	}

	switch ev.Kind {
	case Scalar:
		return nil
	case MappingStart, SequenceStart:
	default:
		return models.ErrParseAt(ev.Line, "cannot skip %s", ev.Kind)
	}

	for depth := 1; depth > 0; {
		ev, err = r.Next()
		if err != nil {
			return err
		}
		switch ev.Kind {
		case MappingStart, SequenceStart:
			depth++
		case MappingEnd, SequenceEnd:
			depth--
		case StreamEnd, DocumentEnd:
			return models.ErrParseAt(ev.Line, "unterminated collection")
		}
	}

	return nil
}

func (r *EventReader) fill() error {
	switch r.state {
	case stateStart:
		return r.start()
	case stateEntries:
		return r.nextEntry()
	}
	return nil
}

// start consumes the document prologue: blank lines, comments, directives,
// the document marker and an optional root tag line.
func (r *EventReader) start() error {
	r.queue = append(r.queue, Event{Kind: StreamStart})

	var prologue []string
	for {
		line, n, ok, err := r.src.next()
		if err != nil {
			return err
		}
		if !ok {
			r.queue = append(r.queue, Event{Kind: StreamEnd, Line: n})
			r.state = stateDone
			return nil
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "", strings.HasPrefix(trimmed, "#"), strings.HasPrefix(line, "%"):
			continue
		case trimmed == "---":
			continue
		case strings.HasPrefix(line, "--- "):
			line = strings.TrimSpace(line[4:])
		}

		if r.tag == "" && strings.HasPrefix(line, "!") && len(strings.Fields(line)) == 1 {
			r.tag = strings.TrimSpace(line)
			prologue = append(prologue, line)
			continue
		}

		if !startsEntry(line) {
			r.src.unread(line)
			return r.parseWhole(prologue)
		}

		r.src.unread(line)
		break
	}

	node, line, ok, err := r.readParsedEntry()
	if err != nil {
		return err
	}
	if !ok {
		return r.parseWhole(prologue)
	}

	r.queue = append(r.queue,
		Event{Kind: DocumentStart, Line: line},
		Event{Kind: MappingStart, Tag: r.tag, Line: line},
	)
	r.queue = appendEntryEvents(r.queue, node, line)
	r.state = stateEntries

	return nil
}

func (r *EventReader) nextEntry() error {
	node, line, ok, err := r.readParsedEntry()
	if err != nil {
		return err
	}
	if !ok {
		r.queue = append(r.queue,
			Event{Kind: MappingEnd, Line: line},
			Event{Kind: DocumentEnd, Line: line},
			Event{Kind: StreamEnd, Line: line},
		)
		r.state = stateDone
		return nil
	}
	r.queue = appendEntryEvents(r.queue, node, line)

	return nil
}

// readParsedEntry reads and parses the next top-level entry. A quoted scalar
// or flow collection may continue on a column-zero line that looks like a new
// key, so a chunk that fails to parse is extended with the following chunks
// until it parses. The first parse error is reported if the stream or the
// document ends first.
func (r *EventReader) readParsedEntry() (*yaml.Node, int, bool, error) {
	text, line, ok, err := r.readEntry()
	if err != nil || !ok {
		return nil, line, ok, err
	}

	node, parseErr := parseEntry(text, line)
	for parseErr != nil {
		more, _, ok, err := r.readEntry()
		if err != nil {
			return nil, line, false, err
		}
		if !ok {
			return nil, line, false, parseErr
		}
		text += more
		if node, err = parseEntry(text, line); err == nil {
			parseErr = nil
		}
	}

	return node, line, true, nil
}

// readEntry collects the lines of the next top-level mapping entry: a key line
// at column zero followed by indented, blank, comment or column-zero sequence
// lines. It returns false at end of stream or at a document marker.
func (r *EventReader) readEntry() (string, int, bool, error) {
	var (
		b     strings.Builder
		start int
	)

	for {
		line, n, ok, err := r.src.next()
		if err != nil {
			return "", n, false, err
		}
		if !ok {
			return "", n, false, nil
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if isDocumentMarker(line) {
			return "", n, false, nil
		}
		start = n
		b.WriteString(line)
		b.WriteByte('\n')
		break
	}

	for {
		line, n, ok, err := r.src.next()
		if err != nil {
			return "", n, false, err
		}
		if !ok {
			break
		}
		if isDocumentMarker(line) || startsEntry(line) {
			r.src.unread(line)
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	return b.String(), start, true, nil
}

// parseWhole parses the prologue plus the rest of the stream in one go and
// queues the events of the complete document.
func (r *EventReader) parseWhole(prologue []string) error {
	var b strings.Builder
	for _, l := range prologue {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	for {
		line, _, ok, err := r.src.next()
		if err != nil {
			return err
		}
		if !ok || isDocumentMarker(line) {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(b.String()), &node); err != nil {
		return fmt.Errorf("%w: %v", models.ErrParse, err)
	}

	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		r.queue = append(r.queue, Event{Kind: StreamEnd})
		r.state = stateDone
		return nil
	}

	r.queue = append(r.queue, Event{Kind: DocumentStart, Line: 1})
	r.queue = appendNodeEvents(r.queue, node.Content[0], 0)
	r.queue = append(r.queue, Event{Kind: DocumentEnd}, Event{Kind: StreamEnd})
	r.state = stateDone

	return nil
}

func parseEntry(text string, line int) (*yaml.Node, error) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return nil, models.ErrParseAt(line, "%v", err)
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return nil, models.ErrParseAt(line, "expected a mapping entry")
	}
	return node.Content[0], nil
}

// appendEntryEvents queues the key and value events of a parsed entry chunk,
// without the surrounding mapping events.
func appendEntryEvents(dst []Event, entry *yaml.Node, line int) []Event {
	for _, c := range entry.Content {
		dst = appendNodeEvents(dst, c, line-1)
	}
	return dst
}

func appendNodeEvents(dst []Event, n *yaml.Node, offset int) []Event {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}

	tag := ""
	if n.Style&yaml.TaggedStyle != 0 {
		tag = n.Tag
	}
	line := n.Line + offset

	switch n.Kind {
	case yaml.MappingNode:
		dst = append(dst, Event{Kind: MappingStart, Tag: tag, Line: line})
		for _, c := range n.Content {
			dst = appendNodeEvents(dst, c, offset)
		}
		dst = append(dst, Event{Kind: MappingEnd, Line: line})
	case yaml.SequenceNode:
		dst = append(dst, Event{Kind: SequenceStart, Tag: tag, Line: line})
		for _, c := range n.Content {
			dst = appendNodeEvents(dst, c, offset)
		}
		dst = append(dst, Event{Kind: SequenceEnd, Line: line})
	default:
		dst = append(dst, Event{Kind: Scalar, Tag: tag, Value: n.Value, Null: n.ShortTag() == "!!null", Line: line})
	}

	return dst
}

// startsEntry reports whether line opens a new top-level mapping entry.
func startsEntry(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case ' ', '\t', '#', '-', '}', ']', '!', '[', '{', '|', '>':
		return false
	}
	return strings.Contains(line, ":")
}

func isDocumentMarker(line string) bool {
	return line == "---" || line == "..." || strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "... ")
}

// lineSource reads a stream line by line with one line of push-back.
type lineSource struct {
	br      *bufio.Reader
	line    int
	pending *string
	eof     bool
}

func newLineSource(r io.Reader) *lineSource {
	return &lineSource{br: bufio.NewReader(r)}
}

// next returns the next line without its terminator and its 1-based number.
func (s *lineSource) next() (string, int, bool, error) {
	if s.pending != nil {
		line := *s.pending
		s.pending = nil
		return line, s.line, true, nil
	}
	if s.eof {
		return "", s.line, false, nil
	}

	text, err := s.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", s.line, false, fmt.Errorf("reading document: %w", err)
		}
		s.eof = true
		if text == "" {
			return "", s.line, false, nil
		}
	}

	s.line++
	text = strings.TrimRight(text, "\r\n")
	if s.line == 1 {
		text = strings.TrimPrefix(text, "\ufeff")
	}

	return text, s.line, true, nil
}

// unread pushes line back so the next call returns it again. Only the most
// recently returned line may be pushed back.
func (s *lineSource) unread(line string) {
	s.pending = &line
}
