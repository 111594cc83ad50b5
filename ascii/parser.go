package ascii

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/reactormc/memcache/op"
)

// pendingValue is the accumulator state for a VALUE block still being
// read: its header line has been parsed but its body (plus the
// trailing CRLF) has not all arrived yet.
// This is how the parser streams a value block larger than one read
// without losing state across reactor ticks.
type pendingValue struct {
	key   string
	flags uint32
	cas   uint64
	need  int // remaining bytes including the trailing CRLF
}

// Parser is a restartable ASCII response parser bound to one
// connection's read side. It is fed raw socket bytes as they arrive
// and, on each Next call, either extracts one complete Event or
// reports that more data is needed — it never blocks and never
// discards unconsumed bytes.
type Parser struct {
	buf     []byte
	pending *pendingValue
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends newly read socket bytes to the parser's buffer.
func (p *Parser) Feed(data []byte) {
	p.buf = append(p.buf, data...)
}

// Buffered reports how many unconsumed bytes are currently held.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

// Next attempts to extract one Event appropriate to the response shape
// of kind. ok is false if the buffered bytes do not yet contain a
// complete frame; the caller should wait for more data and call Next
// again. err is non-nil only for a genuinely unparsable line, at which
// point the connection must be dropped per the spec's recoverable-
// error rule.
func (p *Parser) Next(kind op.Kind) (ev Event, ok bool, err error) {
	for {
		if p.pending != nil {
			if len(p.buf) < p.pending.need {
				return Event{}, false, nil
			}
			chunk := p.buf[:p.pending.need]
			p.buf = p.buf[p.pending.need:]
			data := chunk[:len(chunk)-2]
			ev = Event{Kind: EventData, Key: p.pending.key, Flags: p.pending.flags, Cas: p.pending.cas, Data: data}
			p.pending = nil
			return ev, true, nil
		}

		idx := bytes.IndexByte(p.buf, '\n')
		if idx < 0 {
			return Event{}, false, nil
		}
		line := string(bytes.TrimRight(p.buf[:idx+1], "\r\n"))
		p.buf = p.buf[idx+1:]

		ev, again, perr := p.parseLine(kind, line)
		if perr != nil {
			return Event{}, false, perr
		}
		if again {
			continue
		}
		return ev, true, nil
	}
}

func (p *Parser) parseLine(kind op.Kind, line string) (ev Event, again bool, err error) {
	switch kind {
	case op.Get, op.Gets:
		return p.parseGetLine(line)
	case op.Stats:
		return parseStatsLine(line)
	case op.Mutate:
		return parseMutateLine(line)
	case op.Store, op.Cat, op.CAS:
		return parseSingleStatusLine(line)
	case op.Delete:
		return parseSingleStatusLine(line)
	case op.Flush:
		return parseSingleStatusLine(line)
	case op.Version, op.Noop:
		// Noop is encoded on the wire as a version round-trip (see
		// Writer.Noop); its response is parsed the same way.
		return parseVersionLine(line)
	default:
		return Event{}, false, ErrProtocol
	}
}

func (p *Parser) parseGetLine(line string) (Event, bool, error) {
	if line == "END" {
		return Event{Kind: EventEnd}, false, nil
	}
	if strings.HasPrefix(line, "VALUE ") {
		fields := strings.Fields(line)
		// VALUE <key> <flags> <len> [<cas>]
		if len(fields) < 4 {
			return Event{}, false, ErrProtocol
		}
		flags, ferr := strconv.ParseUint(fields[2], 10, 32)
		if ferr != nil {
			return Event{}, false, ErrProtocol
		}
		length, lerr := strconv.Atoi(fields[3])
		if lerr != nil || length < 0 {
			return Event{}, false, ErrProtocol
		}
		var cas uint64
		if len(fields) >= 5 {
			parsedCas, cerr := strconv.ParseUint(fields[4], 10, 64)
			if cerr != nil {
				return Event{}, false, ErrProtocol
			}
			cas = parsedCas
		}
		p.pending = &pendingValue{key: fields[1], flags: uint32(flags), cas: cas, need: length + 2}
		return Event{}, true, nil
	}
	if isErrorLine(line) {
		return Event{Kind: EventStatus, Success: false, Message: line}, false, nil
	}
	return Event{}, false, ErrProtocol
}

func parseStatsLine(line string) (Event, bool, error) {
	if line == "END" {
		return Event{Kind: EventEnd}, false, nil
	}
	if strings.HasPrefix(line, "STAT ") {
		rest := line[len("STAT "):]
		name, value, _ := strings.Cut(rest, " ")
		if name == "" {
			return Event{}, false, ErrProtocol
		}
		return Event{Kind: EventStat, StatName: name, StatValue: value}, false, nil
	}
	if isErrorLine(line) {
		return Event{Kind: EventStatus, Success: false, Message: line}, false, nil
	}
	return Event{}, false, ErrProtocol
}

// parseMutateLine handles the incr/decr response: either the new
// decimal value or NOT_FOUND/an error line. Per the resolved open
// question, the numeric value is parsed here once and carried in
// Numeric/HasNumeric so no caller re-parses Message.
func parseMutateLine(line string) (Event, bool, error) {
	if line == "NOT_FOUND" {
		return Event{Kind: EventStatus, Success: false, Message: line}, false, nil
	}
	if isErrorLine(line) {
		return Event{Kind: EventStatus, Success: false, Message: line}, false, nil
	}
	n, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return Event{}, false, ErrProtocol
	}
	return Event{Kind: EventStatus, Success: true, Message: line, Numeric: n, HasNumeric: true}, false, nil
}

func parseSingleStatusLine(line string) (Event, bool, error) {
	switch line {
	case "STORED", "DELETED", "OK", "TOUCHED", "NOT_STORED", "EXISTS", "NOT_FOUND":
	default:
		if !isErrorLine(line) {
			return Event{}, false, ErrProtocol
		}
	}
	success, msg := statusLine(line)
	return Event{Kind: EventStatus, Success: success, Message: msg}, false, nil
}

func parseVersionLine(line string) (Event, bool, error) {
	if !strings.HasPrefix(line, "VERSION ") {
		if isErrorLine(line) {
			return Event{Kind: EventStatus, Success: false, Message: line}, false, nil
		}
		return Event{}, false, ErrProtocol
	}
	return Event{Kind: EventStatus, Success: true, Message: strings.TrimPrefix(line, "VERSION ")}, false, nil
}

func isErrorLine(line string) bool {
	return line == "ERROR" || strings.HasPrefix(line, "CLIENT_ERROR") || strings.HasPrefix(line, "SERVER_ERROR")
}
