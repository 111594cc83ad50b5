package ascii

// Protocol selects which wire codec a node uses.
type Protocol string

const (
	Text   Protocol = "ascii"
	Binary Protocol = "binary"
)

const crlf = "\r\n"

// statusLine maps a single-line ASCII status reply to a normalized
// (success, canonical-message) pair. Lines carrying a verbatim server
// message (ERROR/CLIENT_ERROR/SERVER_ERROR) keep that message.
func statusLine(line string) (success bool, message string) {
	switch {
	case line == "STORED", line == "DELETED", line == "OK", line == "TOUCHED":
		return true, line
	case line == "NOT_STORED", line == "EXISTS", line == "NOT_FOUND", line == "ERROR":
		return false, line
	default:
		return false, line
	}
}
