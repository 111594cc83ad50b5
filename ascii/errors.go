package ascii

import "errors"

// ErrProtocol is returned when a server response line cannot be
// parsed. The connection holding it must be dropped; its
// operations are requeued or failed per the node's failure mode.
var ErrProtocol = errors.New("ascii: unparsable server response")
