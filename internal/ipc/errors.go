package ipc

import (
	"errors"
	"net/rpc"
	"strings"

	"pagepass/internal/faults"
)

// wireError prefixes err with its kind, e.g. "[not_found] get book: ...".
// net/rpc only transports the error string.
func wireError(err error) error {
	if err == nil {
		return nil
	}
	return errors.New("[" + string(faults.KindOf(err)) + "] " + err.Error())
}

// fromWire rebuilds a classified error from a server reply. Transport errors
// pass through unchanged.
func fromWire(err error) error {
	var serverErr rpc.ServerError
	if !errors.As(err, &serverErr) {
		return err
	}
	msg := string(serverErr)
	if !strings.HasPrefix(msg, "[") {
		return errors.New(msg)
	}
	kind, rest, ok := strings.Cut(msg[1:], "] ")
	if !ok {
		return errors.New(msg)
	}
	return faults.FromKind(faults.Kind(kind), rest)
}
