package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// ErrorKind classifies a TransportError.
type ErrorKind int

const (
	// KindCustom is an error raised by a layer rather than the transport.
	KindCustom ErrorKind = iota
	// KindErrorResp is a JSON-RPC error response from the node.
	KindErrorResp
	// KindDeserialization is a response that could not be decoded.
	KindDeserialization
	// KindBackendGone means the connection to the node is closed.
	KindBackendGone
)

func (k ErrorKind) String() string {
	switch k {
	case KindCustom:
		return "custom"
	case KindErrorResp:
		return "error response"
	case KindDeserialization:
		return "deserialization"
	case KindBackendGone:
		return "backend gone"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// TransportError is the error type of every Provider operation. Code is
// the JSON-RPC error code for KindErrorResp.
type TransportError struct {
	Kind ErrorKind
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Kind == KindErrorResp {
		return fmt.Sprintf("transport: %s (code %d): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Custom wraps err as a KindCustom TransportError. A nil err stays nil.
func Custom(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Kind: KindCustom, Err: err}
}

// IsKind reports whether err is a TransportError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == kind
}

// classify turns a client error into a TransportError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &TransportError{Kind: KindErrorResp, Code: rpcErr.ErrorCode(), Err: err}
	}
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &TransportError{Kind: KindDeserialization, Err: err}
	}
	if errors.Is(err, rpc.ErrClientQuit) {
		return &TransportError{Kind: KindBackendGone, Err: err}
	}
	return &TransportError{Kind: KindCustom, Err: err}
}
