package remotestore

import "encoding/json"

// The remote document store speaks JSON-RPC over a websocket. Requests are
// correlated by id; live-query pushes arrive as id-less frames with method
// "notify".

// rpcRequest is an outgoing JSON-RPC request.
type rpcRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// rpcError is a JSON-RPC error payload.
type rpcError struct {
	Code    int64  `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

// rpcFrame is any incoming frame: a response (ID set) or a live
// notification (Method "notify", ID empty).
type rpcFrame struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// liveNotification is the params payload of a "notify" frame: the live
// query id plus the latest value at the subscription's granularity (a
// single record for document subscriptions, a result set for query
// subscriptions).
type liveNotification struct {
	QueryID string          `json:"queryId"`
	Value   json.RawMessage `json:"value"`
}

// RPC method names understood by the remote store.
const (
	methodUse    = "use"
	methodSignin = "signin"
	methodAuth   = "authenticate"
	methodGet    = "get"
	methodQuery  = "query"
	methodPut    = "put"
	methodMerge  = "merge"
	methodLive   = "live"
	methodKill   = "kill"
	methodNotify = "notify"
)
