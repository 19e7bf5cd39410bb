package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mini-jsonrpc/message"
)

// BatchCall is one entry of a batch.
type BatchCall struct {
	Method string
	Params any
}

// Outcome is the per-entry result of a batch: either Result or Err is set.
// Err is a *Error of KindRPC when the server reported an error for the entry.
type Outcome struct {
	Result json.RawMessage
	Err    error
}

// BatchResult maps every sent id to its Outcome. Entries succeed and fail
// independently.
type BatchResult struct {
	ids      []message.ID // send order
	outcomes map[message.ID]Outcome
	errs     []error
}

// Get returns the outcome for id.
func (r *BatchResult) Get(id message.ID) (Outcome, bool) {
	o, ok := r.outcomes[id]
	return o, ok
}

// At returns the outcome of the i-th call passed to CallBatch.
func (r *BatchResult) At(i int) Outcome {
	return r.outcomes[r.ids[i]]
}

func (r *BatchResult) Len() int {
	return len(r.ids)
}

// IDs returns the ids assigned to the calls, in send order.
func (r *BatchResult) IDs() []message.ID {
	return append([]message.ID(nil), r.ids...)
}

// Errors returns reply entries that could not be attributed to a sent call:
// unknown ids, null-id server errors, duplicate answers and malformed members
// without a usable id.
func (r *BatchResult) Errors() []error {
	return append([]error(nil), r.errs...)
}

// Err joins Errors, or returns nil when every reply entry was attributed.
func (r *BatchResult) Err() error {
	return errors.Join(r.errs...)
}

// CallBatch sends calls as one JSON array in a single exchange and correlates the
// replies by id, never by position.
//
// The returned error covers the batch as a whole: an empty batch, a transport
// failure or a reply that is not a JSON array or object. Everything else, including
// malformed members, ids the server invented and calls it never answered, is
// reported per entry in the BatchResult.
func (c *Client) CallBatch(ctx context.Context, calls []BatchCall) (*BatchResult, error) {
	if len(calls) == 0 {
		return nil, &Error{Kind: KindEmptyBatch, Err: ErrEmptyBatch}
	}

	reqs := make([]*message.Request, len(calls))
	res := &BatchResult{
		ids:      make([]message.ID, len(calls)),
		outcomes: make(map[message.ID]Outcome, len(calls)),
	}
	sent := make(map[message.ID]string, len(calls))

	for i, call := range calls {
		id := c.ids.Next()
		if _, dup := sent[id]; dup {
			return nil, &Error{Kind: KindProtocol, Method: call.Method, Want: id, Err: fmt.Errorf("%w %s from generator", ErrDuplicateID, id)}
		}
		req, err := message.BuildRequest(c.codec, call.Method, call.Params, &id)
		if err != nil {
			return nil, fmt.Errorf("build batch entry %d (%s): %w", i, call.Method, err)
		}
		reqs[i] = req
		res.ids[i] = id
		sent[id] = call.Method
	}

	payload, err := message.EncodeBatch(c.codec, reqs)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	reply, err := c.transport.Exchange(ctx, payload)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Method: "batch", Err: err}
	}

	resps, invalid, err := message.DecodeBatch(c.codec, reply)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, Method: "batch", Err: err}
	}

	for _, resp := range resps {
		method, ok := sent[resp.ID]
		switch {
		case !ok && resp.ID.IsNull() && resp.Error != nil:
			res.errs = append(res.errs, &Error{Kind: KindRPC, Got: resp.ID, Err: resp.Error})
			continue
		case !ok:
			res.errs = append(res.errs, &Error{Kind: KindUnknownResponseID, Got: resp.ID, Err: ErrUnknownResponseID})
			continue
		}

		if _, seen := res.outcomes[resp.ID]; seen {
			res.errs = append(res.errs, &Error{Kind: KindProtocol, Method: method, Got: resp.ID, Err: fmt.Errorf("%w: answered twice", ErrDuplicateID)})
			continue
		}

		if resp.Error != nil {
			res.outcomes[resp.ID] = Outcome{Err: &Error{Kind: KindRPC, Method: method, Want: resp.ID, Got: resp.ID, Err: resp.Error}}
		} else {
			res.outcomes[resp.ID] = Outcome{Result: resp.Result}
		}
	}

	// A broken member that still names one of our ids fails only that entry.
	for _, perr := range invalid {
		if perr.ID != nil {
			if method, ok := sent[*perr.ID]; ok {
				if _, seen := res.outcomes[*perr.ID]; !seen {
					res.outcomes[*perr.ID] = Outcome{Err: &Error{Kind: KindProtocol, Method: method, Want: *perr.ID, Got: *perr.ID, Err: perr}}
					continue
				}
			}
		}
		res.errs = append(res.errs, &Error{Kind: KindProtocol, Err: perr})
	}

	for _, id := range res.ids {
		if _, ok := res.outcomes[id]; !ok {
			res.outcomes[id] = Outcome{Err: &Error{Kind: KindProtocol, Method: sent[id], Want: id, Err: ErrNoResponse}}
		}
	}
	return res, nil
}
