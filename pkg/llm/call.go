package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CallJSON issues req against client with backoff as the retry schedule
// (nil means DefaultBackoff) and unmarshals the response content into T. A
// JSON-unmarshal failure is treated the same as a transport failure — both
// are retried under the same backoff before CallJSON gives up — since a
// malformed JSON object from the model is exactly as transient as a
// dropped connection.
func CallJSON[T any](ctx context.Context, client Client, req Request, backoff []time.Duration) (T, error) {
	var zero T
	if backoff == nil {
		backoff = DefaultBackoff
	}

	resp, err := CallWithRetry(ctx, backoff, func(ctx context.Context) (*Response, error) {
		r, err := client.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		var probe T
		if jsonErr := json.Unmarshal([]byte(r.Content), &probe); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, jsonErr)
		}
		return r, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if jsonErr := json.Unmarshal([]byte(resp.Content), &out); jsonErr != nil {
		return zero, &CallError{Attempts: 1, Err: fmt.Errorf("%w: %v", ErrParse, jsonErr)}
	}
	return out, nil
}
