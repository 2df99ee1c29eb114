package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// Transaction exports and datastore envelopes mix numeric and string prices,
// so every decoder here keeps untyped numbers as json.Number and leaves the
// coercion to the caller.
func numberDecoder(r io.Reader) *json.Decoder {
	d := json.NewDecoder(r)
	d.UseNumber()
	return d
}

// DecodeJSONArray streams the records of a JSON export shaped as a single
// top-level array. An empty input yields no records and no error.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	records := make(chan T, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(records)

		if err := streamArray(ctx, numberDecoder(r), records); err != nil {
			errs <- err
		}
	}()

	return records, errs
}

func streamArray[T any](ctx context.Context, d *json.Decoder, records chan<- T) error {
	open, err := d.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := open.(json.Delim); !ok || delim != '[' {
		return eris.Errorf("json: expected '[', got %v", open)
	}

	for d.More() {
		var rec T
		if err := d.Decode(&rec); err != nil {
			return eris.Wrap(err, "json: decode element")
		}
		select {
		case records <- rec:
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "json: context cancelled")
		}
	}

	if _, err := d.Token(); err != nil && err != io.EOF {
		return eris.Wrap(err, "json: read closing token")
	}
	return nil
}

// DecodeJSONObject decodes one response body, such as a datastore_search
// envelope, into T.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	out := new(T)
	if err := numberDecoder(r).Decode(out); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return out, nil
}
