// Package audio resolves the uploaded audio field into bytes.
package audio

import (
	"context"
	"errors"
	"fmt"
)

// MaxBytes is the largest accepted audio payload after resolution.
const MaxBytes = 10 * 1024 * 1024

type Kind int

const (
	KindBlob Kind = iota + 1
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// Payload is the `file` form field: either uploaded bytes or a URL to fetch.
type Payload struct {
	Kind Kind
	Data []byte
	URL  string
}

func Blob(data []byte) Payload {
	return Payload{Kind: KindBlob, Data: data}
}

func URLReference(u string) Payload {
	return Payload{Kind: KindURL, URL: u}
}

// ErrTooLarge is returned when a payload exceeds MaxBytes.
var ErrTooLarge = errors.New("audio payload exceeds size limit")

// Resolve returns the payload bytes, fetching URL references with f.
func Resolve(ctx context.Context, f *Fetcher, p Payload) ([]byte, error) {
	switch p.Kind {
	case KindBlob:
		if len(p.Data) > MaxBytes {
			return nil, ErrTooLarge
		}
		return p.Data, nil
	case KindURL:
		return f.Fetch(ctx, p.URL)
	default:
		return nil, fmt.Errorf("resolve payload: unknown kind %d", p.Kind)
	}
}
