package fetch

import (
	"bytes"
	"context"
	"errors"
)

type Kind int

const (
	Success Kind = iota
	NotFound
	OtherError
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case NotFound:
		return "not-found"
	default:
		return "error"
	}
}

type Response struct {
	Kind Kind
	Body []byte
	Err  error
}

// some hosts answer a missing resource with 200 and one of these bodies
var notFoundBodies = [][]byte{
	[]byte("404: Not Found"),
	[]byte("Not Found"),
	[]byte(`{"error":"Not Found"}`),
}

func isNotFoundBody(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	for _, nf := range notFoundBodies {
		if bytes.Equal(trimmed, nf) {
			return true
		}
	}
	return false
}

// Classify maps the result of a Get into success, not-found or failure.
func Classify(body []byte, err error) Response {
	switch {
	case errors.Is(err, ErrNotFound):
		return Response{Kind: NotFound}
	case err != nil:
		return Response{Kind: OtherError, Err: err}
	case isNotFoundBody(body):
		return Response{Kind: NotFound}
	default:
		return Response{Kind: Success, Body: body}
	}
}

// GetClassified is Get followed by Classify.
func (c *Client) GetClassified(ctx context.Context, url string) Response {
	return Classify(c.Get(ctx, url))
}
