// Package stilling looks up the job postings that stilling varsler refer to.
package stilling

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the stilling does not exist upstream.
var ErrNotFound = errors.New("stilling not found")

// Info is the part of a stilling that notification texts use.
type Info struct {
	Title    string `json:"title"`
	Employer string `json:"employer"`
}

type Lookup interface {
	Get(ctx context.Context, stillingID string) (*Info, error)
}
