package store

import "errors"

// Sentinel errors distinguishing the three broad error kinds the engine
// surfaces: invalid input, storage fault, logic error (folded into invalid
// input at the caller).
var (
	ErrNotFound    = errors.New("store: not found")
	ErrInvalidData = errors.New("store: invalid data")
)

// Fault wraps an underlying storage error (I/O, schema inconsistency) so
// callers can distinguish "the database misbehaved" from "the caller gave
// us garbage" without string-matching.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return "store: " + f.Op + ": " + f.Err.Error()
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Op: op, Err: err}
}
