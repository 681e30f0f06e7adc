package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrIndexExists = errors.New("db: index already exists")
)

// Op constants name the failing command for error context.
const (
	OpCreateIndex = "FT.CREATE"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpHGetAll     = "HGETALL"
	OpHMGet       = "HMGET"
	OpGet         = "GET"
	OpSet         = "SET"
	OpIncrBy      = "INCRBY"
	OpExpire      = "EXPIRE"
	OpPing        = "PING"
	OpQuery       = "SELECT"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
