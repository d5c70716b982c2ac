package redisstore

import "errors"

var (
	ErrNilClient          = errors.New("redisstore: nil client")
	ErrEmptyConnectionURL = errors.New("redisstore: empty connection URL")
	ErrFailedToParseURL   = errors.New("redisstore: failed to parse connection URL")
	ErrConnectionFailed   = errors.New("redisstore: failed to establish connection")
	ErrHealthcheckFailed  = errors.New("redisstore: healthcheck failed")
)
