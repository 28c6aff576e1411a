// errors.go - sentinel errors for the five-member taxonomy the scheme speaks
package main

import "errors"

var (
	ErrNotFound        = errors.New("comp: not found")
	ErrInvalidArgument = errors.New("comp: invalid argument")
	ErrWouldBlock      = errors.New("comp: would block")
	ErrNoSpace         = errors.New("comp: no space")
	ErrIO              = errors.New("comp: io error")
)
