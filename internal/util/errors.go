package util

import "fmt"

// MyResponseError is an error that already knows how it must be rendered to the client.
type MyResponseError struct {
	Msg    string
	Code   string
	Status int
}

func (e MyResponseError) Error() string { return e.Msg }

func NewResponseError(status int, code, format string, args ...interface{}) error {
	return MyResponseError{
		Msg:    fmt.Sprintf(format, args...),
		Code:   code,
		Status: status,
	}
}
