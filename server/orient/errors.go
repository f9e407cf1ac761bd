package orient

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

const (
	ErrOrientRequest   = "request_failed"
	ErrOrientResponse  = "bad_response"
	ErrOrientNotFound  = "not_found"
	ErrOrientWrongRID  = "wrong_rid"
	ErrOrientRejected  = "rejected"
	ErrOrientWrongArgs = "wrong_arguments"
)

type OrientError struct {
	Code   string
	Msg    string
	Status int
}

func (e *OrientError) Error() string {
	return fmt.Sprintf("OrientDB error: code='%s' status=%d msg = '%s'", e.Code, e.Status, e.Msg)
}

func (e *OrientError) Json() []byte {
	j, _ := json.Marshal(map[string]string{
		"code": "orient:" + e.Code,
		"msg":  e.Msg,
	})
	return j
}

func NewOrientError(code string, msg string, a ...interface{}) *OrientError {
	return &OrientError{Code: code, Msg: fmt.Sprintf(msg, a...)}
}

// IsNotFound tells whether err, possibly wrapped, reports a missing record.
func IsNotFound(err error) bool {
	if oe, ok := errors.Cause(err).(*OrientError); ok {
		return oe.Code == ErrOrientNotFound
	}
	return false
}
