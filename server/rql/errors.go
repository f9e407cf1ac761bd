package rql

import (
	"encoding/json"
	"fmt"
)

const (
	ErrRQLWrong            = "wrong"
	ErrRQLUnknownOperator  = "unknown_operator"
	ErrRQLUnknownValueFunc = "unknown_value_function"
	ErrRQLWrongFieldName   = "wrong_field_name"
	ErrRQLWrongValue       = "wrong_value"
)

type RqlError struct {
	code string
	msg  string
}

func (e *RqlError) Error() string {
	return fmt.Sprintf("RQL error: code='%s'  msg = '%s'", e.code, e.msg)
}

func (e *RqlError) Code() string {
	return e.code
}

func (e *RqlError) Json() []byte {
	j, _ := json.Marshal(map[string]string{
		"code": "rql:" + e.code,
		"msg":  e.msg,
	})
	return j
}

func NewRqlError(code string, msg string, a ...interface{}) *RqlError {
	return &RqlError{code: code, msg: fmt.Sprintf(msg, a...)}
}
