package journal

import (
	"encoding/json"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/pkg/errors"
)

const (
	ErrJournalUnavailable = "unavailable"
	ErrJournalSchema      = "schema"
	ErrJournalWrite       = "write"
	ErrJournalRead        = "read"
)

type JournalError struct {
	code string
	msg  string
}

func (e *JournalError) Error() string {
	return fmt.Sprintf("Journal error:  code='%s'  msg = '%s'", e.code, e.msg)
}

func (e *JournalError) Json() []byte {
	j, _ := json.Marshal(map[string]string{
		"code": "journal:" + e.code,
		"msg":  e.msg,
	})
	return j
}

func (e *JournalError) Code() string {
	return e.code
}

func NewJournalError(code string, msg string, a ...interface{}) *JournalError {
	return &JournalError{code: code, msg: fmt.Sprintf(msg, a...)}
}

// wrapPgError turns driver failures into journal errors keeping the
// postgres state code in the message.
func wrapPgError(code string, err error) error {
	if pgErr, ok := errors.Cause(err).(*pgconn.PgError); ok {
		switch pgErr.Code {
		case "42P01", "42703":
			return NewJournalError(ErrJournalSchema, "%s (%s)", pgErr.Message, pgErr.Code)
		case "08000", "08003", "08006", "57P01":
			return NewJournalError(ErrJournalUnavailable, "%s (%s)", pgErr.Message, pgErr.Code)
		default:
			return NewJournalError(code, "%s (%s)", pgErr.Message, pgErr.Code)
		}
	}
	return NewJournalError(code, "%s", err.Error())
}
