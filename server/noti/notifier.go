package noti

import (
	"crudconsole/server/errors"
	"encoding/json"
	"fmt"
)

var protocols []string

type Protocol int

func (p Protocol) String() (string, bool) {
	if i := int(p); i <= 0 || i > len(protocols) {
		return "", false
	} else {
		return protocols[i-1], true
	}
}

func protocol_iota(s string) Protocol {
	protocols = append(protocols, s)
	return Protocol(len(protocols))
}

func AsProtocol(name string) (Protocol, bool) {
	for i := range protocols {
		if protocols[i] == name {
			return Protocol(i + 1), true
		}
	}
	return Protocol(0), false
}

var (
	LOG    = protocol_iota("LOG")
	REST   = protocol_iota("REST")
	REDIS  = protocol_iota("REDIS")
	MEMORY = protocol_iota("MEMORY")
	TEST   = protocol_iota("TEST")
)

func (p *Protocol) MarshalJSON() ([]byte, error) {
	if s, ok := p.String(); ok {
		return json.Marshal(s)
	} else {
		return nil, errors.NewValidationError("ErrJsonMarshal", fmt.Sprintf("Incorrect protocol: %v", *p), nil)
	}
}

func (p *Protocol) UnmarshalJSON(b []byte) error {
	var s string
	if e := json.Unmarshal(b, &s); e != nil {
		return e
	}
	if protocol, ok := AsProtocol(s); ok {
		*p = protocol
		return nil
	} else {
		return errors.NewValidationError("ErrJsonUnmarshal", fmt.Sprintf("Incorrect protocol: %s", s), nil)
	}
}

var NotifierFactories = map[Protocol]Factory{
	LOG:    NewLogNotifier,
	REST:   NewRestNotifier,
	REDIS:  NewRedisNotifier,
	MEMORY: NewMemoryNotifier,
	TEST:   NewTestNotifier,
}

const (
	ErrUnknownProtocol = "unknown_protocol"
)

type NotiError struct {
	code string
	msg  string
}

func (e *NotiError) Error() string {
	return fmt.Sprintf("Notification error:  code='%s'  msg = '%s'", e.code, e.msg)
}

func (e *NotiError) Json() []byte {
	j, _ := json.Marshal(map[string]string{
		"code": "noti:" + e.code,
		"msg":  e.msg,
	})
	return j
}

func NewNotiError(code string, msg string, a ...interface{}) *NotiError {
	return &NotiError{code: code, msg: fmt.Sprintf(msg, a...)}
}

type Event struct {
	obj map[string]interface{}
}

func (e Event) Obj() map[string]interface{} {
	return e.obj
}

func NewObjectEvent(notificationObject map[string]interface{}) *Event {
	return &Event{obj: notificationObject}
}

type Notifier interface {
	NewNotification() chan *Event
}

type Factory func(args []string) (Notifier, error)

// NewNotifier builds the notifier registered for the protocol name.
func NewNotifier(protocolName string, args []string) (Notifier, error) {
	protocol, ok := AsProtocol(protocolName)
	if !ok {
		return nil, NewNotiError(ErrUnknownProtocol, "Protocol '%s' is unknown", protocolName)
	}
	return NotifierFactories[protocol](args)
}

func fan_out(in chan *Event, out chan *Event) {
	defer func() {
		close(out)
	}()
	for obj := range in {
		out <- obj
	}
}

func Broadcast(notifier Notifier) chan *Event {
	in := make(chan *Event, 100)
	out := notifier.NewNotification()
	go fan_out(in, out)
	return in
}
