package orient

import "encoding/json"

type BatchType string

const (
	BatchCreate  BatchType = "c"
	BatchUpdate  BatchType = "u"
	BatchDelete  BatchType = "d"
	BatchCommand BatchType = "cmd"
	BatchScript  BatchType = "script"
)

var batchTypeNames = map[string]BatchType{
	"CREATE":  BatchCreate,
	"UPDATE":  BatchUpdate,
	"DELETE":  BatchDelete,
	"COMMAND": BatchCommand,
	"SCRIPT":  BatchScript,
}

func (bt BatchType) Valid() bool {
	switch bt {
	case BatchCreate, BatchUpdate, BatchDelete, BatchCommand, BatchScript:
		return true
	}
	return false
}

// UnmarshalJSON accepts the wire form ("u") and the verbose one ("UPDATE").
func (bt *BatchType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if verbose, ok := batchTypeNames[s]; ok {
		*bt = verbose
		return nil
	}
	if BatchType(s).Valid() {
		*bt = BatchType(s)
		return nil
	}
	return NewOrientError(ErrOrientWrongArgs, "Unknown batch operation type '%s'", s)
}

// Operation is a single unit of a batch request. Record is interpreted
// according to Type; COMMAND and SCRIPT operations use Language and Command.
type Operation struct {
	Type     BatchType `json:"type"`
	Record   Record    `json:"record,omitempty"`
	Language string    `json:"language,omitempty"`
	Command  string    `json:"command,omitempty"`
}

func NewUpdate(record Record) Operation {
	return Operation{Type: BatchUpdate, Record: record}
}

func NewCreate(className string, record Record) Operation {
	created := make(Record, len(record)+1)
	for k, v := range record {
		created[k] = v
	}
	created["@class"] = className
	return Operation{Type: BatchCreate, Record: created}
}

func NewDelete(rid RID) Operation {
	return Operation{Type: BatchDelete, Record: Record{"@rid": rid.String()}}
}

type batchRequest struct {
	Transaction bool        `json:"transaction"`
	Operations  []Operation `json:"operations"`
}

type BatchResult struct {
	Result []Record `json:"result"`
}
