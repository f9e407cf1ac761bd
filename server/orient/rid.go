package orient

import (
	"regexp"
	"strings"
)

// RID is a record identifier in the form "#<cluster>:<position>".
type RID string

var ridPattern = regexp.MustCompile(`^#-?\d+:-?\d+$`)

func (r RID) Valid() bool {
	return ridPattern.MatchString(string(r))
}

func (r RID) String() string {
	return string(r)
}

// Path is the identifier as it appears in REST urls, without the leading '#'.
func (r RID) Path() string {
	return strings.TrimPrefix(string(r), "#")
}

// ParseRID accepts "#12:3", "12:3" or an embedded record carrying "@rid".
func ParseRID(value interface{}) (RID, error) {
	switch v := value.(type) {
	case RID:
		if v.Valid() {
			return v, nil
		}
	case string:
		rid := RID(v)
		if !strings.HasPrefix(v, "#") {
			rid = RID("#" + v)
		}
		if rid.Valid() {
			return rid, nil
		}
	case map[string]interface{}:
		if embedded, ok := v["@rid"]; ok {
			return ParseRID(embedded)
		}
	case Record:
		return ParseRID(map[string]interface{}(v))
	}
	return "", NewOrientError(ErrOrientWrongRID, "Value '%v' is not a record identifier", value)
}

// ParseRIDs reads a LINK (single identifier) or LINKSET (list) value.
func ParseRIDs(value interface{}) ([]RID, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []RID:
		return v, nil
	case []string:
		rids := make([]RID, 0, len(v))
		for i := range v {
			rid, err := ParseRID(v[i])
			if err != nil {
				return nil, err
			}
			rids = append(rids, rid)
		}
		return rids, nil
	case []interface{}:
		rids := make([]RID, 0, len(v))
		for i := range v {
			rid, err := ParseRID(v[i])
			if err != nil {
				return nil, err
			}
			rids = append(rids, rid)
		}
		return rids, nil
	default:
		rid, err := ParseRID(v)
		if err != nil {
			return nil, err
		}
		return []RID{rid}, nil
	}
}

func RIDStrings(rids []RID) []string {
	result := make([]string, len(rids))
	for i := range rids {
		result[i] = string(rids[i])
	}
	return result
}

