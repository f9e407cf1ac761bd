package orient

// Record is a document as returned by the database, including the "@rid",
// "@class" and "@version" attributes.
type Record map[string]interface{}

func (r Record) RID() RID {
	if rid, err := ParseRID(r["@rid"]); err == nil {
		return rid
	}
	return ""
}

func (r Record) Class() string {
	class, _ := r["@class"].(string)
	return class
}

type Property struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	LinkedClass string `json:"linkedClass,omitempty"`
	Mandatory   bool   `json:"mandatory"`
	ReadOnly    bool   `json:"readonly"`
	NotNull     bool   `json:"notNull"`
}

// ClassInfo is the class description of the "class" endpoint.
type ClassInfo struct {
	Name       string     `json:"name"`
	SuperClass string     `json:"superClass,omitempty"`
	Records    int        `json:"records"`
	Properties []Property `json:"properties"`
}
