package domain

// Department is a department that accepts document submissions.
type Department struct {
	ID        string
	Name      string
	LeftLabel string
}

// DisplayName returns the label shown to students. Departments that carry a
// left label (a college or group name) are shown as "left|name".
func (d Department) DisplayName() string {
	if d.LeftLabel == "" {
		return d.Name
	}
	return d.LeftLabel + "|" + d.Name
}

// DocType is a document type a department accepts.
type DocType struct {
	ID   string
	Name string
}

// RequiredField is a form field the student must fill in for a doc type.
type RequiredField struct {
	Label string
}

// DeadlineInfo carries the raw deadline text returned by the document server.
type DeadlineInfo struct {
	Deadline string
}
