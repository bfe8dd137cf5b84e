// Package idpicker chooses and validates the names principals and groups are
// stored under.
package idpicker

import (
	"strconv"
	"strings"
)

// MaxLength is the longest accepted name.
const MaxLength = 100

// ValidationError is a user-facing rejection of a name.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Names is the set of names already in use.
type Names interface {
	Contains(name string) bool
}

// Picker chooses free names within a folder.
type Picker struct {
	names Names
}

func New(names Names) *Picker {
	return &Picker{names: names}
}

// ChooseName returns name when it is free, otherwise name with the smallest
// positive integer suffix that is free. An empty name yields "1", "2", ...
func (p *Picker) ChooseName(name string) (string, error) {
	orig := name
	for i := 1; name == "" || p.names.Contains(name); i++ {
		name = orig + strconv.Itoa(i)
	}
	if err := p.CheckName(name); err != nil {
		return "", err
	}
	return name, nil
}

// CheckName reports why name cannot be used, or nil.
func (p *Picker) CheckName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Msg: "An empty name was provided. Names cannot be empty."}
	case strings.HasPrefix(name, "+"), strings.HasPrefix(name, "@"), strings.Contains(name, "/"):
		return &ValidationError{Msg: "Names cannot begin with '+' or '@' or contain '/'"}
	case p.names.Contains(name):
		return &ValidationError{Msg: "The given name is already being used"}
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '!' || name[i] > '~' {
			return &ValidationError{Msg: "Ids must contain only printable 7-bit non-space ASCII characters"}
		}
	}
	if len(name) > MaxLength {
		return &ValidationError{Msg: "Ids can't be more than 100 characters long."}
	}
	return nil
}
