package logind

import "fmt"

// PropertyMissingError reports a property absent from a GetAll reply.
type PropertyMissingError struct {
	Key string
}

func (e *PropertyMissingError) Error() string {
	return fmt.Sprintf("property %q is missing from the session properties", e.Key)
}

// TypeError reports a reply value of an unexpected type.
type TypeError struct {
	Name string
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("property %q is not a %s (got %s)", e.Name, e.Want, e.Got)
}
