package dictionary

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedSource    = errors.New("dictionary: malformed source")
	ErrUnknownType        = errors.New("dictionary: unknown data type")
	ErrDuplicateTag       = errors.New("dictionary: duplicate field tag")
	ErrDuplicateName      = errors.New("dictionary: duplicate name")
	ErrUndefinedField     = errors.New("dictionary: undefined field")
	ErrUndefinedComponent = errors.New("dictionary: undefined component")
	ErrCyclicComponent    = errors.New("dictionary: cyclic component")
	ErrInvalidGroup       = errors.New("dictionary: invalid group")
	ErrDuplicateMember    = errors.New("dictionary: tag repeated in scope")
	ErrInvalidEnvelope    = errors.New("dictionary: invalid header or trailer")
	ErrUnpairedData       = errors.New("dictionary: data field without length field")
	ErrTooDeep            = errors.New("dictionary: groups nested too deep")
	ErrUnknownDictionary  = errors.New("dictionary: unknown dictionary")
)

// CompileError reports why a schema source was rejected. Element names the
// definition being compiled, e.g. "message D" or "component Parties".
type CompileError struct {
	Source  string
	Element string
	Err     error
}

func (e *CompileError) Error() string {
	switch {
	case e.Source != "" && e.Element != "":
		return fmt.Sprintf("dictionary: compile %s: %s: %v", e.Source, e.Element, e.Err)
	case e.Element != "":
		return fmt.Sprintf("dictionary: compile %s: %v", e.Element, e.Err)
	case e.Source != "":
		return fmt.Sprintf("dictionary: compile %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("dictionary: compile: %v", e.Err)
	}
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func compileErr(element string, sentinel error, format string, args ...any) *CompileError {
	return &CompileError{Element: element, Err: fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)}
}
