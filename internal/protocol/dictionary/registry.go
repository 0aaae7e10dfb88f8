package dictionary

import (
	"fmt"
	"sort"
)

// BeginStringFIXT is the transport BeginString for FIX 5.0 and later.
const BeginStringFIXT = "FIXT.1.1"

// ApplVerIDs maps ApplVerID (1128) codes to dictionary ids.
var ApplVerIDs = map[string]string{
	"2": "FIX.4.0",
	"3": "FIX.4.1",
	"4": "FIX.4.2",
	"5": "FIX.4.3",
	"6": "FIX.4.4",
	"7": "FIX.5.0",
	"8": "FIX.5.0SP1",
	"9": "FIX.5.0SP2",
}

// Registry is an immutable set of dictionaries keyed by id.
type Registry struct {
	dicts map[string]*Dictionary
}

func NewRegistry(dicts ...*Dictionary) (*Registry, error) {
	r := &Registry{dicts: make(map[string]*Dictionary, len(dicts))}
	for _, d := range dicts {
		if d == nil {
			continue
		}
		if _, dup := r.dicts[d.ID]; dup {
			return nil, fmt.Errorf("%w: dictionary %s registered twice", ErrDuplicateName, d.ID)
		}
		r.dicts[d.ID] = d
	}
	return r, nil
}

// BuiltinRegistry holds every embedded dictionary.
func BuiltinRegistry() (*Registry, error) {
	dicts := make([]*Dictionary, 0, len(builtinFiles))
	for _, id := range BuiltinIDs() {
		d, err := Builtin(id)
		if err != nil {
			return nil, err
		}
		dicts = append(dicts, d)
	}
	return NewRegistry(dicts...)
}

func (r *Registry) Lookup(id string) (*Dictionary, bool) {
	d, ok := r.dicts[id]
	return d, ok
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.dicts))
	for id := range r.dicts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve picks the dictionary for a frame. FIX 4.x frames resolve by
// BeginString. FIXT.1.1 frames resolve session messages against the
// FIXT.1.1 dictionary and application messages by applVerID, which the
// caller fills from DefaultApplVerID when the frame carries none.
func (r *Registry) Resolve(beginString, msgType, applVerID string) (*Dictionary, error) {
	if beginString != BeginStringFIXT {
		if d, ok := r.dicts[beginString]; ok {
			return d, nil
		}
		return nil, fmt.Errorf("%w: BeginString %q", ErrUnknownDictionary, beginString)
	}
	if transport, ok := r.dicts[BeginStringFIXT]; ok {
		if _, session := transport.Message(msgType); session || applVerID == "" {
			return transport, nil
		}
	}
	id, ok := ApplVerIDs[applVerID]
	if !ok {
		return nil, fmt.Errorf("%w: ApplVerID %q", ErrUnknownDictionary, applVerID)
	}
	d, ok := r.dicts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDictionary, id)
	}
	if d.BeginString != BeginStringFIXT {
		return nil, fmt.Errorf("%w: %s is not carried over %s", ErrUnknownDictionary, id, BeginStringFIXT)
	}
	return d, nil
}
