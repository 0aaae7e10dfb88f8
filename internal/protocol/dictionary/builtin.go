package dictionary

import (
	"embed"
	"fmt"
	"sort"
	"sync"
)

//go:embed builtin/*.xml
var builtinFS embed.FS

var builtinFiles = map[string]string{
	"FIX.4.2":    "builtin/FIX42.xml",
	"FIX.4.4":    "builtin/FIX44.xml",
	"FIXT.1.1":   "builtin/FIXT11.xml",
	"FIX.5.0SP2": "builtin/FIX50SP2.xml",
}

// builtinEnvelopes names the transport dictionary an application dictionary
// borrows its header and trailer from.
var builtinEnvelopes = map[string]string{
	"FIX.5.0SP2": "FIXT.1.1",
}

var builtins map[string]func() (*Dictionary, error)

// init builds the loaders; an envelope loader calls back into Builtin, which
// a package-level initializer could not.
func init() {
	out := make(map[string]func() (*Dictionary, error), len(builtinFiles))
	for id, path := range builtinFiles {
		out[id] = sync.OnceValues(func() (*Dictionary, error) {
			f, err := builtinFS.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			var opts []Option
			if envID, ok := builtinEnvelopes[id]; ok {
				env, err := Builtin(envID)
				if err != nil {
					return nil, err
				}
				opts = append(opts, WithEnvelope(env))
			}
			d, err := CompileXML(f, opts...)
			if err != nil {
				return nil, withSource(err, path)
			}
			return d, nil
		})
	}
	builtins = out
}

// Builtin returns an embedded dictionary, compiled once per process.
func Builtin(id string) (*Dictionary, error) {
	load, ok := builtins[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDictionary, id)
	}
	return load()
}

// MustBuiltin is Builtin for ids known to be embedded.
func MustBuiltin(id string) *Dictionary {
	d, err := Builtin(id)
	if err != nil {
		panic(err)
	}
	return d
}

// BuiltinIDs lists the embedded dictionary ids.
func BuiltinIDs() []string {
	ids := make([]string, 0, len(builtinFiles))
	for id := range builtinFiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load resolves ref as a builtin id first, then as a dictionary file path.
func Load(ref string, opts ...Option) (*Dictionary, error) {
	if _, ok := builtinFiles[ref]; ok {
		return Builtin(ref)
	}
	return CompileFile(ref, opts...)
}
