// Package dictionary compiles FIX schema sources into immutable dictionaries.
//
// Ownership boundary:
// - field, group, component and message definitions
// - XML (QuickFIX layout) and TOML schema sources
// - embedded FIX.4.2, FIX.4.4, FIXT.1.1 and FIX.5.0SP2 dictionaries
// - version selection for FIXT.1.1 application messages
package dictionary
