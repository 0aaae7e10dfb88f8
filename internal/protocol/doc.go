// Package protocol decodes and encodes FIX tag=value messages against a
// compiled dictionary.
//
// Ownership boundary:
// - frame location, BodyLength and CheckSum verification
// - scope driven field walk with repeating groups and data fields
// - message tree (Message, FieldMap) and JSON mirror
// - dictionary selection per frame through a Registry
package protocol
