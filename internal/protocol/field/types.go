package field

import (
	"fmt"
	"strings"
)

// Type is a FIX data type as named by a dictionary.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeString
	TypeChar
	TypeInt
	TypeLength
	TypeNumInGroup
	TypeSeqNum
	TypeTagNum
	TypeDayOfMonth
	TypeFloat
	TypeQty
	TypePrice
	TypePriceOffset
	TypeAmt
	TypePercentage
	TypeBoolean
	TypeData
	TypeXMLData
	TypeUTCTimestamp
	TypeUTCTimeOnly
	TypeUTCDateOnly
	TypeLocalMktDate
	TypeMonthYear
	TypeMultipleValueString
	TypeMultipleCharValue
	TypeCurrency
	TypeExchange
	TypeCountry
	TypeLanguage
	TypeTZTimeOnly
	TypeTZTimestamp
)

// Kind is the wire representation shared by a family of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindDecimal
	KindChar
	KindBool
	KindString
	KindData
	KindTimestamp
	KindTimeOnly
	KindDateOnly
)

var typeNames = map[Type]string{
	TypeString:              "STRING",
	TypeChar:                "CHAR",
	TypeInt:                 "INT",
	TypeLength:              "LENGTH",
	TypeNumInGroup:          "NUMINGROUP",
	TypeSeqNum:              "SEQNUM",
	TypeTagNum:              "TAGNUM",
	TypeDayOfMonth:          "DAYOFMONTH",
	TypeFloat:               "FLOAT",
	TypeQty:                 "QTY",
	TypePrice:               "PRICE",
	TypePriceOffset:         "PRICEOFFSET",
	TypeAmt:                 "AMT",
	TypePercentage:          "PERCENTAGE",
	TypeBoolean:             "BOOLEAN",
	TypeData:                "DATA",
	TypeXMLData:             "XMLDATA",
	TypeUTCTimestamp:        "UTCTIMESTAMP",
	TypeUTCTimeOnly:         "UTCTIMEONLY",
	TypeUTCDateOnly:         "UTCDATEONLY",
	TypeLocalMktDate:        "LOCALMKTDATE",
	TypeMonthYear:           "MONTHYEAR",
	TypeMultipleValueString: "MULTIPLEVALUESTRING",
	TypeMultipleCharValue:   "MULTIPLECHARVALUE",
	TypeCurrency:            "CURRENCY",
	TypeExchange:            "EXCHANGE",
	TypeCountry:             "COUNTRY",
	TypeLanguage:            "LANGUAGE",
	TypeTZTimeOnly:          "TZTIMEONLY",
	TypeTZTimestamp:         "TZTIMESTAMP",
}

// aliases covers spellings used by older dictionaries.
var aliases = map[string]Type{
	"QUANTITY":            TypeQty,
	"UTCDATE":             TypeUTCDateOnly,
	"DATE":                TypeUTCDateOnly,
	"TIME":                TypeUTCTimestamp,
	"MULTIPLESTRINGVALUE": TypeMultipleValueString,
	"XID":                 TypeString,
	"XIDREF":              TypeString,
}

var typesByName = func() map[string]Type {
	out := make(map[string]Type, len(typeNames)+len(aliases))
	for t, name := range typeNames {
		out[name] = t
	}
	for name, t := range aliases {
		out[name] = t
	}
	return out
}()

// ParseType maps a dictionary type name to a Type. Matching is case-insensitive.
func ParseType(name string) (Type, error) {
	t, ok := typesByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return TypeUnknown, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Kind returns the wire representation of t.
func (t Type) Kind() Kind {
	switch t {
	case TypeInt, TypeLength, TypeNumInGroup, TypeSeqNum, TypeTagNum, TypeDayOfMonth:
		return KindInt
	case TypeFloat, TypeQty, TypePrice, TypePriceOffset, TypeAmt, TypePercentage:
		return KindDecimal
	case TypeChar:
		return KindChar
	case TypeBoolean:
		return KindBool
	case TypeData, TypeXMLData:
		return KindData
	case TypeUTCTimestamp:
		return KindTimestamp
	case TypeUTCTimeOnly:
		return KindTimeOnly
	case TypeUTCDateOnly, TypeLocalMktDate:
		return KindDateOnly
	case TypeUnknown:
		return KindInvalid
	default:
		return KindString
	}
}

// Multiple reports whether values of t are space separated lists.
func (t Type) Multiple() bool {
	return t == TypeMultipleValueString || t == TypeMultipleCharValue
}

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindChar:
		return "char"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindData:
		return "data"
	case KindTimestamp:
		return "timestamp"
	case KindTimeOnly:
		return "timeonly"
	case KindDateOnly:
		return "dateonly"
	default:
		return "invalid"
	}
}
