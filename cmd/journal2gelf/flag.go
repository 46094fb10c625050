package main

import (
	"fmt"
	"strings"
)

// EnumFlag accepts one of a fixed list of strings.
type EnumFlag struct {
	Value *string
	Enum  []string
}

// NewEnumFlag defaults to value, which need not be in enum: "" means unset.
func NewEnumFlag(value string, enum ...string) *EnumFlag {
	return &EnumFlag{Value: &value, Enum: enum}
}

func (f *EnumFlag) String() string {
	if f.Value != nil {
		return *f.Value
	}
	return ""
}

func (f *EnumFlag) Set(s string) error {
	for _, e := range f.Enum {
		if strings.EqualFold(e, s) {
			*f.Value = e
			return nil
		}
	}
	return fmt.Errorf("invalid value %v, expected %v", s, f.Type())
}

func (f EnumFlag) Type() string { return strings.Join(f.Enum, "|") }
