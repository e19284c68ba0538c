package util

import (
	"math/rand/v2"
	"reflect"
)

var letterRunes = []rune("abcdefghijklmnopqrstuvwxyz")

// Randstring returns n random lowercase letters. Safe for concurrent use.
func Randstring(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = letterRunes[rand.IntN(len(letterRunes))]
	}
	return string(b)
}

// StructMap flattens the exported top-level fields of a struct (or pointer to one) into a map.
func StructMap(s any) map[string]any {
	out := map[string]any{}
	typ := reflect.TypeOf(s)
	struc := reflect.ValueOf(s)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
		struc = struc.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		out[field.Name] = struc.Field(i).Interface()
	}
	return out
}
