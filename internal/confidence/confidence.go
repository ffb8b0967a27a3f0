// Package confidence attaches OCR block confidences to extracted values.
package confidence

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/numeric"
)

func normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = cases.Fold().String(s)
	return strings.NewReplacer(",", "", "$", "").Replace(s)
}

// Best returns the highest confidence of any block whose normalized text
// equals, contains, or is contained in the normalized value.
func Best(value string, blocks []geometry.Block) (float64, bool) {
	target := normalize(value)
	if target == "" {
		return 0, false
	}

	best, found := 0.0, false
	for _, b := range blocks {
		text := normalize(b.Text)
		if text == "" {
			continue
		}
		if target == text || strings.Contains(text, target) || strings.Contains(target, text) {
			if !found || b.Confidence > best {
				best, found = b.Confidence, true
			}
		}
	}
	if !found {
		return 0, false
	}
	return math.Round(best*1000) / 1000, true
}

// Map mirrors value's shape, replacing each scalar leaf with its best block
// confidence or nil. Booleans and nils map to nil.
func Map(value any, blocks []geometry.Block) any {
	if value == nil {
		return nil
	}
	rv := reflect.ValueOf(value)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return nil
	}

	switch v := value.(type) {
	case bool:
		return nil
	case string:
		return leaf(v, blocks)
	case decimal.Decimal:
		// amounts are matched as printed, "20.00" rather than "20"
		return leaf(numeric.Fixed(v, 2, 8), blocks)
	case fmt.Stringer:
		return leaf(v.String(), blocks)
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return Map(rv.Elem().Interface(), blocks)
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = Map(iter.Value().Interface(), blocks)
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Map(rv.Index(i).Interface(), blocks)
		}
		return out
	case reflect.Struct:
		return mapStruct(rv, blocks)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return leaf(fmt.Sprint(value), blocks)
	case reflect.String:
		return leaf(rv.String(), blocks)
	default:
		return nil
	}
}

// mapStruct walks exported fields keyed by their json names.
func mapStruct(rv reflect.Value, blocks []geometry.Block) map[string]any {
	rt := rv.Type()
	out := make(map[string]any, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			n, _, _ := strings.Cut(tag, ",")
			if n == "-" {
				continue
			}
			if n != "" {
				name = n
			}
		}
		out[name] = Map(rv.Field(i).Interface(), blocks)
	}
	return out
}

func leaf(s string, blocks []geometry.Block) any {
	if c, ok := Best(s, blocks); ok {
		return c
	}
	return nil
}
