package prayer

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// shapeMatcher locates the array of generated objects in the parsed response.
type shapeMatcher func(doc gjson.Result) (arr gjson.Result, ok bool)

// shapeMatchers are tried in order, the first match wins. A document none
// of them matches, a top-level scalar included, yields no records rather
// than an error.
var shapeMatchers = []shapeMatcher{
	bareArray,
	prayersField,
	firstArrayField,
}

// bareArray matches `[...]`.
func bareArray(doc gjson.Result) (gjson.Result, bool) {
	return doc, doc.IsArray()
}

// prayersField matches `{"prayers": [...]}` with at least one element.
func prayersField(doc gjson.Result) (gjson.Result, bool) {
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	v := doc.Get("prayers")
	return v, v.IsArray() && len(v.Array()) > 0
}

// firstArrayField matches the first array-valued field of an object,
// in document order.
func firstArrayField(doc gjson.Result) (arr gjson.Result, ok bool) {
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	doc.ForEach(func(_, v gjson.Result) bool {
		if v.IsArray() {
			arr, ok = v, true
			return false
		}
		return true
	})
	return arr, ok
}

// extract parses the completion content and returns generated objects.
// Unknown shapes yield an empty list.
func extract(content string) ([]map[string]any, error) {
	if !gjson.Valid(content) {
		return nil, fmt.Errorf("%w: content is not a valid json", ErrMalformedResponse)
	}

	doc := gjson.Parse(content)

	var arr gjson.Result
	found := false
	for _, match := range shapeMatchers {
		if arr, found = match(doc); found {
			break
		}
	}

	if !found {
		return []map[string]any{}, nil
	}

	elems := arr.Array()
	res := make([]map[string]any, 0, len(elems))
	for i, el := range elems {
		obj, ok := el.Value().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: prayer #%d is %s, not an object", ErrMalformedResponse, i, el.Type)
		}
		res = append(res, obj)
	}

	return res, nil
}
