package models

import "encoding/json"

// Record is the backend-agnostic representation of a stored document: a
// plain JSON object. Both storage engines read and write Records; typed
// entities exist only above the store boundary.
type Record = map[string]any

// ToRecord converts an entity into its Record form via a JSON round trip.
func ToRecord(v any) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decode converts a Record back into a typed entity.
func Decode[T any](rec Record) (*T, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeAll converts a slice of Records into typed entities, preserving
// order.
func DecodeAll[T any](recs []Record) ([]*T, error) {
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		v, err := Decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
