package server

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"
)

// toStruct renders v through its JSON form, so the wire shape matches the
// entity json tags.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
