package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// decode copies a Struct into v through its JSON form.
func decode(req *structpb.Struct, v any) error {
	b, err := json.Marshal(req.AsMap())
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("request: %w", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	return structpb.NewStruct(m)
}
