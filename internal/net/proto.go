package net

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// marshalProto encodes rec as a google.protobuf.Struct. Numbers are stored
// as doubles, so weights round-trip exactly.
func marshalProto(rec *ModelRecord) ([]byte, error) {
	layers := make([]*structpb.Value, len(rec.Layers))
	for i, lr := range rec.Layers {
		fields := map[string]*structpb.Value{
			"kind":        structpb.NewStringValue(lr.Kind),
			"input_size":  structpb.NewNumberValue(float64(lr.InputSize)),
			"output_size": structpb.NewNumberValue(float64(lr.OutputSize)),
			"size":        structpb.NewNumberValue(float64(lr.Size)),
			"activation":  structpb.NewStringValue(lr.Activation),
			"weights":     numberList(lr.Weights),
			"bias":        numberList(lr.Bias),
		}
		layers[i] = structpb.NewStructValue(&structpb.Struct{Fields: fields})
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"version": structpb.NewNumberValue(float64(rec.Version)),
		"layers":  structpb.NewListValue(&structpb.ListValue{Values: layers}),
	}}

	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proto: %w", err)
	}
	return data, nil
}

func numberList(xs []float64) *structpb.Value {
	values := make([]*structpb.Value, len(xs))
	for i, x := range xs {
		values[i] = structpb.NewNumberValue(x)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func unmarshalProto(data []byte) (*ModelRecord, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: proto: %v", ErrCorruptRecord, err)
	}

	rec := &ModelRecord{Version: int(msg.Fields["version"].GetNumberValue())}
	list := msg.Fields["layers"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: proto: missing layers", ErrCorruptRecord)
	}
	for i, v := range list.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("%w: proto: layer %d is not a struct", ErrCorruptRecord, i)
		}
		f := s.GetFields()
		rec.Layers = append(rec.Layers, LayerRecord{
			Kind:       f["kind"].GetStringValue(),
			InputSize:  int(f["input_size"].GetNumberValue()),
			OutputSize: int(f["output_size"].GetNumberValue()),
			Size:       int(f["size"].GetNumberValue()),
			Activation: f["activation"].GetStringValue(),
			Weights:    numbers(f["weights"]),
			Bias:       numbers(f["bias"]),
		})
	}
	return rec, nil
}

func numbers(v *structpb.Value) []float64 {
	values := v.GetListValue().GetValues()
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	for i, x := range values {
		out[i] = x.GetNumberValue()
	}
	return out
}
