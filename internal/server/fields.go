package server

import (
	"math"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/nagabus/internal/common"
)

func stringField(in *structpb.Struct, name string) string {
	v, ok := in.GetFields()[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// intField reads an optional whole number. Numbers sent as strings are rejected.
func intField(in *structpb.Struct, name string) (*int, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return nil, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum || n.NumberValue != math.Trunc(n.NumberValue) {
		return nil, common.InvalidInputf("%s must be a whole number", name)
	}
	i := int(n.NumberValue)
	return &i, nil
}

func requiredInt(in *structpb.Struct, name string) (int, error) {
	v, err := intField(in, name)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, common.InvalidInputf("%s is required", name)
	}
	return *v, nil
}

func stringMap(in *structpb.Struct, name string) map[string]string {
	v := in.GetFields()[name].GetStructValue()
	if v == nil {
		return nil
	}
	out := make(map[string]string, len(v.GetFields()))
	for k, f := range v.GetFields() {
		out[k] = f.GetStringValue()
	}
	return out
}
