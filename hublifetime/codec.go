package hublifetime

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// ControlAction distinguishes the three shapes a ControlMessage can carry.
type ControlAction string

const (
	ControlAdd    ControlAction = "add"
	ControlRemove ControlAction = "remove"
	ControlAck    ControlAction = "ack"
)

// ControlMessage is published on the control topics of the group-mutation
// protocol (§4.6/§4.7): Add/Remove travel on the shared control inbox,
// Ack travels back to the originating server's private inbox.
type ControlMessage struct {
	Action        ControlAction
	CorrelationID uint64
	ConnectionID  string
	GroupName     string
	OriginServer  string
}

// argument discriminators. These tag each encoded value so a receiving
// server can decode it without knowing the target method's declared
// parameter types. Only values of a type registered with
// RegisterArgumentType come back as their concrete type; the other kinds
// decode to string, bool, float64 (every numeric type), []any, or
// map[string]any (maps, pointers and unregistered structs).
const (
	argNull   = "null"
	argString = "string"
	argNumber = "number"
	argBool   = "bool"
	argArray  = "array"
	argObject = "object"
	argCustom = "custom"
)

type typedArgument struct {
	Kind  string          `json:"kind"`
	Type  string          `json:"type,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

var customArgumentTypes sync.Map // name -> reflect.Type

// RegisterArgumentType makes a concrete struct/value type rehydratable
// across the wire under name: any argument whose runtime type equals
// reflect.TypeOf(zero) is tagged with name on encode, and decoded back into
// a fresh value of that type on the receiving server. Call this once per
// process, for every argument type a hub method may pass to InvokeX, before
// any invocation that carries it is encoded or decoded.
func RegisterArgumentType(name string, zero any) {
	customArgumentTypes.Store(name, reflect.TypeOf(zero))
}

func encodeArgument(v any) (typedArgument, error) {
	if v == nil {
		return typedArgument{Kind: argNull}, nil
	}
	rt := reflect.TypeOf(v)
	typeName := ""
	customArgumentTypes.Range(func(k, val any) bool {
		if val.(reflect.Type) == rt {
			typeName = k.(string)
			return false
		}
		return true
	})
	if typeName != "" {
		data, err := json.Marshal(v)
		if err != nil {
			return typedArgument{}, err
		}
		return typedArgument{Kind: argCustom, Type: typeName, Value: data}, nil
	}
	kind := rt.Kind()
	switch {
	case kind == reflect.String:
		data, err := json.Marshal(v)
		return typedArgument{Kind: argString, Value: data}, err
	case kind == reflect.Bool:
		data, err := json.Marshal(v)
		return typedArgument{Kind: argBool, Value: data}, err
	case isNumericKind(kind):
		data, err := json.Marshal(v)
		return typedArgument{Kind: argNumber, Value: data}, err
	case kind == reflect.Slice || kind == reflect.Array:
		data, err := json.Marshal(v)
		return typedArgument{Kind: argArray, Value: data}, err
	case kind == reflect.Map || kind == reflect.Struct || kind == reflect.Ptr:
		data, err := json.Marshal(v)
		return typedArgument{Kind: argObject, Value: data}, err
	default:
		return typedArgument{}, fmt.Errorf("hublifetime: argument of kind %s has no wire representation; register it with RegisterArgumentType", kind)
	}
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func decodeArgument(t typedArgument) (any, error) {
	switch t.Kind {
	case argNull:
		return nil, nil
	case argString:
		var s string
		if err := json.Unmarshal(t.Value, &s); err != nil {
			return nil, err
		}
		return s, nil
	case argBool:
		var b bool
		if err := json.Unmarshal(t.Value, &b); err != nil {
			return nil, err
		}
		return b, nil
	case argNumber:
		var f float64
		if err := json.Unmarshal(t.Value, &f); err != nil {
			return nil, err
		}
		return f, nil
	case argArray:
		var a []any
		if err := json.Unmarshal(t.Value, &a); err != nil {
			return nil, err
		}
		return a, nil
	case argObject:
		var m map[string]any
		if err := json.Unmarshal(t.Value, &m); err != nil {
			return nil, err
		}
		return m, nil
	case argCustom:
		rtAny, ok := customArgumentTypes.Load(t.Type)
		if !ok {
			return nil, fmt.Errorf("hublifetime: argument type %q is not registered on this server", t.Type)
		}
		rt := rtAny.(reflect.Type)
		ptr := reflect.New(rt)
		if err := json.Unmarshal(t.Value, ptr.Interface()); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	default:
		return nil, fmt.Errorf("hublifetime: unknown argument kind %q", t.Kind)
	}
}

func encodeArguments(args []any) ([]typedArgument, error) {
	out := make([]typedArgument, len(args))
	for i, a := range args {
		ta, err := encodeArgument(a)
		if err != nil {
			return nil, err
		}
		out[i] = ta
	}
	return out, nil
}

func decodeArguments(args []typedArgument) ([]any, error) {
	out := make([]any, len(args))
	for i, ta := range args {
		v, err := decodeArgument(ta)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type invocationEnvelope struct {
	InvocationID string          `json:"invocationId"`
	Target       string          `json:"target"`
	Arguments    []typedArgument `json:"arguments"`
	NonBlocking  bool            `json:"nonBlocking"`
	ExcludedIDs  []string        `json:"excludedIds,omitempty"`
}

// WireCodec encodes and decodes the two envelope shapes carried over the
// bus: invocation envelopes (with type-tagged polymorphic arguments) and
// control envelopes. It is independent from whatever serializer the
// transport layer uses to talk to clients.
type WireCodec struct{}

// NewWireCodec returns a ready-to-use codec. WireCodec holds no state.
func NewWireCodec() *WireCodec {
	return &WireCodec{}
}

// EncodeInvocation serializes msg for a topic that never carries
// exclusions (broadcast, connection, user).
func (c *WireCodec) EncodeInvocation(msg *InvocationMessage) ([]byte, error) {
	args, err := encodeArguments(msg.Arguments)
	if err != nil {
		return nil, err
	}
	return json.Marshal(invocationEnvelope{
		InvocationID: msg.InvocationID,
		Target:       msg.Target,
		Arguments:    args,
		NonBlocking:  msg.NonBlocking,
	})
}

// DecodeInvocation parses a payload produced by EncodeInvocation.
func (c *WireCodec) DecodeInvocation(data []byte) (*InvocationMessage, error) {
	var env invocationEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	args, err := decodeArguments(env.Arguments)
	if err != nil {
		return nil, err
	}
	return &InvocationMessage{
		InvocationID: env.InvocationID,
		Target:       env.Target,
		Arguments:    args,
		NonBlocking:  env.NonBlocking,
	}, nil
}

// EncodeExcluding serializes msg for a topic that may carry exclusions
// (AllExcept, group).
func (c *WireCodec) EncodeExcluding(msg *ExcludingInvocationMessage) ([]byte, error) {
	args, err := encodeArguments(msg.Arguments)
	if err != nil {
		return nil, err
	}
	return json.Marshal(invocationEnvelope{
		InvocationID: msg.InvocationID,
		Target:       msg.Target,
		Arguments:    args,
		NonBlocking:  msg.NonBlocking,
		ExcludedIDs:  msg.ExcludedIDs,
	})
}

// DecodeExcluding parses a payload produced by EncodeExcluding.
func (c *WireCodec) DecodeExcluding(data []byte) (*ExcludingInvocationMessage, error) {
	var env invocationEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	args, err := decodeArguments(env.Arguments)
	if err != nil {
		return nil, err
	}
	return &ExcludingInvocationMessage{
		InvocationMessage: InvocationMessage{
			InvocationID: env.InvocationID,
			Target:       env.Target,
			Arguments:    args,
			NonBlocking:  env.NonBlocking,
		},
		ExcludedIDs: env.ExcludedIDs,
	}, nil
}

type controlEnvelope struct {
	Action        ControlAction `json:"action"`
	CorrelationID uint64        `json:"correlationId"`
	ConnectionID  string        `json:"connectionId,omitempty"`
	GroupName     string        `json:"groupName,omitempty"`
	OriginServer  string        `json:"originServer"`
}

// EncodeControl serializes a ControlMessage.
func (c *WireCodec) EncodeControl(msg *ControlMessage) ([]byte, error) {
	return json.Marshal(controlEnvelope{
		Action:        msg.Action,
		CorrelationID: msg.CorrelationID,
		ConnectionID:  msg.ConnectionID,
		GroupName:     msg.GroupName,
		OriginServer:  msg.OriginServer,
	})
}

// DecodeControl parses a payload produced by EncodeControl.
func (c *WireCodec) DecodeControl(data []byte) (*ControlMessage, error) {
	var env controlEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &ControlMessage{
		Action:        env.Action,
		CorrelationID: env.CorrelationID,
		ConnectionID:  env.ConnectionID,
		GroupName:     env.GroupName,
		OriginServer:  env.OriginServer,
	}, nil
}
