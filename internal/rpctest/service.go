package rpctest

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"mini-jsonrpc/message"
)

type methodType struct {
	method    reflect.Method
	ArgType   reflect.Type
	ReplyType reflect.Type
}

type service struct {
	name   string
	rcvr   reflect.Value
	typ    reflect.Type
	method map[string]*methodType // lowercased method name -> method
}

// newService scans rcvr for exported methods of the form
//
//	func (r *T) Name(args *A, reply *R) error
//
// Each one is served as the JSON-RPC method strings.ToLower(Name).
func newService(rcvr any) (*service, error) {
	typ := reflect.TypeOf(rcvr)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("rpctest: rcvr must be a pointer, got %T", rcvr)
	}
	if typ.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("rpctest: rcvr must point to a struct, got %s", typ.Elem().Kind())
	}

	s := &service{
		name:   typ.Elem().Name(),
		rcvr:   reflect.ValueOf(rcvr),
		typ:    typ,
		method: make(map[string]*methodType),
	}
	s.registerMethods()
	if len(s.method) == 0 {
		return nil, fmt.Errorf("rpctest: %s has no methods of the form Name(*Args, *Reply) error", s.name)
	}
	return s, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (s *service) registerMethods() {
	for i := 0; i < s.typ.NumMethod(); i++ {
		method := s.typ.Method(i)
		if method.Type.NumIn() != 3 || method.Type.NumOut() != 1 || method.Type.Out(0) != errorType ||
			method.Type.In(1).Kind() != reflect.Ptr || method.Type.In(2).Kind() != reflect.Ptr {
			continue
		}

		s.method[strings.ToLower(method.Name)] = &methodType{
			method:    method,
			ArgType:   method.Type.In(1).Elem(),
			ReplyType: method.Type.In(2).Elem(),
		}
	}
}

// call decodes params into a fresh args value, invokes the method and returns the
// reply value.
func (s *service) call(mType *methodType, params json.RawMessage) (any, error) {
	argv := reflect.New(mType.ArgType)
	if err := decodeArgs(params, argv); err != nil {
		return nil, message.NewError(message.InvalidParams, err.Error())
	}
	replyv := reflect.New(mType.ReplyType)

	results := mType.method.Func.Call([]reflect.Value{s.rcvr, argv, replyv})
	if !results[0].IsNil() {
		return nil, results[0].Interface().(error)
	}
	return replyv.Interface(), nil
}

// decodeArgs fills argv (a pointer) from named or positional params. Positional
// params fill a struct's exported fields in declaration order; a single positional
// value fills a non-struct argument directly.
func decodeArgs(params json.RawMessage, argv reflect.Value) error {
	trimmed := strings.TrimSpace(string(params))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if trimmed[0] == '{' {
		return json.Unmarshal(params, argv.Interface())
	}

	target := argv.Elem()
	switch target.Kind() {
	case reflect.Slice, reflect.Array:
		return json.Unmarshal(params, argv.Interface())
	}

	var items []json.RawMessage
	if err := json.Unmarshal(params, &items); err != nil {
		return err
	}

	if target.Kind() != reflect.Struct {
		switch len(items) {
		case 0:
			return nil
		case 1:
			return json.Unmarshal(items[0], argv.Interface())
		}
		return fmt.Errorf("expected 1 positional param, got %d", len(items))
	}

	fields := exportedFields(target.Type())
	if len(items) > len(fields) {
		return fmt.Errorf("expected at most %d positional params, got %d", len(fields), len(items))
	}
	for i, item := range items {
		if err := json.Unmarshal(item, target.Field(fields[i]).Addr().Interface()); err != nil {
			return fmt.Errorf("param %d: %w", i, err)
		}
	}
	return nil
}

func exportedFields(t reflect.Type) []int {
	var idx []int
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			idx = append(idx, i)
		}
	}
	return idx
}
