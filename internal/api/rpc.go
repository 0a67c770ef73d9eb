// Package api exposes the daemon over gRPC. Services are declared by hand
// and carry google.protobuf.Struct messages whose fields mirror the JSON
// form of the request and response types in this package.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Package is the gRPC package of every service.
const Package = "smsync.v1"

// UnaryFunc serves one request.
type UnaryFunc func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// StreamFunc serves one request with any number of responses.
type StreamFunc func(ctx context.Context, req *structpb.Struct, send func(*structpb.Struct) error) error

// Desc describes one service.
type Desc struct {
	Name    string
	Unary   map[string]UnaryFunc
	Streams map[string]StreamFunc
}

// Service is implemented by every API service.
type Service interface {
	Desc() Desc
}

// FullMethod returns the gRPC method path of service/method.
func FullMethod(service, method string) string {
	return "/" + Package + "." + service + "/" + method
}

// Register adds every service to reg.
func Register(reg grpc.ServiceRegistrar, services ...Service) {
	for _, svc := range services {
		d := svc.Desc()
		reg.RegisterService(serviceDesc(d), svc)
	}
}

func serviceDesc(d Desc) *grpc.ServiceDesc {
	sd := &grpc.ServiceDesc{
		ServiceName: Package + "." + d.Name,
		HandlerType: (*any)(nil),
		Metadata:    "smsync/v1/" + d.Name,
	}
	for _, name := range sortedKeys(d.Unary) {
		fn, full := d.Unary[name], FullMethod(d.Name, name)
		sd.Methods = append(sd.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler: func(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				in := new(structpb.Struct)
				if err := dec(in); err != nil {
					return nil, err
				}
				if interceptor == nil {
					return fn(ctx, in)
				}
				info := &grpc.UnaryServerInfo{FullMethod: full}
				return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
					return fn(ctx, req.(*structpb.Struct))
				})
			},
		})
	}
	for _, name := range sortedKeys(d.Streams) {
		fn := d.Streams[name]
		sd.Streams = append(sd.Streams, grpc.StreamDesc{
			StreamName:    name,
			ServerStreams: true,
			Handler: func(_ any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return fn(stream.Context(), in, func(out *structpb.Struct) error {
					return stream.SendMsg(out)
				})
			},
		})
	}
	return sd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode converts v, which must marshal to a JSON object, to a Struct.
func Encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return out, nil
}

// Decode fills v from s.
func Decode(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

func unary[Req, Resp any](fn func(ctx context.Context, req Req) (Resp, error)) UnaryFunc {
	return func(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
		var req Req
		if err := Decode(in, &req); err != nil {
			return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		resp, err := fn(ctx, req)
		if err != nil {
			return nil, toStatus(err)
		}
		out, err := Encode(resp)
		if err != nil {
			return nil, grpcstatus.Errorf(codes.Internal, "%v", err)
		}
		return out, nil
	}
}

func stream[Req, Event any](fn func(ctx context.Context, req Req, send func(Event) error) error) StreamFunc {
	return func(ctx context.Context, in *structpb.Struct, send func(*structpb.Struct) error) error {
		var req Req
		if err := Decode(in, &req); err != nil {
			return grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
		}
		err := fn(ctx, req, func(evt Event) error {
			out, err := Encode(evt)
			if err != nil {
				return grpcstatus.Errorf(codes.Internal, "%v", err)
			}
			return send(out)
		})
		if err != nil {
			return toStatus(err)
		}
		return nil
	}
}
