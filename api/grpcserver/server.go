package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"tiergc/domain/object"
	"tiergc/domain/registry"
	"tiergc/service"
)

// Server adapts RegistryService to gRPC.
type Server struct {
	svc *service.RegistryService
}

func NewServer(svc *service.RegistryService) *Server {
	return &Server{svc: svc}
}

var _ RegistryServer = (*Server)(nil)

// -------------------- Commands --------------------

// Create expects {"value": <int>, "generation": "young|middle|old"}.
// The value is a decimal string or an integral number no larger than
// 2^53 in magnitude. A missing generation means young.
func (s *Server) Create(ctx context.Context, req *structpb.Struct) (*wrapperspb.UInt64Value, error) {
	fields := req.GetFields()
	gen, err := registry.ParseGeneration(fields["generation"].GetStringValue())
	if err != nil {
		return nil, toStatus(err)
	}
	value, err := intField(fields["value"])
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "value: %v", err)
	}

	h, err := s.svc.Create(value, gen)
	if err != nil {
		return nil, toStatus(err)
	}
	log.Printf("[gRPC] Create value=%d gen=%v handle=%v", value, gen, h)
	return wrapperspb.UInt64(uint64(h)), nil
}

func (s *Server) AddRef(ctx context.Context, req *wrapperspb.UInt64Value) (*wrapperspb.Int64Value, error) {
	n, err := s.svc.AddRef(registry.Handle(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (s *Server) Release(ctx context.Context, req *wrapperspb.UInt64Value) (*wrapperspb.Int64Value, error) {
	n, err := s.svc.Release(registry.Handle(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

func (s *Server) Remove(ctx context.Context, req *wrapperspb.UInt64Value) (*emptypb.Empty, error) {
	if err := s.svc.Remove(registry.Handle(req.GetValue())); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Collect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.svc.Collect()
	if err != nil {
		return nil, toStatus(err)
	}
	log.Printf("[gRPC] Collect %v", st)
	return structpb.NewStruct(map[string]any{
		"swept":           st.Swept,
		"young_to_middle": st.YoungToMiddle,
		"middle_to_old":   st.MiddleToOld,
		"sizes":           sizes(st.Sizes),
		"duration_ns":     st.Duration.Nanoseconds(),
	})
}

func (s *Server) Cleanup(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.svc.Cleanup()
	if err != nil {
		return nil, toStatus(err)
	}
	log.Printf("[gRPC] Cleanup destroyed=%d", n)
	return wrapperspb.Int64(int64(n)), nil
}

// -------------------- Queries --------------------

func (s *Server) Describe(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	info, err := s.svc.Describe(registry.Handle(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"handle":     info.Handle.String(),
		"value":      strconv.FormatInt(info.Value, 10),
		"ref_count":  info.RefCount,
		"generation": info.Generation,
	})
}

// Members returns {"handles": ["<handle>", ...]}. Handles are strings
// because Struct numbers are doubles.
func (s *Server) Members(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	gen, err := registry.ParseGeneration(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	members := s.svc.Members(gen)
	out := make([]any, len(members))
	for i, h := range members {
		out[i] = h.String()
	}
	return structpb.NewStruct(map[string]any{
		"generation": gen.String(),
		"handles":    out,
	})
}

func (s *Server) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st := s.svc.Stats()
	return structpb.NewStruct(map[string]any{
		"policy":      st.Policy,
		"sizes":       sizes(st.Sizes),
		"tracked":     st.Tracked,
		"live":        st.Live,
		"collections": st.Collections,
		"destroyed":   st.Destroyed,
		"seq":         strconv.FormatUint(st.Seq, 10),
	})
}

// -------------------- Converters --------------------

// maxExact is the largest magnitude a double holds without losing
// integer precision.
const maxExact = 1 << 53

func intField(v *structpb.Value) (int64, error) {
	switch k := v.GetKind().(type) {
	case nil:
		return 0, nil
	case *structpb.Value_StringValue:
		return strconv.ParseInt(k.StringValue, 10, 64)
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if math.IsNaN(f) || math.Trunc(f) != f {
			return 0, fmt.Errorf("%v is not an integer", f)
		}
		if math.Abs(f) > maxExact {
			return 0, fmt.Errorf("%v is not exact as a number, send it as a string", f)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("unsupported kind %T", k)
	}
}

func sizes(s [registry.NumGenerations]int) map[string]any {
	out := make(map[string]any, registry.NumGenerations)
	for g := registry.Young; g < registry.NumGenerations; g++ {
		out[g.String()] = s[g]
	}
	return out
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, registry.ErrStaleHandle):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, registry.ErrAlreadyRegistered):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, registry.ErrInvalidGeneration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, object.ErrOverRelease), errors.Is(err, object.ErrDestroyed):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, service.ErrLogFailed):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
