package grpcserver

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"tiergc/domain/registry"
)

// Client is a typed wrapper over a connection to the Registry service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Create(ctx context.Context, value int64, gen registry.Generation) (registry.Handle, error) {
	req, err := structpb.NewStruct(map[string]any{
		"value":      strconv.FormatInt(value, 10),
		"generation": gen.String(),
	})
	if err != nil {
		return 0, err
	}
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(ctx, fullMethod("Create"), req, out); err != nil {
		return 0, err
	}
	return registry.Handle(out.GetValue()), nil
}

func (c *Client) AddRef(ctx context.Context, h registry.Handle) (int, error) {
	out := new(wrapperspb.Int64Value)
	err := c.cc.Invoke(ctx, fullMethod("AddRef"), wrapperspb.UInt64(uint64(h)), out)
	return int(out.GetValue()), err
}

func (c *Client) Release(ctx context.Context, h registry.Handle) (int, error) {
	out := new(wrapperspb.Int64Value)
	err := c.cc.Invoke(ctx, fullMethod("Release"), wrapperspb.UInt64(uint64(h)), out)
	return int(out.GetValue()), err
}

func (c *Client) Remove(ctx context.Context, h registry.Handle) error {
	return c.cc.Invoke(ctx, fullMethod("Remove"), wrapperspb.UInt64(uint64(h)), new(emptypb.Empty))
}

func (c *Client) Describe(ctx context.Context, h registry.Handle) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Describe"), wrapperspb.UInt64(uint64(h)), out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) Members(ctx context.Context, gen registry.Generation) ([]registry.Handle, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Members"), wrapperspb.String(gen.String()), out); err != nil {
		return nil, err
	}
	list := out.GetFields()["handles"].GetListValue().GetValues()
	handles := make([]registry.Handle, 0, len(list))
	for _, v := range list {
		n, err := strconv.ParseUint(v.GetStringValue(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad handle %q: %w", v.GetStringValue(), err)
		}
		handles = append(handles, registry.Handle(n))
	}
	return handles, nil
}

func (c *Client) Collect(ctx context.Context) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Collect"), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) Cleanup(ctx context.Context) (int, error) {
	out := new(wrapperspb.Int64Value)
	err := c.cc.Invoke(ctx, fullMethod("Cleanup"), &emptypb.Empty{}, out)
	return int(out.GetValue()), err
}

func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod("Stats"), &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}
