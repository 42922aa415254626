package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// VerificationClient calls receiptverify.v1.VerificationService.
type VerificationClient struct {
	cc grpc.ClientConnInterface
}

func NewVerificationClient(cc grpc.ClientConnInterface) *VerificationClient {
	return &VerificationClient{cc: cc}
}

func (c *VerificationClient) Submit(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Submit", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VerificationClient) Review(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Review", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VerificationClient) GetRecord(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetRecord", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
