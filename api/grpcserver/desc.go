package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "hintbook.Book"

// BookServer is the server API for the hintbook.Book service.
type BookServer interface {
	Deposit(context.Context, *DepositRequest) (*DepositResponse, error)
	Withdraw(context.Context, *WithdrawRequest) (*WithdrawResponse, error)
	InsertOrder(context.Context, *InsertOrderRequest) (*InsertOrderResponse, error)
	ModifyOrder(context.Context, *ModifyOrderRequest) (*ModifyOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	Claim(context.Context, *ClaimRequest) (*ClaimResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	GetHead(context.Context, *GetHeadRequest) (*GetHeadResponse, error)
	GetClaimable(context.Context, *GetClaimableRequest) (*GetClaimableResponse, error)
	GetDepth(context.Context, *GetDepthRequest) (*GetDepthResponse, error)
}

var BookServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BookServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Deposit", BookServer.Deposit),
		unary("Withdraw", BookServer.Withdraw),
		unary("InsertOrder", BookServer.InsertOrder),
		unary("ModifyOrder", BookServer.ModifyOrder),
		unary("CancelOrder", BookServer.CancelOrder),
		unary("Claim", BookServer.Claim),
		unary("GetOrder", BookServer.GetOrder),
		unary("GetHead", BookServer.GetHead),
		unary("GetClaimable", BookServer.GetClaimable),
		unary("GetDepth", BookServer.GetDepth),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hintbook/book",
}

func RegisterBookServer(s grpc.ServiceRegistrar, srv BookServer) {
	s.RegisterService(&BookServiceDesc, srv)
}

// unary builds the method handler a generated stub would contain.
func unary[Req, Resp any](name string, call func(BookServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BookServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(BookServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ---- client ----

// Client calls a hintbook.Book server with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*DepositResponse, error) {
	return invoke[DepositResponse](ctx, c.cc, "Deposit", in, opts)
}

func (c *Client) Withdraw(ctx context.Context, in *WithdrawRequest, opts ...grpc.CallOption) (*WithdrawResponse, error) {
	return invoke[WithdrawResponse](ctx, c.cc, "Withdraw", in, opts)
}

func (c *Client) InsertOrder(ctx context.Context, in *InsertOrderRequest, opts ...grpc.CallOption) (*InsertOrderResponse, error) {
	return invoke[InsertOrderResponse](ctx, c.cc, "InsertOrder", in, opts)
}

func (c *Client) ModifyOrder(ctx context.Context, in *ModifyOrderRequest, opts ...grpc.CallOption) (*ModifyOrderResponse, error) {
	return invoke[ModifyOrderResponse](ctx, c.cc, "ModifyOrder", in, opts)
}

func (c *Client) CancelOrder(ctx context.Context, in *CancelOrderRequest, opts ...grpc.CallOption) (*CancelOrderResponse, error) {
	return invoke[CancelOrderResponse](ctx, c.cc, "CancelOrder", in, opts)
}

func (c *Client) Claim(ctx context.Context, in *ClaimRequest, opts ...grpc.CallOption) (*ClaimResponse, error) {
	return invoke[ClaimResponse](ctx, c.cc, "Claim", in, opts)
}

func (c *Client) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	return invoke[GetOrderResponse](ctx, c.cc, "GetOrder", in, opts)
}

func (c *Client) GetHead(ctx context.Context, in *GetHeadRequest, opts ...grpc.CallOption) (*GetHeadResponse, error) {
	return invoke[GetHeadResponse](ctx, c.cc, "GetHead", in, opts)
}

func (c *Client) GetClaimable(ctx context.Context, in *GetClaimableRequest, opts ...grpc.CallOption) (*GetClaimableResponse, error) {
	return invoke[GetClaimableResponse](ctx, c.cc, "GetClaimable", in, opts)
}

func (c *Client) GetDepth(ctx context.Context, in *GetDepthRequest, opts ...grpc.CallOption) (*GetDepthResponse, error) {
	return invoke[GetDepthResponse](ctx, c.cc, "GetDepth", in, opts)
}
