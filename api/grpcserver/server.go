package grpcserver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"hintbook/api/view"
	"hintbook/domain/orderbook"
	"hintbook/infra/custody"
	"hintbook/service"
)

// Server adapts BookService to gRPC.
type Server struct {
	svc   *service.BookService
	units view.Units
}

func NewServer(svc *service.BookService, units view.Units) *Server {
	return &Server{svc: svc, units: units}
}

// -------------------- Commands --------------------

func (s *Server) Deposit(ctx context.Context, req *DepositRequest) (*DepositResponse, error) {
	account, kind, amount, err := s.transfer(req.Account, req.Asset, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.svc.Deposit(ctx, kind, account, amount); err != nil {
		return nil, toStatus(err)
	}
	balance := s.svc.Balance(kind, account)
	return &DepositResponse{Balance: s.units.FormatAsset(kind, &balance)}, nil
}

func (s *Server) Withdraw(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
	account, kind, amount, err := s.transfer(req.Account, req.Asset, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.svc.Withdraw(ctx, kind, account, amount); err != nil {
		return nil, toStatus(err)
	}
	balance := s.svc.Balance(kind, account)
	return &WithdrawResponse{Balance: s.units.FormatAsset(kind, &balance)}, nil
}

func (s *Server) InsertOrder(ctx context.Context, req *InsertOrderRequest) (*InsertOrderResponse, error) {
	account, err := view.ParseAccount(req.Account)
	if err != nil {
		return nil, toStatus(err)
	}
	side, err := view.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	price, err := s.units.ParsePrice(req.Price)
	if err != nil {
		return nil, toStatus(err)
	}

	res, err := s.svc.Insert(ctx, side, account, price, req.Quantity, orderbook.OrderID(req.PrevHint))
	if err != nil {
		return nil, toStatus(err)
	}
	return &InsertOrderResponse{
		OrderID: uint64(res.OrderID),
		Events:  s.units.Events(res.Events),
	}, nil
}

func (s *Server) ModifyOrder(ctx context.Context, req *ModifyOrderRequest) (*ModifyOrderResponse, error) {
	account, err := view.ParseAccount(req.Account)
	if err != nil {
		return nil, toStatus(err)
	}
	side, err := view.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}

	res, err := s.svc.Modify(ctx, side, account, orderbook.OrderID(req.OrderID), req.Quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ModifyOrderResponse{Events: s.units.Events(res.Events)}, nil
}

func (s *Server) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
	account, err := view.ParseAccount(req.Account)
	if err != nil {
		return nil, toStatus(err)
	}
	side, err := view.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}

	res, err := s.svc.Cancel(ctx, side, account, orderbook.OrderID(req.PrevID), orderbook.OrderID(req.OrderID))
	if err != nil {
		return nil, toStatus(err)
	}
	return &CancelOrderResponse{Events: s.units.Events(res.Events)}, nil
}

func (s *Server) Claim(ctx context.Context, req *ClaimRequest) (*ClaimResponse, error) {
	account, err := view.ParseAccount(req.Account)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.svc.Claim(ctx, account)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ClaimResponse{
		Settlement: s.units.FormatAsset(orderbook.Settlement, &res.Claimed.Settlement),
		Inventory:  s.units.FormatAsset(orderbook.Inventory, &res.Claimed.Inventory),
	}, nil
}

// -------------------- Queries --------------------

func (s *Server) GetOrder(_ context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	side, err := view.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	o := s.svc.Order(side, orderbook.OrderID(req.OrderID))
	if !o.Live() {
		return &GetOrderResponse{Live: false, Order: view.Order{ID: req.OrderID, Side: side.String()}}, nil
	}
	return &GetOrderResponse{Live: true, Order: s.units.Order(o)}, nil
}

func (s *Server) GetHead(_ context.Context, req *GetHeadRequest) (*GetHeadResponse, error) {
	side, err := view.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetHeadResponse{
		Head:        uint64(s.svc.Head(side)),
		NextOrderID: uint64(s.svc.NextOrderID()),
	}, nil
}

func (s *Server) GetClaimable(_ context.Context, req *GetClaimableRequest) (*GetClaimableResponse, error) {
	account, err := view.ParseAccount(req.Account)
	if err != nil {
		return nil, toStatus(err)
	}
	c := s.svc.Claimable(account)
	return &GetClaimableResponse{
		Settlement: s.units.FormatAsset(orderbook.Settlement, &c.Settlement),
		Inventory:  s.units.FormatAsset(orderbook.Inventory, &c.Inventory),
	}, nil
}

func (s *Server) GetDepth(_ context.Context, req *GetDepthRequest) (*GetDepthResponse, error) {
	side, err := view.ParseSide(req.Side)
	if err != nil {
		return nil, toStatus(err)
	}
	orders := s.svc.Depth(side, req.Limit)
	resp := &GetDepthResponse{Orders: make([]view.Order, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, s.units.Order(o))
	}
	return resp, nil
}

// -------------------- Helpers --------------------

func (s *Server) transfer(account, asset, amount string) (addr common.Address, kind orderbook.AssetKind, v *uint256.Int, err error) {
	addr, err = view.ParseAccount(account)
	if err != nil {
		return addr, 0, nil, err
	}
	kind, err = view.ParseAsset(asset)
	if err != nil {
		return addr, 0, nil, err
	}
	v, err = s.units.ParseAsset(kind, amount)
	if err != nil {
		return addr, 0, nil, err
	}
	return addr, kind, v, nil
}

// toStatus maps engine and service errors onto gRPC codes.
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.IsAny(err,
		orderbook.ErrInvalidOrderParams,
		orderbook.ErrInvalidOrderUpdate,
		custody.ErrInvalidAmount,
		view.ErrInvalidAmount,
		view.ErrInvalidSide,
		view.ErrInvalidAsset,
		view.ErrInvalidAccount,
	):
		code = codes.InvalidArgument
	case errors.Is(err, orderbook.ErrNonExistingOrder):
		code = codes.NotFound
	case errors.IsAny(err,
		orderbook.ErrInvalidPrevReference,
		custody.ErrInsufficientBalance,
		custody.ErrOverflow,
	):
		code = codes.FailedPrecondition
	case errors.Is(err, orderbook.ErrNotOrderOwner):
		code = codes.PermissionDenied
	case errors.Is(err, service.ErrUnavailable):
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

// LoggingInterceptor logs every call with its outcome and latency.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	log = log.Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("latency", time.Since(start)),
			zap.Stringer("code", status.Code(err)),
		}
		switch status.Code(err) {
		case codes.OK:
			log.Debug("call", fields...)
		case codes.Internal, codes.Unavailable:
			log.Error("call failed", append(fields, zap.Error(err))...)
		default:
			log.Info("call rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
