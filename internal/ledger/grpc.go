package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"

	"github.com/cosmoswap-labs/pclpool/internal/logger"
)

const queryTimeout = 10 * time.Second

var (
	ErrNilGRPCClient   = errors.New("gRPC client cannot be nil")
	ErrGRPCUnavailable = errors.New("gRPC connection is not usable")
	ErrEmptyAddress    = errors.New("pool address cannot be empty")
)

// GRPCLedger reads pool balances and LP supply from a chain node's bank
// module over gRPC. The connection is owned by the caller unless Close is
// used for shutdown.
type GRPCLedger struct {
	address     string
	grpcConn    *grpc.ClientConn
	queryClient banktypes.QueryClient
	log         zerolog.Logger
}

// NewGRPCLedger wires a bank query client for the pool account at address.
func NewGRPCLedger(address string, grpcClient *grpc.ClientConn) (*GRPCLedger, error) {
	if grpcClient == nil {
		return nil, ErrNilGRPCClient
	}
	if address == "" {
		return nil, ErrEmptyAddress
	}
	if err := validateConnection(grpcClient); err != nil {
		return nil, err
	}

	return &GRPCLedger{
		address:     address,
		grpcConn:    grpcClient,
		queryClient: banktypes.NewQueryClient(grpcClient),
		log:         logger.GetForComponent("grpc-ledger"),
	}, nil
}

func (l *GRPCLedger) Balance(ctx context.Context, denom string) (sdkmath.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	resp, err := l.queryClient.Balance(ctx, &banktypes.QueryBalanceRequest{
		Address: l.address,
		Denom:   denom,
	})
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("bank balance query for %s: %w", denom, err)
	}
	if resp.Balance == nil {
		return sdkmath.ZeroInt(), nil
	}
	return resp.Balance.Amount, nil
}

func (l *GRPCLedger) TotalSupply(ctx context.Context, denom string) (sdkmath.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	resp, err := l.queryClient.SupplyOf(ctx, &banktypes.QuerySupplyOfRequest{Denom: denom})
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("bank supply query for %s: %w", denom, err)
	}
	return resp.Amount.Amount, nil
}

func (l *GRPCLedger) DenomExists(ctx context.Context, denom string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := l.queryClient.DenomMetadata(ctx, &banktypes.QueryDenomMetadataRequest{Denom: denom})
	if err != nil {
		// Metadata is optional on many chains; fall back to a supply probe.
		resp, supplyErr := l.queryClient.SupplyOf(ctx, &banktypes.QuerySupplyOfRequest{Denom: denom})
		if supplyErr != nil {
			return false, fmt.Errorf("denom lookup for %s: %w", denom, supplyErr)
		}
		return resp.Amount.Amount.IsPositive(), nil
	}
	return true, nil
}

func (l *GRPCLedger) Close() error {
	if l.grpcConn == nil {
		return nil
	}
	l.log.Info().Msg("Closing gRPC connection")
	return l.grpcConn.Close()
}

func validateConnection(conn *grpc.ClientConn) error {
	state := conn.GetState()
	if state == connectivity.Shutdown {
		return fmt.Errorf("%w: state %s", ErrGRPCUnavailable, state)
	}
	return nil
}
