// Package server exposes matches over gRPC. Messages are protobuf Structs so
// the service needs no generated code; the shapes are documented on each
// method.
package server

import (
	"context"

	"github.com/clinicsim/clinic-server-go/internal/game"
	"github.com/clinicsim/clinic-server-go/internal/game/model"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "clinic.v1.MatchService"

// MatchServiceServer is the match API.
type MatchServiceServer interface {
	CreateMatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlayCard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndTurn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Counter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunOpponentTurn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListMatches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListScenarios(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ScenarioSource lists the scenarios a match can be created from.
type ScenarioSource interface {
	Scenarios() []model.Scenario
}

// clinicServer implements MatchServiceServer
type clinicServer struct {
	matches       *game.Manager
	scenarios     ScenarioSource
	logger        *zap.Logger
	serverVersion string
}

// NewClinicServer creates the match service.
func NewClinicServer(matches *game.Manager, scenarios ScenarioSource, serverVersion string, logger *zap.Logger) MatchServiceServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &clinicServer{
		matches:       matches,
		scenarios:     scenarios,
		logger:        logger,
		serverVersion: serverVersion,
	}
}

// RegisterMatchServiceServer registers srv on s.
func RegisterMatchServiceServer(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&matchServiceDesc, srv)
}

type unaryCall func(MatchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatchServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var matchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateMatch", Handler: unaryHandler("CreateMatch", MatchServiceServer.CreateMatch)},
		{MethodName: "GetState", Handler: unaryHandler("GetState", MatchServiceServer.GetState)},
		{MethodName: "PlayCard", Handler: unaryHandler("PlayCard", MatchServiceServer.PlayCard)},
		{MethodName: "EndTurn", Handler: unaryHandler("EndTurn", MatchServiceServer.EndTurn)},
		{MethodName: "Counter", Handler: unaryHandler("Counter", MatchServiceServer.Counter)},
		{MethodName: "RunOpponentTurn", Handler: unaryHandler("RunOpponentTurn", MatchServiceServer.RunOpponentTurn)},
		{MethodName: "ListMatches", Handler: unaryHandler("ListMatches", MatchServiceServer.ListMatches)},
		{MethodName: "ListScenarios", Handler: unaryHandler("ListScenarios", MatchServiceServer.ListScenarios)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clinic/v1/match.proto",
}
