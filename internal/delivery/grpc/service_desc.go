package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName полное имя gRPC сервиса
const ServiceName = "sportmatch.v1.MatchService"

// Имена методов сервиса
const (
	MethodEnsureUser        = "EnsureUser"
	MethodGetUser           = "GetUser"
	MethodSaveProfile       = "SaveProfile"
	MethodSavePreferences   = "SavePreferences"
	MethodIncreasePoints    = "IncreasePoints"
	MethodFindMatch         = "FindMatch"
	MethodGetMatch          = "GetMatch"
	MethodPreviewCandidates = "PreviewCandidates"
)

// MatchServiceServer серверная часть sportmatch.v1.MatchService.
// Запросы и ответы передаются как google.protobuf.Struct с теми же полями, что и в HTTP API.
type MatchServiceServer interface {
	EnsureUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SaveProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	SavePreferences(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	IncreasePoints(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	FindMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetMatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	PreviewCandidates(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv MatchServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc описание сервиса для grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodEnsureUser, MatchServiceServer.EnsureUser),
		unaryMethod(MethodGetUser, MatchServiceServer.GetUser),
		unaryMethod(MethodSaveProfile, MatchServiceServer.SaveProfile),
		unaryMethod(MethodSavePreferences, MatchServiceServer.SavePreferences),
		unaryMethod(MethodIncreasePoints, MatchServiceServer.IncreasePoints),
		unaryMethod(MethodFindMatch, MatchServiceServer.FindMatch),
		unaryMethod(MethodGetMatch, MatchServiceServer.GetMatch),
		unaryMethod(MethodPreviewCandidates, MatchServiceServer.PreviewCandidates),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: ProtoFile,
}

// RegisterMatchServiceServer регистрирует реализацию сервиса
func RegisterMatchServiceServer(s grpc.ServiceRegistrar, srv MatchServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MatchServiceServer), ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(MatchServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// FullMethod возвращает полное имя метода, например /sportmatch.v1.MatchService/FindMatch
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// MatchServiceClient клиент sportmatch.v1.MatchService
type MatchServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMatchServiceClient создает клиента поверх соединения
func NewMatchServiceClient(cc grpc.ClientConnInterface) *MatchServiceClient {
	return &MatchServiceClient{cc: cc}
}

// Call вызывает метод name с произвольным телом запроса
func (c *MatchServiceClient) Call(ctx context.Context, name string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
