package grpc

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ProtoFile путь к описанию сервиса, api/proto/sportmatch/v1/match_service.proto
const ProtoFile = "sportmatch/v1/match_service.proto"

const structType = ".google.protobuf.Struct"

// methodNames порядок методов совпадает с .proto
var methodNames = []string{
	MethodEnsureUser,
	MethodGetUser,
	MethodSaveProfile,
	MethodSavePreferences,
	MethodIncreasePoints,
	MethodFindMatch,
	MethodGetMatch,
	MethodPreviewCandidates,
}

func init() {
	if _, err := registerFileDescriptor(); err != nil {
		panic(fmt.Sprintf("register %s: %v", ProtoFile, err))
	}
}

// fileDescriptorProto описывает match_service.proto так же, как его описал бы protoc
func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	methods := make([]*descriptorpb.MethodDescriptorProto, 0, len(methodNames))
	for _, name := range methodNames {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(name),
			InputType:  proto.String(structType),
			OutputType: proto.String(structType),
		})
	}

	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String(ProtoFile),
		Package:    proto.String("sportmatch.v1"),
		Dependency: []string{"google/protobuf/struct.proto"},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("MatchService"),
			Method: methods,
		}},
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("SportMatchService/internal/delivery/grpc"),
		},
		Syntax: proto.String("proto3"),
	}
}

// registerFileDescriptor регистрирует описание в protoregistry.GlobalFiles, чтобы его видел gRPC reflection
func registerFileDescriptor() (protoreflect.FileDescriptor, error) {
	if fd, err := protoregistry.GlobalFiles.FindFileByPath(ProtoFile); err == nil {
		return fd, nil
	}

	fd, err := protodesc.NewFile(fileDescriptorProto(), protoregistry.GlobalFiles)
	if err != nil {
		return nil, err
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		return nil, err
	}
	return fd, nil
}
