package chatv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "chat.v1.ChatService"

const (
	ChatService_Register_FullMethodName          = "/chat.v1.ChatService/Register"
	ChatService_Login_FullMethodName             = "/chat.v1.ChatService/Login"
	ChatService_SignOut_FullMethodName           = "/chat.v1.ChatService/SignOut"
	ChatService_Heartbeat_FullMethodName         = "/chat.v1.ChatService/Heartbeat"
	ChatService_ListUsers_FullMethodName         = "/chat.v1.ChatService/ListUsers"
	ChatService_OpenConversation_FullMethodName  = "/chat.v1.ChatService/OpenConversation"
	ChatService_CloseConversation_FullMethodName = "/chat.v1.ChatService/CloseConversation"
	ChatService_SendMessage_FullMethodName       = "/chat.v1.ChatService/SendMessage"
	ChatService_DeleteMessage_FullMethodName     = "/chat.v1.ChatService/DeleteMessage"
	ChatService_ClearConversation_FullMethodName = "/chat.v1.ChatService/ClearConversation"
	ChatService_WatchConversation_FullMethodName = "/chat.v1.ChatService/WatchConversation"
	ChatService_WatchSummaries_FullMethodName    = "/chat.v1.ChatService/WatchSummaries"
	ChatService_WatchIdentity_FullMethodName     = "/chat.v1.ChatService/WatchIdentity"
)

// ChatServiceServer is the server API for ChatService.
// All implementations must embed UnimplementedChatServiceServer.
type ChatServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	SignOut(context.Context, *Empty) (*Empty, error)
	Heartbeat(context.Context, *Empty) (*Empty, error)
	ListUsers(context.Context, *Empty) (*ListUsersResponse, error)
	OpenConversation(context.Context, *CounterpartRequest) (*OpenConversationResponse, error)
	CloseConversation(context.Context, *Empty) (*Empty, error)
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	DeleteMessage(context.Context, *DeleteMessageRequest) (*Empty, error)
	ClearConversation(context.Context, *CounterpartRequest) (*Empty, error)
	WatchConversation(*CounterpartRequest, grpc.ServerStreamingServer[ConversationSnapshot]) error
	WatchSummaries(*WatchSummariesRequest, grpc.ServerStreamingServer[ContactList]) error
	WatchIdentity(*Empty, grpc.ServerStreamingServer[IdentityEvent]) error
	mustEmbedUnimplementedChatServiceServer()
}

// UnimplementedChatServiceServer must be embedded to have forward compatible implementations.
type UnimplementedChatServiceServer struct{}

func (UnimplementedChatServiceServer) Register(context.Context, *RegisterRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedChatServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedChatServiceServer) SignOut(context.Context, *Empty) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SignOut not implemented")
}
func (UnimplementedChatServiceServer) Heartbeat(context.Context, *Empty) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Heartbeat not implemented")
}
func (UnimplementedChatServiceServer) ListUsers(context.Context, *Empty) (*ListUsersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListUsers not implemented")
}
func (UnimplementedChatServiceServer) OpenConversation(context.Context, *CounterpartRequest) (*OpenConversationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenConversation not implemented")
}
func (UnimplementedChatServiceServer) CloseConversation(context.Context, *Empty) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method CloseConversation not implemented")
}
func (UnimplementedChatServiceServer) SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SendMessage not implemented")
}
func (UnimplementedChatServiceServer) DeleteMessage(context.Context, *DeleteMessageRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteMessage not implemented")
}
func (UnimplementedChatServiceServer) ClearConversation(context.Context, *CounterpartRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method ClearConversation not implemented")
}
func (UnimplementedChatServiceServer) WatchConversation(*CounterpartRequest, grpc.ServerStreamingServer[ConversationSnapshot]) error {
	return status.Error(codes.Unimplemented, "method WatchConversation not implemented")
}
func (UnimplementedChatServiceServer) WatchSummaries(*WatchSummariesRequest, grpc.ServerStreamingServer[ContactList]) error {
	return status.Error(codes.Unimplemented, "method WatchSummaries not implemented")
}
func (UnimplementedChatServiceServer) WatchIdentity(*Empty, grpc.ServerStreamingServer[IdentityEvent]) error {
	return status.Error(codes.Unimplemented, "method WatchIdentity not implemented")
}
func (UnimplementedChatServiceServer) mustEmbedUnimplementedChatServiceServer() {}

// RegisterChatServiceServer registers srv on s.
func RegisterChatServiceServer(s grpc.ServiceRegistrar, srv ChatServiceServer) {
	s.RegisterService(&ChatService_ServiceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodHandler.
func unary[Req, Res any](fullMethod string, call func(ChatServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ChatServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ChatServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// serverStream adapts a typed server-streaming method to a grpc.StreamHandler.
func serverStream[Req, Res any](call func(ChatServiceServer, *Req, grpc.ServerStreamingServer[Res]) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(Req)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(ChatServiceServer), in, &grpc.GenericServerStream[Req, Res]{ServerStream: stream})
	}
}

// ChatService_ServiceDesc is the grpc.ServiceDesc for ChatService.
var ChatService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary(ChatService_Register_FullMethodName, ChatServiceServer.Register)},
		{MethodName: "Login", Handler: unary(ChatService_Login_FullMethodName, ChatServiceServer.Login)},
		{MethodName: "SignOut", Handler: unary(ChatService_SignOut_FullMethodName, ChatServiceServer.SignOut)},
		{MethodName: "Heartbeat", Handler: unary(ChatService_Heartbeat_FullMethodName, ChatServiceServer.Heartbeat)},
		{MethodName: "ListUsers", Handler: unary(ChatService_ListUsers_FullMethodName, ChatServiceServer.ListUsers)},
		{MethodName: "OpenConversation", Handler: unary(ChatService_OpenConversation_FullMethodName, ChatServiceServer.OpenConversation)},
		{MethodName: "CloseConversation", Handler: unary(ChatService_CloseConversation_FullMethodName, ChatServiceServer.CloseConversation)},
		{MethodName: "SendMessage", Handler: unary(ChatService_SendMessage_FullMethodName, ChatServiceServer.SendMessage)},
		{MethodName: "DeleteMessage", Handler: unary(ChatService_DeleteMessage_FullMethodName, ChatServiceServer.DeleteMessage)},
		{MethodName: "ClearConversation", Handler: unary(ChatService_ClearConversation_FullMethodName, ChatServiceServer.ClearConversation)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchConversation", Handler: serverStream(ChatServiceServer.WatchConversation), ServerStreams: true},
		{StreamName: "WatchSummaries", Handler: serverStream(ChatServiceServer.WatchSummaries), ServerStreams: true},
		{StreamName: "WatchIdentity", Handler: serverStream(ChatServiceServer.WatchIdentity), ServerStreams: true},
	},
	Metadata: "chat/v1/chat.json",
}

// ChatServiceClient is the client API for ChatService. Every call uses the
// JSON codec.
type ChatServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error)
	SignOut(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error)
	Heartbeat(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error)
	ListUsers(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListUsersResponse, error)
	OpenConversation(ctx context.Context, in *CounterpartRequest, opts ...grpc.CallOption) (*OpenConversationResponse, error)
	CloseConversation(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error)
	SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error)
	DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*Empty, error)
	ClearConversation(ctx context.Context, in *CounterpartRequest, opts ...grpc.CallOption) (*Empty, error)
	WatchConversation(ctx context.Context, in *CounterpartRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ConversationSnapshot], error)
	WatchSummaries(ctx context.Context, in *WatchSummariesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ContactList], error)
	WatchIdentity(ctx context.Context, in *Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[IdentityEvent], error)
}

type chatServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewChatServiceClient(cc grpc.ClientConnInterface) ChatServiceClient {
	return &chatServiceClient{cc}
}

func invoke[Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	cOpts := append([]grpc.CallOption{CallOption()}, opts...)
	if err := cc.Invoke(ctx, method, in, out, cOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func watch[Req, Res any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Res], error) {
	cOpts := append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := cc.NewStream(ctx, desc, method, cOpts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Res]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *chatServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, ChatService_Register_FullMethodName, in, opts)
}

func (c *chatServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[AuthResponse](ctx, c.cc, ChatService_Login_FullMethodName, in, opts)
}

func (c *chatServiceClient) SignOut(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_SignOut_FullMethodName, in, opts)
}

func (c *chatServiceClient) Heartbeat(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_Heartbeat_FullMethodName, in, opts)
}

func (c *chatServiceClient) ListUsers(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ListUsersResponse, error) {
	return invoke[ListUsersResponse](ctx, c.cc, ChatService_ListUsers_FullMethodName, in, opts)
}

func (c *chatServiceClient) OpenConversation(ctx context.Context, in *CounterpartRequest, opts ...grpc.CallOption) (*OpenConversationResponse, error) {
	return invoke[OpenConversationResponse](ctx, c.cc, ChatService_OpenConversation_FullMethodName, in, opts)
}

func (c *chatServiceClient) CloseConversation(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_CloseConversation_FullMethodName, in, opts)
}

func (c *chatServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, ChatService_SendMessage_FullMethodName, in, opts)
}

func (c *chatServiceClient) DeleteMessage(ctx context.Context, in *DeleteMessageRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_DeleteMessage_FullMethodName, in, opts)
}

func (c *chatServiceClient) ClearConversation(ctx context.Context, in *CounterpartRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, ChatService_ClearConversation_FullMethodName, in, opts)
}

func (c *chatServiceClient) WatchConversation(ctx context.Context, in *CounterpartRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ConversationSnapshot], error) {
	return watch[CounterpartRequest, ConversationSnapshot](ctx, c.cc, &ChatService_ServiceDesc.Streams[0], ChatService_WatchConversation_FullMethodName, in, opts)
}

func (c *chatServiceClient) WatchSummaries(ctx context.Context, in *WatchSummariesRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ContactList], error) {
	return watch[WatchSummariesRequest, ContactList](ctx, c.cc, &ChatService_ServiceDesc.Streams[1], ChatService_WatchSummaries_FullMethodName, in, opts)
}

func (c *chatServiceClient) WatchIdentity(ctx context.Context, in *Empty, opts ...grpc.CallOption) (grpc.ServerStreamingClient[IdentityEvent], error) {
	return watch[Empty, IdentityEvent](ctx, c.cc, &ChatService_ServiceDesc.Streams[2], ChatService_WatchIdentity_FullMethodName, in, opts)
}
