package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/dto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decode copies the request fields into a dto and validates it.
func decode(in *structpb.Struct, out any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, "invalid request payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return status.Error(codes.InvalidArgument, "invalid request payload")
	}
	if fields := dto.Validate(out); len(fields) > 0 {
		names := make([]string, 0, len(fields))
		for _, f := range fields {
			names = append(names, f.Field+":"+f.Tag)
		}
		return status.Error(codes.InvalidArgument, "validation failed: "+strings.Join(names, ", "))
	}
	return nil
}

// encode turns a JSON-tagged value into a Struct.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *GRPCServer) fail(ctx context.Context, method string, err error) error {
	st := toStatus(err)
	if c := status.Code(st); c == codes.Internal || c == codes.Unavailable {
		s.logger.Error(ctx, "rpc failed", "method", method, "error", err)
	}
	return st
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.RegisterRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	user, err := s.auth.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		return nil, s.fail(ctx, MethodRegister, err)
	}
	return encode(user.Public())
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.LoginRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.fail(ctx, MethodLogin, err)
	}
	return encode(dto.NewLoginResponse(res))
}

func (s *GRPCServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.RefreshRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	tok, err := s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.fail(ctx, MethodRefresh, err)
	}
	return encode(dto.NewRefreshResponse(tok))
}

func (s *GRPCServer) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.RefreshRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	s.auth.Logout(ctx, req.RefreshToken)
	return encode(dto.MessageResponse{Message: "logged out"})
}

func (s *GRPCServer) Me(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrUnauthorized)
	}
	return encode(user.Public())
}

func (s *GRPCServer) UpdateProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrUnauthorized)
	}
	var req dto.UpdateProfileRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	var name string
	if req.Name != nil {
		name = *req.Name
	}
	updated, err := s.auth.UpdateProfile(ctx, user.ID, name)
	if err != nil {
		return nil, s.fail(ctx, MethodUpdateProfile, err)
	}
	return encode(updated.Public())
}

func (s *GRPCServer) ChangePassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrUnauthorized)
	}
	var req dto.ChangePasswordRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	err := s.auth.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, common.ErrInvalidCredentials) {
		return nil, status.Error(codes.InvalidArgument, "current password is incorrect")
	}
	if err != nil {
		return nil, s.fail(ctx, MethodChangePassword, err)
	}
	return encode(dto.MessageResponse{Message: "password changed"})
}

func (s *GRPCServer) Deactivate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, toStatus(common.ErrUnauthorized)
	}
	if err := s.auth.Deactivate(ctx, user.ID); err != nil {
		return nil, s.fail(ctx, MethodDeactivate, err)
	}
	return encode(dto.MessageResponse{Message: "account deactivated"})
}
