package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/0xmhha/blockstream-go/registry"
	"github.com/0xmhha/blockstream-go/rules"
	pb "github.com/0xmhha/blockstream-go/server/proto"
	"github.com/0xmhha/blockstream-go/stream"
)

// BlockStreamerService exposes the stream controller over the control RPC.
type BlockStreamerService struct {
	pb.UnimplementedBlockStreamerServer

	control registry.ControlPlane
	logger  *zap.Logger
}

// NewBlockStreamerService wires the control plane into the RPC surface.
func NewBlockStreamerService(control registry.ControlPlane, logger *zap.Logger) *BlockStreamerService {
	return &BlockStreamerService{control: control, logger: logger}
}

// StartStream parses the rule, then starts (or idempotently re-acknowledges)
// the worker. Rule parse failures are returned synchronously; no worker is
// spawned.
func (s *BlockStreamerService) StartStream(ctx context.Context, req *pb.StartStreamRequest) (*pb.StartStreamResponse, error) {
	rule, err := ruleFromProto(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	cfg := registry.IndexerConfig{
		Identity: registry.Identity{
			AccountID:    req.GetAccountId(),
			FunctionName: req.GetFunctionName(),
		},
		Rule:       rule,
		StartBlock: req.GetStartBlockHeight(),
		Version:    req.GetVersion(),
	}
	if cfg.Identity.AccountID == "" || cfg.Identity.FunctionName == "" {
		return nil, status.Error(codes.InvalidArgument, "account_id and function_name are required")
	}

	streamID, err := s.control.StartStream(ctx, cfg)
	if err != nil {
		if errors.Is(err, rules.ErrUnknownRuleKind) || errors.Is(err, rules.ErrUnknownStatus) ||
			errors.Is(err, rules.ErrEmptyAccountPattern) || errors.Is(err, rules.ErrEmptyFunction) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.logger.Info("StartStream",
		zap.String("stream_id", streamID),
		zap.String("indexer", cfg.Identity.FullName()),
		zap.Uint64("version", cfg.Version),
	)
	return &pb.StartStreamResponse{StreamId: streamID}, nil
}

// StopStream stops a worker; unknown streams succeed as no-ops.
func (s *BlockStreamerService) StopStream(ctx context.Context, req *pb.StopStreamRequest) (*pb.StopStreamResponse, error) {
	if req.GetStreamId() == "" {
		return nil, status.Error(codes.InvalidArgument, "stream_id is required")
	}

	if err := s.control.StopStream(ctx, req.GetStreamId()); err != nil {
		if errors.Is(err, stream.ErrJoinTimeout) {
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	s.logger.Info("StopStream", zap.String("stream_id", req.GetStreamId()))
	return &pb.StopStreamResponse{}, nil
}

// ListStreams snapshots the active workers.
func (s *BlockStreamerService) ListStreams(ctx context.Context, _ *pb.ListStreamsRequest) (*pb.ListStreamsResponse, error) {
	infos, err := s.control.ListStreams(ctx)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := &pb.ListStreamsResponse{Streams: make([]*pb.StreamInfo, 0, len(infos))}
	for _, info := range infos {
		resp.Streams = append(resp.Streams, &pb.StreamInfo{
			StreamId:            info.StreamID,
			AccountId:           info.Identity.AccountID,
			FunctionName:        info.Identity.FunctionName,
			Version:             info.Version,
			LastPublishedHeight: info.LastPublishedHeight,
		})
	}
	return resp, nil
}

// ruleFromProto translates the request's rule oneof into the engine form.
func ruleFromProto(req *pb.StartStreamRequest) (rules.Rule, error) {
	switch r := req.GetRule().(type) {
	case *pb.StartStreamRequest_ActionAnyRule:
		st, err := statusFromProto(r.ActionAnyRule.GetStatus())
		if err != nil {
			return rules.Rule{}, err
		}
		rule := rules.ActionAny(r.ActionAnyRule.GetAffectedAccountId(), st)
		return rule, rule.Validate()
	case *pb.StartStreamRequest_ActionFunctionCallRule:
		st, err := statusFromProto(r.ActionFunctionCallRule.GetStatus())
		if err != nil {
			return rules.Rule{}, err
		}
		rule := rules.ActionFunctionCall(
			r.ActionFunctionCallRule.GetAffectedAccountId(),
			r.ActionFunctionCallRule.GetFunction(),
			st,
		)
		return rule, rule.Validate()
	case *pb.StartStreamRequest_EventRule:
		rule := rules.EventRule(
			r.EventRule.GetContractAccountId(),
			r.EventRule.GetEvent(),
			r.EventRule.GetStandard(),
			r.EventRule.GetVersion(),
		)
		return rule, rule.Validate()
	default:
		return rules.Rule{}, fmt.Errorf("%w: no rule supplied", rules.ErrUnknownRuleKind)
	}
}

func statusFromProto(s pb.Status) (rules.Status, error) {
	switch s {
	case pb.Status_SUCCESS:
		return rules.StatusSuccess, nil
	case pb.Status_FAILURE:
		return rules.StatusFail, nil
	case pb.Status_ANY:
		return rules.StatusAny, nil
	default:
		return "", fmt.Errorf("%w: %d", rules.ErrUnknownStatus, s)
	}
}
