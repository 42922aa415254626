package server

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/receipt-verifier/constants"
	"github.com/joseph-ayodele/receipt-verifier/internal/common"
	"github.com/joseph-ayodele/receipt-verifier/internal/entity"
	"github.com/joseph-ayodele/receipt-verifier/internal/pipeline"
	"github.com/joseph-ayodele/receipt-verifier/internal/review"
)

const ServiceName = "receiptverify.v1.VerificationService"

// Metadata keys read by the service.
const (
	MetadataOrgID       = "x-org-id"
	MetadataSubmitterID = "x-submitter-id"
	MetadataEventID     = "x-event-id"
	MetadataRequestID   = "x-request-id"
	MetadataActorID     = "x-actor-id"
	MetadataActorRoles  = "x-actor-roles"
)

// VerificationServer is the server API of receiptverify.v1.VerificationService.
// Payloads are protobuf well-known types.
type VerificationServer interface {
	Submit(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	Review(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRecord(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func RegisterVerificationServer(s grpc.ServiceRegistrar, srv VerificationServer) {
	s.RegisterService(&VerificationServiceDesc, srv)
}

var VerificationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VerificationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: submitHandler},
		{MethodName: "Review", Handler: reviewHandler},
		{MethodName: "GetRecord", Handler: getRecordHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "receiptverify/v1/verification.proto",
}

func submitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerificationServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Submit"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(VerificationServer).Submit(ctx, req.(*wrapperspb.BytesValue))
	})
}

func reviewHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerificationServer).Review(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Review"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(VerificationServer).Review(ctx, req.(*structpb.Struct))
	})
}

func getRecordHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VerificationServer).GetRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetRecord"}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(VerificationServer).GetRecord(ctx, req.(*wrapperspb.StringValue))
	})
}

// Verifier is the verification pipeline as seen by the transport.
type Verifier interface {
	Submit(ctx context.Context, sub pipeline.Submission) (*pipeline.SubmissionResult, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.VerificationRecord, error)
}

// Reviewer applies review transitions.
type Reviewer interface {
	Transition(ctx context.Context, cmd review.Command) (*review.Result, error)
}

type VerificationService struct {
	verifier Verifier
	reviewer Reviewer
	logger   *slog.Logger
}

func NewVerificationService(verifier Verifier, reviewer Reviewer, logger *slog.Logger) *VerificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerificationService{verifier: verifier, reviewer: reviewer, logger: logger}
}

func (s *VerificationService) Submit(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if len(req.GetValue()) == 0 {
		return nil, common.InvalidArgumentError("image bytes are required")
	}
	org := common.OrgIDFromContext(ctx)
	if org == "" {
		return nil, common.InvalidArgumentErrorf("%s metadata is required", MetadataOrgID)
	}
	submitter := firstMetadata(ctx, MetadataSubmitterID)
	if submitter == "" {
		if actor, ok := common.ActorFromContext(ctx); ok {
			submitter = actor.ID
		}
	}

	res, err := s.verifier.Submit(ctx, pipeline.Submission{
		Image:       req.GetValue(),
		OrgID:       org,
		SubmitterID: submitter,
		EventID:     firstMetadata(ctx, MetadataEventID),
	})
	if err != nil {
		s.logger.Error("server.submit.failed", "org_id", org, "error", err)
		return nil, common.ToStatus(err)
	}
	out, err := toStruct(res.Summary)
	if err != nil {
		return nil, common.InternalErrorf("encode summary: %v", err)
	}
	return out, nil
}

func (s *VerificationService) Review(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id, err := uuid.Parse(fields["record_id"].GetStringValue())
	if err != nil {
		return nil, common.InvalidArgumentError("record_id must be a UUID")
	}
	outcome, err := constants.ParseReviewOutcome(fields["outcome"].GetStringValue())
	if err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	version, ok := fields["expected_version"].GetKind().(*structpb.Value_NumberValue)
	if !ok || version.NumberValue != float64(int(version.NumberValue)) {
		return nil, common.InvalidArgumentError("expected_version must be an integer")
	}

	res, err := s.reviewer.Transition(ctx, review.Command{
		RecordID:        id,
		Outcome:         outcome,
		Notes:           fields["notes"].GetStringValue(),
		ExpectedVersion: int(version.NumberValue),
	})
	if err != nil {
		s.logger.Warn("server.review.failed", "record_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"record_id":   res.RecordID.String(),
		"new_status":  string(res.NewStatus),
		"new_version": res.NewVersion,
	})
}

func (s *VerificationService) GetRecord(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := uuid.Parse(req.GetValue())
	if err != nil {
		return nil, common.InvalidArgumentError("record id must be a UUID")
	}
	rec, err := s.verifier.Get(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	out, err := toStruct(rec)
	if err != nil {
		return nil, common.InternalErrorf("encode record: %v", err)
	}
	return out, nil
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}
