package server

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
)

type submitFileResponse struct {
	JobID          string `json:"job_id"`
	Path           string `json:"path"`
	Deduplicated   bool   `json:"deduplicated"`
	ContentHashHex string `json:"content_hash_hex"`
	// Status is QUEUED for a new job and empty for a deduplicated one.
	Status constants.JobStatus `json:"status,omitempty"`
}

// SubmitFile queues a file for background processing and returns at once.
func (s *DocumentService) SubmitFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.submitter == nil {
		return nil, status.Error(codes.Unimplemented, "background processing is not enabled")
	}
	var in processFileRequest
	if err := decode(req, &in); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	path := strings.TrimSpace(in.Path)
	v := common.NewValidator().Field("path", path, common.Required, common.SupportedFile)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	s.logger.Info("starting file submit", zap.String("path", path))
	r, err := s.submitter.IngestPath(ctx, path)
	if err != nil {
		s.logger.Error("file submit failed", zap.String("path", path), zap.Error(err))
		return nil, status.Errorf(codes.InvalidArgument, "submit: %v", err)
	}
	s.logger.Info("file submit succeeded", zap.String("job_id", r.JobID), zap.Bool("deduplicated", r.Deduplicated))

	resp := submitFileResponse{
		JobID:          r.JobID,
		Path:           r.Path,
		Deduplicated:   r.Deduplicated,
		ContentHashHex: r.HashHex,
	}
	if !r.Deduplicated {
		resp.Status = constants.JobStatusQueued
	}
	out, err := encode(resp)
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}
