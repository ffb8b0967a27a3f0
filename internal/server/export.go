package server

import (
	"context"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
)

type exportRequest struct {
	Paths []string `json:"paths"`
}

type exportResponse struct {
	XLSX      string `json:"xlsx"` // base64
	Documents int    `json:"documents"`
	Failed    int    `json:"failed"`
}

// ExportDocuments processes each path and returns an XLSX summary. Files
// that fail are listed in the workbook instead of failing the call.
func (s *DocumentService) ExportDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in exportRequest
	if err := decode(req, &in); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	if len(in.Paths) == 0 {
		return nil, common.InvalidArgumentError("paths is required")
	}

	entries := make([]export.Entry, 0, len(in.Paths))
	failed := 0
	for _, p := range in.Paths {
		if err := ctx.Err(); err != nil {
			return nil, common.StatusFromError(err)
		}
		p = strings.TrimSpace(p)
		doc, err := s.processor.ProcessFile(ctx, p)
		if err != nil {
			failed++
			s.logger.Warn("export: document failed", zap.String("path", p), zap.Error(err))
		}
		entries = append(entries, export.Entry{SourcePath: p, Document: doc, Err: err})
	}

	xlsx, err := s.exporter.DocumentsXLSX(entries)
	if err != nil {
		s.logger.Error("export.xlsx.failed", zap.Error(err))
		return nil, common.InternalError(err.Error())
	}
	out, err := encode(exportResponse{
		XLSX:      base64.StdEncoding.EncodeToString(xlsx),
		Documents: len(entries),
		Failed:    failed,
	})
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}
