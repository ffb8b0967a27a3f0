package server

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
)

type processFileRequest struct {
	Path       string `json:"path"`
	DocumentID string `json:"document_id"`
}

type processBlocksRequest struct {
	DocumentID string             `json:"document_id"`
	SourcePath string             `json:"source_path"`
	Pages      [][]geometry.Block `json:"pages"`
	Blocks     []geometry.Block   `json:"blocks"`
	Schema     string             `json:"schema"`
}

// ProcessFile runs OCR and structuring on a file readable by the server.
func (s *DocumentService) ProcessFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in processFileRequest
	if err := decode(req, &in); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	path := strings.TrimSpace(in.Path)
	v := common.NewValidator().Field("path", path, common.Required, common.SupportedFile)
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Warn("process file rejected", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	if id := strings.TrimSpace(in.DocumentID); id != "" {
		ctx = common.WithDocumentID(ctx, id)
	}

	doc, err := s.processor.ProcessFile(ctx, path)
	if err != nil {
		s.logger.Error("process file failed", zap.String("path", path), zap.String("code", common.CodeOf(err)), zap.Error(err))
		return nil, common.StatusFromError(err)
	}
	out, err := encode(doc)
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}

// ProcessBlocks structures OCR blocks produced elsewhere. Either pages
// (one block list per page) or a flat block list split by each block's page
// number is accepted. An optional schema skips schema resolution.
func (s *DocumentService) ProcessBlocks(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in processBlocksRequest
	if err := decode(req, &in); err != nil {
		return nil, common.InvalidArgumentError(err.Error())
	}
	var forced constants.SchemaName
	if raw := strings.TrimSpace(in.Schema); raw != "" {
		name, ok := constants.Canonicalize(raw)
		if !ok {
			s.logger.Warn("process blocks rejected", zap.String("schema", raw))
			return nil, common.InvalidArgumentError(fmt.Sprintf("unknown schema %q", raw))
		}
		forced = name
	}
	pages := in.Pages
	if len(pages) == 0 && len(in.Blocks) > 0 {
		pages = splitPages(in.Blocks)
	}

	doc, err := s.processor.ProcessPages(ctx, pages, core.PageMeta{
		DocumentID: strings.TrimSpace(in.DocumentID),
		SourcePath: in.SourcePath,
		OCREngine:  "external",
		Schema:     forced,
	})
	if err != nil {
		s.logger.Error("process blocks failed", zap.Int("pages", len(pages)), zap.Error(err))
		return nil, common.StatusFromError(err)
	}
	out, err := encode(doc)
	if err != nil {
		return nil, common.InternalError(err.Error())
	}
	return out, nil
}

// splitPages groups blocks by page number. Page 0 counts as page 1.
func splitPages(blocks []geometry.Block) [][]geometry.Block {
	last := 1
	for _, b := range blocks {
		if b.Page > last {
			last = b.Page
		}
	}
	pages := make([][]geometry.Block, last)
	for _, b := range blocks {
		i := b.Page - 1
		if i < 0 {
			i = 0
			b.Page = 1
		}
		pages[i] = append(pages[i], b)
	}
	return pages
}
