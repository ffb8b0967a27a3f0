package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
	"github.com/joseph-ayodele/invoice-ocr/internal/normalize"
)

type fakeProcessor struct {
	mu        sync.Mutex
	err       error
	failPath  string
	paths     []string
	docIDs    []string
	requestID string
	pages     [][]geometry.Block
	meta      core.PageMeta
}

func (f *fakeProcessor) ProcessFile(ctx context.Context, path string) (normalize.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	f.docIDs = append(f.docIDs, common.DocumentIDFromContext(ctx))
	f.requestID = common.RequestIDFromContext(ctx)
	if f.err != nil && (f.failPath == "" || f.failPath == path) {
		return normalize.Document{}, f.err
	}
	var d normalize.Document
	d.Meta.DocumentID = "doc-9"
	d.Document.DocumentType = "utility_bill"
	return d, nil
}

func (f *fakeProcessor) ProcessPages(_ context.Context, pages [][]geometry.Block, meta core.PageMeta) (normalize.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages, f.meta = pages, meta
	var d normalize.Document
	d.Meta.DocumentID = meta.DocumentID
	return d, nil
}

type fakeSubmitter struct{}

func (fakeSubmitter) IngestPath(_ context.Context, path string) (ingest.FileResult, error) {
	return ingest.FileResult{Path: path, JobID: "job-1", HashHex: "abc"}, nil
}

func dial(t *testing.T, svc *DocumentService) *DocumentClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(zap.NewNop())))
	RegisterDocumentService(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewDocumentClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestProcessFile(t *testing.T) {
	proc := &fakeProcessor{}
	client := dial(t, NewDocumentService(proc, nil))

	ctx := metadata.AppendToOutgoingContext(context.Background(), RequestIDHeader, "req-1")
	resp, err := client.ProcessFile(ctx, mustStruct(t, map[string]any{"path": "/in/bill.pdf", "document_id": "given"}))
	require.NoError(t, err)

	meta := resp.GetFields()["meta"].GetStructValue()
	assert.Equal(t, "doc-9", meta.GetFields()["document_id"].GetStringValue())
	assert.Equal(t, "utility_bill", resp.GetFields()["document"].GetStructValue().GetFields()["document_type"].GetStringValue())
	assert.Equal(t, []string{"/in/bill.pdf"}, proc.paths)
	assert.Equal(t, []string{"given"}, proc.docIDs)
	assert.Equal(t, "req-1", proc.requestID)
}

func TestProcessFileRejectsBadPath(t *testing.T) {
	client := dial(t, NewDocumentService(&fakeProcessor{}, nil))
	for _, p := range []string{"", "/in/notes.docx"} {
		_, err := client.ProcessFile(context.Background(), mustStruct(t, map[string]any{"path": p}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err), p)
	}
}

func TestProcessFileMapsErrors(t *testing.T) {
	proc := &fakeProcessor{err: common.NewAppError(common.CodeOCRUnavailable, "tesseract exited", common.ErrCollaborator)}
	client := dial(t, NewDocumentService(proc, nil))

	_, err := client.ProcessFile(context.Background(), mustStruct(t, map[string]any{"path": "/in/bill.png"}))
	assert.Equal(t, codes.Unavailable, status.Code(err))

	proc.mu.Lock()
	proc.err = errors.New("boom")
	proc.mu.Unlock()
	_, err = client.ProcessFile(context.Background(), mustStruct(t, map[string]any{"path": "/in/bill.png"}))
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestProcessBlocksSplitsFlatList(t *testing.T) {
	proc := &fakeProcessor{}
	client := dial(t, NewDocumentService(proc, nil))

	req := mustStruct(t, map[string]any{
		"document_id": "ext-1",
		"blocks": []any{
			map[string]any{"text": "Description", "bbox": []any{[]any{0, 0}, []any{10, 0}, []any{10, 5}, []any{0, 5}}, "confidence": 0.9},
			map[string]any{"text": "Total", "bbox": []any{[]any{0, 0}, []any{10, 0}, []any{10, 5}, []any{0, 5}}, "confidence": 0.8, "page": 2},
		},
	})
	resp, err := client.ProcessBlocks(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "ext-1", resp.GetFields()["meta"].GetStructValue().GetFields()["document_id"].GetStringValue())
	require.Len(t, proc.pages, 2)
	assert.Equal(t, "Description", proc.pages[0][0].Text)
	assert.Equal(t, 1, proc.pages[0][0].Page)
	assert.Equal(t, "Total", proc.pages[1][0].Text)
	assert.Equal(t, geometry.Point{X: 10, Y: 5}, proc.pages[1][0].BBox[2])
	assert.Equal(t, "external", proc.meta.OCREngine)
}

func TestProcessBlocksRejectsMalformedBBox(t *testing.T) {
	client := dial(t, NewDocumentService(&fakeProcessor{}, nil))
	req := mustStruct(t, map[string]any{
		"blocks": []any{map[string]any{"text": "x", "bbox": []any{[]any{1}}}},
	})
	_, err := client.ProcessBlocks(context.Background(), req)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestProcessBlocksSchemaOverride(t *testing.T) {
	proc := &fakeProcessor{}
	client := dial(t, NewDocumentService(proc, nil))
	page := []any{map[string]any{"text": "Service", "bbox": []any{[]any{0, 0}, []any{10, 0}, []any{10, 5}, []any{0, 5}}, "confidence": 0.9}}

	_, err := client.ProcessBlocks(context.Background(), mustStruct(t, map[string]any{
		"pages":  []any{page},
		"schema": "Timesheet",
	}))
	require.NoError(t, err)
	assert.Equal(t, constants.ServiceInvoice, proc.meta.Schema)

	_, err = client.ProcessBlocks(context.Background(), mustStruct(t, map[string]any{"pages": []any{page}}))
	require.NoError(t, err)
	assert.Empty(t, proc.meta.Schema)

	_, err = client.ProcessBlocks(context.Background(), mustStruct(t, map[string]any{
		"pages":  []any{page},
		"schema": "receipt",
	}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSubmitFile(t *testing.T) {
	client := dial(t, NewDocumentService(&fakeProcessor{}, nil))
	_, err := client.SubmitFile(context.Background(), mustStruct(t, map[string]any{"path": "/in/a.pdf"}))
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	client = dial(t, NewDocumentService(&fakeProcessor{}, nil, WithSubmitter(fakeSubmitter{})))
	resp, err := client.SubmitFile(context.Background(), mustStruct(t, map[string]any{"path": "/in/a.pdf"}))
	require.NoError(t, err)
	assert.Equal(t, "job-1", resp.GetFields()["job_id"].GetStringValue())
	assert.Equal(t, "abc", resp.GetFields()["content_hash_hex"].GetStringValue())
	assert.False(t, resp.GetFields()["deduplicated"].GetBoolValue())
	assert.Equal(t, string(constants.JobStatusQueued), resp.GetFields()["status"].GetStringValue())
}

func TestExportDocuments(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("unreadable"), failPath: "/in/b.pdf"}
	client := dial(t, NewDocumentService(proc, nil))

	resp, err := client.ExportDocuments(context.Background(), mustStruct(t, map[string]any{
		"paths": []any{"/in/a.pdf", "/in/b.pdf"},
	}))
	require.NoError(t, err)
	assert.Equal(t, 2.0, resp.GetFields()["documents"].GetNumberValue())
	assert.Equal(t, 1.0, resp.GetFields()["failed"].GetNumberValue())

	raw, err := base64.StdEncoding.DecodeString(resp.GetFields()["xlsx"].GetStringValue())
	require.NoError(t, err)
	assert.Equal(t, "PK", string(raw[:2]))

	_, err = client.ExportDocuments(context.Background(), mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestSplitPages(t *testing.T) {
	pages := splitPages([]geometry.Block{{Text: "a", Page: 3}, {Text: "b"}})
	require.Len(t, pages, 3)
	assert.Equal(t, "b", pages[0][0].Text)
	assert.Empty(t, pages[1])
	assert.Equal(t, "a", pages[2][0].Text)
}
