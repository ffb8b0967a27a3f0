package server

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-ocr/internal/core"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/geometry"
	"github.com/joseph-ayodele/invoice-ocr/internal/ingest"
	"github.com/joseph-ayodele/invoice-ocr/internal/normalize"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "invoiceocr.v1.DocumentService"

// DocumentServiceServer is the server API. Requests and responses are JSON
// objects carried as google.protobuf.Struct.
type DocumentServiceServer interface {
	ProcessFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessBlocks(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitFile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(DocumentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(name string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DocumentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(DocumentServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

var DocumentServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessFile", Handler: handler("ProcessFile", DocumentServiceServer.ProcessFile)},
		{MethodName: "ProcessBlocks", Handler: handler("ProcessBlocks", DocumentServiceServer.ProcessBlocks)},
		{MethodName: "SubmitFile", Handler: handler("SubmitFile", DocumentServiceServer.SubmitFile)},
		{MethodName: "ExportDocuments", Handler: handler("ExportDocuments", DocumentServiceServer.ExportDocuments)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "invoiceocr/v1/documents.proto",
}

func RegisterDocumentService(s grpc.ServiceRegistrar, srv DocumentServiceServer) {
	s.RegisterService(&DocumentServiceDesc, srv)
}

// DocumentProcessor is satisfied by *core.Processor.
type DocumentProcessor interface {
	ProcessFile(ctx context.Context, path string) (normalize.Document, error)
	ProcessPages(ctx context.Context, pages [][]geometry.Block, meta core.PageMeta) (normalize.Document, error)
}

// Submitter queues a file for asynchronous processing; *ingest.Scanner
// satisfies it.
type Submitter interface {
	IngestPath(ctx context.Context, path string) (ingest.FileResult, error)
}

type DocumentService struct {
	processor DocumentProcessor
	submitter Submitter
	exporter  *export.Service
	logger    *zap.Logger
}

type ServiceOption func(*DocumentService)

// WithSubmitter enables SubmitFile.
func WithSubmitter(s Submitter) ServiceOption {
	return func(d *DocumentService) { d.submitter = s }
}

func WithExporter(e *export.Service) ServiceOption {
	return func(d *DocumentService) { d.exporter = e }
}

func NewDocumentService(processor DocumentProcessor, logger *zap.Logger, opts ...ServiceOption) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DocumentService{processor: processor, logger: logger}
	for _, o := range opts {
		o(s)
	}
	if s.exporter == nil {
		s.exporter = export.NewService(nil)
	}
	return s
}

var _ DocumentServiceServer = (*DocumentService)(nil)
