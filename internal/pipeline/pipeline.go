package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/photo-classifier/internal/logging"
	"github.com/Brownie44l1/photo-classifier/internal/model"
	"github.com/Brownie44l1/photo-classifier/internal/photo"
	"github.com/Brownie44l1/photo-classifier/internal/preprocess"
	"github.com/Brownie44l1/photo-classifier/internal/staging"
)

// Pipeline operations as they appear in logs and OperationError.
const (
	OpSelect         logging.Operation = "pipeline.select"
	OpClassify       logging.Operation = "pipeline.classify"
	OpClassifyUpload logging.Operation = "pipeline.classify_upload"
)

// ErrEmptyUpload is returned by ClassifyUpload when no file was supplied.
var ErrEmptyUpload = errors.New("no file supplied")

type requestIDKey struct{}

// WithRequestID attaches a request identifier used in logs and errors.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the identifier attached to ctx, or a fresh one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Pipeline runs source → validate → stage and stage → preprocess → infer →
// normalize → report. It holds no per-request state of its own.
type Pipeline struct {
	source *photo.Source
	store  staging.Store
	engine *model.Engine
	logger *zap.Logger
}

// New wires a pipeline.
func New(source *photo.Source, store staging.Store, engine *model.Engine, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		source: source,
		store:  store,
		engine: engine,
		logger: logger.Named("pipeline"),
	}
}

// Select resolves a candidate image, validates it and stages it. An upload
// without a file is a no-op and reports staged=false with a nil error.
func (p *Pipeline) Select(ctx context.Context, mode photo.SelectionMode, payload any) (bool, error) {
	requestID := RequestID(ctx)
	opLogger := logging.WithOperation(p.logger, OpSelect, requestID)

	img, err := p.resolve(ctx, mode, payload)
	if err != nil {
		opLogger.Warn("selection rejected", zap.Stringer("mode", mode), zap.Error(err))
		return false, logging.NewOperationError(OpSelect, requestID, err)
	}
	if img == nil {
		opLogger.Debug("empty upload ignored")
		return false, nil
	}

	opLogger.Info("image staged",
		zap.Stringer("mode", mode),
		zap.String("sha256", img.Digest()),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height))
	return true, nil
}

func (p *Pipeline) resolve(ctx context.Context, mode photo.SelectionMode, payload any) (*photo.Image, error) {
	img, err := p.source.Resolve(mode, payload)
	if err != nil || img == nil {
		return nil, err
	}
	if !photo.IsAccepted(img) {
		return nil, fmt.Errorf("%w: got %s", photo.ErrFormatRejected, img.Format)
	}
	if err := p.store.Stage(ctx, img); err != nil {
		return nil, err
	}
	return img, nil
}

// Current returns the staged image.
func (p *Pipeline) Current(ctx context.Context) (*photo.Image, error) {
	return p.store.Current(ctx)
}

// Classify runs inference on the staged image.
func (p *Pipeline) Classify(ctx context.Context) (*model.PredictionReport, error) {
	requestID := RequestID(ctx)

	img, err := p.store.Current(ctx)
	if err != nil {
		return nil, logging.NewOperationError(OpClassify, requestID, err)
	}
	report, err := p.classify(ctx, requestID, img)
	if err != nil {
		return nil, logging.NewOperationError(OpClassify, requestID, err)
	}
	return report, nil
}

// ClassifyUpload stages the uploaded image and classifies exactly that image,
// even if another selection replaces the slot in the meantime.
func (p *Pipeline) ClassifyUpload(ctx context.Context, payload any) (*model.PredictionReport, error) {
	requestID := RequestID(ctx)
	ctx = WithRequestID(ctx, requestID)

	img, err := p.resolve(ctx, photo.ModeUpload, payload)
	if err != nil {
		return nil, logging.NewOperationError(OpClassifyUpload, requestID, err)
	}
	if img == nil {
		return nil, logging.NewOperationError(OpClassifyUpload, requestID, ErrEmptyUpload)
	}

	report, err := p.classify(ctx, requestID, img)
	if err != nil {
		return nil, logging.NewOperationError(OpClassifyUpload, requestID, err)
	}
	return report, nil
}

// Ready loads the classifier if needed and returns its handle.
func (p *Pipeline) Ready() (*model.Handle, error) {
	return p.engine.LoadOnce()
}

func (p *Pipeline) classify(_ context.Context, requestID string, img *photo.Image) (*model.PredictionReport, error) {
	opLogger := logging.WithOperation(p.logger, OpClassify, requestID)

	if !photo.IsAccepted(img) {
		return nil, fmt.Errorf("%w: staged image is %s", photo.ErrFormatRejected, img.Format)
	}

	handle, err := p.engine.LoadOnce()
	if err != nil {
		opLogger.Error("classifier unavailable", zap.Error(err))
		return nil, err
	}

	prep, err := preprocess.FromMetadata(handle.Metadata)
	if err != nil {
		opLogger.Error("classifier input shape unsupported", zap.Error(err))
		return nil, err
	}
	tensor, err := prep.Prepare(img)
	if err != nil {
		return nil, err
	}
	opLogger.Debug("image preprocessed", zap.Int64s("shape", tensor.Shape))

	raw, err := p.engine.Infer(handle, tensor)
	if err != nil {
		opLogger.Error("inference failed", zap.Error(err))
		return nil, err
	}

	report, err := model.Report(model.Normalize(raw), raw, handle.Catalog)
	if err != nil {
		return nil, err
	}

	opLogger.Info("image classified",
		zap.String("sha256", img.Digest()),
		zap.String("label", report.TopLabel),
		zap.Float64("confidence_percent", report.TopConfidencePercent))
	return report, nil
}
