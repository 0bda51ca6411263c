// Package vision converts raw image bytes into face descriptors. It is
// pure over the input bytes: the same image and model version always
// produce the same descriptors, so re-running extraction is idempotent.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/facematch/internal/config"
)

// Face is one extracted face: bounding box, descriptor vector and
// detection confidence, in detection-confidence order.
type Face struct {
	BBox       [4]float32
	Descriptor []float32
	Confidence float32
}

// Extractor is the boundary the ingestion pipeline depends on.
type Extractor interface {
	// ExtractFaces returns every face above the confidence floor,
	// ordered by descending confidence. An empty slice means no face;
	// a *ExtractionError means the bytes were unreadable.
	ExtractFaces(imageData []byte) ([]Face, error)
	// ExtractBest returns the single highest-confidence face plus the
	// total number of faces seen, or ErrNoFace when none cleared the
	// floor. Used for the selfie path.
	ExtractBest(imageData []byte) (Face, int, error)
}

// ONNXExtractor runs RetinaFace detection and ArcFace descriptor
// extraction through ONNX Runtime.
type ONNXExtractor struct {
	detector *detector
	embedder *embedder
}

// NewONNXExtractor loads both models from cfg.ModelsDir.
// ort.InitializeEnvironment must have been called by the binary.
func NewONNXExtractor(cfg config.VisionConfig) (*ONNXExtractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := newDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading descriptor model", "path", embPath)
	emb, err := newEmbedder(embPath)
	if err != nil {
		det.close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &ONNXExtractor{detector: det, embedder: emb}, nil
}

func (e *ONNXExtractor) ExtractFaces(imageData []byte) ([]Face, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, &ExtractionError{Reason: "decode image", Err: err}
	}

	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()
	if origW == 0 || origH == 0 {
		return nil, &ExtractionError{Reason: "empty image"}
	}

	detInput := preprocessForDetection(img, e.detector.inputW, e.detector.inputH)
	detections, err := e.detector.detect(detInput, origW, origH)
	if err != nil {
		return nil, &ExtractionError{Reason: "run detector", Err: err}
	}

	faces := make([]Face, 0, len(detections))
	for _, det := range detections {
		crop := cropFace(img, det.bbox)
		if crop == nil {
			continue
		}

		embInput := preprocessForEmbedding(crop, e.embedder.inputW, e.embedder.inputH)
		descriptor, err := e.embedder.embed(embInput)
		if err != nil {
			return nil, &ExtractionError{Reason: "run embedder", Err: err}
		}

		faces = append(faces, Face{
			BBox:       det.bbox,
			Descriptor: descriptor,
			Confidence: det.confidence,
		})
	}
	return faces, nil
}

func (e *ONNXExtractor) ExtractBest(imageData []byte) (Face, int, error) {
	faces, err := e.ExtractFaces(imageData)
	if err != nil {
		return Face{}, 0, err
	}
	if len(faces) == 0 {
		return Face{}, 0, ErrNoFace
	}
	// ExtractFaces keeps confidence order.
	return faces[0], len(faces), nil
}

// Close releases ONNX sessions.
func (e *ONNXExtractor) Close() {
	if e.detector != nil {
		e.detector.close()
	}
	if e.embedder != nil {
		e.embedder.close()
	}
}

// ONNXLibPath returns the ONNX Runtime shared library name for the
// current platform.
func ONNXLibPath() string {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}

// InitRuntime configures and initializes the shared ONNX Runtime
// environment. Call once per process before creating an extractor.
func InitRuntime() error {
	ort.SetSharedLibraryPath(ONNXLibPath())
	return ort.InitializeEnvironment()
}

// DestroyRuntime tears the shared environment down.
func DestroyRuntime() {
	_ = ort.DestroyEnvironment()
}
