package vision

import (
	"image"
	"image/color"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("normalized vector has norm² %v; want 1", sum)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("Normalize([3 4]) = %v; want [0.6 0.8]", v)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	for i, x := range v {
		if x != 0 {
			t.Errorf("v[%d] = %v; zero vector must stay zero", i, x)
		}
	}
}

func TestIOU(t *testing.T) {
	tests := []struct {
		name     string
		a        [4]float32
		b        [4]float32
		expected float32
	}{
		{"identical boxes", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1},
		{"disjoint boxes", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}, 50.0 / 150.0},
		{"contained box", [4]float32{0, 0, 10, 10}, [4]float32{2, 2, 4, 4}, 4.0 / 100.0},
		{"degenerate box", [4]float32{5, 5, 5, 5}, [4]float32{5, 5, 5, 5}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := iou(tc.a, tc.b)
			if math.Abs(float64(got-tc.expected)) > 1e-6 {
				t.Errorf("iou() = %v; want %v", got, tc.expected)
			}
		})
	}
}

func TestSuppress(t *testing.T) {
	dets := []detection{
		{bbox: [4]float32{0, 0, 10, 10}, confidence: 0.9},
		{bbox: [4]float32{1, 1, 11, 11}, confidence: 0.8}, // heavy overlap with first
		{bbox: [4]float32{50, 50, 60, 60}, confidence: 0.7},
	}

	kept := suppress(dets, 0.4)
	if len(kept) != 2 {
		t.Fatalf("suppress() kept %d detections; want 2", len(kept))
	}
	if kept[0].confidence != 0.9 {
		t.Errorf("highest-confidence detection must survive, got %v", kept[0].confidence)
	}
	if kept[1].bbox != [4]float32{50, 50, 60, 60} {
		t.Errorf("distant detection must survive, got %v", kept[1].bbox)
	}
}

func TestSuppressEmpty(t *testing.T) {
	if kept := suppress(nil, 0.4); len(kept) != 0 {
		t.Errorf("suppress(nil) = %v; want empty", kept)
	}
}

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestResizeImage(t *testing.T) {
	src := solidImage(100, 50, color.RGBA{R: 255, A: 255})

	dst := resizeImage(src, 20, 30)
	if dst.Bounds().Dx() != 20 || dst.Bounds().Dy() != 30 {
		t.Fatalf("resize dimensions = %v; want 20x30", dst.Bounds())
	}
	r, _, _, _ := dst.At(10, 15).RGBA()
	if r>>8 != 255 {
		t.Errorf("resized pixel lost color: r = %d", r>>8)
	}
}

func TestResizeImageNoop(t *testing.T) {
	src := solidImage(16, 16, color.Black)
	if dst := resizeImage(src, 16, 16); dst != src {
		t.Error("matching dimensions should return the source image")
	}
}

func TestCropFace(t *testing.T) {
	src := solidImage(100, 100, color.White)

	crop := cropFace(src, [4]float32{20, 20, 60, 60})
	if crop == nil {
		t.Fatal("cropFace() returned nil for a valid box")
	}
	// 40px box plus 10% padding on each side
	if crop.Bounds().Dx() != 48 || crop.Bounds().Dy() != 48 {
		t.Errorf("crop dimensions = %dx%d; want 48x48", crop.Bounds().Dx(), crop.Bounds().Dy())
	}
}

func TestCropFaceClampsToImage(t *testing.T) {
	src := solidImage(50, 50, color.White)

	crop := cropFace(src, [4]float32{-10, -10, 200, 200})
	if crop == nil {
		t.Fatal("cropFace() returned nil for an oversized box")
	}
	if crop.Bounds().Dx() > 50 || crop.Bounds().Dy() > 50 {
		t.Errorf("crop %v exceeds source bounds", crop.Bounds())
	}
}

func TestCropFaceDegenerate(t *testing.T) {
	src := solidImage(50, 50, color.White)
	if crop := cropFace(src, [4]float32{30, 30, 30, 30}); crop != nil {
		t.Errorf("cropFace() with empty box = %v; want nil", crop.Bounds())
	}
}

func TestPreprocessForEmbedding(t *testing.T) {
	// A mid-gray image should normalize to roughly zero everywhere.
	src := solidImage(112, 112, color.RGBA{R: 127, G: 127, B: 127, A: 255})

	data := preprocessForEmbedding(src, 112, 112)
	if len(data) != 3*112*112 {
		t.Fatalf("tensor length = %d; want %d", len(data), 3*112*112)
	}
	for i, v := range data {
		if math.Abs(float64(v)) > 0.01 {
			t.Fatalf("data[%d] = %v; mid-gray should normalize near zero", i, v)
		}
	}
}

func TestExtractionError(t *testing.T) {
	err := &ExtractionError{Reason: "decode failed"}
	if !IsExtractionError(err) {
		t.Error("IsExtractionError() = false for *ExtractionError")
	}
	if IsExtractionError(ErrNoFace) {
		t.Error("IsExtractionError() = true for ErrNoFace")
	}
}
