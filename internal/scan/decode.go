package scan

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// DecodeRequest carries a camera frame or photo of a label
type DecodeRequest struct {
	ImageData string `json:"imageData" binding:"required"` // Base64, optionally as a data URL
	ROI       *ROI   `json:"roi,omitempty"`
}

// DecodeResponse reports what was read from the image
type DecodeResponse struct {
	Success        bool    `json:"success"`
	Result         *Result `json:"result,omitempty"`
	Error          string  `json:"error,omitempty"`
	ProcessingTime int64   `json:"processingTime"` // milliseconds
}

type Result struct {
	Text         string  `json:"text"`
	Format       string  `json:"format"`
	CornerPoints []Point `json:"cornerPoints"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ROI is a region of interest in image pixels
type ROI struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type namedReader struct {
	format gozxing.BarcodeFormat
	reader gozxing.Reader
}

// ServerDecoder reads product barcodes from images. Retail symbologies come
// first; product QR codes and Code 128 shelf labels are also accepted.
type ServerDecoder struct {
	readers []namedReader
}

func NewServerDecoder() *ServerDecoder {
	return &ServerDecoder{
		readers: []namedReader{
			{gozxing.BarcodeFormat_EAN_13, oned.NewEAN13Reader()},
			{gozxing.BarcodeFormat_UPC_A, oned.NewUPCAReader()},
			{gozxing.BarcodeFormat_EAN_8, oned.NewEAN8Reader()},
			{gozxing.BarcodeFormat_CODE_128, oned.NewCode128Reader()},
			{gozxing.BarcodeFormat_QR_CODE, qrcode.NewQRCodeReader()},
		},
	}
}

func (d *ServerDecoder) Decode(req *DecodeRequest) *DecodeResponse {
	startTime := time.Now()
	response := &DecodeResponse{}

	fail := func(format string, args ...interface{}) *DecodeResponse {
		response.Error = fmt.Sprintf(format, args...)
		response.ProcessingTime = time.Since(startTime).Milliseconds()
		return response
	}

	img, err := decodeImageData(req.ImageData)
	if err != nil {
		return fail("Failed to decode image: %v", err)
	}

	if req.ROI != nil {
		img, err = extractROI(img, req.ROI)
		if err != nil {
			return fail("Failed to extract ROI: %v", err)
		}
	}

	result, err := d.DecodeImage(img)
	if err != nil {
		return fail("%v", err)
	}

	response.Success = true
	response.Result = result
	response.ProcessingTime = time.Since(startTime).Milliseconds()
	return response
}

// DecodeImage tries each reader in turn and returns the first hit.
func (d *ServerDecoder) DecodeImage(img image.Image) (*Result, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitmap: %w", err)
	}

	for _, nr := range d.readers {
		hints := map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER:       true,
			gozxing.DecodeHintType_POSSIBLE_FORMATS: []gozxing.BarcodeFormat{nr.format},
		}
		res, err := nr.reader.Decode(bmp, hints)
		if err != nil || res == nil {
			continue
		}
		return &Result{
			Text:         res.GetText(),
			Format:       formatName(res.GetBarcodeFormat()),
			CornerPoints: cornerPoints(res),
		}, nil
	}
	return nil, fmt.Errorf("no barcode found")
}

func decodeImageData(imageData string) (image.Image, error) {
	if strings.HasPrefix(imageData, "data:") {
		if i := strings.Index(imageData, ","); i >= 0 {
			imageData = imageData[i+1:]
		}
	}

	data, err := base64.StdEncoding.DecodeString(imageData)
	if err != nil {
		return nil, fmt.Errorf("base64 decode failed: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	return img, nil
}

func extractROI(img image.Image, roi *ROI) (image.Image, error) {
	bounds := img.Bounds()
	rect := image.Rect(roi.X, roi.Y, roi.X+roi.Width, roi.Y+roi.Height).Add(bounds.Min)

	if roi.Width <= 0 || roi.Height <= 0 || !rect.In(bounds) {
		return nil, fmt.Errorf("ROI out of bounds")
	}

	roiImg := image.NewRGBA(image.Rect(0, 0, roi.Width, roi.Height))
	draw.Draw(roiImg, roiImg.Bounds(), img, rect.Min, draw.Src)
	return roiImg, nil
}

func cornerPoints(result *gozxing.Result) []Point {
	resultPoints := result.GetResultPoints()
	corners := make([]Point, len(resultPoints))
	for i, p := range resultPoints {
		corners[i] = Point{X: p.GetX(), Y: p.GetY()}
	}
	return corners
}

func formatName(format gozxing.BarcodeFormat) string {
	switch format {
	case gozxing.BarcodeFormat_CODE_128:
		return "CODE_128"
	case gozxing.BarcodeFormat_EAN_13:
		return "EAN_13"
	case gozxing.BarcodeFormat_EAN_8:
		return "EAN_8"
	case gozxing.BarcodeFormat_UPC_A:
		return "UPC_A"
	case gozxing.BarcodeFormat_QR_CODE:
		return "QR_CODE"
	default:
		return "UNKNOWN"
	}
}
