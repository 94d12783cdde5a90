package decoder

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/webp"
)

var errNoCode = errors.New("no barcode found")

// Options controls reader behaviour.
type Options struct {
	// TryHarder trades speed for a more exhaustive search.
	TryHarder bool
}

// Decoder decodes barcodes from image files. It is safe for concurrent use;
// readers are created per call.
type Decoder struct {
	opts Options
}

// New returns a Decoder with the given options.
func New(opts Options) *Decoder {
	return &Decoder{opts: opts}
}

// Decode returns the text of the first barcode found in the image at path.
func (d *Decoder) Decode(ctx context.Context, path string) (string, bool, error) {
	bmp, err := d.load(ctx, path)
	if err != nil {
		return "", false, err
	}
	result, err := newMultiFormatReader().Decode(bmp, d.hints())
	if err != nil {
		return "", false, nil
	}
	return result.GetText(), true, nil
}

// DecodeAll returns the text of every barcode found in the image at path.
// Several QR codes can be read from one image; other symbologies yield at
// most one value.
func (d *Decoder) DecodeAll(ctx context.Context, path string) ([]string, bool, error) {
	bmp, err := d.load(ctx, path)
	if err != nil {
		return nil, false, err
	}
	hints := d.hints()
	results, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bmp, hints)
	if err == nil && len(results) > 0 {
		texts := make([]string, 0, len(results))
		for _, r := range results {
			texts = append(texts, r.GetText())
		}
		return texts, true, nil
	}
	result, err := newMultiFormatReader().Decode(bmp, hints)
	if err != nil {
		return nil, false, nil
	}
	return []string{result.GetText()}, true, nil
}

// DecodeQRCode returns the text of a QR code in the image at path.
func (d *Decoder) DecodeQRCode(ctx context.Context, path string) (string, bool, error) {
	bmp, err := d.load(ctx, path)
	if err != nil {
		return "", false, err
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints())
	if err != nil {
		return "", false, nil
	}
	return result.GetText(), true, nil
}

func (d *Decoder) hints() map[gozxing.DecodeHintType]interface{} {
	hints := make(map[gozxing.DecodeHintType]interface{})
	if d.opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	return hints
}

func (d *Decoder) load(ctx context.Context, path string) (*gozxing.BinaryBitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	return bitmapFromImage(img)
}

func bitmapFromImage(img image.Image) (*gozxing.BinaryBitmap, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarize image: %w", err)
	}
	return bmp, nil
}

// multiFormatReader tries each symbology reader in turn and returns the
// first result.
type multiFormatReader struct {
	readers []gozxing.Reader
}

func newMultiFormatReader() *multiFormatReader {
	return &multiFormatReader{readers: []gozxing.Reader{
		qrcode.NewQRCodeReader(),
		datamatrix.NewDataMatrixReader(),
		aztec.NewAztecReader(),
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		oned.NewEAN13Reader(),
		oned.NewEAN8Reader(),
		oned.NewUPCAReader(),
		oned.NewUPCEReader(),
		oned.NewITFReader(),
		oned.NewCodaBarReader(),
	}}
}

func (r *multiFormatReader) DecodeWithoutHints(bmp *gozxing.BinaryBitmap) (*gozxing.Result, error) {
	return r.Decode(bmp, nil)
}

func (r *multiFormatReader) Decode(bmp *gozxing.BinaryBitmap, hints map[gozxing.DecodeHintType]interface{}) (*gozxing.Result, error) {
	for _, reader := range r.readers {
		result, err := reader.Decode(bmp, hints)
		if err == nil && result != nil {
			return result, nil
		}
	}
	return nil, errNoCode
}

func (r *multiFormatReader) Reset() {
	for _, reader := range r.readers {
		reader.Reset()
	}
}
