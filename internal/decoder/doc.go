// Package decoder is the barcode decoding backend hosted by zxingd.
//
// It loads an image (honouring EXIF orientation), converts it to a binary
// bitmap and runs the gozxing readers over it. Decoding is a black box to the
// rest of the repository: sessions only ever reach it through the ipc
// contract. An image without a readable code is reported as found=false, not
// as an error.
package decoder
