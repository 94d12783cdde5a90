// Package zxing decodes barcodes and QR codes from image files by delegating
// to a zxingd decoder server over a loopback JSON-RPC connection.
//
// A Session owns the connection. It is established lazily on the first call:
// a port is allocated (or pinned with ZXING_PORT), a responsive server on
// that port is reused or a new one is spawned, and a client is dialed. Calls
// made with RetryOnce probe the server first and rebuild the session when it
// has gone away, and retry once when the call itself loses its connection.
//
//	session := zxing.NewSession(zxing.Options{}, logger)
//	defer session.Close()
//	text, found, err := session.Decode(ctx, "label.png", zxing.RetryOnce())
package zxing
