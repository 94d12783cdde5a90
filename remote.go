package zxing

import (
	"context"

	"zxing/internal/endpoint"
	"zxing/internal/ipc"
)

// Remote is a connected handle to a decoder server. Calls are forwarded as is:
// transport faults are returned to the caller and nothing is retried.
type Remote interface {
	// Decode returns the first code in the image. found is false when the
	// image holds none.
	Decode(ctx context.Context, path string) (text string, found bool, err error)
	// DecodeStrict is Decode that fails with *UndecodableError instead of
	// reporting an absent result.
	DecodeStrict(ctx context.Context, path string) (string, error)
	// DecodeAll returns every code in the image, or nil when there are none.
	DecodeAll(ctx context.Context, path string) ([]string, error)
	// DecodeAllStrict is DecodeAll that fails with *UndecodableError when the
	// image holds no code.
	DecodeAllStrict(ctx context.Context, path string) ([]string, error)
	// QRCodeDecode decodes with the QR reader only.
	QRCodeDecode(ctx context.Context, path string) (text string, found bool, err error)
	Close() error
}

type rpcRemote struct {
	client *ipc.Client
}

func dialRemote(ctx context.Context, ep endpoint.Endpoint) (Remote, error) {
	client, err := ipc.Dial(ctx, ep.String())
	if err != nil {
		return nil, err
	}
	return &rpcRemote{client: client}, nil
}

func (r *rpcRemote) Decode(ctx context.Context, path string) (string, bool, error) {
	resp, err := r.client.Decode(ctx, path)
	if err != nil {
		return "", false, err
	}
	return resp.Text, resp.Found, nil
}

func (r *rpcRemote) DecodeStrict(ctx context.Context, path string) (string, error) {
	text, found, err := r.Decode(ctx, path)
	if err != nil {
		return "", err
	}
	if !found {
		return "", &UndecodableError{Path: path}
	}
	return text, nil
}

func (r *rpcRemote) DecodeAll(ctx context.Context, path string) ([]string, error) {
	resp, err := r.client.DecodeAll(ctx, path)
	if err != nil {
		return nil, err
	}
	if !resp.Found || len(resp.Texts) == 0 {
		return nil, nil
	}
	return resp.Texts, nil
}

func (r *rpcRemote) DecodeAllStrict(ctx context.Context, path string) ([]string, error) {
	texts, err := r.DecodeAll(ctx, path)
	if err != nil {
		return nil, err
	}
	if texts == nil {
		return nil, &UndecodableError{Path: path}
	}
	return texts, nil
}

func (r *rpcRemote) QRCodeDecode(ctx context.Context, path string) (string, bool, error) {
	resp, err := r.client.QRCodeDecode(ctx, path)
	if err != nil {
		return "", false, err
	}
	return resp.Text, resp.Found, nil
}

func (r *rpcRemote) Close() error {
	return r.client.Close()
}
