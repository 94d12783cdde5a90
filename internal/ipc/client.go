package ipc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"strings"
	"time"
)

const dialTimeout = 2 * time.Second

// Client provides RPC access to a decoder server.
type Client struct {
	addr   string
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the decoder server listening on addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{addr: addr, conn: conn, client: rpcClient}, nil
}

// Addr returns the server address the client is connected to.
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		err := c.client.Close()
		if err != nil && !errors.Is(err, rpc.ErrShutdown) {
			return err
		}
	}
	return nil
}

// Decode returns the first code found in the image at path.
func (c *Client) Decode(ctx context.Context, path string) (*DecodeResponse, error) {
	var resp DecodeResponse
	if err := c.call(ctx, methodDecode, DecodeRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DecodeAll returns every code found in the image at path.
func (c *Client) DecodeAll(ctx context.Context, path string) (*DecodeAllResponse, error) {
	var resp DecodeAllResponse
	if err := c.call(ctx, methodDecodeAll, DecodeRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QRCodeDecode returns the QR code found in the image at path.
func (c *Client) QRCodeDecode(ctx context.Context, path string) (*DecodeResponse, error) {
	var resp DecodeResponse
	if err := c.call(ctx, methodQRCodeDecode, DecodeRequest{Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the decoder server status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call(ctx, methodStatus, StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) call(ctx context.Context, method string, args any, reply any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	call := c.client.Go(method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case done := <-call.Done:
		return done.Error
	}
}

// IsRemoteError reports whether err was returned by the server's handler
// rather than by the transport.
func IsRemoteError(err error) bool {
	var serverErr rpc.ServerError
	return errors.As(err, &serverErr)
}

// RemoteMessage returns the server-side message of a remote error.
func RemoteMessage(err error) string {
	var serverErr rpc.ServerError
	if errors.As(err, &serverErr) {
		return strings.TrimSpace(string(serverErr))
	}
	return ""
}
