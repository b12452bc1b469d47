package api

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client talks to a running zfetchd over its Unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon socket. The connection is lazy: errors from
// an absent daemon surface on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, req, out any) error {
	in, err := encode(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := decode(resp, out); err != nil {
		return fmt.Errorf("decode %s reply: %w", method, err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (*StatusReply, error) {
	var out StatusReply
	if err := c.invoke(ctx, "GetStatus", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Initialize(ctx context.Context, anchor string) (*StatusReply, error) {
	var out StatusReply
	if err := c.invoke(ctx, "Initialize", InitializeRequest{Anchor: anchor}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadNewer asks for the next page after the named list. An empty name
// means the current list.
func (c *Client) LoadNewer(ctx context.Context, list string) (bool, error) {
	var out LoadReply
	err := c.invoke(ctx, "LoadNewer", LoadRequest{List: list}, &out)
	return out.Started, err
}

func (c *Client) LoadOlder(ctx context.Context, list string) (bool, error) {
	var out LoadReply
	err := c.invoke(ctx, "LoadOlder", LoadRequest{List: list}, &out)
	return out.Started, err
}

func (c *Client) Narrow(ctx context.Context, narrow, anchor string) (*StatusReply, error) {
	var out StatusReply
	if err := c.invoke(ctx, "Narrow", NarrowRequest{Narrow: narrow, Anchor: anchor}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Unnarrow(ctx context.Context) (*StatusReply, error) {
	var out StatusReply
	if err := c.invoke(ctx, "Unnarrow", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListMessages(ctx context.Context, req ListMessagesRequest) (*MessagesReply, error) {
	var out MessagesReply
	if err := c.invoke(ctx, "ListMessages", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchMessages(ctx context.Context, req SearchRequest) (*SearchReply, error) {
	var out SearchReply
	if err := c.invoke(ctx, "SearchMessages", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WatchEvents streams daemon events whose kind starts with prefix. The
// channel closes when ctx ends or the stream fails; the error, if any, is
// sent on errc.
func (c *Client) WatchEvents(ctx context.Context, prefix string) (<-chan Event, <-chan error, error) {
	stream, err := c.conn.NewStream(ctx, &fetchServiceDesc.Streams[0], fullMethod("WatchEvents"))
	if err != nil {
		return nil, nil, err
	}
	in, err := encode(WatchRequest{Prefix: prefix})
	if err != nil {
		return nil, nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, nil, err
	}

	events := make(chan Event)
	errc := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			msg := new(structpb.Struct)
			if err := stream.RecvMsg(msg); err != nil {
				if err != io.EOF && ctx.Err() == nil {
					errc <- err
				}
				return
			}
			var evt Event
			if err := decode(msg, &evt); err != nil {
				errc <- err
				return
			}
			select {
			case events <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, errc, nil
}
