package tsclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/server/novatswire"
)

// ServerError is an error reported by the server for one request.
type ServerError struct {
	Op  novatswire.Op
	Msg string
}

func (e *ServerError) Error() string { return fmt.Sprintf("tsclient: %s: %s", e.Op, e.Msg) }

// Client is a simple synchronous client.
// It locks send/recv so you can call Do concurrently but they'll serialize.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
	id   atomic.Uint64

	// Optional per-request timeout (0 = no timeout).
	rwTimeout time.Duration
}

func Dial(addr string, timeout time.Duration) (*Client, error) {
	return DialContext(context.Background(), addr, timeout)
}

func DialContext(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(c), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// SetRWTimeout sets a per-request read/write deadline.
func (c *Client) SetRWTimeout(d time.Duration) {
	if c == nil {
		return
	}
	c.rwTimeout = d
}

func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Do sends req and waits for its response. A response carrying an error
// message is returned as *ServerError.
func (c *Client) Do(ctx context.Context, req novatswire.Request) (*novatswire.Response, error) {
	if c == nil || c.conn == nil {
		return nil, errors.New("tsclient: nil client")
	}

	req.ID = c.id.Add(1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.applyDeadline(ctx); err != nil {
		return nil, err
	}
	defer func() {
		// Clear deadline after request so idle connection doesn't expire.
		_ = c.conn.SetDeadline(time.Time{})
	}()

	if err := novatswire.WriteFrame(c.conn, req); err != nil {
		return nil, err
	}

	var resp novatswire.Response
	if err := novatswire.ReadFrame(c.conn, &resp); err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("tsclient: response id mismatch: got=%d want=%d", resp.ID, req.ID)
	}
	if resp.Error != "" {
		return nil, &ServerError{Op: req.Op, Msg: resp.Error}
	}
	return &resp, nil
}

// Write appends records to table as one batch.
func (c *Client) Write(ctx context.Context, table string, rs ...record.Record) (int, error) {
	resp, err := c.Do(ctx, novatswire.Request{Op: novatswire.OpWrite, Table: table, Records: rs})
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Query describes a time range read. Nil bounds are open.
type Query struct {
	Start, End *float64
	Eq         map[string]any
	Limit      int
	Reverse    bool
}

func (c *Client) Query(ctx context.Context, table string, q Query) ([]record.Record, error) {
	resp, err := c.Do(ctx, q.request(novatswire.OpQuery, table))
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (c *Client) Count(ctx context.Context, table string, q Query) (int, error) {
	resp, err := c.Do(ctx, q.request(novatswire.OpCount, table))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (q Query) request(op novatswire.Op, table string) novatswire.Request {
	return novatswire.Request{
		Op:      op,
		Table:   table,
		Start:   q.Start,
		End:     q.End,
		Eq:      q.Eq,
		Limit:   q.Limit,
		Reverse: q.Reverse,
	}
}

// Read fetches the record at line.
func (c *Client) Read(ctx context.Context, table string, line int) (record.Record, error) {
	resp, err := c.Do(ctx, novatswire.Request{Op: novatswire.OpRead, Table: table, Line: line})
	if err != nil {
		return nil, err
	}
	if len(resp.Records) == 0 {
		return nil, errors.New("tsclient: empty read response")
	}
	return resp.Records[0], nil
}

func (c *Client) Tables(ctx context.Context) ([]string, error) {
	resp, err := c.Do(ctx, novatswire.Request{Op: novatswire.OpTables})
	if err != nil {
		return nil, err
	}
	return resp.Tables, nil
}

func (c *Client) Drop(ctx context.Context, table string) error {
	_, err := c.Do(ctx, novatswire.Request{Op: novatswire.OpDrop, Table: table})
	return err
}

// Define replaces the schema of table and returns the stored version.
func (c *Client) Define(ctx context.Context, table string, s record.Schema) (record.Schema, error) {
	return c.schema(ctx, novatswire.Request{Op: novatswire.OpDefine, Table: table, Schema: &s})
}

func (c *Client) Schema(ctx context.Context, table string) (record.Schema, error) {
	return c.schema(ctx, novatswire.Request{Op: novatswire.OpSchema, Table: table})
}

func (c *Client) schema(ctx context.Context, req novatswire.Request) (record.Schema, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return record.Schema{}, err
	}
	if resp.Schema == nil {
		return record.Schema{}, nil
	}
	return *resp.Schema, nil
}

func (c *Client) Commit(ctx context.Context) error {
	_, err := c.Do(ctx, novatswire.Request{Op: novatswire.OpCommit})
	return err
}

func (c *Client) applyDeadline(ctx context.Context) error {
	// Prefer context deadline if present; otherwise use rwTimeout.
	if dl, ok := ctx.Deadline(); ok {
		return c.conn.SetDeadline(dl)
	}
	if c.rwTimeout > 0 {
		return c.conn.SetDeadline(time.Now().Add(c.rwTimeout))
	}
	return nil
}
