package novatswire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/tuannm99/novats/internal/engine"
	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/internal/table"
)

var ErrUnknownOp = errors.New("novatswire: unknown op")

// Server exposes one database over TCP. Connections are handled
// concurrently but requests run one at a time, since tables are
// single-threaded.
type Server struct {
	mu sync.Mutex
	db *engine.Database
}

func NewServer(db *engine.Database) *Server {
	return &Server{db: db}
}

// Serve accepts connections until ctx is done or ln fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			slog.Warn("novatswire:: accept", "err", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.ServeConn(ctx, conn)
		}()
	}
}

// ServeConn answers frames on conn until the peer hangs up or ctx is done.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	// No global deadline; you can set per-request deadline if needed.
	_ = conn.SetDeadline(time.Time{})

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				slog.Debug("novatswire:: read frame", "remote", conn.RemoteAddr(), "err", err)
			}
			return
		}

		resp := s.Handle(req)
		if err := WriteFrame(conn, resp); err != nil {
			slog.Debug("novatswire:: write frame", "remote", conn.RemoteAddr(), "err", err)
			return
		}
	}
}

// Handle runs one request against the database.
func (s *Server) Handle(req Request) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.handle(req)
	resp.ID = req.ID
	if err != nil {
		slog.Debug("novatswire:: request failed", "op", req.Op, "table", req.Table, "err", err)
		resp = Response{ID: req.ID, Error: err.Error()}
	}
	return resp
}

func (s *Server) handle(req Request) (Response, error) {
	switch req.Op {
	case OpTables:
		names, err := s.db.Tables()
		return Response{Tables: names, Count: len(names)}, err
	case OpCommit:
		return Response{}, s.db.Commit()
	case OpDrop:
		return Response{}, s.db.DropTable(req.Table)
	case OpWrite, OpRead, OpCount, OpQuery, OpDefine, OpSchema:
	default:
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownOp, req.Op)
	}

	tbl, err := s.db.Table(req.Table)
	if err != nil {
		return Response{}, err
	}

	switch req.Op {
	case OpWrite:
		n, err := tbl.WriteBatch(req.Records)
		return Response{Count: n}, err
	case OpRead:
		r, err := tbl.Read(req.Line)
		if err != nil {
			return Response{}, err
		}
		return Response{Count: 1, Records: []record.Record{r}}, nil
	case OpCount:
		n, err := tbl.Query(req.Start, req.End, req.Eq).Count()
		return Response{Count: n}, err
	case OpQuery:
		rs, err := query(tbl, req)
		return Response{Count: len(rs), Records: rs}, err
	case OpDefine:
		if req.Schema == nil {
			return Response{}, fmt.Errorf("novatswire: define %s: missing schema", req.Table)
		}
		if err := tbl.Define(*req.Schema); err != nil {
			return Response{}, err
		}
		fallthrough
	case OpSchema:
		schema := tbl.Schema()
		return Response{Count: schema.NumFields(), Schema: &schema}, nil
	default:
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownOp, req.Op)
	}
}

func query(tbl *table.Table, req Request) ([]record.Record, error) {
	c := tbl.Query(req.Start, req.End, req.Eq)
	seq := c.All()
	if req.Reverse {
		seq = c.Backward()
	}

	out := make([]record.Record, 0)
	for r, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, r)
		if req.Limit > 0 && len(out) >= req.Limit {
			break
		}
	}
	return out, nil
}
