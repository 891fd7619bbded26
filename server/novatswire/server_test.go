package novatswire

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novats/internal/engine"
	"github.com/tuannm99/novats/internal/record"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db, err := engine.Open("/data", engine.Options{Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewServer(db)
}

func TestServer_Handle(t *testing.T) {
	s := newTestServer(t)

	resp := s.Handle(Request{ID: 1, Op: OpWrite, Table: "cpu", Records: []record.Record{
		{"time": json.Number("10"), "host": "a"},
		{"time": json.Number("20"), "host": "b"},
		{"time": json.Number("30"), "host": "a"},
	}})
	require.Empty(t, resp.Error)
	require.Equal(t, uint64(1), resp.ID)
	require.Equal(t, 3, resp.Count)

	start := 15.0
	resp = s.Handle(Request{ID: 2, Op: OpCount, Table: "cpu", Start: &start})
	require.Empty(t, resp.Error)
	require.Equal(t, 2, resp.Count)

	resp = s.Handle(Request{ID: 3, Op: OpQuery, Table: "cpu", Eq: map[string]any{"host": "a"}, Reverse: true, Limit: 1})
	require.Empty(t, resp.Error)
	require.Len(t, resp.Records, 1)
	require.Equal(t, 30.0, resp.Records[0]["time"])

	resp = s.Handle(Request{ID: 4, Op: OpRead, Table: "cpu", Line: 1})
	require.Empty(t, resp.Error)
	require.Equal(t, "b", resp.Records[0]["host"])

	resp = s.Handle(Request{ID: 5, Op: OpRead, Table: "cpu", Line: 9})
	require.NotEmpty(t, resp.Error)
	require.Equal(t, uint64(5), resp.ID)

	resp = s.Handle(Request{ID: 6, Op: OpSchema, Table: "cpu"})
	require.Empty(t, resp.Error)
	require.Equal(t, []string{"time", "host"}, resp.Schema.Names())

	resp = s.Handle(Request{ID: 7, Op: OpTables})
	require.Equal(t, []string{"cpu"}, resp.Tables)

	resp = s.Handle(Request{ID: 8, Op: OpCommit})
	require.Empty(t, resp.Error)

	resp = s.Handle(Request{ID: 9, Op: OpDrop, Table: "cpu"})
	require.Empty(t, resp.Error)
	resp = s.Handle(Request{ID: 10, Op: OpTables})
	require.Empty(t, resp.Tables)
}

func TestServer_HandleDefine(t *testing.T) {
	s := newTestServer(t)

	resp := s.Handle(Request{Op: OpDefine, Table: "m"})
	require.Contains(t, resp.Error, "missing schema")

	schema := record.Schema{Fields: []record.Field{{Name: "v", Type: record.TypeInt}}}
	resp = s.Handle(Request{Op: OpDefine, Table: "m", Schema: &schema})
	require.Empty(t, resp.Error)
	require.Equal(t, []string{"time", "v"}, resp.Schema.Names())

	resp = s.Handle(Request{Op: OpWrite, Table: "m", Records: []record.Record{{"time": 1, "v": "x"}}})
	require.Contains(t, resp.Error, "write failed")
}

func TestServer_HandleErrors(t *testing.T) {
	s := newTestServer(t)

	resp := s.Handle(Request{ID: 1, Op: "explode", Table: "x"})
	require.Contains(t, resp.Error, ErrUnknownOp.Error())

	resp = s.Handle(Request{ID: 2, Op: OpCount, Table: "../etc"})
	require.Contains(t, resp.Error, engine.ErrBadTableName.Error())
}

func TestServer_NonFiniteWriteKeepsTableReadable(t *testing.T) {
	s := newTestServer(t)

	resp := s.Handle(Request{ID: 1, Op: OpWrite, Table: "cpu", Records: []record.Record{{"time": json.Number("10")}}})
	require.Empty(t, resp.Error)

	resp = s.Handle(Request{ID: 2, Op: OpWrite, Table: "cpu", Records: []record.Record{{"time": "nan"}}})
	require.Contains(t, resp.Error, record.ErrEncoding.Error())

	resp = s.Handle(Request{ID: 3, Op: OpQuery, Table: "cpu"})
	require.Empty(t, resp.Error)
	require.Len(t, resp.Records, 1)
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, resp))
}

func TestServer_ServeConn(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, cli := net.Pipe()
	done := make(chan struct{})
	go func() {
		s.ServeConn(ctx, srv)
		close(done)
	}()

	require.NoError(t, WriteFrame(cli, Request{ID: 42, Op: OpWrite, Table: "t", Records: []record.Record{{"time": 1}}}))
	var resp Response
	require.NoError(t, ReadFrame(cli, &resp))
	require.Equal(t, uint64(42), resp.ID)
	require.Equal(t, 1, resp.Count)

	require.NoError(t, WriteFrame(cli, Request{ID: 43, Op: OpQuery, Table: "t"}))
	require.NoError(t, ReadFrame(cli, &resp))
	require.Len(t, resp.Records, 1)
	require.Equal(t, json.Number("1"), resp.Records[0]["time"])

	require.NoError(t, cli.Close())
	<-done
}

func TestServer_Serve(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, WriteFrame(conn, Request{ID: 1, Op: OpTables}))
	var resp Response
	require.NoError(t, ReadFrame(conn, &resp))
	require.Equal(t, uint64(1), resp.ID)
	require.Empty(t, resp.Error)

	cancel()
	require.NoError(t, <-errc)
	_ = conn.Close()
}
