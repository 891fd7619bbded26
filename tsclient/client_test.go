package tsclient

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novats/internal/engine"
	"github.com/tuannm99/novats/internal/record"
	"github.com/tuannm99/novats/server/novatswire"
)

func newPipeClient(t *testing.T) *Client {
	t.Helper()
	db, err := engine.Open("/data", engine.Options{Fs: afero.NewMemMapFs()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv, cli := net.Pipe()
	done := make(chan struct{})
	go func() {
		novatswire.NewServer(db).ServeConn(ctx, srv)
		close(done)
	}()

	c := NewClient(cli)
	c.SetRWTimeout(5 * time.Second)
	t.Cleanup(func() {
		cancel()
		_ = c.Close()
		<-done
		_ = db.Close()
	})
	return c
}

func TestClient_EndToEnd(t *testing.T) {
	c := newPipeClient(t)
	ctx := context.Background()

	schema, err := record.NewSchema(false, record.Field{Name: "load", Type: record.TypeFloat})
	require.NoError(t, err)
	got, err := c.Define(ctx, "cpu", schema)
	require.NoError(t, err)
	require.Equal(t, []string{"time", "load"}, got.Names())

	n, err := c.Write(ctx, "cpu",
		record.Record{"time": 100, "load": 0.5, "host": "a"},
		record.Record{"time": 200, "load": 1.5, "host": "b"},
		record.Record{"time": 300, "load": 2.5, "host": "a"},
	)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	start := 150.0
	count, err := c.Count(ctx, "cpu", Query{Start: &start})
	require.NoError(t, err)
	require.Equal(t, 2, count)

	rs, err := c.Query(ctx, "cpu", Query{Eq: map[string]any{"host": "a"}})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	require.Equal(t, json.Number("300"), rs[1]["time"])
	require.Equal(t, json.Number("2.5"), rs[1]["load"])

	r, err := c.Read(ctx, "cpu", 1)
	require.NoError(t, err)
	require.Equal(t, "b", r["host"])

	s, err := c.Schema(ctx, "cpu")
	require.NoError(t, err)
	require.Equal(t, []string{"time", "load", "host"}, s.Names())

	require.NoError(t, c.Commit(ctx))

	names, err := c.Tables(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"cpu"}, names)

	require.NoError(t, c.Drop(ctx, "cpu"))
	names, err = c.Tables(ctx)
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestClient_ServerError(t *testing.T) {
	c := newPipeClient(t)

	_, err := c.Read(context.Background(), "empty", 0)
	var serr *ServerError
	require.True(t, errors.As(err, &serr))
	require.Equal(t, novatswire.OpRead, serr.Op)
	require.Contains(t, serr.Msg, "out of range")
}

func TestClient_Nil(t *testing.T) {
	var c *Client
	_, err := c.Tables(context.Background())
	require.Error(t, err)
	require.NoError(t, c.Close())
}
