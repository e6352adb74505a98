package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	httpadapter "github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/http"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/httpclient"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/adapters/memory"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/domain"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/graph"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/ports"
	"github.com/agenciaboz-dev/bozchat-sub001/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRemote(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	server := httpadapter.NewServer(session.NewManager(store), httpadapter.WithBotStore(store))
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func TestClient_Contract(t *testing.T) {
	srv, _ := newRemote(t)
	ports.RunBotStoreContract(t, httpclient.New(srv.URL))
}

func TestClient_SendsRevision(t *testing.T) {
	var seen atomic.Value
	store := memory.NewStore(&domain.Bot{ID: "bot"})
	api := httpadapter.NewServer(session.NewManager(store), httpadapter.WithBotStore(store)).Handler()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			seen.Store(r.Header.Get(httpclient.RevisionHeader))
		}
		api.ServeHTTP(w, r)
	}))
	defer srv.Close()

	client := httpclient.New(srv.URL)
	ctx := ports.WithRevision(context.Background(), "rev-1")
	require.NoError(t, client.SaveInstance(ctx, "bot", graph.Default("oi")))
	assert.Equal(t, "rev-1", seen.Load())

	require.NoError(t, client.SaveInstance(context.Background(), "bot", graph.Default("oi")))
	assert.NotEmpty(t, seen.Load(), "a revision is generated when the caller has none")
	assert.NotEqual(t, "rev-1", seen.Load())
}

func TestClient_Errors(t *testing.T) {
	srv, _ := newRemote(t)
	client := httpclient.New(srv.URL + "/")

	_, err := client.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrBotNotFound)

	err = client.SaveInstance(context.Background(), "ghost", graph.Default("oi"))
	assert.ErrorIs(t, err, domain.ErrBotNotFound)

	assert.Error(t, client.Put(context.Background(), &domain.Bot{}))

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusServiceUnavailable)
	}))
	defer broken.Close()
	_, err = httpclient.New(broken.URL).List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "upstream down")
}
