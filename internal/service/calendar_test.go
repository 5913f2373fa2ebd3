package service

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tazhate/flock/internal/clients/caldav"
	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

func seedServices(t *testing.T, store *storage.Storage) []*domain.Service {
	t.Helper()
	ctx := context.Background()
	tpl := &domain.ServiceTemplate{Name: "Sunday Service", DefaultTime: "10:30", Location: "Main hall"}
	require.NoError(t, store.CreateTemplate(ctx, tpl))

	var out []*domain.Service
	for _, s := range []struct{ date, start string }{{"2024-01-07", "10:30"}, {"2024-01-14", ""}} {
		svc := &domain.Service{TemplateID: tpl.ID, Name: tpl.Name, ServiceDate: s.date, StartTime: s.start, Location: tpl.Location}
		_, err := store.CreateServiceIfAbsent(ctx, svc)
		require.NoError(t, err)
		out = append(out, svc)
	}
	member := createMember(t, store, "Jane Doe", nil)
	require.NoError(t, store.CreateRotaAssignment(ctx, &domain.RotaAssignment{ServiceID: out[0].ID, MemberID: member.ID, Duty: "Preaching"}))
	return out
}

func TestCalendarService_WriteFeed(t *testing.T) {
	store := newTestStorage(t)
	seedServices(t, store)
	svc := NewCalendarService(store, nil, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteFeed(context.Background(), &buf, mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31")))
	out := buf.String()

	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("BEGIN:VEVENT")))
	assert.Contains(t, out, "SUMMARY:Sunday Service")
	assert.Contains(t, out, "DTSTART:20240107T103000Z")
	assert.Contains(t, out, "DTEND:20240107T120000Z")
	assert.Contains(t, out, "DTSTART;VALUE=DATE:20240114")
	assert.Contains(t, out, "Preaching: Jane Doe")
	assert.False(t, svc.IsConfigured())
}

func TestCalendarService_PublishServices(t *testing.T) {
	store := newTestStorage(t)
	services := seedServices(t, store)

	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	svc := NewCalendarService(store, caldav.NewClient(srv.URL, "u", "p", "/cal/services/"), time.UTC)
	require.True(t, svc.IsConfigured())

	n, err := svc.PublishRange(context.Background(), mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, svc.Unpublish(context.Background(), services[0].ID))

	uid := caldav.ServiceUID(services[0].ID)
	assert.Equal(t, []string{
		"PUT /cal/services/" + uid + ".ics",
		"PUT /cal/services/" + caldav.ServiceUID(services[1].ID) + ".ics",
		"DELETE /cal/services/" + uid + ".ics",
	}, paths)
}
