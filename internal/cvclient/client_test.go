package cvclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvPortal/internal/cv"
)

func TestSave_SendsStringEncodedLayout(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/cvs", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":12,"title":"t","layout":"{}","blocks":"[]","visibility":"private"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", srv.Client())
	res, err := c.Save(context.Background(), cv.ToPayload("t", "", cv.DefaultLayout()))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, cv.ID("12"), res.ID)

	assert.Nil(t, got["id"])
	_, isString := got["layout"].(string)
	assert.True(t, isString)
	_, isString = got["blocks"].(string)
	assert.True(t, isString)
}

func TestSave_UpdateKeepsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"t"}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "", nil).Save(context.Background(), cv.Payload{ID: "5", Title: "t"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, cv.ID("5"), res.ID)
}

func TestFetch_DecodesEitherForm(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "string", body: `{"id":"3","title":"x","layout":"{\"left\":[\"a\"],\"right\":[],\"unused\":[]}","blocks":"[{\"id\":\"a\",\"type\":\"career\",\"data\":{}}]"}`},
		{name: "structured", body: `{"id":3,"title":"x","layout":{"left":["a"],"right":[],"unused":[]},"blocks":[{"id":"a","type":"career","data":{}}]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/cvs/3", r.URL.Path)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p, err := New(srv.URL, "", nil).Fetch(context.Background(), "3")
			require.NoError(t, err)
			assert.Equal(t, cv.ID("3"), p.ID)
			assert.Equal(t, []string{"a"}, p.Layout.Left)
			require.Len(t, p.Blocks, 1)
			assert.Equal(t, cv.TypeCareer, p.Blocks[0].Type)
		})
	}
}

func TestErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/share/gone":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"title is required"}`))
		}
	}))
	defer srv.Close()
	c := New(srv.URL, "", nil)

	_, err := c.FetchShared(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Save(context.Background(), cv.Payload{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "title is required", err.Error())
}

func TestListAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"cvs":[{"id":1,"title":"a","status":"PENDING","visibility":"public","hasPdf":true}]}`))
		case http.MethodDelete:
			assert.Equal(t, "/v1/cvs/1", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()
	c := New(srv.URL, "", nil)

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, cv.ID("1"), items[0].ID)
	assert.True(t, items[0].HasPDF)

	require.NoError(t, c.Delete(context.Background(), "1"))
}
