package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func getTestServer(failingRequests int, status int, body string) (*httptest.Server, *int) {
	cnt := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		cnt++
		if cnt <= failingRequests {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})), &cnt
}

func TestGet(t *testing.T) {
	ts, _ := getTestServer(0, http.StatusOK, "hello")
	defer ts.Close()
	body, err := New(time.Second, 0).Get(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
}

func TestGetNotFound(t *testing.T) {
	ts, _ := getTestServer(0, http.StatusNotFound, "404: Not Found")
	defer ts.Close()
	_, err := New(time.Second, 0).Get(context.Background(), ts.URL)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetStatusError(t *testing.T) {
	ts, _ := getTestServer(0, http.StatusForbidden, "nope")
	defer ts.Close()
	_, err := New(time.Second, 0).Get(context.Background(), ts.URL)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestGetAttemptsOnceByDefault(t *testing.T) {
	ts, cnt := getTestServer(1, http.StatusOK, "hello")
	defer ts.Close()
	_, err := New(time.Second, 0).Get(context.Background(), ts.URL)
	require.Error(t, err)
	require.Equal(t, 1, *cnt)
}

func TestGetRetry(t *testing.T) {
	ts, cnt := getTestServer(1, http.StatusOK, "hello")
	defer ts.Close()
	c := New(time.Second, 1)
	c.retryableClient.RetryWaitMin = time.Millisecond
	c.retryableClient.RetryWaitMax = time.Millisecond
	body, err := c.Get(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, "hello", string(body))
	require.Equal(t, 2, *cnt)
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		body     string
		err      error
		expected Kind
	}{
		{body: "[]", expected: Success},
		{body: "404: Not Found", expected: NotFound},
		{body: "Not Found", expected: NotFound},
		{body: `{"error":"Not Found"}`, expected: NotFound},
		{body: "Not Found\n", expected: NotFound},
		{body: "Not Found at all", expected: Success},
		{err: ErrNotFound, expected: NotFound},
		{err: errors.New("dial tcp: timeout"), expected: OtherError},
		{err: &StatusError{StatusCode: 500}, expected: OtherError},
	}
	for _, testCase := range testCases {
		res := Classify([]byte(testCase.body), testCase.err)
		require.Equal(t, testCase.expected, res.Kind, "body=%q err=%v", testCase.body, testCase.err)
		if res.Kind == Success {
			require.Equal(t, testCase.body, string(res.Body))
		}
		if res.Kind == OtherError {
			require.Error(t, res.Err)
		}
	}
}

func TestGetClassified(t *testing.T) {
	ts, _ := getTestServer(0, http.StatusOK, `{"error":"Not Found"}`)
	defer ts.Close()
	res := New(time.Second, 0).GetClassified(context.Background(), ts.URL)
	require.Equal(t, NotFound, res.Kind)
	require.Equal(t, "not-found", res.Kind.String())
}

func TestGetBodyTooLarge(t *testing.T) {
	ts, _ := getTestServer(0, http.StatusOK, "0123456789abcdef!")
	defer ts.Close()
	c := New(time.Second, 0)
	c.maxBodySize = 16
	body, err := c.Get(context.Background(), ts.URL)
	require.ErrorIs(t, err, ErrBodyTooLarge)
	require.Nil(t, body)

	res := c.GetClassified(context.Background(), ts.URL)
	require.Equal(t, OtherError, res.Kind)

	c.maxBodySize = 17
	body, err = c.Get(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, "0123456789abcdef!", string(body))
}
