package runtime_test

import (
	"context"
	"time"

	"github.com/aretw0/convo/pkg/domain"
	"github.com/aretw0/convo/pkg/ports"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

type fakeHTTP struct {
	requests []ports.HTTPRequest
	resp     *ports.HTTPResponse
	err      error
}

func (f *fakeHTTP) Do(_ context.Context, req ports.HTTPRequest) (*ports.HTTPResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeAI struct {
	queries []ports.AIQuery
	answer  string
	err     error
}

func (f *fakeAI) Answer(_ context.Context, q ports.AIQuery) (string, error) {
	f.queries = append(f.queries, q)
	return f.answer, f.err
}

type fakeFetcher struct {
	err      error
	released []string
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) (*ports.MediaHandle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ports.MediaHandle{Path: "/tmp/media-" + ref, Name: ref}, nil
}

func (f *fakeFetcher) Release(_ context.Context, h *ports.MediaHandle) error {
	f.released = append(f.released, h.Path)
	return nil
}

type fakeMedia struct {
	jobs   []ports.MediaJob
	result *ports.MediaResult
	err    error
}

func (f *fakeMedia) Handle(_ context.Context, job ports.MediaJob) (*ports.MediaResult, error) {
	f.jobs = append(f.jobs, job)
	return f.result, f.err
}

type fakeEmail struct {
	sent []ports.Email
	err  error
}

func (f *fakeEmail) Send(_ context.Context, e ports.Email) error {
	f.sent = append(f.sent, e)
	return f.err
}

func newSession(def *domain.Definition) *domain.Session {
	return domain.NewSession("sess-1", def, "user-1", "tenant-1", nil, fixedNow)
}
