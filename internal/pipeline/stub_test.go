package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/insightctl/retail-insights/internal/dataset"
	"github.com/insightctl/retail-insights/internal/llm"
)

// stubProvider replays scripted responses in call order. When the script is
// exhausted it keeps returning the last entry.
type stubProvider struct {
	script []stubReply
	calls  int
}

type stubReply struct {
	resp *llm.Response
	err  error
}

func textReply(content string) stubReply {
	return stubReply{resp: &llm.Response{Content: content}}
}

func toolReply(name, arguments string) stubReply {
	return stubReply{resp: &llm.Response{FunctionCall: &llm.FunctionResponse{Name: name, Arguments: arguments}}}
}

func errReply(msg string) stubReply {
	return stubReply{err: errors.New(msg)}
}

func (s *stubProvider) Generate(_ context.Context, _, _ string, _ ...llm.Option) (*llm.Response, error) {
	if len(s.script) == 0 {
		return nil, errors.New("stub provider has no script")
	}
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	reply := s.script[i]
	return reply.resp, reply.err
}

// failingProvider fails every call, for fail-forward tests.
type failingProvider struct{}

func (failingProvider) Generate(context.Context, string, string, ...llm.Option) (*llm.Response, error) {
	return nil, errors.New("provider unavailable")
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// salesRelation is the shared fixture: two regions, two categories, three
// days of sales.
func salesRelation() dataset.Relation {
	return dataset.Relation{
		Columns: []dataset.Column{
			{Name: "Date", Type: dataset.Datetime},
			{Name: "Region", Type: dataset.Text},
			{Name: "Category", Type: dataset.Text},
			{Name: "Sales", Type: dataset.Numeric},
			{Name: "Quantity", Type: dataset.Numeric},
		},
		Rows: [][]any{
			{date("2024-01-03"), "North", "Electronics", 1200.0, 3.0},
			{date("2024-01-01"), "South", "Furniture", 800.0, 2.0},
			{date("2024-01-02"), "North", "Furniture", 450.0, 1.0},
			{date("2024-01-02"), "South", "Electronics", 2100.0, 5.0},
			{date("2024-01-03"), "South", "Electronics", 300.0, 1.0},
			{date("2024-01-01"), "North", "Electronics", 950.0, 2.0},
		},
	}
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(nil, salesRelation(), "sales_data", testLogger(t))
}
