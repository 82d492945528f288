package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/custodia-labs/d365-odata-mcp/internal/core/domain"
)

// fakeTokens hands out tokens and counts calls.
type fakeTokens struct {
	mu          sync.Mutex
	gets        int
	invalidated int
	err         error
}

func (f *fakeTokens) GetToken(context.Context) (*domain.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Token{AccessToken: fmt.Sprintf("tok-%d", f.gets), TokenType: "Bearer"}, nil
}

func (f *fakeTokens) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

// fakeFetcher serves canned pages keyed by next link ("" for the first page).
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]*domain.QueryResult
	errs     map[string]error
	links    []string
	tokens   []string
	specs    []domain.QuerySpec
	entity   json.RawMessage
	entityOK bool
	sets     []string
	metadata string
}

func (f *fakeFetcher) FetchPage(
	_ context.Context, spec *domain.QuerySpec, nextLink string, token *domain.Token,
) (*domain.QueryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, nextLink)
	f.tokens = append(f.tokens, token.AccessToken)
	f.specs = append(f.specs, *spec)
	if err, ok := f.errs[nextLink]; ok {
		return nil, err
	}
	page, ok := f.pages[nextLink]
	if !ok {
		return nil, fmt.Errorf("unexpected link %q", nextLink)
	}
	return page, nil
}

func (f *fakeFetcher) FetchEntity(
	_ context.Context, spec *domain.QuerySpec, key string, _ *domain.Token,
) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, *spec)
	f.links = append(f.links, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.entity, nil
}

func (f *fakeFetcher) FetchServiceDocument(context.Context, *domain.Token) ([]string, error) {
	if err, ok := f.errs["$service"]; ok {
		return nil, err
	}
	return f.sets, nil
}

func (f *fakeFetcher) FetchMetadata(_ context.Context, _ *domain.Token, maxBytes int64) ([]byte, bool, error) {
	doc := []byte(f.metadata)
	if int64(len(doc)) > maxBytes {
		return doc[:maxBytes], true, nil
	}
	return doc, false, nil
}

func (f *fakeFetcher) Links() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.links...)
}

// makeRecords returns n records numbered from start.
func makeRecords(start, n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf(`{"n":%d}`, start+i))
	}
	return out
}

// threePages returns pages of 40, 40 and 40 records linked p1 -> p2 -> p3.
func threePages() map[string]*domain.QueryResult {
	return map[string]*domain.QueryResult{
		"": {Records: makeRecords(0, 40), NextLink: "https://org.crm.dynamics.com/api/data/v9.2/accounts?$skiptoken=2"},
		"https://org.crm.dynamics.com/api/data/v9.2/accounts?$skiptoken=2": {
			Records: makeRecords(40, 40), NextLink: "https://org.crm.dynamics.com/api/data/v9.2/accounts?$skiptoken=3",
		},
		"https://org.crm.dynamics.com/api/data/v9.2/accounts?$skiptoken=3": {
			Records: makeRecords(80, 40), NextLink: "https://org.crm.dynamics.com/api/data/v9.2/accounts?$skiptoken=4",
		},
	}
}
