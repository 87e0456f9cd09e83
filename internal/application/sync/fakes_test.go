package sync

import (
	"context"
	"errors"
	"strconv"
	gosync "sync"

	"mailfootprint/internal/domain/email"
)

type fakeCredentials struct {
	mu       gosync.Mutex
	calls    int
	failOn   int
	lastMode bool
}

func (f *fakeCredentials) Acquire(_ context.Context, interactive bool) (email.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastMode = interactive
	if f.failOn > 0 && f.calls == f.failOn {
		return email.Credential{}, email.ErrAuthUnavailable
	}
	return email.Credential{Value: "token-" + strconv.Itoa(f.calls)}, nil
}

// fakeMailbox serves label listings from fixed ID sets using the offset as
// the continuation token.
type fakeMailbox struct {
	mu          gosync.Mutex
	ids         map[string][]string
	details     map[string]email.MessageDetail
	detailErrs  map[string]error
	listErr     map[string]error
	endless     bool
	listCalls   map[string]int
	pageTokens  []string
	detailCalls []string
	onDetail    func(id string)
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		ids:        map[string][]string{},
		details:    map[string]email.MessageDetail{},
		detailErrs: map[string]error{},
		listErr:    map[string]error{},
		listCalls:  map[string]int{},
	}
}

func (f *fakeMailbox) ListPage(_ context.Context, cred email.Credential, label, pageToken string, pageSize int) (email.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cred.IsZero() {
		return email.Page{}, errors.New("missing credential")
	}
	f.listCalls[label]++
	f.pageTokens = append(f.pageTokens, pageToken)
	if err := f.listErr[label]; err != nil {
		return email.Page{}, err
	}
	if f.endless {
		return email.Page{Refs: []email.MessageRef{{ID: "loop"}}, NextPageToken: "again"}, nil
	}

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return email.Page{}, err
		}
		start = n
	}
	all := f.ids[label]
	end := min(start+pageSize, len(all))

	var page email.Page
	for _, id := range all[start:end] {
		page.Refs = append(page.Refs, email.MessageRef{ID: id})
	}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeMailbox) GetMetadata(_ context.Context, cred email.Credential, id string, _ []string) (email.MessageDetail, error) {
	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, id)
	hook := f.onDetail
	d, ok := f.details[id]
	err := f.detailErrs[id]
	f.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if cred.IsZero() {
		return email.MessageDetail{}, errors.New("missing credential")
	}
	if err != nil {
		return email.MessageDetail{}, err
	}
	if !ok {
		return email.MessageDetail{ID: id, Malformed: true}, nil
	}
	return d, nil
}

func (f *fakeMailbox) addMessage(label, id, from, to, date string) {
	f.ids[label] = append(f.ids[label], id)
	f.details[id] = email.MessageDetail{
		ID:       id,
		LabelIDs: []string{label},
		Headers: []email.Header{
			{Name: "From", Value: from},
			{Name: "To", Value: to},
			{Name: "Date", Value: date},
		},
	}
}

type fakeStore struct {
	mu        gosync.Mutex
	records   []email.MessageRecord
	stats     email.Stats
	lastReset string
	commits   int
	commitErr error
}

func (f *fakeStore) LastReset(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReset, nil
}

func (f *fakeStore) Commit(_ context.Context, result email.SyncResult, expectedLastReset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	if f.lastReset != expectedLastReset {
		return email.ErrBusy
	}
	f.commits++
	f.records = append([]email.MessageRecord(nil), result.Records...)
	f.stats = result.Stats()
	return nil
}

func (f *fakeStore) reset(at string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = nil
	f.stats = email.Stats{Timestamp: at}
	f.lastReset = at
}
