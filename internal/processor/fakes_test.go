package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mikey/llm-inbox-triage/internal/config"
	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/rules"
)

type fakeMail struct {
	mu          sync.Mutex
	messages    []*core.Message
	bodies      map[string]string
	tags        map[string][]string
	connectErr  error
	listErr     error
	markErr     map[string]error
	ignoreTags  bool
	connected   bool
	lastForce   bool
	lastExclude string
	// listed holds the candidates handed out by the last ListCandidates
	listed []*core.Message
}

func newFakeMail(msgs ...*core.Message) *fakeMail {
	return &fakeMail{
		messages: msgs,
		bodies:   map[string]string{},
		tags:     map[string][]string{},
		markErr:  map[string]error{},
	}
}

func (f *fakeMail) Connect(context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeMail) Disconnect() error {
	f.connected = false
	return nil
}

func (f *fakeMail) ListCandidates(_ context.Context, _ string, excludeTag string, force bool) ([]*core.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastForce = force
	f.lastExclude = excludeTag
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*core.Message
	for _, m := range f.messages {
		if !force && !f.ignoreTags && hasTag(f.tags[m.ID], excludeTag) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	f.listed = out
	return out, nil
}

func (f *fakeMail) FetchBody(_ context.Context, id string) (string, error) {
	body, ok := f.bodies[id]
	if !ok {
		return "", fmt.Errorf("no body for %s", id)
	}
	return body, nil
}

func (f *fakeMail) MarkProcessed(_ context.Context, id, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.markErr[tag]; err != nil {
		return err
	}
	if !hasTag(f.tags[id], tag) {
		f.tags[id] = append(f.tags[id], tag)
	}
	return nil
}

func (f *fakeMail) RemoveTags(_ context.Context, id string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []string
	for _, t := range f.tags[id] {
		if !hasTag(tags, t) {
			kept = append(kept, t)
		}
	}
	f.tags[id] = kept
	return nil
}

func (f *fakeMail) tagsOf(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tags[id]...)
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

type fakeClassifier struct {
	outcomes map[string]core.ClassificationOutcome
	calls    []string
	onCall   func()
}

func (f *fakeClassifier) Classify(_ context.Context, text, _ string) core.ClassificationOutcome {
	f.calls = append(f.calls, text)
	if f.onCall != nil {
		f.onCall()
	}
	for subject, out := range f.outcomes {
		if strings.Contains(text, "Subject: "+subject+"\n") {
			return out
		}
	}
	return core.ClassificationOutcome{ImportanceScore: 5, SpamScore: 1, Status: core.ClassificationSuccess, Attempts: 1}
}

type fakeRenderer struct {
	data []map[string]any
}

func (f *fakeRenderer) Render(_ string, data map[string]any) (string, error) {
	f.data = append(f.data, data)
	switch data["subject"] {
	case "render-fail":
		return "", errors.New("template exploded")
	case "render-panic":
		panic("renderer bug")
	}
	return fmt.Sprintf("# %v\nimportance: %v\n", data["subject"], data["importance"]), nil
}

type memWriter struct {
	files map[string]string
	fail  map[string]bool
}

func newMemWriter() *memWriter {
	return &memWriter{files: map[string]string{}, fail: map[string]bool{}}
}

func (w *memWriter) Write(path, text string, overwrite bool) (string, error) {
	if w.fail[path] {
		return "", errors.New("disk full")
	}
	final := path
	if !overwrite {
		base := strings.TrimSuffix(path, ".md")
		for n := 2; ; n++ {
			if _, exists := w.files[final]; !exists {
				break
			}
			final = fmt.Sprintf("%s (%d).md", base, n)
		}
	}
	w.files[final] = text
	return final, nil
}

type fakeLedger struct {
	entries []*core.LedgerEntry
}

func (l *fakeLedger) Record(_ context.Context, e *core.LedgerEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

func (l *fakeLedger) Get(_ context.Context, accountID, messageID string) (*core.LedgerEntry, error) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].AccountID == accountID && l.entries[i].MessageID == messageID {
			return l.entries[i], nil
		}
	}
	return nil, core.ErrLedgerNotFound
}

func (l *fakeLedger) Recent(context.Context, string, int) ([]*core.LedgerEntry, error) {
	return l.entries, nil
}

func (l *fakeLedger) Close() error { return nil }

var testDate = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func message(id, sender, subject string) *core.Message {
	return &core.Message{ID: id, Sender: sender, Subject: subject, Date: testDate, Body: "body of " + id}
}

func testConfig() config.AccountConfig {
	return config.AccountConfig{
		AccountID: "work",
		IMAP: config.IMAPConfig{
			Query:        "UNSEEN",
			ProcessedTag: "AIProcessed",
			FailedTag:    "NoteCreationFailed",
		},
		Classification: config.ClassificationConfig{
			ImportanceThreshold: 8,
			SpamThreshold:       5,
		},
		Paths: config.PathsConfig{NotesDir: "/notes"},
		SafetyInterlock: config.SafetyConfig{
			Enabled:                        true,
			CostThreshold:                  0.10,
			SkipConfirmationBelowThreshold: true,
			AverageTokensPerEmail:          2000,
			CostPer1KTokens:                0.0001,
		},
		Blacklist: []rules.Rule{
			{Trigger: rules.TriggerDomain, Value: "spam.example", Action: rules.ActionDrop},
			{Trigger: rules.TriggerSubject, Value: "receipt", Action: rules.ActionRecord},
		},
		Whitelist: []rules.Rule{
			{Trigger: rules.TriggerDomain, Value: "vip.example", Action: rules.ActionBoost, ScoreBoost: 20, AddTags: []string{"#vip"}},
		},
	}
}

type harness struct {
	mail       *fakeMail
	classifier *fakeClassifier
	renderer   *fakeRenderer
	writer     *memWriter
	ledger     *fakeLedger
}

func newHarness(msgs ...*core.Message) *harness {
	return &harness{
		mail:       newFakeMail(msgs...),
		classifier: &fakeClassifier{outcomes: map[string]core.ClassificationOutcome{}},
		renderer:   &fakeRenderer{},
		writer:     newMemWriter(),
		ledger:     &fakeLedger{},
	}
}

func (h *harness) processor(cfg config.AccountConfig) *Processor {
	return New(cfg, Collaborators{
		Mail:       h.mail,
		Classifier: h.classifier,
		Renderer:   h.renderer,
		Writer:     h.writer,
		Ledger:     h.ledger,
	}, nil, WithClock(func() time.Time { return testDate }))
}
