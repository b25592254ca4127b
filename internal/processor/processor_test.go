package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/llm-inbox-triage/internal/core"
	"github.com/mikey/llm-inbox-triage/internal/safety"
)

func success(importance, spam int) core.ClassificationOutcome {
	return core.ClassificationOutcome{ImportanceScore: importance, SpamScore: spam, Status: core.ClassificationSuccess, Attempts: 1}
}

func TestBlacklistDropSkipsClassificationAndNote(t *testing.T) {
	h := newHarness(message("1", "promo@spam.example", "Win big"))

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{RunID: "r"})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, core.StatusDropped, res.Outcomes[0].Status)
	assert.Empty(t, h.classifier.calls)
	assert.Empty(t, h.writer.files)
	assert.Empty(t, h.mail.tagsOf("1"), "dropped messages are not acknowledged")
}

func TestWhitelistBoostAboveRange(t *testing.T) {
	h := newHarness(message("1", "Boss <ceo@vip.example>", "Board meeting"))
	h.classifier.outcomes["Board meeting"] = success(3, 1)

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	out := res.Outcomes[0]
	require.Equal(t, core.StatusProcessed, out.Status)
	require.NotNil(t, out.Decision)
	assert.Equal(t, 3, out.Decision.ImportanceScore)
	assert.Equal(t, 23, out.Decision.FinalImportanceScore)
	assert.Contains(t, out.Decision.Tags, "#vip")
	assert.True(t, out.Decision.IsImportant)
	assert.True(t, out.Decision.ExceedsRange)
	assert.False(t, out.Decision.IsSpam)

	assert.Equal(t, "/notes/2024-05-01 Board meeting (1).md", out.NotePath)
	assert.Contains(t, h.writer.files[out.NotePath], "importance: 23/10 (boosted +20)")
	assert.Equal(t, []string{"AIProcessed"}, h.mail.tagsOf("1"))
}

func TestAccountThresholdApplies(t *testing.T) {
	h := newHarness(message("1", "a@example.com", "Seven"))
	h.classifier.outcomes["Seven"] = success(7, 0)

	cfg := testConfig()
	res, err := h.processor(cfg).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.False(t, res.Outcomes[0].Decision.IsImportant)

	cfg.Classification.ImportanceThreshold = 7
	h = newHarness(message("1", "a@example.com", "Seven"))
	h.classifier.outcomes["Seven"] = success(7, 0)
	res, err = h.processor(cfg).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.True(t, res.Outcomes[0].Decision.IsImportant)
}

func TestBlacklistRecordPersistsWithoutClassification(t *testing.T) {
	h := newHarness(message("1", "shop@store.example", "Your receipt #42"))

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	out := res.Outcomes[0]
	assert.Equal(t, core.StatusRecorded, out.Status)
	assert.Nil(t, out.Decision)
	assert.Empty(t, h.classifier.calls)
	require.Len(t, h.renderer.data, 1)
	assert.Equal(t, NotClassified, h.renderer.data[0]["importance"])
	assert.Equal(t, false, h.renderer.data[0]["classified"])
	assert.Contains(t, h.writer.files, out.NotePath)
	assert.Equal(t, []string{"AIProcessed"}, h.mail.tagsOf("1"))
}

func TestSentinelStillPersistsAndAcknowledges(t *testing.T) {
	h := newHarness(message("1", "boss@vip.example", "Flaky"))
	h.classifier.outcomes["Flaky"] = core.FailedClassification(3, "", errors.New("exhausted"))

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	out := res.Outcomes[0]
	assert.Equal(t, core.StatusProcessed, out.Status)
	assert.True(t, out.ClassificationFailed)
	require.NotNil(t, out.Decision)
	assert.Equal(t, core.ClassificationError, out.Decision.Status)
	assert.Equal(t, core.ErrorSentinel, out.Decision.FinalImportanceScore, "sentinel is never boosted")
	assert.False(t, out.Decision.IsImportant)
	assert.False(t, out.Decision.IsSpam)
	assert.Contains(t, out.Decision.Tags, "#vip")
	assert.Contains(t, h.writer.files[out.NotePath], "importance: error")
	assert.Equal(t, []string{"AIProcessed"}, h.mail.tagsOf("1"))
	assert.Equal(t, "exhausted", h.renderer.data[0]["classification_error"])
}

func TestRenderFailureIsContainedToMessage(t *testing.T) {
	h := newHarness(
		message("1", "a@example.com", "render-fail"),
		message("2", "b@example.com", "Fine"),
	)

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	failed := res.Outcomes[0]
	assert.Equal(t, core.StatusError, failed.Status)
	var merr *core.MessageError
	require.True(t, errors.As(failed.Err, &merr))
	assert.Equal(t, "render", merr.Stage)
	assert.Equal(t, "1", merr.MessageID)
	assert.Equal(t, []string{"NoteCreationFailed"}, h.mail.tagsOf("1"))

	assert.Equal(t, core.StatusProcessed, res.Outcomes[1].Status)
}

func TestPanicIsContainedToMessage(t *testing.T) {
	h := newHarness(
		message("1", "a@example.com", "render-panic"),
		message("2", "b@example.com", "Fine"),
	)

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, core.StatusError, res.Outcomes[0].Status)
	assert.Contains(t, res.Outcomes[0].Err.Error(), "renderer bug")
	assert.Equal(t, core.StatusProcessed, res.Outcomes[1].Status)
}

func TestPersistFailureTagsMessageAndClearsOnRetry(t *testing.T) {
	msg := message("1", "a@example.com", "Report")
	h := newHarness(msg)
	h.writer.fail["/notes/2024-05-01 Report (1).md"] = true

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, res.Outcomes[0].Status)
	assert.Equal(t, []string{"NoteCreationFailed"}, h.mail.tagsOf("1"))

	delete(h.writer.fail, "/notes/2024-05-01 Report (1).md")
	res, err = h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessed, res.Outcomes[0].Status)
	assert.Equal(t, []string{"AIProcessed"}, h.mail.tagsOf("1"))
}

func TestAcknowledgeFailureIsMessageError(t *testing.T) {
	h := newHarness(message("1", "a@example.com", "Report"))
	h.mail.markErr["AIProcessed"] = errors.New("read-only mailbox")

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	out := res.Outcomes[0]
	assert.Equal(t, core.StatusError, out.Status)
	assert.NotEmpty(t, out.NotePath, "note was written before the acknowledgement failed")
	var merr *core.MessageError
	require.True(t, errors.As(out.Err, &merr))
	assert.Equal(t, "acknowledge", merr.Stage)
}

func TestReprocessingWithoutForceIsNoop(t *testing.T) {
	h := newHarness(message("1", "a@example.com", "Report"))
	p := h.processor(testConfig())

	_, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	res, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "AIProcessed", h.mail.lastExclude)
	assert.Empty(t, res.Outcomes)
	assert.Len(t, h.writer.files, 1)
}

func TestReprocessingWithoutForceDisambiguatesPaths(t *testing.T) {
	h := newHarness(message("1", "a@example.com", "Report"))
	h.mail.ignoreTags = true
	p := h.processor(testConfig())

	first, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	second, err := p.Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "/notes/2024-05-01 Report (1).md", first.Outcomes[0].NotePath)
	assert.Equal(t, "/notes/2024-05-01 Report (1) (2).md", second.Outcomes[0].NotePath)
}

func TestForceReprocessOverwritesSamePath(t *testing.T) {
	h := newHarness(message("1", "a@example.com", "Report"))
	p := h.processor(testConfig())

	first, err := p.Run(context.Background(), RunOptions{ForceReprocess: true})
	require.NoError(t, err)
	second, err := p.Run(context.Background(), RunOptions{ForceReprocess: true})
	require.NoError(t, err)

	assert.True(t, h.mail.lastForce)
	require.Len(t, second.Outcomes, 1)
	assert.Equal(t, first.Outcomes[0].NotePath, second.Outcomes[0].NotePath)
	assert.Len(t, h.writer.files, 1)
}

func TestForceReprocessKeepsSameSubjectMessagesApart(t *testing.T) {
	h := newHarness(
		message("1", "a@example.com", "Invoice"),
		message("2", "b@example.com", "Invoice"),
	)

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{ForceReprocess: true})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	assert.Equal(t, core.StatusProcessed, res.Outcomes[0].Status)
	assert.Equal(t, core.StatusProcessed, res.Outcomes[1].Status)
	assert.NotEqual(t, res.Outcomes[0].NotePath, res.Outcomes[1].NotePath)
	assert.Len(t, h.writer.files, 2, "one note per message")
	assert.Contains(t, h.writer.files[res.Outcomes[0].NotePath], "# Invoice")
	assert.Contains(t, h.writer.files[res.Outcomes[1].NotePath], "# Invoice")
}

func TestDryRunHasNoSideEffects(t *testing.T) {
	h := newHarness(
		message("1", "a@example.com", "Report"),
		message("2", "shop@store.example", "receipt"),
	)

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	assert.Len(t, h.classifier.calls, 1, "classification still runs")
	assert.Empty(t, h.writer.files)
	assert.Empty(t, h.mail.tagsOf("1"))
	assert.Empty(t, h.mail.tagsOf("2"))
	assert.Empty(t, h.ledger.entries)

	assert.True(t, res.Outcomes[0].DryRun)
	assert.Equal(t, core.StatusProcessed, res.Outcomes[0].Status)
	assert.Equal(t, "/notes/2024-05-01 Report (1).md", res.Outcomes[0].NotePath)
	assert.Equal(t, core.StatusRecorded, res.Outcomes[1].Status)
}

func TestLedgerRecordsEveryOutcome(t *testing.T) {
	h := newHarness(
		message("1", "promo@spam.example", "Win"),
		message("2", "a@example.com", "Report"),
	)
	h.classifier.outcomes["Report"] = success(9, 2)

	_, err := h.processor(testConfig()).Run(context.Background(), RunOptions{RunID: "run-1"})
	require.NoError(t, err)

	require.Len(t, h.ledger.entries, 2)
	assert.Equal(t, core.StatusDropped, h.ledger.entries[0].Status)
	assert.Equal(t, core.ErrorSentinel, h.ledger.entries[0].ImportanceScore)

	e, err := h.ledger.Get(context.Background(), "work", "2")
	require.NoError(t, err)
	assert.Equal(t, "run-1", e.RunID)
	assert.Equal(t, 9, e.ImportanceScore)
	assert.Equal(t, testDate, e.ProcessedAt)
}

func TestBodyIsFetchedWhenMissing(t *testing.T) {
	msg := message("1", "a@example.com", "Report")
	msg.Body = ""
	h := newHarness(msg)
	h.mail.bodies["1"] = "fetched text"

	_, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	require.Len(t, h.classifier.calls, 1)
	assert.Contains(t, h.classifier.calls[0], "fetched text")
	require.Len(t, h.mail.listed, 1)
	assert.Empty(t, h.mail.listed[0].Body, "candidate handed out by the mail client is left untouched")
}

func TestBodyFetchFailureIsMessageError(t *testing.T) {
	msg := message("1", "a@example.com", "Report")
	msg.Body = ""
	h := newHarness(msg)

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusError, res.Outcomes[0].Status)
	assert.Empty(t, h.classifier.calls)
}

func TestConnectFailureIsAccountError(t *testing.T) {
	h := newHarness()
	h.mail.connectErr = errors.New("connection refused")

	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	var aerr *core.AccountError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "work", aerr.AccountID)
	assert.Equal(t, "connect", aerr.Op)
	assert.NotNil(t, res)
}

func TestDeclinedCostGateAbortsBeforeClassification(t *testing.T) {
	h := newHarness(message("1", "a@example.com", "Report"), message("2", "b@example.com", "Other"))
	cfg := testConfig()
	cfg.SafetyInterlock.SkipConfirmationBelowThreshold = false

	res, err := h.processor(cfg).Run(context.Background(), RunOptions{Confirm: safety.Decline})
	assert.ErrorIs(t, err, core.ErrCostNotConfirmed)
	assert.Empty(t, h.classifier.calls)
	assert.Empty(t, res.Outcomes)
	require.NotNil(t, res.Estimate)
	assert.Equal(t, 2, res.Estimate.Count)
}

func TestCostPromptSeesAccount(t *testing.T) {
	h := newHarness(message("1", "a@example.com", "Report"))
	cfg := testConfig()
	cfg.SafetyInterlock.SkipConfirmationBelowThreshold = false

	var seen safety.CostEstimate
	confirm := func(_ context.Context, est safety.CostEstimate) (bool, error) {
		seen = est
		return true, nil
	}
	res, err := h.processor(cfg).Run(context.Background(), RunOptions{Confirm: confirm})
	require.NoError(t, err)
	assert.Equal(t, "work", seen.AccountID)
	assert.Equal(t, 1, seen.Count)
	assert.Equal(t, "work", res.Estimate.AccountID)
}

func TestCostGateCountsOnlyClassifiableMessages(t *testing.T) {
	h := newHarness(
		message("1", "promo@spam.example", "Win"),
		message("2", "a@example.com", "Report"),
	)
	res, err := h.processor(testConfig()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Estimate.Count)
}

func TestLimitCapsBatch(t *testing.T) {
	h := newHarness(
		message("1", "a@example.com", "One"),
		message("2", "a@example.com", "Two"),
		message("3", "a@example.com", "Three"),
	)
	cfg := testConfig()
	cfg.Processing.MaxEmailsPerRun = 2

	res, err := h.processor(cfg).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Candidates)
	assert.Len(t, res.Outcomes, 2)

	h = newHarness(
		message("1", "a@example.com", "One"),
		message("2", "a@example.com", "Two"),
		message("3", "a@example.com", "Three"),
	)
	res, err = h.processor(cfg).Run(context.Background(), RunOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Outcomes, 1)
}

func TestCancellationFinishesInFlightMessage(t *testing.T) {
	h := newHarness(
		message("1", "a@example.com", "One"),
		message("2", "a@example.com", "Two"),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.classifier.onCall = cancel

	res, err := h.processor(testConfig()).Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, core.StatusProcessed, res.Outcomes[0].Status)
	assert.Equal(t, []string{"AIProcessed"}, h.mail.tagsOf("1"))
	assert.Empty(t, h.mail.tagsOf("2"))
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, CanTransition(StateFetched, StateDropped))
	assert.True(t, CanTransition(StateClassifiedError, StateBoosted))
	assert.True(t, CanTransition(StatePersisted, StateAcknowledged))
	assert.False(t, CanTransition(StateFetched, StatePersisted))
	assert.False(t, CanTransition(StateAcknowledged, StateFetched))
	assert.True(t, StateAcknowledged.Terminal())
	assert.False(t, StateRendered.Terminal())
}
